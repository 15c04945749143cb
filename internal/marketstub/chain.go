package marketstub

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/loangraph/marketsync/internal/market"
	"golang.org/x/crypto/sha3"
)

const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// chain is a toy ledger: signed contracts wait in a pool until the next
// block is mined. Ids are sha3 digests linked to their predecessor.
type chain struct {
	now       func() time.Time
	contracts map[string]*market.Contract
	order     []string
	pending   []string
	list      []*market.Block
	height    map[string]int64
}

func newChain() *chain {
	return &chain{
		now:       time.Now,
		contracts: map[string]*market.Contract{},
		height:    map[string]int64{},
	}
}

func digest(parts ...string) string {
	sum := sha3.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (c *chain) sign(from, to string, doc map[string]any) market.Contract {
	raw, _ := json.Marshal(doc)
	prev := genesisHash
	if n := len(c.order); n > 0 {
		prev = c.order[n-1]
	}
	ts := c.now().Unix()
	id := digest(prev, from, to, string(raw), strconv.Itoa(len(c.order)))
	contract := &market.Contract{
		ID:            id,
		PreviousHash:  prev,
		FromPublicKey: from,
		FromSignature: digest("sig", from, id),
		ToPublicKey:   to,
		ToSignature:   digest("sig", to, id),
		Document:      base64.StdEncoding.EncodeToString(raw),
		Decoded:       doc,
		Time:          ts,
	}
	c.contracts[id] = contract
	c.order = append(c.order, id)
	c.pending = append(c.pending, id)
	return *contract
}

// mine seals every pending contract into a new block created by creator.
func (c *chain) mine(creator string) market.Block {
	prev := genesisHash
	if n := len(c.list); n > 0 {
		prev = c.list[n-1].ID
	}
	height := int64(len(c.list))
	root := digest(c.pending...)
	b := &market.Block{
		ID:               digest(prev, root, strconv.FormatInt(height, 10)),
		Height:           height,
		PreviousHash:     prev,
		MerkleRootHash:   root,
		Creator:          creator,
		TargetDifficulty: "0",
		Time:             c.now().Unix(),
	}
	b.CreatorSignature = digest("sig", creator, b.ID)
	for _, id := range c.pending {
		c.height[id] = height
	}
	c.pending = nil
	c.list = append(c.list, b)

	return c.materialize(b)
}

func (c *chain) confirmations(id string) int64 {
	h, ok := c.height[id]
	if !ok {
		return 0
	}
	return int64(len(c.list)) - h
}

func (c *chain) contract(id string) (market.Contract, bool) {
	ct, ok := c.contracts[id]
	if !ok {
		return market.Contract{}, false
	}
	out := *ct
	out.Confirmations = c.confirmations(id)
	return out, true
}

func (c *chain) materialize(b *market.Block) market.Block {
	out := *b
	out.Contracts = []market.Contract{}
	for _, id := range c.order {
		if h, ok := c.height[id]; ok && h == b.Height {
			ct, _ := c.contract(id)
			out.Contracts = append(out.Contracts, ct)
		}
	}
	return out
}

// blocks lists the ledger newest first.
func (c *chain) blocks() []market.Block {
	out := make([]market.Block, 0, len(c.list))
	for i := len(c.list) - 1; i >= 0; i-- {
		out = append(out, c.materialize(c.list[i]))
	}
	return out
}

func (c *chain) block(id string) (market.Block, bool) {
	for _, b := range c.list {
		if b.ID == id {
			return c.materialize(b), true
		}
	}
	return market.Block{}, false
}
