package views

import (
	"context"
	"log/slog"
	"sync"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
)

const NameBlocks = "blocks"

type BlocksAPI interface {
	Blocks(ctx context.Context) ([]market.Block, error)
	Block(ctx context.Context, id string) (*market.Block, error)
	Contract(ctx context.Context, id string) (*market.Contract, error)
}

type BlockRow struct {
	ID            string `json:"id"`
	Height        int64  `json:"height"`
	CreatorName   string `json:"creator_name"`
	ContractCount int    `json:"contract_count"`
	Time          int64  `json:"time"`
}

type BlocksSnapshot struct {
	Blocks   []BlockRow    `json:"blocks"`
	Selected *market.Block `json:"selected,omitempty"`
}

// Blocks is the ledger explorer: the block list plus one selected block
// shown in full.
type Blocks struct {
	*runner
	api   BlocksAPI
	names Identity

	blocks *Slot[[]market.Block]
	detail *Slot[*market.Block]

	selMu    sync.Mutex
	selected string
}

func NewBlocks(api BlocksAPI, names Identity, strategy poll.Strategy, logger *slog.Logger) *Blocks {
	v := &Blocks{
		runner: newRunner(NameBlocks, strategy, logger),
		api:    api,
		names:  names,
		blocks: newSlot[[]market.Block]("blocks"),
		detail: newSlot[*market.Block]("block"),
	}
	v.refresh = v.load
	return v
}

func (v *Blocks) load(ctx context.Context) error {
	return parallel(ctx,
		func(ctx context.Context) error { return load(ctx, v.runner, v.blocks, v.api.Blocks) },
		v.loadDetail,
	)
}

func (v *Blocks) loadDetail(ctx context.Context) error {
	id := v.selection()
	if id == "" {
		return nil
	}
	return load(ctx, v.runner, v.detail, func(ctx context.Context) (*market.Block, error) {
		return v.api.Block(ctx, id)
	})
}

func (v *Blocks) selection() string {
	v.selMu.Lock()
	defer v.selMu.Unlock()
	return v.selected
}

// Select switches the detail pane to block id and fetches it right away.
func (v *Blocks) Select(ctx context.Context, id string) error {
	v.selMu.Lock()
	v.selected = id
	v.selMu.Unlock()
	return v.loadDetail(ctx)
}

// Detail returns the selected block once it has been fetched.
func (v *Blocks) Detail() (*market.Block, bool) {
	id := v.selection()
	b, ok := v.detail.Get()
	if !ok || b == nil || id == "" || b.ID != id {
		return nil, false
	}
	return b, true
}

// Contract looks up one contract. It is not cached.
func (v *Blocks) Contract(ctx context.Context, id string) (*market.Contract, error) {
	return v.api.Contract(ctx, id)
}

func (v *Blocks) Snapshot() any {
	blocks := slice(v.blocks)
	rows := make([]BlockRow, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, BlockRow{
			ID:            b.ID,
			Height:        b.Height,
			CreatorName:   v.names.DisplayName(b.Creator),
			ContractCount: len(b.Contracts),
			Time:          b.Time,
		})
	}
	snap := BlocksSnapshot{Blocks: rows}
	if b, ok := v.Detail(); ok {
		snap.Selected = b
	}
	return snap
}
