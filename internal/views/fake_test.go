package views

import (
	"context"
	"sync"

	"github.com/loangraph/marketsync/internal/directory"
	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/remote"
)

type fakeIdentity struct {
	me    market.User
	names map[string]string
}

func (f fakeIdentity) Me() (market.User, bool) { return f.me, f.me.ID != "" }

func (f fakeIdentity) DisplayName(id string) string {
	if n, ok := f.names[id]; ok {
		return n
	}
	return directory.ShortID(id)
}

// fakeMarket serves every read from memory and records writes.
type fakeMarket struct {
	mu            sync.Mutex
	campaigns     []market.Campaign
	campaignsErr  error
	mortgages     []market.Mortgage
	myInvestments []market.Investment
	investments   []market.Investment
	blocks        []market.Block
	blockCalls    int
	blocksGate    chan struct{}
	blocksQueue   []blocksReply
	profile       *market.Profile
	profileErr    error
	writeErr      error
	writes        []string
}

func (f *fakeMarket) Campaigns(context.Context) ([]market.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.campaignsErr != nil {
		return nil, f.campaignsErr
	}
	return f.campaigns, nil
}

func (f *fakeMarket) MyCampaigns(ctx context.Context) ([]market.Campaign, error) {
	return f.Campaigns(ctx)
}

func (f *fakeMarket) Mortgages(context.Context) ([]market.Mortgage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mortgages, nil
}

func (f *fakeMarket) MyInvestments(context.Context) ([]market.Investment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.myInvestments, nil
}

func (f *fakeMarket) Investments(context.Context) ([]market.Investment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.investments, nil
}

func (f *fakeMarket) ResolveContracts(_ context.Context, ids []string) (map[string]market.Contract, error) {
	out := map[string]market.Contract{}
	for _, id := range ids {
		out[id] = market.Contract{ID: id, Confirmations: 1}
	}
	return out, nil
}

func (f *fakeMarket) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, op)
	return f.writeErr
}

func (f *fakeMarket) CreateInvestment(context.Context, remote.InvestmentInput) error {
	return f.record("invest")
}

func (f *fakeMarket) OfferForSale(_ context.Context, k market.Key) error {
	return f.record("sell " + k.String())
}

func (f *fakeMarket) OfferTransfer(_ context.Context, k market.Key, _ remote.TransferInput) error {
	return f.record("offer " + k.String())
}

func (f *fakeMarket) DecideInvestment(_ context.Context, c, inv market.Key, d market.Decision) error {
	return f.record(string(d) + " " + c.String() + " " + inv.String())
}

func (f *fakeMarket) DecideTransfer(_ context.Context, inv, t market.Key, d market.Decision) error {
	return f.record(string(d) + " " + inv.String() + " " + t.String())
}

// blocksReply answers one Blocks call, after wait is closed when set.
type blocksReply struct {
	blocks []market.Block
	wait   chan struct{}
}

// Blocks waits on blocksGate when set, ignoring ctx like a response that is
// already on the wire. Queued replies are served first, one per call.
func (f *fakeMarket) Blocks(context.Context) ([]market.Block, error) {
	f.mu.Lock()
	f.blockCalls++
	gate := f.blocksGate
	blocks := f.blocks
	if len(f.blocksQueue) > 0 {
		gate, blocks = f.blocksQueue[0].wait, f.blocksQueue[0].blocks
		f.blocksQueue = f.blocksQueue[1:]
	}
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return blocks, nil
}

func (f *fakeMarket) Block(_ context.Context, id string) (*market.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.blocks {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, &remote.APIError{Status: 404, Message: "block not found"}
}

func (f *fakeMarket) Contract(_ context.Context, id string) (*market.Contract, error) {
	return &market.Contract{ID: id}, nil
}

func (f *fakeMarket) Profile(context.Context) (*market.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeMarket) SaveProfile(_ context.Context, p market.Profile) error {
	if err := f.record("profile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = &p
	f.profileErr = nil
	return nil
}

func (f *fakeMarket) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockCalls
}
