package views

import (
	"context"
	"log/slog"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
)

const NameBankerCampaigns = "banker-campaigns"

type BankerCampaignsAPI interface {
	Campaigns(ctx context.Context) ([]market.Campaign, error)
	Mortgages(ctx context.Context) ([]market.Mortgage, error)
}

type BankerCampaignsSnapshot struct {
	OpenCampaigns      []CampaignRow `json:"open_campaigns"`
	CompletedCampaigns []CampaignRow `json:"completed_campaigns"`
}

// BankerCampaigns follows the campaigns that fund mortgages issued by the
// signed in bank. It has no actions.
type BankerCampaigns struct {
	*runner
	api      BankerCampaignsAPI
	identity Identity

	campaigns *Slot[[]market.Campaign]
	mortgages *Slot[[]market.Mortgage]
}

func NewBankerCampaigns(api BankerCampaignsAPI, identity Identity, strategy poll.Strategy, logger *slog.Logger) *BankerCampaigns {
	v := &BankerCampaigns{
		runner:    newRunner(NameBankerCampaigns, strategy, logger),
		api:       api,
		identity:  identity,
		campaigns: newSlot[[]market.Campaign]("campaigns"),
		mortgages: newSlot[[]market.Mortgage]("mortgages"),
	}
	v.refresh = v.load
	return v
}

func (v *BankerCampaigns) load(ctx context.Context) error {
	return parallel(ctx,
		func(ctx context.Context) error { return load(ctx, v.runner, v.campaigns, v.api.Campaigns) },
		func(ctx context.Context) error { return load(ctx, v.runner, v.mortgages, v.api.Mortgages) },
	)
}

func (v *BankerCampaigns) Snapshot() any {
	mine := []market.Campaign{}
	if me, ok := v.identity.Me(); ok {
		mortgages := market.MortgagesByBank(slice(v.mortgages), me.ID)
		mine = market.CampaignsForMortgages(slice(v.campaigns), mortgages)
	}
	return BankerCampaignsSnapshot{
		OpenCampaigns:      campaignRows(v.identity, market.OpenCampaigns(mine)),
		CompletedCampaigns: campaignRows(v.identity, market.CompletedCampaigns(mine)),
	}
}
