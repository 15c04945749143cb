package views

import (
	"context"
	"log/slog"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
)

const NameBorrowerCampaigns = "borrower-campaigns"

type BorrowerCampaignsAPI interface {
	MyCampaigns(ctx context.Context) ([]market.Campaign, error)
	ResolveContracts(ctx context.Context, ids []string) (map[string]market.Contract, error)
	DecideInvestment(ctx context.Context, campaign, investment market.Key, d market.Decision) error
}

type BorrowerCampaignsSnapshot struct {
	Campaigns           []CampaignRow   `json:"campaigns"`
	PendingInvestments  []InvestmentRow `json:"pending_investments"`
	AcceptedInvestments []InvestmentRow `json:"accepted_investments"`
	Alert               *Alert          `json:"alert,omitempty"`
}

// BorrowerCampaigns shows the investments offered on the borrower's own
// campaigns.
type BorrowerCampaigns struct {
	*runner
	api   BorrowerCampaignsAPI
	names Identity

	campaigns *Slot[[]market.Campaign]
	contracts *Slot[map[string]market.Contract]
}

func NewBorrowerCampaigns(api BorrowerCampaignsAPI, names Identity, strategy poll.Strategy, logger *slog.Logger) *BorrowerCampaigns {
	v := &BorrowerCampaigns{
		runner:    newRunner(NameBorrowerCampaigns, strategy, logger),
		api:       api,
		names:     names,
		campaigns: newSlot[[]market.Campaign]("campaigns"),
		contracts: newSlot[map[string]market.Contract]("contracts"),
	}
	v.refresh = v.load
	return v
}

func (v *BorrowerCampaigns) load(ctx context.Context) error {
	if err := load(ctx, v.runner, v.campaigns, v.api.MyCampaigns); err != nil {
		return err
	}
	ids := market.ContractIDs(market.CampaignInvestments(slice(v.campaigns)))
	return load(ctx, v.runner, v.contracts, func(ctx context.Context) (map[string]market.Contract, error) {
		return v.api.ResolveContracts(ctx, ids)
	})
}

func (v *BorrowerCampaigns) AcceptInvestment(ctx context.Context, campaign, investment market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideInvestment(ctx, campaign, investment, market.DecisionAccept)
	})
}

func (v *BorrowerCampaigns) RejectInvestment(ctx context.Context, campaign, investment market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideInvestment(ctx, campaign, investment, market.DecisionReject)
	})
}

func (v *BorrowerCampaigns) Snapshot() any {
	campaigns := slice(v.campaigns)
	investments := market.CampaignInvestments(campaigns)
	contracts := value(v.contracts)
	return BorrowerCampaignsSnapshot{
		Campaigns:           campaignRows(v.names, campaigns),
		PendingInvestments:  investmentRows(v.names, market.FilterByStatus(investments, market.StatusPending), contracts),
		AcceptedInvestments: investmentRows(v.names, market.FilterByStatus(investments, market.StatusAccepted), contracts),
		Alert:               v.Alert(),
	}
}
