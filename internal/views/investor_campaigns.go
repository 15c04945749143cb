package views

import (
	"context"
	"errors"
	"log/slog"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
	"github.com/loangraph/marketsync/internal/remote"
)

const NameInvestorCampaigns = "investor-campaigns"

// ErrTransferOfferClosed is returned when the investment is not for sale or
// already carries a pending transfer offer.
var ErrTransferOfferClosed = errors.New("transfer_offer_not_allowed")

type InvestorCampaignsAPI interface {
	Campaigns(ctx context.Context) ([]market.Campaign, error)
	MyInvestments(ctx context.Context) ([]market.Investment, error)
	Investments(ctx context.Context) ([]market.Investment, error)
	ResolveContracts(ctx context.Context, ids []string) (map[string]market.Contract, error)
	CreateInvestment(ctx context.Context, in remote.InvestmentInput) error
	OfferForSale(ctx context.Context, k market.Key) error
	OfferTransfer(ctx context.Context, investment market.Key, in remote.TransferInput) error
	DecideTransfer(ctx context.Context, investment, transfer market.Key, d market.Decision) error
}

type InvestorCampaignsSnapshot struct {
	OpenCampaigns       []CampaignRow   `json:"open_campaigns"`
	CompletedCampaigns  []CampaignRow   `json:"completed_campaigns"`
	PendingInvestments  []InvestmentRow `json:"pending_investments"`
	AcceptedInvestments []InvestmentRow `json:"accepted_investments"`
	ForSaleInvestments  []InvestmentRow `json:"for_sale_investments"`
	IncomingTransfers   []TransferRow   `json:"incoming_transfers"`
	AvailableToBuy      []InvestmentRow `json:"available_to_buy"`
	Alert               *Alert          `json:"alert,omitempty"`
}

// InvestorCampaigns is the investor's market: open campaigns to invest in,
// my own investments, and other investors' stakes offered for resale.
type InvestorCampaigns struct {
	*runner
	api   InvestorCampaignsAPI
	names Identity

	campaigns     *Slot[[]market.Campaign]
	myInvestments *Slot[[]market.Investment]
	investments   *Slot[[]market.Investment]
	contracts     *Slot[map[string]market.Contract]
}

func NewInvestorCampaigns(api InvestorCampaignsAPI, names Identity, strategy poll.Strategy, logger *slog.Logger) *InvestorCampaigns {
	v := &InvestorCampaigns{
		runner:        newRunner(NameInvestorCampaigns, strategy, logger),
		api:           api,
		names:         names,
		campaigns:     newSlot[[]market.Campaign]("campaigns"),
		myInvestments: newSlot[[]market.Investment]("my_investments"),
		investments:   newSlot[[]market.Investment]("investments"),
		contracts:     newSlot[map[string]market.Contract]("contracts"),
	}
	v.refresh = v.load
	return v
}

func (v *InvestorCampaigns) load(ctx context.Context) error {
	return parallel(ctx,
		func(ctx context.Context) error { return load(ctx, v.runner, v.campaigns, v.api.Campaigns) },
		func(ctx context.Context) error {
			if err := load(ctx, v.runner, v.myInvestments, v.api.MyInvestments); err != nil {
				return err
			}
			ids := market.ContractIDs(slice(v.myInvestments))
			return load(ctx, v.runner, v.contracts, func(ctx context.Context) (map[string]market.Contract, error) {
				return v.api.ResolveContracts(ctx, ids)
			})
		},
		func(ctx context.Context) error { return load(ctx, v.runner, v.investments, v.api.Investments) },
	)
}

// AvailableToBuy is every investment offered for sale that is not mine.
func (v *InvestorCampaigns) AvailableToBuy() []market.Investment {
	forSale := market.FilterByStatus(slice(v.investments), market.StatusForSale)
	return market.ExcludeOwned(forSale, slice(v.myInvestments))
}

func (v *InvestorCampaigns) Invest(ctx context.Context, in remote.InvestmentInput) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.CreateInvestment(ctx, in)
	})
}

func (v *InvestorCampaigns) SellInvestment(ctx context.Context, k market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.OfferForSale(ctx, k)
	})
}

// OfferTransfer bids on another investor's stake. The offer is refused
// locally unless the last refresh showed the stake open for offers.
func (v *InvestorCampaigns) OfferTransfer(ctx context.Context, k market.Key, in remote.TransferInput) error {
	inv, ok := market.FindByKey(slice(v.investments), k)
	if !ok || !inv.CanMakeTransferOffer() {
		v.setAlert(&Alert{Severity: SeverityWarning, Message: "This investment is not open for transfer offers."})
		return ErrTransferOfferClosed
	}
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.OfferTransfer(ctx, k, in)
	})
}

func (v *InvestorCampaigns) AcceptTransfer(ctx context.Context, investment, transfer market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideTransfer(ctx, investment, transfer, market.DecisionAccept)
	})
}

func (v *InvestorCampaigns) DeclineTransfer(ctx context.Context, investment, transfer market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideTransfer(ctx, investment, transfer, market.DecisionDecline)
	})
}

func (v *InvestorCampaigns) Snapshot() any {
	campaigns := slice(v.campaigns)
	mine := slice(v.myInvestments)
	contracts := value(v.contracts)
	forSale := market.FilterByStatus(mine, market.StatusForSale)
	return InvestorCampaignsSnapshot{
		OpenCampaigns:       campaignRows(v.names, market.OpenCampaigns(campaigns)),
		CompletedCampaigns:  campaignRows(v.names, market.CompletedCampaigns(campaigns)),
		PendingInvestments:  investmentRows(v.names, market.FilterByStatus(mine, market.StatusPending), contracts),
		AcceptedInvestments: investmentRows(v.names, market.FilterByStatus(mine, market.StatusAccepted), contracts),
		ForSaleInvestments:  investmentRows(v.names, forSale, contracts),
		IncomingTransfers:   pendingTransfers(v.names, forSale),
		AvailableToBuy:      investmentRows(v.names, v.AvailableToBuy(), nil),
		Alert:               v.Alert(),
	}
}
