package views

import (
	"context"
	"log/slog"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
	"github.com/loangraph/marketsync/internal/remote"
)

const NameBorrowerMortgages = "borrower-mortgages"

type BorrowerMortgagesAPI interface {
	MyMortgages(ctx context.Context) ([]market.Mortgage, error)
	MyLoanRequests(ctx context.Context) ([]market.LoanRequest, error)
	MyCampaigns(ctx context.Context) ([]market.Campaign, error)
	ResolveContracts(ctx context.Context, ids []string) (map[string]market.Contract, error)
	DecideMortgageOffer(ctx context.Context, k market.Key, d market.Decision) error
	CreateLoanRequest(ctx context.Context, in remote.LoanRequestInput) error
}

// MortgageRow is a mortgage with its bank and contract resolved for display.
type MortgageRow struct {
	market.Mortgage
	BankName     string           `json:"bank_name"`
	BorrowerName string           `json:"borrower_name"`
	Contract     *market.Contract `json:"contract,omitempty"`
}

type BorrowerMortgagesSnapshot struct {
	PendingOffers       []MortgageRow        `json:"pending_offers"`
	AcceptedMortgages   []MortgageRow        `json:"accepted_mortgages"`
	PendingLoanRequests []market.LoanRequest `json:"pending_loan_requests"`
	DecidedLoanRequests []market.LoanRequest `json:"decided_loan_requests"`
	Campaigns           []CampaignRow        `json:"campaigns"`
	Alert               *Alert               `json:"alert,omitempty"`
}

// BorrowerMortgages is the borrower's loan request and mortgage offer view.
type BorrowerMortgages struct {
	*runner
	api   BorrowerMortgagesAPI
	names Identity

	mortgages    *Slot[[]market.Mortgage]
	loanRequests *Slot[[]market.LoanRequest]
	campaigns    *Slot[[]market.Campaign]
	contracts    *Slot[map[string]market.Contract]
}

func NewBorrowerMortgages(api BorrowerMortgagesAPI, names Identity, strategy poll.Strategy, logger *slog.Logger) *BorrowerMortgages {
	v := &BorrowerMortgages{
		runner:       newRunner(NameBorrowerMortgages, strategy, logger),
		api:          api,
		names:        names,
		mortgages:    newSlot[[]market.Mortgage]("mortgages"),
		loanRequests: newSlot[[]market.LoanRequest]("loan_requests"),
		campaigns:    newSlot[[]market.Campaign]("campaigns"),
		contracts:    newSlot[map[string]market.Contract]("contracts"),
	}
	v.refresh = v.load
	return v
}

func (v *BorrowerMortgages) load(ctx context.Context) error {
	return parallel(ctx,
		func(ctx context.Context) error {
			if err := load(ctx, v.runner, v.mortgages, v.api.MyMortgages); err != nil {
				return err
			}
			ids := market.ContractIDs(slice(v.mortgages))
			return load(ctx, v.runner, v.contracts, func(ctx context.Context) (map[string]market.Contract, error) {
				return v.api.ResolveContracts(ctx, ids)
			})
		},
		func(ctx context.Context) error { return load(ctx, v.runner, v.loanRequests, v.api.MyLoanRequests) },
		func(ctx context.Context) error { return load(ctx, v.runner, v.campaigns, v.api.MyCampaigns) },
	)
}

func (v *BorrowerMortgages) AcceptOffer(ctx context.Context, k market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideMortgageOffer(ctx, k, market.DecisionAccept)
	})
}

func (v *BorrowerMortgages) RejectOffer(ctx context.Context, k market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideMortgageOffer(ctx, k, market.DecisionReject)
	})
}

func (v *BorrowerMortgages) CreateLoanRequest(ctx context.Context, in remote.LoanRequestInput) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.CreateLoanRequest(ctx, in)
	})
}

func (v *BorrowerMortgages) Snapshot() any {
	mortgages := slice(v.mortgages)
	contracts := value(v.contracts)
	loanRequests := slice(v.loanRequests)
	return BorrowerMortgagesSnapshot{
		PendingOffers:       mortgageRows(v.names, market.FilterByStatus(mortgages, market.StatusPending), contracts),
		AcceptedMortgages:   mortgageRows(v.names, market.FilterByStatus(mortgages, market.StatusAccepted), contracts),
		PendingLoanRequests: market.FilterByStatus(loanRequests, market.StatusPending),
		DecidedLoanRequests: market.FilterByStatus(loanRequests, market.StatusAccepted, market.StatusRejected),
		Campaigns:           campaignRows(v.names, slice(v.campaigns)),
		Alert:               v.Alert(),
	}
}

func mortgageRows(names Identity, mortgages []market.Mortgage, contracts map[string]market.Contract) []MortgageRow {
	out := make([]MortgageRow, 0, len(mortgages))
	for _, m := range mortgages {
		row := MortgageRow{
			Mortgage:     m,
			BankName:     names.DisplayName(m.BankID),
			BorrowerName: names.DisplayName(m.UserID),
		}
		if c, ok := contracts[m.OwnershipContract()]; ok {
			row.Contract = &c
		}
		out = append(out, row)
	}
	return out
}
