package views

import (
	"context"
	"log/slog"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/poll"
	"github.com/loangraph/marketsync/internal/remote"
)

const NameBankerMortgages = "banker-mortgages"

type BankerMortgagesAPI interface {
	LoanRequests(ctx context.Context) ([]market.LoanRequest, error)
	Mortgages(ctx context.Context) ([]market.Mortgage, error)
	DecideLoanRequest(ctx context.Context, k market.Key, d market.Decision, terms *remote.OfferTerms) error
}

type BankerMortgagesSnapshot struct {
	PendingLoanRequests []LoanRequestRow `json:"pending_loan_requests"`
	IssuedMortgages     []MortgageRow    `json:"issued_mortgages"`
	Alert               *Alert           `json:"alert,omitempty"`
}

// BankerMortgages lists loan requests waiting on a bank and the mortgages
// that bank has issued.
type BankerMortgages struct {
	*runner
	api      BankerMortgagesAPI
	identity Identity

	loanRequests *Slot[[]market.LoanRequest]
	mortgages    *Slot[[]market.Mortgage]
}

func NewBankerMortgages(api BankerMortgagesAPI, identity Identity, strategy poll.Strategy, logger *slog.Logger) *BankerMortgages {
	v := &BankerMortgages{
		runner:       newRunner(NameBankerMortgages, strategy, logger),
		api:          api,
		identity:     identity,
		loanRequests: newSlot[[]market.LoanRequest]("loan_requests"),
		mortgages:    newSlot[[]market.Mortgage]("mortgages"),
	}
	v.refresh = v.load
	return v
}

func (v *BankerMortgages) load(ctx context.Context) error {
	return parallel(ctx,
		func(ctx context.Context) error { return load(ctx, v.runner, v.loanRequests, v.api.LoanRequests) },
		func(ctx context.Context) error { return load(ctx, v.runner, v.mortgages, v.api.Mortgages) },
	)
}

// AcceptLoanRequest turns a pending loan request into a mortgage offer.
// Non-zero terms override the backend defaults.
func (v *BankerMortgages) AcceptLoanRequest(ctx context.Context, k market.Key, terms *remote.OfferTerms) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideLoanRequest(ctx, k, market.DecisionAccept, terms)
	})
}

func (v *BankerMortgages) RejectLoanRequest(ctx context.Context, k market.Key) error {
	return v.act(ctx, func(ctx context.Context) error {
		return v.api.DecideLoanRequest(ctx, k, market.DecisionReject, nil)
	})
}

func (v *BankerMortgages) Snapshot() any {
	pending := market.FilterByStatus(slice(v.loanRequests), market.StatusPending)
	rows := make([]LoanRequestRow, 0, len(pending))
	for _, lr := range pending {
		rows = append(rows, LoanRequestRow{LoanRequest: lr, BorrowerName: v.identity.DisplayName(lr.UserID)})
	}

	issued := []market.Mortgage{}
	if me, ok := v.identity.Me(); ok {
		issued = market.MortgagesByBank(slice(v.mortgages), me.ID)
	}
	return BankerMortgagesSnapshot{
		PendingLoanRequests: rows,
		IssuedMortgages:     mortgageRows(v.identity, issued, nil),
		Alert:               v.Alert(),
	}
}
