package marketstub

import (
	"errors"
	"net/http"
	"testing"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/shopspring/decimal"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if err := Seed(s); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var stubErr *Error
	if !errors.As(err, &stubErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	return stubErr.Status
}

func TestSeedBuildsFundedCampaign(t *testing.T) {
	s := seeded(t)

	campaigns, err := s.MyCampaigns(DemoBorrower)
	if err != nil || len(campaigns) != 1 {
		t.Fatalf("campaigns: %v %+v", err, campaigns)
	}
	c := campaigns[0]
	if !c.Amount.Equal(decimal.NewFromInt(75000)) {
		t.Fatalf("campaign should fund what the bank does not: %s", c.Amount)
	}
	if !c.AmountInvested.Equal(decimal.NewFromInt(20000)) || !c.IsOpen() || c.Completed {
		t.Fatalf("unexpected campaign state: %+v", c)
	}
	if len(c.Investments) != 1 || c.Investments[0].Status != market.StatusForSale {
		t.Fatalf("unexpected investments: %+v", c.Investments)
	}

	blocks := s.Blocks()
	if len(blocks) != 2 || blocks[0].Height != 1 || blocks[1].PreviousHash != genesisHash {
		t.Fatalf("unexpected chain: %+v", blocks)
	}
	if blocks[0].PreviousHash != blocks[1].ID {
		t.Fatalf("blocks are not linked")
	}
	contract, err := s.Contract(blocks[1].Contracts[0].ID)
	if err != nil || contract.Confirmations != 2 {
		t.Fatalf("contract: %v confirmations=%d", err, contract.Confirmations)
	}
}

func TestSeedProfilesPassValidation(t *testing.T) {
	s := seeded(t)

	for _, id := range []string{DemoBorrower, DemoInvestor, DemoInvestor2} {
		p, err := s.Profile(id)
		if err != nil {
			t.Fatalf("profile %s: %v", id, err)
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("profile %s: %v", id, err)
		}
	}
}

func TestBorrowerProfileNeedsAddressAndDocuments(t *testing.T) {
	s := NewStore()
	s.AddUser(market.User{ID: "b", Role: market.RoleBorrower})

	p := market.Profile{Role: market.RoleBorrower, FirstName: "B", LastName: "B", Email: "b@example.org", IBAN: "NL", PhoneNumber: "1", CurrentPostalCode: "1011AB", CurrentHouseNumber: "9"}
	if err := s.SaveProfile("b", p); statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("expected 400 without address, got %v", err)
	}
	p.CurrentAddress = "Damrak 9"
	p.DocumentList = []string{"id.pdf"}
	if err := s.SaveProfile("b", p); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestBankOnlySeesAddressedLoanRequests(t *testing.T) {
	s := seeded(t)

	active, err := s.LoanRequests(DemoBank)
	if err != nil || len(active) != 2 {
		t.Fatalf("bank-1 requests: %v %d", err, len(active))
	}
	idle, err := s.LoanRequests(DemoBankIdle)
	if err != nil || len(idle) != 1 || idle[0].Status != market.StatusPending {
		t.Fatalf("bank-2 requests: %v %+v", err, idle)
	}
	if _, err := s.LoanRequests(DemoBorrower); statusOf(t, err) != http.StatusForbidden {
		t.Fatalf("borrower must not list bank requests")
	}
}

func TestLoanRequestCannotBeDecidedTwice(t *testing.T) {
	s := seeded(t)
	pending, _ := s.LoanRequests(DemoBankIdle)
	k := pending[0].Key()

	if err := s.DecideLoanRequest(DemoBankIdle, k, OfferParams{Status: "REJECT"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	err := s.DecideLoanRequest(DemoBank, k, OfferParams{Status: "ACCEPT"})
	if statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if err := s.DecideLoanRequest(DemoBank, k, OfferParams{Status: "MAYBE"}); statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("unknown decision accepted: %v", err)
	}
}

func TestCreateLoanRequestNeedsProfile(t *testing.T) {
	s := NewStore()
	s.AddUser(market.User{ID: "b", Role: market.RoleBorrower})
	_, err := s.CreateLoanRequest("b", LoanRequestParams{Banks: []string{"x"}, AmountWanted: decimal.NewFromInt(1), MortgageType: "LINEAR"})
	if statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if _, err := s.Profile("b"); statusOf(t, err) != http.StatusNotFound {
		t.Fatalf("expected missing profile")
	}
}

func TestTransferLifecycle(t *testing.T) {
	s := seeded(t)
	forSale, _ := s.MyInvestments(DemoInvestor)
	inv := forSale[0]
	id := inv.ID
	offer := TransferParams{IBAN: "NL02RABO0123456789", Amount: decimal.NewFromInt(19000), InvestmentID: &id, InvestmentUserID: inv.UserID}

	if _, err := s.OfferTransfer(DemoInvestor, inv.Key(), offer); statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("owner bought own investment: %v", err)
	}
	tr, err := s.OfferTransfer(DemoInvestor2, inv.Key(), offer)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := s.OfferTransfer(DemoInvestor2, inv.Key(), offer); statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("second offer accepted while one is pending: %v", err)
	}

	if err := s.DecideTransfer(DemoInvestor, inv.Key(), tr.Key(), "ACCEPT"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	after, _ := s.MyInvestments(DemoInvestor)
	got := after[0]
	if got.Status != market.StatusAccepted || got.Transfers[0].Status != market.StatusAccepted {
		t.Fatalf("unexpected state after transfer: %+v", got)
	}
	if owner := got.OwnershipContract(); owner == "" || owner == got.ContractID {
		t.Fatalf("ownership contract not moved to confirmation: %q", owner)
	}
	if len(s.Blocks()) != 3 {
		t.Fatalf("transfer was not mined")
	}
}

func TestReturnedInvestmentsDoNotAliasStore(t *testing.T) {
	s := seeded(t)
	mine, _ := s.MyInvestments(DemoInvestor)
	mine[0].Transfers = append(mine[0].Transfers, market.Transfer{ID: 99})
	mine[0].Status = market.StatusRejected

	again, _ := s.MyInvestments(DemoInvestor)
	if len(again[0].Transfers) != 0 || again[0].Status != market.StatusForSale {
		t.Fatalf("store mutated through returned value: %+v", again[0])
	}
}
