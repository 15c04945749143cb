package market

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOwnershipContractFollowsLatestTransfer(t *testing.T) {
	inv := Investment{ID: 1, UserID: "A", ContractID: "c-own"}
	if got := inv.OwnershipContract(); got != "c-own" {
		t.Fatalf("expected own contract without transfers, got %q", got)
	}

	for n := 1; n <= 4; n++ {
		inv.Transfers = nil
		for i := 0; i < n; i++ {
			inv.Transfers = append(inv.Transfers, Transfer{ID: int64(i), ConfirmationContractID: "conf-" + string(rune('a'+i))})
		}
		want := inv.Transfers[n-1].ConfirmationContractID
		if got := inv.OwnershipContract(); got != want {
			t.Fatalf("transfers=%d: expected %q, got %q", n, want, got)
		}
	}
}

func TestFilterByStatusIsIdempotent(t *testing.T) {
	requests := []LoanRequest{
		{ID: 1, UserID: "U1", Status: StatusPending},
		{ID: 2, UserID: "U1", Status: StatusAccepted},
		{ID: 3, UserID: "U2", Status: StatusPending},
		{ID: 4, UserID: "U2", Status: StatusRejected},
	}

	once := FilterByStatus(requests, StatusPending)
	twice := FilterByStatus(once, StatusPending)
	if len(once) != 2 || !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected idempotent pending filter, got %v then %v", once, twice)
	}
}

func TestExcludeOwnedMatchesByCompoundKey(t *testing.T) {
	mine := []Investment{{ID: 1, UserID: "A"}}
	all := []Investment{
		{ID: 1, UserID: "A", Status: StatusForSale},
		{ID: 2, UserID: "B", Status: StatusForSale},
	}

	available := ExcludeOwned(FilterByStatus(all, StatusForSale), mine)
	if len(available) != 1 || available[0].ID != 2 || available[0].UserID != "B" {
		t.Fatalf("unexpected available list: %+v", available)
	}

	// Same id under another owner is a different investment.
	other := ExcludeOwned([]Investment{{ID: 1, UserID: "B"}}, mine)
	if len(other) != 1 {
		t.Fatalf("expected id collision across owners to be kept")
	}
}

func TestCanMakeTransferOffer(t *testing.T) {
	cases := []struct {
		name string
		inv  Investment
		want bool
	}{
		{"for sale with pending transfer", Investment{Status: StatusForSale, Transfers: []Transfer{{Status: StatusPending}}}, false},
		{"for sale without transfers", Investment{Status: StatusForSale}, true},
		{"for sale with settled transfers", Investment{Status: StatusForSale, Transfers: []Transfer{{Status: StatusAccepted}, {Status: StatusDeclined}}}, true},
		{"accepted", Investment{Status: StatusAccepted}, false},
	}
	for _, tc := range cases {
		if got := tc.inv.CanMakeTransferOffer(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestOpenAndCompletedCampaigns(t *testing.T) {
	campaigns := []Campaign{
		{ID: 1, UserID: "B", Amount: decimal.NewFromInt(100), AmountInvested: decimal.NewFromInt(40)},
		{ID: 2, UserID: "B", Amount: decimal.NewFromInt(100), AmountInvested: decimal.NewFromInt(100)},
	}
	open := OpenCampaigns(campaigns)
	done := CompletedCampaigns(campaigns)
	if len(open) != 1 || open[0].ID != 1 {
		t.Fatalf("unexpected open campaigns: %+v", open)
	}
	if len(done) != 1 || done[0].ID != 2 {
		t.Fatalf("unexpected completed campaigns: %+v", done)
	}
}

func TestContractIDsDeduplicatesAndSkipsEmpty(t *testing.T) {
	items := []Investment{
		{ID: 1, ContractID: "b"},
		{ID: 2, ContractID: "a"},
		{ID: 3, ContractID: "b"},
		{ID: 4},
	}
	if got := ContractIDs(items); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected contract ids: %v", got)
	}
}

func TestCampaignsForMortgagesJoinsOnBorrowerPartition(t *testing.T) {
	mortgages := MortgagesByBank([]Mortgage{
		{ID: 0, UserID: "borrower-1", BankID: "bank-1"},
		{ID: 0, UserID: "borrower-2", BankID: "bank-2"},
	}, "bank-1")
	campaigns := []Campaign{
		{ID: 0, UserID: "borrower-1", MortgageID: 0},
		{ID: 0, UserID: "borrower-2", MortgageID: 0},
	}
	got := CampaignsForMortgages(campaigns, mortgages)
	if len(got) != 1 || got[0].UserID != "borrower-1" {
		t.Fatalf("unexpected joined campaigns: %+v", got)
	}
}

func TestKeepValidDropsUnknownStatus(t *testing.T) {
	var decoded []Investment
	raw := `[{"id":1,"user_id":"A","campaign_id":2,"campaign_user_id":"B","amount":10,"status":"ACCEPTED"},
	         {"id":2,"user_id":"A","campaign_id":2,"campaign_user_id":"B","amount":"12.5","status":"LOST"}]`
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	kept, errs := KeepValid(decoded)
	if len(kept) != 1 || kept[0].ID != 1 {
		t.Fatalf("unexpected kept records: %+v", kept)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidRecord) {
		t.Fatalf("expected one invalid record error, got %v", errs)
	}
	if !decoded[1].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected quoted amount to decode, got %s", decoded[1].Amount)
	}
}

func TestProfileValidateRequiresBorrowerAddress(t *testing.T) {
	p := Profile{Role: RoleInvestor, FirstName: "Piet", LastName: "Tester", Email: "p@t.nl", IBAN: "NL90RABO0759395830", PhoneNumber: "0668"}
	if err := p.Validate(); err != nil {
		t.Fatalf("investor profile should validate: %v", err)
	}
	p.Role = RoleBorrower
	if err := p.Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected borrower without address to fail, got %v", err)
	}
	p.CurrentPostalCode, p.CurrentHouseNumber, p.CurrentAddress = "1234AB", "1", "Main"
	p.DocumentList = []string{"ZG9j"}
	if err := p.Validate(); err != nil {
		t.Fatalf("complete borrower profile should validate: %v", err)
	}
}
