package marketstub

import (
	"fmt"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/shopspring/decimal"
)

// Demo user ids created by Seed.
const (
	DemoBorrower  = "borrower-1"
	DemoBank      = "bank-1"
	DemoBankIdle  = "bank-2"
	DemoInvestor  = "investor-1"
	DemoInvestor2 = "investor-2"
)

// Seed fills the store with a small market: one funded mortgage whose
// campaign is still open, an investment up for resale and a loan request
// waiting for the banks.
func Seed(s *Store) error {
	for _, u := range []market.User{
		{ID: DemoBorrower, Role: market.RoleBorrower, DisplayName: "Bea Borrower", Online: true},
		{ID: DemoBank, Role: market.RoleFinancialInstitution, DisplayName: "First Harbour Bank", Online: true},
		{ID: DemoBankIdle, Role: market.RoleFinancialInstitution, DisplayName: "Polder Savings", Online: false},
		{ID: DemoInvestor, Role: market.RoleInvestor, DisplayName: "Ivo Investor", Online: true},
		{ID: DemoInvestor2, Role: market.RoleInvestor, DisplayName: "Isa Investor", Online: true},
	} {
		s.AddUser(u)
	}

	profiles := map[string]market.Profile{
		DemoBorrower:  {Role: market.RoleBorrower, FirstName: "Bea", LastName: "Borrower", Email: "bea@example.org", IBAN: "NL91ABNA0417164300", PhoneNumber: "0612345678", CurrentPostalCode: "2628CD", CurrentHouseNumber: "1", CurrentAddress: "Mekelweg 1", DocumentList: []string{"id-card.pdf", "payslip-2024.pdf"}},
		DemoInvestor:  {Role: market.RoleInvestor, FirstName: "Ivo", LastName: "Investor", Email: "ivo@example.org", IBAN: "NL20INGB0001234567", PhoneNumber: "0687654321"},
		DemoInvestor2: {Role: market.RoleInvestor, FirstName: "Isa", LastName: "Investor", Email: "isa@example.org", IBAN: "NL02RABO0123456789", PhoneNumber: "0611223344"},
	}
	for id, p := range profiles {
		if err := s.SaveProfile(id, p); err != nil {
			return fmt.Errorf("seed profile %s: %w", id, err)
		}
	}

	funded, err := s.CreateLoanRequest(DemoBorrower, LoanRequestParams{
		PostalCode: "2628CD", HouseNumber: "1", Address: "Mekelweg 1",
		Price: decimal.NewFromInt(300000), MortgageType: "LINEAR",
		Banks: []string{DemoBank}, Description: "Terraced house",
		AmountWanted: decimal.NewFromInt(250000),
	})
	if err != nil {
		return fmt.Errorf("seed loan request: %w", err)
	}
	if err := s.DecideLoanRequest(DemoBank, funded.Key(), OfferParams{Status: "ACCEPT", InterestRate: decimal.RequireFromString("2.5")}); err != nil {
		return fmt.Errorf("seed mortgage offer: %w", err)
	}
	mortgages, err := s.MyMortgages(DemoBorrower)
	if err != nil || len(mortgages) == 0 {
		return fmt.Errorf("seed mortgage: %v", err)
	}
	if err := s.DecideMortgage(DemoBorrower, mortgages[0].Key(), "ACCEPT"); err != nil {
		return fmt.Errorf("seed accept mortgage: %w", err)
	}
	campaigns, err := s.MyCampaigns(DemoBorrower)
	if err != nil || len(campaigns) == 0 {
		return fmt.Errorf("seed campaign: %v", err)
	}
	campaign := campaigns[0]

	inv, err := s.CreateInvestment(DemoInvestor, InvestmentParams{
		CampaignID: campaign.ID, CampaignUserID: campaign.UserID,
		Amount: decimal.NewFromInt(20000), InterestRate: decimal.RequireFromString("3.1"), Duration: 120,
	})
	if err != nil {
		return fmt.Errorf("seed investment: %w", err)
	}
	if err := s.DecideInvestment(DemoBorrower, campaign.Key(), inv.Key(), "ACCEPT"); err != nil {
		return fmt.Errorf("seed accept investment: %w", err)
	}
	if err := s.OfferForSale(DemoInvestor, inv.Key(), "FORSALE"); err != nil {
		return fmt.Errorf("seed resale: %w", err)
	}

	if _, err := s.CreateLoanRequest(DemoBorrower, LoanRequestParams{
		PostalCode: "3011AA", HouseNumber: "12", Address: "Coolsingel 12",
		Price: decimal.NewFromInt(410000), MortgageType: "FIXEDRATE",
		Banks: []string{DemoBank, DemoBankIdle}, Description: "Canal apartment",
		AmountWanted: decimal.NewFromInt(380000),
	}); err != nil {
		return fmt.Errorf("seed pending loan request: %w", err)
	}
	return nil
}
