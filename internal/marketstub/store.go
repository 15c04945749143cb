// Package marketstub is an in-memory mortgage market backend speaking the
// same REST dialect as the real one. It backs local runs of the console and
// end-to-end tests.
package marketstub

import (
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/shopspring/decimal"
)

var mortgageTypes = []string{"LINEAR", "FIXEDRATE"}

// Error is a rejection reported to the caller as {"error": Message}.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func fail(status int, format string, args ...any) error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Store holds the whole market. Every method is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	users        map[string]*market.User
	profiles     map[string]*market.Profile
	loanRequests map[market.Key]*market.LoanRequest
	mortgages    map[market.Key]*market.Mortgage
	campaigns    map[market.Key]*market.Campaign
	investments  map[market.Key]*market.Investment

	chain *chain
	ids   map[string]int64
}

func NewStore() *Store {
	return &Store{
		users:        map[string]*market.User{},
		profiles:     map[string]*market.Profile{},
		loanRequests: map[market.Key]*market.LoanRequest{},
		mortgages:    map[market.Key]*market.Mortgage{},
		campaigns:    map[market.Key]*market.Campaign{},
		investments:  map[market.Key]*market.Investment{},
		chain:        newChain(),
		ids:          map[string]int64{},
	}
}

// nextID hands out ids per user partition and kind, starting at 0.
func (s *Store) nextID(kind, userID string) int64 {
	k := kind + "/" + userID
	id := s.ids[k]
	s.ids[k] = id + 1
	return id
}

func (s *Store) AddUser(u market.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
}

func (s *Store) user(id string) (*market.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fail(http.StatusUnauthorized, "unknown user")
	}
	return u, nil
}

func (s *Store) requireRole(id string, role market.Role, msg string) (*market.User, error) {
	u, err := s.user(id)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, fail(http.StatusForbidden, "%s", msg)
	}
	return u, nil
}

func (s *Store) Me(id string) (market.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(id)
	if err != nil {
		return market.User{}, err
	}
	return *u, nil
}

func (s *Store) Users() []market.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Profile(userID string) (market.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return market.Profile{}, fail(http.StatusNotFound, "you do not have a profile")
	}
	return *p, nil
}

func (s *Store) SaveProfile(userID string, p market.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	if p.Role == "" {
		return fail(http.StatusBadRequest, "missing role parameter")
	}
	if p.Role != u.Role {
		return fail(http.StatusBadRequest, "role does not match your account")
	}
	if err := p.Validate(); err != nil {
		return fail(http.StatusBadRequest, "%s", err.Error())
	}
	cp := p
	s.profiles[userID] = &cp
	return nil
}

// LoanRequestParams is the body of PUT /you/loanrequests.
type LoanRequestParams struct {
	PostalCode   string          `json:"postal_code"`
	HouseNumber  string          `json:"house_number"`
	Address      string          `json:"address"`
	Price        decimal.Decimal `json:"price"`
	MortgageType string          `json:"mortgage_type"`
	Banks        []string        `json:"banks"`
	Description  string          `json:"description"`
	AmountWanted decimal.Decimal `json:"amount_wanted"`
}

func (s *Store) CreateLoanRequest(userID string, in LoanRequestParams) (market.LoanRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(userID, market.RoleBorrower, "only borrowers can create new loan requests"); err != nil {
		return market.LoanRequest{}, err
	}
	if _, ok := s.profiles[userID]; !ok {
		return market.LoanRequest{}, fail(http.StatusBadRequest, "please create a profile prior to creating a loan request")
	}
	if len(in.Banks) == 0 {
		return market.LoanRequest{}, fail(http.StatusBadRequest, "missing banks parameter")
	}
	if !in.AmountWanted.IsPositive() {
		return market.LoanRequest{}, fail(http.StatusBadRequest, "missing amount_wanted parameter")
	}
	if !slices.Contains(mortgageTypes, in.MortgageType) {
		return market.LoanRequest{}, fail(http.StatusBadRequest, "unknown mortgage type")
	}
	lr := &market.LoanRequest{
		ID:           s.nextID("loanrequest", userID),
		UserID:       userID,
		HouseID:      in.PostalCode + "_" + in.HouseNumber,
		MortgageType: in.MortgageType,
		Banks:        slices.Clone(in.Banks),
		Description:  in.Description,
		AmountWanted: in.AmountWanted,
		Status:       market.StatusPending,
	}
	s.loanRequests[lr.Key()] = lr
	return *lr, nil
}

func (s *Store) MyLoanRequests(userID string) ([]market.LoanRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(userID, market.RoleBorrower, "this user is not a borrower"); err != nil {
		return nil, err
	}
	return collect(s.loanRequests, func(lr *market.LoanRequest) bool { return lr.UserID == userID }), nil
}

// LoanRequests lists the requests addressed to the bank.
func (s *Store) LoanRequests(bankID string) ([]market.LoanRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(bankID, market.RoleFinancialInstitution, "only financial institutions can list loan requests"); err != nil {
		return nil, err
	}
	return collect(s.loanRequests, func(lr *market.LoanRequest) bool { return slices.Contains(lr.Banks, bankID) }), nil
}

// OfferParams are the optional mortgage terms sent along with ACCEPT.
type OfferParams struct {
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	MaxInvestRate decimal.Decimal `json:"max_invest_rate"`
	DefaultRate   decimal.Decimal `json:"default_rate"`
	Duration      int64           `json:"duration"`
	Risk          string          `json:"risk"`
}

// DecideLoanRequest accepts or rejects a pending loan request. Accepting
// creates a PENDING mortgage offer for the borrower.
func (s *Store) DecideLoanRequest(bankID string, k market.Key, p OfferParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(bankID, market.RoleFinancialInstitution, "only financial institutions can decide on loan requests"); err != nil {
		return err
	}
	lr, ok := s.loanRequests[k]
	if !ok || !slices.Contains(lr.Banks, bankID) {
		return fail(http.StatusNotFound, "loan request not found")
	}
	if err := checkDecision(p.Status, "ACCEPT", "REJECT"); err != nil {
		return err
	}
	if lr.Status != market.StatusPending {
		return fail(http.StatusBadRequest, "loan request is already accepted/rejected")
	}
	if p.Status == "REJECT" {
		lr.Status = market.StatusRejected
		return nil
	}

	lr.Status = market.StatusAccepted
	amount := orDefault(p.Amount, lr.AmountWanted)
	m := &market.Mortgage{
		ID:            s.nextID("mortgage", lr.UserID),
		UserID:        lr.UserID,
		BankID:        bankID,
		LoanRequestID: lr.ID,
		HouseID:       lr.HouseID,
		Status:        market.StatusPending,
		Amount:        amount,
		BankAmount:    amount.Mul(decimal.RequireFromString("0.7")).Round(2),
		MortgageType:  lr.MortgageType,
		InterestRate:  orDefault(p.InterestRate, decimal.NewFromInt(2)),
		MaxInvestRate: orDefault(p.MaxInvestRate, decimal.NewFromInt(2)),
		DefaultRate:   orDefault(p.DefaultRate, decimal.NewFromInt(2)),
		Duration:      120,
		Risk:          p.Risk,
	}
	if p.Duration > 0 {
		m.Duration = p.Duration
	}
	s.mortgages[m.Key()] = m
	return nil
}

func (s *Store) MyMortgages(userID string) ([]market.Mortgage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.user(userID); err != nil {
		return nil, err
	}
	return collect(s.mortgages, func(m *market.Mortgage) bool { return m.UserID == userID }), nil
}

func (s *Store) Mortgages(userID string) ([]market.Mortgage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.user(userID); err != nil {
		return nil, err
	}
	return collect(s.mortgages, func(*market.Mortgage) bool { return true }), nil
}

// DecideMortgage answers a mortgage offer. Accepting signs the mortgage
// contract and opens a campaign for the part the bank does not fund.
func (s *Store) DecideMortgage(userID string, k market.Key, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mortgages[k]
	if !ok || m.UserID != userID {
		return fail(http.StatusNotFound, "mortgage not found")
	}
	if err := checkDecision(status, "ACCEPT", "REJECT"); err != nil {
		return err
	}
	if m.Status != market.StatusPending {
		return fail(http.StatusBadRequest, "mortgage is already accepted/rejected")
	}
	if status == "REJECT" {
		m.Status = market.StatusRejected
		return nil
	}

	m.Status = market.StatusAccepted
	c := s.chain.sign(m.BankID, m.UserID, map[string]any{
		"type": "mortgage", "mortgage_id": m.ID, "user_id": m.UserID, "bank_id": m.BankID, "amount": m.Amount.String(),
	})
	m.ContractID = c.ID
	s.chain.mine(m.BankID)

	campaign := &market.Campaign{
		ID:          s.nextID("campaign", m.UserID),
		UserID:      m.UserID,
		MortgageID:  m.ID,
		Amount:      m.Amount.Sub(m.BankAmount),
		Investments: []market.Investment{},
	}
	s.campaigns[campaign.Key()] = campaign
	id := campaign.ID
	m.CampaignID = &id
	return nil
}

func (s *Store) campaignView(c *market.Campaign) market.Campaign {
	out := *c
	out.Investments = cloneTransfers(collect(s.investments, func(inv *market.Investment) bool { return inv.CampaignKey() == c.Key() }))
	out.Completed = !out.IsOpen()
	return out
}

func (s *Store) MyCampaigns(userID string) ([]market.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.user(userID); err != nil {
		return nil, err
	}
	var out []market.Campaign
	for _, c := range sorted(s.campaigns) {
		if c.UserID == userID {
			out = append(out, s.campaignView(c))
		}
	}
	return orEmpty(out), nil
}

func (s *Store) Campaigns(userID string) ([]market.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.user(userID); err != nil {
		return nil, err
	}
	var out []market.Campaign
	for _, c := range sorted(s.campaigns) {
		out = append(out, s.campaignView(c))
	}
	return orEmpty(out), nil
}

// InvestmentParams is the body of PUT /you/investments.
type InvestmentParams struct {
	CampaignID     int64           `json:"campaign_id"`
	CampaignUserID string          `json:"campaign_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	Duration       int64           `json:"duration"`
}

func (s *Store) CreateInvestment(userID string, in InvestmentParams) (market.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(userID, market.RoleInvestor, "only investors can create new investments"); err != nil {
		return market.Investment{}, err
	}
	if _, ok := s.profiles[userID]; !ok {
		return market.Investment{}, fail(http.StatusBadRequest, "please create a profile prior to creating an investment offer")
	}
	if in.CampaignUserID == "" {
		return market.Investment{}, fail(http.StatusBadRequest, "missing campaign_user_id parameter")
	}
	if !in.Amount.IsPositive() {
		return market.Investment{}, fail(http.StatusBadRequest, "missing amount parameter")
	}
	c, ok := s.campaigns[market.Key{ID: in.CampaignID, UserID: in.CampaignUserID}]
	if !ok {
		return market.Investment{}, fail(http.StatusNotFound, "campaign not found")
	}
	if !c.IsOpen() {
		return market.Investment{}, fail(http.StatusBadRequest, "campaign is already completed")
	}
	inv := &market.Investment{
		ID:             s.nextID("investment", userID),
		UserID:         userID,
		CampaignID:     c.ID,
		CampaignUserID: c.UserID,
		Amount:         in.Amount,
		InterestRate:   in.InterestRate,
		Duration:       in.Duration,
		Status:         market.StatusPending,
		Transfers:      []market.Transfer{},
	}
	s.investments[inv.Key()] = inv
	return *inv, nil
}

func (s *Store) MyInvestments(userID string) ([]market.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(userID, market.RoleInvestor, "this user is not an investor"); err != nil {
		return nil, err
	}
	return cloneTransfers(collect(s.investments, func(inv *market.Investment) bool { return inv.UserID == userID })), nil
}

func (s *Store) Investments(userID string) ([]market.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.user(userID); err != nil {
		return nil, err
	}
	return cloneTransfers(collect(s.investments, func(*market.Investment) bool { return true })), nil
}

// OfferForSale puts one of my accepted investments up for resale.
func (s *Store) OfferForSale(userID string, k market.Key, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investments[k]
	if !ok || inv.UserID != userID {
		return fail(http.StatusNotFound, "investment not found")
	}
	if err := checkDecision(status, "FORSALE"); err != nil {
		return err
	}
	if inv.Status != market.StatusAccepted {
		return fail(http.StatusBadRequest, "only accepted investments can be sold")
	}
	inv.Status = market.StatusForSale
	return nil
}

// DecideInvestment is the campaign owner's answer to an investment offer.
func (s *Store) DecideInvestment(userID string, campaign, investment market.Key, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaign]
	if !ok || c.UserID != userID {
		return fail(http.StatusNotFound, "campaign not found")
	}
	inv, ok := s.investments[investment]
	if !ok || inv.CampaignKey() != campaign {
		return fail(http.StatusNotFound, "investment not found")
	}
	if err := checkDecision(status, "ACCEPT", "REJECT"); err != nil {
		return err
	}
	if inv.Status != market.StatusPending {
		return fail(http.StatusBadRequest, "investment is already accepted/rejected")
	}
	if status == "REJECT" {
		inv.Status = market.StatusRejected
		return nil
	}

	inv.Status = market.StatusAccepted
	contract := s.chain.sign(inv.UserID, c.UserID, map[string]any{
		"type": "investment", "investment_id": inv.ID, "user_id": inv.UserID,
		"campaign_id": c.ID, "campaign_user_id": c.UserID, "amount": inv.Amount.String(),
	})
	inv.ContractID = contract.ID
	c.AmountInvested = c.AmountInvested.Add(inv.Amount)
	c.Completed = !c.IsOpen()
	s.chain.mine(userID)
	return nil
}

// TransferParams is the body of PUT /investments/{id}/{user_id}/transfers.
type TransferParams struct {
	IBAN             string          `json:"iban"`
	Amount           decimal.Decimal `json:"amount"`
	InvestmentID     *int64          `json:"investment_id"`
	InvestmentUserID string          `json:"investment_user_id"`
}

func (s *Store) OfferTransfer(userID string, k market.Key, in TransferParams) (market.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(userID, market.RoleInvestor, "only investors can create transfers"); err != nil {
		return market.Transfer{}, err
	}
	switch {
	case in.IBAN == "":
		return market.Transfer{}, fail(http.StatusBadRequest, "missing iban parameter")
	case !in.Amount.IsPositive():
		return market.Transfer{}, fail(http.StatusBadRequest, "missing amount parameter")
	case in.InvestmentID == nil:
		return market.Transfer{}, fail(http.StatusBadRequest, "missing investment_id parameter")
	case in.InvestmentUserID == "":
		return market.Transfer{}, fail(http.StatusBadRequest, "missing investment_user_id parameter")
	}
	inv, ok := s.investments[k]
	if !ok || *in.InvestmentID != k.ID || in.InvestmentUserID != k.UserID {
		return market.Transfer{}, fail(http.StatusNotFound, "investment not found")
	}
	if inv.UserID == userID {
		return market.Transfer{}, fail(http.StatusBadRequest, "you cannot buy your own investment")
	}
	if !inv.CanMakeTransferOffer() {
		return market.Transfer{}, fail(http.StatusBadRequest, "investment is not open for transfer offers")
	}
	t := market.Transfer{
		ID:               int64(len(inv.Transfers)),
		UserID:           userID,
		InvestmentID:     inv.ID,
		InvestmentUserID: inv.UserID,
		IBAN:             in.IBAN,
		Amount:           in.Amount,
		Status:           market.StatusPending,
	}
	inv.Transfers = append(inv.Transfers, t)
	return t, nil
}

// DecideTransfer is the seller's answer to a transfer offer. Accepting signs
// a confirmation contract that becomes the new proof of ownership.
func (s *Store) DecideTransfer(userID string, investment, transfer market.Key, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requireRole(userID, market.RoleInvestor, "only investors can change transfers"); err != nil {
		return err
	}
	inv, ok := s.investments[investment]
	if !ok || inv.UserID != userID {
		return fail(http.StatusNotFound, "investment not found")
	}
	if err := checkDecision(status, "ACCEPT", "DECLINE", "REJECT"); err != nil {
		return err
	}
	idx := -1
	for i, t := range inv.Transfers {
		if t.Key() == transfer {
			idx = i
		}
	}
	if idx < 0 {
		return fail(http.StatusNotFound, "transfer not found")
	}
	t := &inv.Transfers[idx]
	if t.Status != market.StatusPending {
		return fail(http.StatusBadRequest, "transfer is already accepted/rejected")
	}
	if status != "ACCEPT" {
		t.Status = market.StatusDeclined
		return nil
	}

	t.Status = market.StatusAccepted
	c := s.chain.sign(inv.UserID, t.UserID, map[string]any{
		"type": "transfer", "investment_id": inv.ID, "investment_user_id": inv.UserID,
		"transfer_id": t.ID, "buyer": t.UserID, "amount": t.Amount.String(),
	})
	t.ConfirmationContractID = c.ID
	inv.Status = market.StatusAccepted
	s.chain.mine(userID)
	return nil
}

func (s *Store) Blocks() []market.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.blocks()
}

func (s *Store) Block(id string) (market.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.chain.block(id)
	if !ok {
		return market.Block{}, fail(http.StatusNotFound, "block not found")
	}
	return b, nil
}

func (s *Store) Contract(id string) (market.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chain.contract(id)
	if !ok {
		return market.Contract{}, fail(http.StatusNotFound, "contract not found")
	}
	return c, nil
}

// Contracts resolves every known id and skips the rest.
func (s *Store) Contracts(ids []string) map[string]market.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]market.Contract{}
	for _, id := range ids {
		if c, ok := s.chain.contract(id); ok {
			out[id] = c
		}
	}
	return out
}

func checkDecision(status string, allowed ...string) error {
	if status == "" {
		return fail(http.StatusBadRequest, "missing status parameter")
	}
	if !slices.Contains(allowed, status) {
		return fail(http.StatusBadRequest, "invalid status value")
	}
	return nil
}

func orDefault(v, def decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return def
	}
	return v
}

type keyed interface {
	Key() market.Key
}

func sorted[T keyed](items map[market.Key]T) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.ID < b.ID
	})
	return out
}

// collect copies the matching records in key order.
func collect[T any, P interface {
	*T
	keyed
}](items map[market.Key]P, keep func(P) bool) []T {
	out := []T{}
	for _, p := range sorted(items) {
		if keep(p) {
			out = append(out, *p)
		}
	}
	return out
}

// cloneTransfers detaches the transfer slices from the store so callers can
// encode them after the lock is released.
func cloneTransfers(items []market.Investment) []market.Investment {
	for i := range items {
		items[i].Transfers = append([]market.Transfer{}, items[i].Transfers...)
	}
	return items
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
