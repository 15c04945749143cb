package market

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBorrower             Role = "BORROWER"
	RoleFinancialInstitution Role = "FINANCIAL_INSTITUTION"
	RoleInvestor             Role = "INVESTOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBorrower, RoleFinancialInstitution, RoleInvestor:
		return true
	}
	return false
}

// Status is owned by the backend. The client only displays and filters on it.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusForSale  Status = "FORSALE"
	StatusDeclined Status = "DECLINED"
)

// Decision is the verb sent in a PATCH body.
type Decision string

const (
	DecisionAccept  Decision = "ACCEPT"
	DecisionReject  Decision = "REJECT"
	DecisionDecline Decision = "DECLINE"
	DecisionForSale Decision = "FORSALE"
)

// Key addresses an entity partitioned per owning user. Both parts are
// required; ids are only unique within one user's partition.
type Key struct {
	ID     int64
	UserID string
}

func (k Key) Valid() bool {
	return k.ID >= 0 && k.UserID != ""
}

func (k Key) String() string {
	return strconv.FormatInt(k.ID, 10) + "/" + k.UserID
}

type User struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	Online      bool   `json:"online"`
}

type LoanRequest struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"user_id"`
	HouseID      string          `json:"house_id,omitempty"`
	MortgageType string          `json:"mortgage_type,omitempty"`
	Banks        []string        `json:"banks,omitempty"`
	Description  string          `json:"description,omitempty"`
	AmountWanted decimal.Decimal `json:"amount_wanted"`
	Status       Status          `json:"status"`
}

type Mortgage struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	BankID        string          `json:"bank_id"`
	LoanRequestID int64           `json:"loan_request_id"`
	HouseID       string          `json:"house_id,omitempty"`
	Status        Status          `json:"status"`
	ContractID    string          `json:"contract_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	BankAmount    decimal.Decimal `json:"bank_amount"`
	MortgageType  string          `json:"mortgage_type,omitempty"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	MaxInvestRate decimal.Decimal `json:"max_invest_rate"`
	DefaultRate   decimal.Decimal `json:"default_rate"`
	Duration      int64           `json:"duration"`
	Risk          string          `json:"risk,omitempty"`
	CampaignID    *int64          `json:"campaign_id,omitempty"`
}

type Campaign struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	MortgageID     int64           `json:"mortgage_id"`
	Amount         decimal.Decimal `json:"amount"`
	AmountInvested decimal.Decimal `json:"amount_invested"`
	EndDate        int64           `json:"end_date,omitempty"`
	Completed      bool            `json:"completed"`
	Investments    []Investment    `json:"investments"`
}

type Investment struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	CampaignID     int64           `json:"campaign_id"`
	CampaignUserID string          `json:"campaign_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	Duration       int64           `json:"duration"`
	Status         Status          `json:"status"`
	ContractID     string          `json:"contract_id,omitempty"`
	Transfers      []Transfer      `json:"transfers"`
}

type Transfer struct {
	ID                     int64           `json:"id"`
	UserID                 string          `json:"user_id"`
	InvestmentID           int64           `json:"investment_id"`
	InvestmentUserID       string          `json:"investment_user_id"`
	IBAN                   string          `json:"iban,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Status                 Status          `json:"status"`
	ConfirmationContractID string          `json:"confirmation_contract_id,omitempty"`
}

type Block struct {
	ID               string     `json:"id"`
	Height           int64      `json:"height"`
	PreviousHash     string     `json:"previous_hash"`
	MerkleRootHash   string     `json:"merkle_root_hash"`
	Creator          string     `json:"creator"`
	CreatorSignature string     `json:"creator_signature"`
	TargetDifficulty string     `json:"target_difficulty"`
	Time             int64      `json:"time"`
	Contracts        []Contract `json:"contracts"`
}

type Contract struct {
	ID            string         `json:"id"`
	PreviousHash  string         `json:"previous_hash"`
	FromPublicKey string         `json:"from_public_key"`
	FromSignature string         `json:"from_signature"`
	ToPublicKey   string         `json:"to_public_key"`
	ToSignature   string         `json:"to_signature"`
	Document      string         `json:"document"`
	Decoded       map[string]any `json:"decoded,omitempty"`
	Confirmations int64          `json:"confirmations"`
	Time          int64          `json:"time"`
}

type Profile struct {
	Role               Role     `json:"role"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Email              string   `json:"email"`
	IBAN               string   `json:"iban"`
	PhoneNumber        string   `json:"phone_number"`
	CurrentPostalCode  string   `json:"current_postal_code,omitempty"`
	CurrentHouseNumber string   `json:"current_house_number,omitempty"`
	CurrentAddress     string   `json:"current_address,omitempty"`
	DocumentList       []string `json:"document_list,omitempty"`
}

func (l LoanRequest) Key() Key { return Key{ID: l.ID, UserID: l.UserID} }
func (m Mortgage) Key() Key    { return Key{ID: m.ID, UserID: m.UserID} }
func (c Campaign) Key() Key    { return Key{ID: c.ID, UserID: c.UserID} }
func (i Investment) Key() Key  { return Key{ID: i.ID, UserID: i.UserID} }
func (t Transfer) Key() Key    { return Key{ID: t.ID, UserID: t.UserID} }

func (l LoanRequest) CurrentStatus() Status { return l.Status }
func (m Mortgage) CurrentStatus() Status    { return m.Status }
func (i Investment) CurrentStatus() Status  { return i.Status }
func (t Transfer) CurrentStatus() Status    { return t.Status }

// CampaignKey is the compound key of the campaign this investment belongs to.
func (i Investment) CampaignKey() Key {
	return Key{ID: i.CampaignID, UserID: i.CampaignUserID}
}

// InvestmentKey is the compound key of the investment this transfer targets.
func (t Transfer) InvestmentKey() Key {
	return Key{ID: t.InvestmentID, UserID: t.InvestmentUserID}
}

// MortgageKey addresses the mortgage backing the campaign. Campaigns share
// the borrower's partition with their mortgage.
func (c Campaign) MortgageKey() Key {
	return Key{ID: c.MortgageID, UserID: c.UserID}
}

func (c Contract) String() string {
	return fmt.Sprintf("contract %s (%d confirmations)", c.ID, c.Confirmations)
}
