package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/loangraph/marketsync/internal/market"
	"github.com/shopspring/decimal"
)

type LoanRequestInput struct {
	PostalCode        string          `json:"postal_code"`
	HouseNumber       string          `json:"house_number"`
	Address           string          `json:"address"`
	Price             decimal.Decimal `json:"price"`
	URL               string          `json:"url"`
	SellerPhoneNumber string          `json:"seller_phone_number"`
	SellerEmail       string          `json:"seller_email"`
	MortgageType      string          `json:"mortgage_type"`
	Banks             []string        `json:"banks"`
	Description       string          `json:"description"`
	AmountWanted      decimal.Decimal `json:"amount_wanted"`
}

// OfferTerms are merged into the ACCEPT body when a bank accepts a loan
// request. Zero values are left out so the backend applies its defaults.
type OfferTerms struct {
	Amount        decimal.Decimal `json:"amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	MaxInvestRate decimal.Decimal `json:"max_invest_rate"`
	DefaultRate   decimal.Decimal `json:"default_rate"`
	Duration      int64           `json:"duration"`
	Risk          string          `json:"risk"`
}

type InvestmentInput struct {
	CampaignID     int64           `json:"campaign_id"`
	CampaignUserID string          `json:"campaign_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	Duration       int64           `json:"duration"`
}

type TransferInput struct {
	IBAN   string          `json:"iban"`
	Amount decimal.Decimal `json:"amount"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func statusBody(d market.Decision) map[string]any {
	return map[string]any{"status": string(d)}
}

func (c *Client) You(ctx context.Context) (*market.User, error) {
	var out market.User
	if err := c.do(ctx, http.MethodGet, "/you", nil, "you", &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns ErrNoProfile (wrapping the backend error) while the user
// has not onboarded yet.
func (c *Client) Profile(ctx context.Context) (*market.Profile, error) {
	var out market.Profile
	if err := c.do(ctx, http.MethodGet, "/you/profile", nil, "profile", &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", ErrNoProfile, err)
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveProfile(ctx context.Context, p market.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/you/profile", p, "", nil)
}

func (c *Client) Users(ctx context.Context) ([]market.User, error) {
	var out []market.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, "users", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "users", out), nil
}

func (c *Client) MyLoanRequests(ctx context.Context) ([]market.LoanRequest, error) {
	var out []market.LoanRequest
	if err := c.do(ctx, http.MethodGet, "/you/loanrequests", nil, "loan_requests", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "loan_requests", out), nil
}

func (c *Client) CreateLoanRequest(ctx context.Context, in LoanRequestInput) error {
	body := map[string]any{
		"postal_code":         in.PostalCode,
		"house_number":        in.HouseNumber,
		"address":             in.Address,
		"price":               number(in.Price),
		"url":                 in.URL,
		"seller_phone_number": in.SellerPhoneNumber,
		"seller_email":        in.SellerEmail,
		"mortgage_type":       in.MortgageType,
		"banks":               in.Banks,
		"description":         in.Description,
		"amount_wanted":       number(in.AmountWanted),
	}
	return c.do(ctx, http.MethodPut, "/you/loanrequests", body, "", nil)
}

func (c *Client) LoanRequests(ctx context.Context) ([]market.LoanRequest, error) {
	var out []market.LoanRequest
	if err := c.do(ctx, http.MethodGet, "/loanrequests", nil, "loan_requests", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "loan_requests", out), nil
}

// DecideLoanRequest accepts or rejects a loan request as a bank. Terms are
// only sent with ACCEPT.
func (c *Client) DecideLoanRequest(ctx context.Context, k market.Key, d market.Decision, terms *OfferTerms) error {
	body := statusBody(d)
	if d == market.DecisionAccept && terms != nil {
		if !terms.Amount.IsZero() {
			body["amount"] = number(terms.Amount)
		}
		if !terms.InterestRate.IsZero() {
			body["interest_rate"] = number(terms.InterestRate)
		}
		if !terms.MaxInvestRate.IsZero() {
			body["max_invest_rate"] = number(terms.MaxInvestRate)
		}
		if !terms.DefaultRate.IsZero() {
			body["default_rate"] = number(terms.DefaultRate)
		}
		if terms.Duration > 0 {
			body["duration"] = terms.Duration
		}
		if terms.Risk != "" {
			body["risk"] = terms.Risk
		}
	}
	return c.do(ctx, http.MethodPatch, "/loanrequests/"+keyPath(k), body, "", nil)
}

func (c *Client) MyMortgages(ctx context.Context) ([]market.Mortgage, error) {
	var out []market.Mortgage
	if err := c.do(ctx, http.MethodGet, "/you/mortgages", nil, "mortgages", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "mortgages", out), nil
}

func (c *Client) Mortgages(ctx context.Context) ([]market.Mortgage, error) {
	var out []market.Mortgage
	if err := c.do(ctx, http.MethodGet, "/mortgages", nil, "mortgages", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "mortgages", out), nil
}

// DecideMortgageOffer answers a bank's mortgage offer as the borrower.
func (c *Client) DecideMortgageOffer(ctx context.Context, k market.Key, d market.Decision) error {
	return c.do(ctx, http.MethodPatch, "/you/mortgages/"+keyPath(k), statusBody(d), "", nil)
}

func (c *Client) MyCampaigns(ctx context.Context) ([]market.Campaign, error) {
	var out []market.Campaign
	if err := c.do(ctx, http.MethodGet, "/you/campaigns", nil, "campaigns", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "campaigns", out), nil
}

func (c *Client) Campaigns(ctx context.Context) ([]market.Campaign, error) {
	var out []market.Campaign
	if err := c.do(ctx, http.MethodGet, "/campaigns", nil, "campaigns", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "campaigns", out), nil
}

func (c *Client) MyInvestments(ctx context.Context) ([]market.Investment, error) {
	var out []market.Investment
	if err := c.do(ctx, http.MethodGet, "/you/investments", nil, "investments", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "investments", out), nil
}

func (c *Client) Investments(ctx context.Context) ([]market.Investment, error) {
	var out []market.Investment
	if err := c.do(ctx, http.MethodGet, "/investments", nil, "investments", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "investments", out), nil
}

func (c *Client) CreateInvestment(ctx context.Context, in InvestmentInput) error {
	if in.CampaignUserID == "" {
		return fmt.Errorf("missing campaign_user_id")
	}
	body := map[string]any{
		"campaign_id":      in.CampaignID,
		"campaign_user_id": in.CampaignUserID,
		"amount":           number(in.Amount),
		"interest_rate":    number(in.InterestRate),
		"duration":         in.Duration,
	}
	return c.do(ctx, http.MethodPut, "/you/investments", body, "", nil)
}

// OfferForSale marks one of my investments FORSALE.
func (c *Client) OfferForSale(ctx context.Context, k market.Key) error {
	return c.do(ctx, http.MethodPatch, "/you/investments/"+keyPath(k), statusBody(market.DecisionForSale), "", nil)
}

// DecideInvestment accepts or rejects an investment offer on a campaign as
// the campaign owner.
func (c *Client) DecideInvestment(ctx context.Context, campaign, investment market.Key, d market.Decision) error {
	path := "/campaigns/" + keyPath(campaign) + "/investments/" + keyPath(investment)
	return c.do(ctx, http.MethodPatch, path, statusBody(d), "", nil)
}

func (c *Client) OfferTransfer(ctx context.Context, investment market.Key, in TransferInput) error {
	body := map[string]any{
		"iban":               in.IBAN,
		"amount":             number(in.Amount),
		"investment_id":      investment.ID,
		"investment_user_id": investment.UserID,
	}
	return c.do(ctx, http.MethodPut, "/investments/"+keyPath(investment)+"/transfers", body, "", nil)
}

// DecideTransfer accepts or declines a transfer offer on my investment.
func (c *Client) DecideTransfer(ctx context.Context, investment, transfer market.Key, d market.Decision) error {
	path := "/investments/" + keyPath(investment) + "/transfers/" + keyPath(transfer)
	return c.do(ctx, http.MethodPatch, path, statusBody(d), "", nil)
}

func (c *Client) Blocks(ctx context.Context) ([]market.Block, error) {
	var out []market.Block
	if err := c.do(ctx, http.MethodGet, "/blocks", nil, "blocks", &out); err != nil {
		return nil, err
	}
	return keepValid(c, "blocks", out), nil
}

func (c *Client) Block(ctx context.Context, id string) (*market.Block, error) {
	var out market.Block
	if err := c.do(ctx, http.MethodGet, "/blocks/"+url.PathEscape(id), nil, "block", &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Contract(ctx context.Context, id string) (*market.Contract, error) {
	var out market.Contract
	if err := c.do(ctx, http.MethodGet, "/contracts/"+url.PathEscape(id), nil, "contract", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveContracts fetches many contracts in one round trip, keyed by id.
func (c *Client) ResolveContracts(ctx context.Context, ids []string) (map[string]market.Contract, error) {
	out := map[string]market.Contract{}
	if len(ids) == 0 {
		return out, nil
	}
	body := map[string]any{"contract_ids": ids}
	if err := c.do(ctx, http.MethodPost, "/contracts", body, "contracts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContracts resolves the ownership contract of every item with a single
// batched request.
func GetContracts[T market.ContractBearer](ctx context.Context, c *Client, items []T) (map[string]market.Contract, error) {
	return c.ResolveContracts(ctx, market.ContractIDs(items))
}
