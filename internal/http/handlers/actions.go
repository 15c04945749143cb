package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/remote"
	"github.com/loangraph/marketsync/internal/views"
)

// ActionsHandler turns console POSTs into view mutations. Every action
// answers with the view snapshot taken after the follow-up refresh.
type ActionsHandler struct {
	borrowerMortgages *views.BorrowerMortgages
	borrowerCampaigns *views.BorrowerCampaigns
	bankerMortgages   *views.BankerMortgages
	investorCampaigns *views.InvestorCampaigns
	profile           *views.Profile
}

type ActionViews struct {
	BorrowerMortgages *views.BorrowerMortgages
	BorrowerCampaigns *views.BorrowerCampaigns
	BankerMortgages   *views.BankerMortgages
	InvestorCampaigns *views.InvestorCampaigns
	Profile           *views.Profile
}

func NewActionsHandler(v ActionViews) *ActionsHandler {
	return &ActionsHandler{
		borrowerMortgages: v.BorrowerMortgages,
		borrowerCampaigns: v.BorrowerCampaigns,
		bankerMortgages:   v.BankerMortgages,
		investorCampaigns: v.InvestorCampaigns,
		profile:           v.Profile,
	}
}

func (h *ActionsHandler) CreateLoanRequest(c *gin.Context) {
	var in remote.LoanRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if len(in.Banks) == 0 || !in.AmountWanted.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_banks_or_amount"})
		return
	}
	err := h.borrowerMortgages.CreateLoanRequest(c.Request.Context(), in)
	respond(c, err, h.borrowerMortgages)
}

func (h *ActionsHandler) DecideMortgageOffer(c *gin.Context) {
	k, ok := pathKey(c, "id", "uid")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var err error
	switch decision(c) {
	case market.DecisionAccept:
		err = h.borrowerMortgages.AcceptOffer(ctx, k)
	case market.DecisionReject:
		err = h.borrowerMortgages.RejectOffer(ctx, k)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision"})
		return
	}
	respond(c, err, h.borrowerMortgages)
}

func (h *ActionsHandler) DecideInvestment(c *gin.Context) {
	campaign, ok := pathKey(c, "cid", "cuid")
	if !ok {
		return
	}
	investment, ok := pathKey(c, "id", "uid")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var err error
	switch decision(c) {
	case market.DecisionAccept:
		err = h.borrowerCampaigns.AcceptInvestment(ctx, campaign, investment)
	case market.DecisionReject:
		err = h.borrowerCampaigns.RejectInvestment(ctx, campaign, investment)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision"})
		return
	}
	respond(c, err, h.borrowerCampaigns)
}

func (h *ActionsHandler) DecideLoanRequest(c *gin.Context) {
	k, ok := pathKey(c, "id", "uid")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var err error
	switch decision(c) {
	case market.DecisionAccept:
		var terms *remote.OfferTerms
		if c.Request.ContentLength > 0 {
			terms = &remote.OfferTerms{}
			if err := c.ShouldBindJSON(terms); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
				return
			}
		}
		err = h.bankerMortgages.AcceptLoanRequest(ctx, k, terms)
	case market.DecisionReject:
		err = h.bankerMortgages.RejectLoanRequest(ctx, k)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision"})
		return
	}
	respond(c, err, h.bankerMortgages)
}

func (h *ActionsHandler) Invest(c *gin.Context) {
	var in remote.InvestmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if in.CampaignUserID == "" || !in.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_campaign_or_amount"})
		return
	}
	err := h.investorCampaigns.Invest(c.Request.Context(), in)
	respond(c, err, h.investorCampaigns)
}

func (h *ActionsHandler) SellInvestment(c *gin.Context) {
	k, ok := pathKey(c, "id", "uid")
	if !ok {
		return
	}
	err := h.investorCampaigns.SellInvestment(c.Request.Context(), k)
	respond(c, err, h.investorCampaigns)
}

func (h *ActionsHandler) OfferTransfer(c *gin.Context) {
	k, ok := pathKey(c, "id", "uid")
	if !ok {
		return
	}
	var in remote.TransferInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if strings.TrimSpace(in.IBAN) == "" || !in.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_iban_or_amount"})
		return
	}
	err := h.investorCampaigns.OfferTransfer(c.Request.Context(), k, in)
	respond(c, err, h.investorCampaigns)
}

func (h *ActionsHandler) DecideTransfer(c *gin.Context) {
	investment, ok := pathKey(c, "id", "uid")
	if !ok {
		return
	}
	transfer, ok := pathKey(c, "tid", "tuid")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var err error
	switch decision(c) {
	case market.DecisionAccept:
		err = h.investorCampaigns.AcceptTransfer(ctx, investment, transfer)
	case market.DecisionDecline:
		err = h.investorCampaigns.DeclineTransfer(ctx, investment, transfer)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_decision"})
		return
	}
	respond(c, err, h.investorCampaigns)
}

func (h *ActionsHandler) SaveProfile(c *gin.Context) {
	var p market.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if role := sessionRole(c); p.Role == "" {
		p.Role = role
	} else if p.Role != role {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role_mismatch"})
		return
	}
	err := h.profile.Save(c.Request.Context(), p)
	respond(c, err, h.profile)
}

func (h *ActionsHandler) DismissAlert(c *gin.Context) {
	for _, v := range []interface{ DismissAlert() }{h.borrowerMortgages, h.borrowerCampaigns, h.bankerMortgages, h.investorCampaigns, h.profile} {
		v.DismissAlert()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func respond(c *gin.Context, err error, v views.View) {
	if err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "view": v.Name(), "data": v.Snapshot()})
}

func writeActionError(c *gin.Context, err error) {
	var apiErr *remote.APIError
	switch {
	case errors.Is(err, views.ErrTransferOfferClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "transfer_offer_not_allowed"})
	case errors.Is(err, market.ErrInvalidProfile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_profile", "message": err.Error()})
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		c.JSON(apiErr.Status, gin.H{"error": "backend_rejected", "message": apiErr.Message})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend_failed", "message": apiErr.Message})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend_unavailable"})
	}
}

func decision(c *gin.Context) market.Decision {
	return market.Decision(strings.ToUpper(strings.TrimSpace(c.Param("decision"))))
}

// pathKey reads a compound key from two path params.
func pathKey(c *gin.Context, idParam, userParam string) (market.Key, bool) {
	id, err := strconv.ParseInt(c.Param(idParam), 10, 64)
	k := market.Key{ID: id, UserID: strings.TrimSpace(c.Param(userParam))}
	if err != nil || !k.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_key"})
		return market.Key{}, false
	}
	return k, true
}
