package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loangraph/marketsync/internal/market"
	"github.com/shopspring/decimal"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
	Header http.Header
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Header: r.Header.Clone()}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		seen = append(seen, rec)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ts.URL+"/api/", 2*time.Second, WithSessionCookie("session=borrower-1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, &seen
}

func TestClientDecodesNamedPayloadField(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"you":{"id":"abc","role":"INVESTOR","display_name":"Ann","online":true}}`))
	})

	me, err := c.You(context.Background())
	if err != nil {
		t.Fatalf("you: %v", err)
	}
	if me.ID != "abc" || me.Role != market.RoleInvestor || !me.Online {
		t.Fatalf("unexpected user: %+v", me)
	}

	req := (*seen)[0]
	if req.Path != "/api/you" || req.Method != http.MethodGet {
		t.Fatalf("unexpected request: %s %s", req.Method, req.Path)
	}
	if req.Header.Get("Cookie") != "session=borrower-1" {
		t.Fatalf("session cookie not forwarded")
	}
	if _, err := uuid.Parse(req.Header.Get("X-Request-ID")); err != nil {
		t.Fatalf("expected uuid request id, got %q", req.Header.Get("X-Request-ID"))
	}
}

func TestClientSurfacesBackendError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"loan request is already accepted/rejected"}`))
	})

	err := c.DecideLoanRequest(context.Background(), market.Key{ID: 7, UserID: "U1"}, market.DecisionAccept, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "loan request is already accepted/rejected" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientMapsMissingProfile(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"you do not have a profile"}`))
	})

	_, err := c.Profile(context.Background())
	if !errors.Is(err, ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
}

func TestClientUsesSeparatePathSegmentsForCompoundKeys(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	ctx := context.Background()

	if err := c.DecideLoanRequest(ctx, market.Key{ID: 7, UserID: "U1"}, market.DecisionAccept, nil); err != nil {
		t.Fatalf("decide loan request: %v", err)
	}
	if err := c.DecideInvestment(ctx, market.Key{ID: 2, UserID: "B"}, market.Key{ID: 3, UserID: "I"}, market.DecisionReject); err != nil {
		t.Fatalf("decide investment: %v", err)
	}
	if err := c.DecideTransfer(ctx, market.Key{ID: 3, UserID: "I"}, market.Key{ID: 0, UserID: "J"}, market.DecisionDecline); err != nil {
		t.Fatalf("decide transfer: %v", err)
	}
	if err := c.OfferForSale(ctx, market.Key{ID: 3, UserID: "a/b"}); err != nil {
		t.Fatalf("offer for sale: %v", err)
	}

	want := []struct {
		method, path, status string
	}{
		{http.MethodPatch, "/api/loanrequests/7/U1", "ACCEPT"},
		{http.MethodPatch, "/api/campaigns/2/B/investments/3/I", "REJECT"},
		{http.MethodPatch, "/api/investments/3/I/transfers/0/J", "DECLINE"},
		{http.MethodPatch, "/api/you/investments/3/a%2Fb", "FORSALE"},
	}
	for i, w := range want {
		got := (*seen)[i]
		if got.Method != w.method || got.Path != w.path {
			t.Fatalf("request %d: expected %s %s, got %s %s", i, w.method, w.path, got.Method, got.Path)
		}
		if got.Body["status"] != w.status || len(got.Body) != 1 {
			t.Fatalf("request %d: unexpected body %v", i, got.Body)
		}
	}
}

func TestDecideLoanRequestMergesOfferTerms(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	terms := &OfferTerms{Amount: decimal.NewFromInt(150000), InterestRate: decimal.RequireFromString("2.5"), Duration: 120}
	if err := c.DecideLoanRequest(context.Background(), market.Key{ID: 1, UserID: "U"}, market.DecisionAccept, terms); err != nil {
		t.Fatalf("decide: %v", err)
	}
	body := (*seen)[0].Body
	if body["status"] != "ACCEPT" || body["amount"] != float64(150000) || body["interest_rate"] != 2.5 || body["duration"] != float64(120) {
		t.Fatalf("unexpected merged body: %v", body)
	}
	if _, ok := body["risk"]; ok {
		t.Fatalf("expected zero-valued terms to be omitted")
	}
}

func TestClientDropsInvalidRecords(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"loan_requests":[{"id":1,"user_id":"U","status":"PENDING","amount_wanted":10},{"id":2,"status":"PENDING"}]}`))
	})

	items, err := c.LoanRequests(context.Background())
	if err != nil {
		t.Fatalf("loan requests: %v", err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("expected invalid record dropped, got %+v", items)
	}
}

func TestClientRejectsMissingEnvelopeField(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	if _, err := c.Mortgages(context.Background()); err == nil || !strings.Contains(err.Error(), `"mortgages"`) {
		t.Fatalf("expected missing field error, got %v", err)
	}
}

func TestGetContractsBatchesOwnershipContracts(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"contracts":{"c1":{"id":"c1","confirmations":3},"t2":{"id":"t2","confirmations":1}}}`))
	})

	items := []market.Investment{
		{ID: 1, UserID: "A", ContractID: "c1"},
		{ID: 2, UserID: "A", ContractID: "c2", Transfers: []market.Transfer{{ConfirmationContractID: "t2"}}},
	}
	contracts, err := GetContracts(context.Background(), c, items)
	if err != nil {
		t.Fatalf("get contracts: %v", err)
	}
	if len(*seen) != 1 {
		t.Fatalf("expected one batched round trip, got %d", len(*seen))
	}
	req := (*seen)[0]
	if req.Method != http.MethodPost || req.Path != "/api/contracts" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	ids, _ := req.Body["contract_ids"].([]any)
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "t2" {
		t.Fatalf("unexpected ids: %v", req.Body["contract_ids"])
	}
	if contracts["t2"].Confirmations != 1 {
		t.Fatalf("unexpected contracts: %+v", contracts)
	}
}

func TestResolveContractsSkipsEmptyBatch(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	})

	out, err := GetContracts(context.Background(), c, []market.Mortgage{{ID: 1, UserID: "B"}})
	if err != nil || len(out) != 0 || len(*seen) != 0 {
		t.Fatalf("expected empty result without round trip, got %v %v", out, err)
	}
}
