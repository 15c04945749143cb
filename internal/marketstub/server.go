package marketstub

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/observability"
)

const maxBodyBytes = 1 << 20

// SessionCookie names the cookie carrying the caller's user id.
const SessionCookie = "session"

type Server struct {
	store  *Store
	logger *slog.Logger
}

func NewServer(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Server{store: store, logger: logger}
}

// Router mounts every endpoint under /api.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.UseEncodedPath()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.logRequests)

	api.HandleFunc("/you", s.you).Methods(http.MethodGet)
	api.HandleFunc("/you/profile", s.profile).Methods(http.MethodGet)
	api.HandleFunc("/you/profile", s.saveProfile).Methods(http.MethodPut)
	api.HandleFunc("/you/loanrequests", s.myLoanRequests).Methods(http.MethodGet)
	api.HandleFunc("/you/loanrequests", s.createLoanRequest).Methods(http.MethodPut)
	api.HandleFunc("/you/mortgages", s.myMortgages).Methods(http.MethodGet)
	api.HandleFunc("/you/mortgages/{id}/{uid}", s.decideMortgage).Methods(http.MethodPatch)
	api.HandleFunc("/you/campaigns", s.myCampaigns).Methods(http.MethodGet)
	api.HandleFunc("/you/investments", s.myInvestments).Methods(http.MethodGet)
	api.HandleFunc("/you/investments", s.createInvestment).Methods(http.MethodPut)
	api.HandleFunc("/you/investments/{id}/{uid}", s.offerForSale).Methods(http.MethodPatch)

	api.HandleFunc("/users", s.users).Methods(http.MethodGet)
	api.HandleFunc("/loanrequests", s.loanRequests).Methods(http.MethodGet)
	api.HandleFunc("/loanrequests/{id}/{uid}", s.decideLoanRequest).Methods(http.MethodPatch)
	api.HandleFunc("/mortgages", s.mortgages).Methods(http.MethodGet)
	api.HandleFunc("/campaigns", s.campaigns).Methods(http.MethodGet)
	api.HandleFunc("/campaigns/{cid}/{cuid}/investments/{id}/{uid}", s.decideInvestment).Methods(http.MethodPatch)
	api.HandleFunc("/investments", s.investments).Methods(http.MethodGet)
	api.HandleFunc("/investments/{id}/{uid}/transfers", s.offerTransfer).Methods(http.MethodPut)
	api.HandleFunc("/investments/{id}/{uid}/transfers/{tid}/{tuid}", s.decideTransfer).Methods(http.MethodPatch)

	api.HandleFunc("/blocks", s.blocks).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}", s.block).Methods(http.MethodGet)
	api.HandleFunc("/contracts", s.resolveContracts).Methods(http.MethodPost)
	api.HandleFunc("/contracts/{id}", s.contract).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "marketstub"})
	}).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("stub request", "method", r.Method, "path", r.URL.EscapedPath(), "request_id", r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r)
	})
}

func caller(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	var stubErr *Error
	if errors.As(err, &stubErr) {
		writeJSON(w, stubErr.Status, map[string]string{"error": stubErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeResult(w http.ResponseWriter, field string, v any, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{field: v})
}

func writeSuccess(w http.ResponseWriter, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fail(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// pathKey reads a compound key from two escaped path segments.
func pathKey(r *http.Request, idVar, userVar string) (market.Key, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars[idVar], 10, 64)
	if err != nil {
		return market.Key{}, fail(http.StatusBadRequest, "invalid id")
	}
	uid, err := url.PathUnescape(vars[userVar])
	if err != nil || uid == "" {
		return market.Key{}, fail(http.StatusBadRequest, "invalid user id")
	}
	return market.Key{ID: id, UserID: uid}, nil
}

type statusBody struct {
	Status string `json:"status"`
}

func (s *Server) you(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.Me(caller(r))
	writeResult(w, "you", u, err)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Profile(caller(r))
	writeResult(w, "profile", p, err)
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	var p market.Profile
	if err := decode(r, &p); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, s.store.SaveProfile(caller(r), p))
}

func (s *Server) users(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Me(caller(r)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": s.store.Users()})
}

func (s *Server) myLoanRequests(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.MyLoanRequests(caller(r))
	writeResult(w, "loan_requests", items, err)
}

func (s *Server) createLoanRequest(w http.ResponseWriter, r *http.Request) {
	var in LoanRequestParams
	if err := decode(r, &in); err != nil {
		writeErr(w, err)
		return
	}
	lr, err := s.store.CreateLoanRequest(caller(r), in)
	writeResult(w, "loan_request", lr, err)
}

func (s *Server) loanRequests(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.LoanRequests(caller(r))
	writeResult(w, "loan_requests", items, err)
}

func (s *Server) decideLoanRequest(w http.ResponseWriter, r *http.Request) {
	k, err := pathKey(r, "id", "uid")
	if err != nil {
		writeErr(w, err)
		return
	}
	var p OfferParams
	if err := decode(r, &p); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, s.store.DecideLoanRequest(caller(r), k, p))
}

func (s *Server) myMortgages(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.MyMortgages(caller(r))
	writeResult(w, "mortgages", items, err)
}

func (s *Server) mortgages(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Mortgages(caller(r))
	writeResult(w, "mortgages", items, err)
}

func (s *Server) decideMortgage(w http.ResponseWriter, r *http.Request) {
	k, err := pathKey(r, "id", "uid")
	if err != nil {
		writeErr(w, err)
		return
	}
	var body statusBody
	if err := decode(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, s.store.DecideMortgage(caller(r), k, body.Status))
}

func (s *Server) myCampaigns(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.MyCampaigns(caller(r))
	writeResult(w, "campaigns", items, err)
}

func (s *Server) campaigns(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Campaigns(caller(r))
	writeResult(w, "campaigns", items, err)
}

func (s *Server) myInvestments(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.MyInvestments(caller(r))
	writeResult(w, "investments", items, err)
}

func (s *Server) investments(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Investments(caller(r))
	writeResult(w, "investments", items, err)
}

func (s *Server) createInvestment(w http.ResponseWriter, r *http.Request) {
	var in InvestmentParams
	if err := decode(r, &in); err != nil {
		writeErr(w, err)
		return
	}
	inv, err := s.store.CreateInvestment(caller(r), in)
	writeResult(w, "investment", inv, err)
}

func (s *Server) offerForSale(w http.ResponseWriter, r *http.Request) {
	k, err := pathKey(r, "id", "uid")
	if err != nil {
		writeErr(w, err)
		return
	}
	var body statusBody
	if err := decode(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, s.store.OfferForSale(caller(r), k, body.Status))
}

func (s *Server) decideInvestment(w http.ResponseWriter, r *http.Request) {
	campaign, err := pathKey(r, "cid", "cuid")
	if err != nil {
		writeErr(w, err)
		return
	}
	investment, err := pathKey(r, "id", "uid")
	if err != nil {
		writeErr(w, err)
		return
	}
	var body statusBody
	if err := decode(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, s.store.DecideInvestment(caller(r), campaign, investment, body.Status))
}

func (s *Server) offerTransfer(w http.ResponseWriter, r *http.Request) {
	k, err := pathKey(r, "id", "uid")
	if err != nil {
		writeErr(w, err)
		return
	}
	var in TransferParams
	if err := decode(r, &in); err != nil {
		writeErr(w, err)
		return
	}
	t, err := s.store.OfferTransfer(caller(r), k, in)
	writeResult(w, "transfer", t, err)
}

func (s *Server) decideTransfer(w http.ResponseWriter, r *http.Request) {
	investment, err := pathKey(r, "id", "uid")
	if err != nil {
		writeErr(w, err)
		return
	}
	transfer, err := pathKey(r, "tid", "tuid")
	if err != nil {
		writeErr(w, err)
		return
	}
	var body statusBody
	if err := decode(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, s.store.DecideTransfer(caller(r), investment, transfer, body.Status))
}

func (s *Server) blocks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"blocks": s.store.Blocks()})
}

func (s *Server) block(w http.ResponseWriter, r *http.Request) {
	id, _ := url.PathUnescape(mux.Vars(r)["id"])
	b, err := s.store.Block(id)
	writeResult(w, "block", b, err)
}

func (s *Server) contract(w http.ResponseWriter, r *http.Request) {
	id, _ := url.PathUnescape(mux.Vars(r)["id"])
	c, err := s.store.Contract(id)
	writeResult(w, "contract", c, err)
}

func (s *Server) resolveContracts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContractIDs []string `json:"contract_ids"`
	}
	if err := decode(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": s.store.Contracts(body.ContractIDs)})
}
