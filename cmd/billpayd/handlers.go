package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/cache"
	"crypto-billpay/internal/catalog"
	"crypto-billpay/internal/domain"
	"crypto-billpay/internal/ledger"
	"crypto-billpay/internal/purchase"
	"crypto-billpay/internal/transfer"
	"crypto-billpay/internal/wallet"
)

// server exposes the purchase flow over HTTP.
type server struct {
	orch      *purchase.Orchestrator
	catalog   *catalog.Service
	wallet    *wallet.Service
	submitter *purchase.Submitter
	attempts  ledger.AttemptStore
	poller    *cache.Poller
	logger    *zap.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Catalogs and wallet state.
	mux.HandleFunc("GET /catalog/{type}/providers", s.handleProviders)
	mux.HandleFunc("GET /catalog/plans", s.handleDataPlans)
	mux.HandleFunc("GET /catalog/meter-types", s.handleMeterTypes)
	mux.HandleFunc("GET /wallet/tokens", s.handleWalletTokens)
	mux.HandleFunc("GET /history", s.handleHistory)

	// Purchase sessions.
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleEndSession)
	mux.HandleFunc("POST /sessions/{id}/form", s.handleUpdateForm)
	mux.HandleFunc("POST /sessions/{id}/verify-meter", s.handleVerifyMeter)
	mux.HandleFunc("POST /sessions/{id}/quote", s.handleQuote)
	mux.HandleFunc("POST /sessions/{id}/next", s.handleNext)
	mux.HandleFunc("POST /sessions/{id}/back", s.handleBack)
	mux.HandleFunc("POST /sessions/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /sessions/{id}/pin", s.handleSubmitPIN)

	// Reconciliation of partial failures.
	mux.HandleFunc("GET /reconcile", s.handleListReconcile)
	mux.HandleFunc("POST /reconcile/{id}", s.handleMarkReconciled)

	// Client activity drives the balance poller.
	mux.HandleFunc("POST /activity", s.handleActivity)

	return mux
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

// writeError maps domain errors to HTTP statuses.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, purchase.ErrSessionNotFound), errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, purchase.ErrInvalidStep),
		errors.Is(err, purchase.ErrNotAwaitingPIN),
		errors.Is(err, purchase.ErrInvalidPurchaseType),
		errors.Is(err, ledger.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, transfer.ErrSendInFlight),
		errors.Is(err, transfer.ErrPINIncomplete),
		errors.Is(err, catalog.ErrVerificationInFlight):
		status = http.StatusConflict
	case errors.Is(err, cache.ErrAuthRequired), errors.Is(err, api.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, api.ErrTimeout):
		status = http.StatusGatewayTimeout
	default:
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
	}
	s.writeJSON(w, status, errorResponse{Message: err.Error()})
}

func (s *server) handleProviders(w http.ResponseWriter, r *http.Request) {
	typ := domain.PurchaseType(r.PathValue("type"))
	if !typ.Valid() {
		s.writeError(w, purchase.ErrInvalidPurchaseType)
		return
	}
	providers, err := s.catalog.Providers(r.Context(), typ)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, providers)
}

func (s *server) handleDataPlans(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "network is required"})
		return
	}
	plans, err := s.catalog.DataPlans(r.Context(), network)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *server) handleMeterTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.catalog.MeterTypes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, types)
}

func (s *server) handleWalletTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.wallet.Tokens(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokens)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.submitter.History(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type domain.PurchaseType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid body"})
		return
	}
	sess, err := s.orch.StartSession(req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.orch.EndSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// formUpdate carries optional form fields; only present ones are applied.
type formUpdate struct {
	ServiceID   *string          `json:"serviceId,omitempty"`
	ServiceName *string          `json:"serviceName,omitempty"`
	FiatAmount  *float64         `json:"fiatAmount,omitempty"`
	CustomerID  *string          `json:"customerId,omitempty"`
	MeterType   *string          `json:"meterType,omitempty"`
	Plan        *domain.DataPlan `json:"plan,omitempty"`
	PhoneNumber *string          `json:"phoneNumber,omitempty"`
	Chain       *string          `json:"chain,omitempty"`
}

func (s *server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req formUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid body"})
		return
	}

	var (
		sess purchase.Session
		err  error
	)
	apply := func(fn func() (purchase.Session, error)) {
		if err != nil {
			return
		}
		sess, err = fn()
	}

	if req.ServiceID != nil {
		name := ""
		if req.ServiceName != nil {
			name = *req.ServiceName
		}
		apply(func() (purchase.Session, error) { return s.orch.SetProvider(id, *req.ServiceID, name) })
	}
	if req.CustomerID != nil {
		apply(func() (purchase.Session, error) { return s.orch.SetCustomerID(id, *req.CustomerID) })
	}
	if req.FiatAmount != nil {
		apply(func() (purchase.Session, error) { return s.orch.SetAmount(id, *req.FiatAmount) })
	}
	if req.Plan != nil {
		apply(func() (purchase.Session, error) { return s.orch.SetPlan(id, *req.Plan) })
	}
	if req.MeterType != nil {
		apply(func() (purchase.Session, error) { return s.orch.SetMeterType(id, *req.MeterType) })
	}
	if req.PhoneNumber != nil {
		apply(func() (purchase.Session, error) { return s.orch.SetPhoneNumber(id, *req.PhoneNumber) })
	}
	if req.Chain != nil {
		apply(func() (purchase.Session, error) { return s.orch.SetChain(id, *req.Chain) })
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sess.ID == "" {
		// Nothing applied; return current state.
		sess, err = s.orch.Session(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleVerifyMeter(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.VerifyMeter(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.RefreshQuote(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Next(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess, exited, err := s.orch.Back(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if exited {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleSubmitPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid body"})
		return
	}
	sess, err := s.orch.SubmitPIN(r.Context(), r.PathValue("id"), req.PIN)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleListReconcile(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.attempts.ListAwaitingReconcile(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []*ledger.Attempt{}
	}
	s.writeJSON(w, http.StatusOK, attempts)
}

func (s *server) handleMarkReconciled(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.attempts.MarkReconciled(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	attempt, err := s.attempts.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, attempt)
}

// handleActivity maps client visibility onto the balance poller: hidden
// pauses polling, visible resumes it with one immediate refresh.
func (s *server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid body"})
		return
	}
	if req.Active {
		s.poller.Resume()
	} else {
		s.poller.Pause()
	}
	w.WriteHeader(http.StatusNoContent)
}
