package purchase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/domain"
	"crypto-billpay/internal/ledger"
	"crypto-billpay/internal/observability"
	"crypto-billpay/internal/transfer"
	"crypto-billpay/internal/wallet"
)

// Orchestrator errors.
var (
	// ErrSessionNotFound is returned for an unknown or ended session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidStep is returned when an operation is not permitted at
	// the session's current step.
	ErrInvalidStep = errors.New("operation not valid at current step")

	// ErrInvalidPurchaseType is returned for an unknown purchase type.
	ErrInvalidPurchaseType = errors.New("invalid purchase type")

	// ErrNotAwaitingPIN is returned when SubmitPIN is called before
	// Confirm opened the gate.
	ErrNotAwaitingPIN = errors.New("session is not awaiting a pin")
)

// Validation messages surfaced on the session, never as Go errors.
const (
	msgIncompleteStep    = "Complete all required fields"
	msgNoWallet          = "No wallet for the selected chain"
	msgNoRecipient       = "No recipient address configured"
	msgAmountNotPositive = "Amount must be greater than zero"
	msgInsufficient      = "Insufficient balance"
	msgMeterNotVerified  = "Meter not verified"
	msgNoQuote           = "No quote available"
)

// MeterVerifier checks a meter number against an electricity company.
type MeterVerifier interface {
	VerifyMeter(ctx context.Context, company, meterNumber string) (*domain.MeterVerification, error)
}

// TokenSource reads the aggregated wallet token list.
type TokenSource interface {
	Tokens(ctx context.Context) ([]domain.WalletToken, error)
	InvalidateBalances(ctx context.Context)
}

// QuoteSource converts a fiat amount into a required crypto amount.
type QuoteSource interface {
	Quote(ctx context.Context, typ domain.PurchaseType, params api.QuoteParams) (*domain.ExpectedAmount, float64, error)
}

// PINSender authorizes and performs the on-chain transfer.
type PINSender interface {
	Send(ctx context.Context, req transfer.SendRequest) (string, error)
}

// RecordSubmitter posts the purchase record after a successful transfer.
type RecordSubmitter interface {
	Submit(ctx context.Context, s *Session, txHash string) (*domain.PurchaseResult, error)
}

// Orchestrator owns purchase sessions and drives them through the flow.
type Orchestrator struct {
	verifier   MeterVerifier
	tokens     TokenSource
	quoter     QuoteSource
	gate       PINSender
	submitter  RecordSubmitter
	attempts   ledger.AttemptStore
	recipients map[string]string // canonical chain id -> recipient address
	network    string
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// Options contains configuration for creating an Orchestrator.
type Options struct {
	Verifier   MeterVerifier
	Tokens     TokenSource
	Quoter     QuoteSource
	Gate       PINSender
	Submitter  RecordSubmitter
	Attempts   ledger.AttemptStore
	Recipients map[string]string
	Network    string
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recipients := make(map[string]string, len(opts.Recipients))
	for chain, addr := range opts.Recipients {
		recipients[wallet.Normalize(chain)] = addr
	}
	return &Orchestrator{
		verifier:   opts.Verifier,
		tokens:     opts.Tokens,
		quoter:     opts.Quoter,
		gate:       opts.Gate,
		submitter:  opts.Submitter,
		attempts:   opts.Attempts,
		recipients: recipients,
		network:    opts.Network,
		logger:     logger,
		metrics:    opts.Metrics,
		sessions:   make(map[string]*Session),
	}
}

// StartSession creates a new purchase session at step 1.
func (o *Orchestrator) StartSession(typ domain.PurchaseType) (Session, error) {
	if !typ.Valid() {
		return Session{}, ErrInvalidPurchaseType
	}

	s := &Session{
		ID:      uuid.NewString(),
		Type:    typ,
		Step:    StepSelectProvider,
		sending: new(atomic.Bool),
	}
	if typ == domain.PurchaseElectricity {
		s.Form.RequireVerification = true
	}

	o.mu.Lock()
	o.sessions[s.ID] = s
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.SessionsStarted.Inc()
	}
	return *s, nil
}

// Session returns a snapshot of the session state.
func (o *Orchestrator) Session(id string) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s, nil
}

// EndSession destroys a session. In-flight async results for it are
// dropped rather than applied.
func (o *Orchestrator) EndSession(id string) {
	o.mu.Lock()
	delete(o.sessions, id)
	o.mu.Unlock()
}

// update applies fn to a live session under the lock and returns the
// resulting snapshot.
func (o *Orchestrator) update(id string, fn func(*Session)) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	fn(s)
	return *s, nil
}

// SetProvider selects the service provider.
func (o *Orchestrator) SetProvider(id, serviceID, name string) (Session, error) {
	return o.update(id, func(s *Session) {
		s.Form.ServiceID = serviceID
		s.Form.ServiceName = name
		s.Form.MeterVerified = false
		s.Form.CustomerName = ""
		s.clearQuote()
	})
}

// SetAmount sets the fiat amount for airtime and electricity purchases.
func (o *Orchestrator) SetAmount(id string, amount float64) (Session, error) {
	return o.update(id, func(s *Session) {
		s.Form.FiatAmount = amount
		s.clearQuote()
	})
}

// SetCustomerID sets the phone or meter number.
func (o *Orchestrator) SetCustomerID(id, customerID string) (Session, error) {
	return o.update(id, func(s *Session) {
		s.Form.CustomerID = customerID
		s.Form.MeterVerified = false
		s.Form.CustomerName = ""
	})
}

// SetPlan selects a data plan.
func (o *Orchestrator) SetPlan(id string, plan domain.DataPlan) (Session, error) {
	return o.update(id, func(s *Session) {
		p := plan
		s.Form.Plan = &p
		s.clearQuote()
	})
}

// SetMeterType sets the electricity meter type.
func (o *Orchestrator) SetMeterType(id, meterType string) (Session, error) {
	return o.update(id, func(s *Session) {
		s.Form.MeterType = meterType
	})
}

// SetPhoneNumber sets the electricity fallback contact number.
func (o *Orchestrator) SetPhoneNumber(id, phone string) (Session, error) {
	return o.update(id, func(s *Session) {
		s.Form.PhoneNumber = phone
	})
}

// SetChain selects the paying chain. The quote is dropped and must be
// fetched fresh for the new chain.
func (o *Orchestrator) SetChain(id, chain string) (Session, error) {
	return o.update(id, func(s *Session) {
		s.SelectedChain = wallet.Normalize(chain)
		s.clearQuote()
	})
}

// VerifyMeter runs the one-shot meter verification for the session's
// provider and meter number. The outcome lands on the form state.
func (o *Orchestrator) VerifyMeter(ctx context.Context, id string) (Session, error) {
	snap, err := o.Session(id)
	if err != nil {
		return Session{}, err
	}

	v, verr := o.verifier.VerifyMeter(ctx, snap.Form.ServiceID, snap.Form.CustomerID)

	return o.update(id, func(s *Session) {
		if verr != nil {
			s.Form.MeterVerified = false
			s.Form.CustomerName = ""
			s.ValidationError = verr.Error()
			return
		}
		s.Form.MeterVerified = true
		s.Form.CustomerName = v.CustomerName
		s.ValidationError = ""
	})
}

// RefreshQuote fetches a fresh quote for the current form state and chain.
func (o *Orchestrator) RefreshQuote(ctx context.Context, id string) (Session, error) {
	snap, err := o.Session(id)
	if err != nil {
		return Session{}, err
	}

	quote, required, err := o.quote(ctx, &snap, snap.SelectedChain)
	if err != nil {
		return Session{}, err
	}

	return o.update(id, func(s *Session) {
		s.Expected = quote
		s.Required = required
	})
}

func (o *Orchestrator) quote(ctx context.Context, s *Session, chain string) (*domain.ExpectedAmount, float64, error) {
	params := api.QuoteParams{
		ServiceID:  s.Form.ServiceID,
		FiatAmount: s.fiatAmount(),
		Chain:      chain,
	}
	if s.Form.Plan != nil {
		params.PlanID = s.Form.Plan.PlanID
	}

	quote, required, err := o.quoter.Quote(ctx, s.Type, params)
	if err != nil {
		return nil, 0, err
	}
	if o.metrics != nil {
		o.metrics.QuotesFetched.Inc()
	}
	return quote, required, nil
}

// Next advances the session one step. The transition is refused, with the
// reason on ValidationError, when the step's predicate fails. Entering
// step 2 selects a chain that can cover the amount and fetches a quote.
func (o *Orchestrator) Next(ctx context.Context, id string) (Session, error) {
	snap, err := o.Session(id)
	if err != nil {
		return Session{}, err
	}

	switch snap.Step {
	case StepSelectProvider:
		if !snap.stepOneValid() {
			return o.update(id, func(s *Session) {
				s.ValidationError = msgIncompleteStep
			})
		}
		return o.enterPaymentStep(ctx, id)

	case StepSelectPayment:
		if snap.Expected == nil {
			return o.update(id, func(s *Session) {
				s.ValidationError = msgNoQuote
			})
		}
		return o.enterReviewStep(ctx, id)

	default:
		return Session{}, ErrInvalidStep
	}
}

// enterPaymentStep transitions 1→2 with chain auto-selection: when the
// current chain cannot cover the required amount, the first chain with a
// positive fiat value covering the fiat amount wins.
func (o *Orchestrator) enterPaymentStep(ctx context.Context, id string) (Session, error) {
	snap, err := o.Session(id)
	if err != nil {
		return Session{}, err
	}

	tokens, err := o.tokens.Tokens(ctx)
	if err != nil {
		return Session{}, err
	}

	chain := snap.SelectedChain
	if chain == "" && len(tokens) > 0 {
		chain = tokens[0].Chain // highest fiat value first
	}

	quote, required, err := o.quote(ctx, &snap, chain)
	if err != nil {
		return Session{}, err
	}

	if tok, ok := wallet.Find(tokens, chain); !ok || required > tok.Balance {
		for _, t := range tokens {
			if t.Chain == chain || t.FiatValue <= 0 || t.FiatValue < snap.fiatAmount() {
				continue
			}
			chain = t.Chain
			quote, required, err = o.quote(ctx, &snap, chain)
			if err != nil {
				return Session{}, err
			}
			break
		}
	}

	return o.update(id, func(s *Session) {
		s.Step = StepSelectPayment
		s.SelectedChain = chain
		s.Expected = quote
		s.Required = required
		s.ValidationError = ""
	})
}

// enterReviewStep transitions 2→3 and evaluates the review predicate so
// the validation outcome is visible before Confirm.
func (o *Orchestrator) enterReviewStep(ctx context.Context, id string) (Session, error) {
	snap, err := o.Session(id)
	if err != nil {
		return Session{}, err
	}

	tokens, err := o.tokens.Tokens(ctx)
	if err != nil {
		return Session{}, err
	}
	msg := o.reviewError(&snap, tokens)

	return o.update(id, func(s *Session) {
		s.Step = StepReview
		s.ValidationError = msg
	})
}

// reviewError evaluates the review-step predicate, returning an empty
// string when the session may be confirmed.
func (o *Orchestrator) reviewError(s *Session, tokens []domain.WalletToken) string {
	tok, ok := wallet.Find(tokens, s.SelectedChain)
	if !ok {
		return msgNoWallet
	}
	if _, ok := o.recipients[wallet.Normalize(s.SelectedChain)]; !ok {
		return msgNoRecipient
	}
	if s.fiatAmount() <= 0 {
		return msgAmountNotPositive
	}
	if s.Required <= 0 {
		return msgNoQuote
	}
	if s.Required > tok.Balance {
		return msgInsufficient
	}
	if s.Type == domain.PurchaseElectricity && s.Form.RequireVerification && !s.Form.MeterVerified {
		return msgMeterNotVerified
	}
	return ""
}

// Back moves the session one step back. At step 1 the flow is exited and
// the session destroyed; the returned bool reports that.
func (o *Orchestrator) Back(id string) (Session, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[id]
	if !ok {
		return Session{}, false, ErrSessionNotFound
	}
	if s.Step == StepResult {
		return *s, false, ErrInvalidStep
	}
	if s.Step == StepSelectProvider {
		delete(o.sessions, id)
		return *s, true, nil
	}
	s.Step--
	s.ValidationError = ""
	s.AwaitingPIN = false
	return *s, false, nil
}

// Confirm re-validates the review step and, when clean, journals a
// pending attempt and opens the PIN gate. A validation failure lands on
// the session, not on the error return.
func (o *Orchestrator) Confirm(ctx context.Context, id string) (Session, error) {
	snap, err := o.Session(id)
	if err != nil {
		return Session{}, err
	}
	if snap.Step != StepReview {
		return Session{}, ErrInvalidStep
	}

	tokens, err := o.tokens.Tokens(ctx)
	if err != nil {
		return Session{}, err
	}
	if msg := o.reviewError(&snap, tokens); msg != "" {
		return o.update(id, func(s *Session) {
			s.ValidationError = msg
		})
	}

	attemptID := uuid.NewString()
	if o.attempts != nil {
		err := o.attempts.Insert(ctx, &ledger.Attempt{
			AttemptID:    attemptID,
			SessionID:    snap.ID,
			Type:         string(snap.Type),
			Chain:        snap.SelectedChain,
			Network:      o.network,
			ServiceID:    snap.Form.ServiceID,
			CustomerID:   snap.Form.CustomerID,
			FiatAmount:   snap.fiatAmount(),
			CryptoAmount: snap.Required,
			Status:       ledger.StatusPending,
		})
		if err != nil {
			return Session{}, err
		}
	}

	return o.update(id, func(s *Session) {
		s.ValidationError = ""
		s.AwaitingPIN = true
		s.attemptID = attemptID
	})
}

// SubmitPIN authorizes the transfer with the entered PIN and, on success,
// records the purchase. A second submission while one is running is
// rejected without touching the transfer collaborator.
func (o *Orchestrator) SubmitPIN(ctx context.Context, id, pin string) (Session, error) {
	o.mu.Lock()
	s, ok := o.sessions[id]
	if !ok {
		o.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	if s.Step != StepReview || !s.AwaitingPIN {
		o.mu.Unlock()
		return Session{}, ErrNotAwaitingPIN
	}
	if !s.sending.CompareAndSwap(false, true) {
		o.mu.Unlock()
		return Session{}, transfer.ErrSendInFlight
	}
	snap := *s
	o.mu.Unlock()
	defer snap.sending.Store(false)

	req, err := o.sendRequest(ctx, snap, pin)
	if err != nil {
		// Nothing reached the chain; the attempt stays pending and the
		// gate stays open for another try.
		o.recordOutcome(ctx, snap.attemptID, ledger.StatusPending, err.Error(), "")
		return Session{}, err
	}

	hash, err := o.transferAndSubmit(ctx, snap, req)
	if err != nil && hash == "" {
		// Transfer failed outright; stay at review, keep the dialog
		// closed, surface the reason.
		o.recordOutcome(ctx, snap.attemptID, ledger.StatusTransferFailed, err.Error(), "")
		if o.metrics != nil {
			o.metrics.TransfersTotal.WithLabelValues("failure").Inc()
		}
		return o.update(id, func(s *Session) {
			s.AwaitingPIN = false
			s.ErrorMessage = err.Error()
		})
	}
	return o.Session(id)
}

// sendRequest assembles the transfer request for a session, resolving the
// source wallet and the configured recipient.
func (o *Orchestrator) sendRequest(ctx context.Context, snap Session, pin string) (transfer.SendRequest, error) {
	tokens, err := o.tokens.Tokens(ctx)
	if err != nil {
		return transfer.SendRequest{}, err
	}
	tok, ok := wallet.Find(tokens, snap.SelectedChain)
	if !ok {
		return transfer.SendRequest{}, errors.New(msgNoWallet)
	}
	recipient, ok := o.recipients[wallet.Normalize(snap.SelectedChain)]
	if !ok {
		return transfer.SendRequest{}, errors.New(msgNoRecipient)
	}
	return transfer.SendRequest{
		Chain:       snap.SelectedChain,
		Network:     o.network,
		FromAddress: tok.Address,
		ToAddress:   recipient,
		Amount:      snap.Required,
		PIN:         pin,
	}, nil
}

// transferAndSubmit runs the transfer then the purchase submission,
// applying results only if the session is still live. The returned hash
// is non-empty whenever funds moved, regardless of the error.
func (o *Orchestrator) transferAndSubmit(ctx context.Context, snap Session, req transfer.SendRequest) (string, error) {
	hash, err := o.gate.Send(ctx, req)
	if err != nil {
		return "", err
	}
	if o.metrics != nil {
		o.metrics.TransfersTotal.WithLabelValues("success").Inc()
	}
	if o.attempts != nil {
		if lerr := o.attempts.SetTransactionHash(ctx, snap.attemptID, hash); lerr != nil {
			o.logger.Error("record transaction hash", zap.String("attempt_id", snap.attemptID), zap.Error(lerr))
		}
	}

	// The hash is applied before submission so it survives a submit
	// failure and a process teardown in between.
	if _, uerr := o.update(snap.ID, func(s *Session) {
		s.TransactionHash = hash
	}); uerr != nil {
		return hash, uerr
	}

	result, serr := o.submitter.Submit(ctx, &snap, hash)
	if serr != nil {
		// Funds moved, record missing: the partial-failure path.
		o.recordOutcome(ctx, snap.attemptID, ledger.StatusAwaitingReconcile, serr.Error(), "")
		if o.metrics != nil {
			o.metrics.PurchasesTotal.WithLabelValues(string(snap.Type), "failure").Inc()
		}
		o.logger.Error("purchase submission failed after transfer",
			zap.String("session_id", snap.ID),
			zap.String("tx_hash", hash),
			zap.Error(serr))
		o.update(snap.ID, func(s *Session) {
			s.Step = StepResult
			s.AwaitingPIN = false
			s.Success = false
			s.ErrorMessage = serr.Error()
		})
		return hash, serr
	}

	o.recordOutcome(ctx, snap.attemptID, ledger.StatusCompleted, "", result.Reference)
	if o.metrics != nil {
		o.metrics.PurchasesTotal.WithLabelValues(string(snap.Type), "success").Inc()
	}
	o.tokens.InvalidateBalances(ctx)
	o.update(snap.ID, func(s *Session) {
		s.Step = StepResult
		s.AwaitingPIN = false
		s.Success = true
		s.Result = result
		s.ErrorMessage = ""
	})
	return hash, nil
}

func (o *Orchestrator) recordOutcome(ctx context.Context, attemptID string, status ledger.Status, reason, reference string) {
	if o.attempts == nil || attemptID == "" {
		return
	}
	var reasonPtr, refPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if reference != "" {
		refPtr = &reference
	}
	if err := o.attempts.SetOutcome(ctx, attemptID, status, reasonPtr, refPtr); err != nil {
		o.logger.Error("record attempt outcome",
			zap.String("attempt_id", attemptID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
