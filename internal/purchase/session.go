// Package purchase drives the 4-step purchase flow: provider selection,
// payment selection, review, and result. It owns session state, step
// validation, and the transfer-then-submit sequence.
package purchase

import (
	"sync/atomic"

	"crypto-billpay/internal/domain"
)

// Step is a position in the purchase flow.
type Step int

const (
	StepSelectProvider Step = 1
	StepSelectPayment  Step = 2
	StepReview         Step = 3
	StepResult         Step = 4
)

// FormState holds the user-editable inputs, mutated across steps 1 and 2.
type FormState struct {
	ServiceID   string           `json:"serviceId"`
	ServiceName string           `json:"serviceName"`
	FiatAmount  float64          `json:"fiatAmount"`
	CustomerID  string           `json:"customerId"` // phone or meter number
	MeterType   string           `json:"meterType,omitempty"`
	Plan        *domain.DataPlan `json:"plan,omitempty"`
	PhoneNumber string           `json:"phoneNumber,omitempty"` // electricity fallback contact

	// Meter verification outcome, electricity only.
	RequireVerification bool   `json:"requireVerification,omitempty"`
	MeterVerified       bool   `json:"meterVerified,omitempty"`
	CustomerName        string `json:"customerName,omitempty"`
}

// Session is the root aggregate of one purchase flow.
type Session struct {
	ID   string              `json:"id"`
	Type domain.PurchaseType `json:"type"`
	Step Step                `json:"step"`
	Form FormState           `json:"form"`

	SelectedChain string `json:"selectedChain,omitempty"`

	// Current quote for the form state and selected chain, nil until
	// fetched and cleared whenever amount, plan, or chain changes.
	Expected *domain.ExpectedAmount `json:"expected,omitempty"`
	Required float64                `json:"required,omitempty"`

	ValidationError string `json:"validationError,omitempty"`

	// Confirm opens the PIN gate; SubmitPIN is only accepted while set.
	AwaitingPIN bool   `json:"awaitingPin,omitempty"`
	attemptID   string // current ledger attempt

	// One transfer attempt in flight per session. Pointer so snapshots
	// share the flag.
	sending *atomic.Bool

	// Result state. TransactionHash, once obtained, is never cleared,
	// even when the purchase record failed.
	TransactionHash string                 `json:"transactionHash,omitempty"`
	Result          *domain.PurchaseResult `json:"result,omitempty"`
	Success         bool                   `json:"success,omitempty"`
	ErrorMessage    string                 `json:"errorMessage,omitempty"`
}

// fiatAmount returns the effective fiat amount: the plan price for data
// purchases, the entered amount otherwise.
func (s *Session) fiatAmount() float64 {
	if s.Type == domain.PurchaseData && s.Form.Plan != nil {
		return s.Form.Plan.FiatAmount
	}
	return s.Form.FiatAmount
}

// clearQuote drops the current quote. Called whenever an input the quote
// depends on changes.
func (s *Session) clearQuote() {
	s.Expected = nil
	s.Required = 0
}

// stepOneValid reports whether step 1 is complete for the session's type.
func (s *Session) stepOneValid() bool {
	if s.Form.ServiceID == "" || s.Form.CustomerID == "" {
		return false
	}
	switch s.Type {
	case domain.PurchaseData:
		if s.Form.Plan == nil {
			return false
		}
	case domain.PurchaseAirtime:
		if s.Form.FiatAmount <= 0 {
			return false
		}
	case domain.PurchaseElectricity:
		if s.Form.FiatAmount <= 0 {
			return false
		}
		if s.Form.RequireVerification && !s.Form.MeterVerified && s.Form.PhoneNumber == "" {
			return false
		}
	}
	return true
}
