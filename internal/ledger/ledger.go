// Package ledger journals purchase attempts locally so a transfer that
// succeeded on-chain is never lost, even when the backend purchase record
// failed and the process restarts.
package ledger

import "context"

// Status is the lifecycle state of a purchase attempt.
type Status string

const (
	// StatusPending: attempt created, transfer not yet resolved.
	StatusPending Status = "PENDING"
	// StatusTransferFailed: the on-chain send failed; no funds moved.
	StatusTransferFailed Status = "TRANSFER_FAILED"
	// StatusAwaitingReconcile: funds moved but the backend purchase
	// record failed; needs manual support.
	StatusAwaitingReconcile Status = "AWAITING_RECONCILE"
	// StatusCompleted: transfer and purchase record both succeeded.
	StatusCompleted Status = "COMPLETED"
	// StatusReconciled: a previously stuck attempt was resolved manually.
	StatusReconciled Status = "RECONCILED"
)

// Attempt is one journaled purchase attempt.
type Attempt struct {
	AttemptID       string  `json:"attemptId"` // PRIMARY KEY
	SessionID       string  `json:"sessionId"`
	Type            string  `json:"type"`  // airtime | data | electricity
	Chain           string  `json:"chain"` // canonical chain id
	Network         string  `json:"network"`
	ServiceID       string  `json:"serviceId"`
	CustomerID      string  `json:"customerId"` // phone or meter number
	FiatAmount      float64 `json:"fiatAmount"`
	CryptoAmount    float64 `json:"cryptoAmount"` // required amount, 7dp
	TransactionHash *string `json:"transactionHash,omitempty"` // set once the transfer succeeds, never unset
	Status          Status  `json:"status"`
	FailureReason   *string `json:"failureReason,omitempty"`
	Reference       *string `json:"reference,omitempty"` // backend receipt reference
	CreatedAt       int64   `json:"createdAt"` // Unix timestamp in milliseconds
	UpdatedAt       int64   `json:"updatedAt"`
}

// AttemptStore persists purchase attempts.
type AttemptStore interface {
	// Insert adds a new attempt. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *Attempt) error

	// GetByID retrieves an attempt. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, attemptID string) (*Attempt, error)

	// SetTransactionHash records the transfer's hash on an attempt.
	SetTransactionHash(ctx context.Context, attemptID, txHash string) error

	// SetOutcome records the attempt's final status with an optional
	// failure reason and backend reference.
	SetOutcome(ctx context.Context, attemptID string, status Status, reason, reference *string) error

	// ListAwaitingReconcile returns attempts stuck in partial failure,
	// oldest first.
	ListAwaitingReconcile(ctx context.Context) ([]*Attempt, error)

	// MarkReconciled resolves a stuck attempt manually.
	MarkReconciled(ctx context.Context, attemptID string) error
}
