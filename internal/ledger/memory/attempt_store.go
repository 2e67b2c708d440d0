package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-billpay/internal/ledger"
)

// AttemptStore is an in-memory implementation of ledger.AttemptStore.
type AttemptStore struct {
	mu   sync.RWMutex
	data map[string]*ledger.Attempt // keyed by attempt_id
}

// NewAttemptStore creates a new in-memory attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		data: make(map[string]*ledger.Attempt),
	}
}

// Insert adds a new attempt. Returns ErrDuplicateKey if attempt_id exists.
func (s *AttemptStore) Insert(_ context.Context, a *ledger.Attempt) error {
	if a == nil || a.AttemptID == "" {
		return ledger.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AttemptID]; exists {
		return ledger.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	attemptCopy := *a
	if attemptCopy.CreatedAt == 0 {
		attemptCopy.CreatedAt = time.Now().UnixMilli()
	}
	attemptCopy.UpdatedAt = attemptCopy.CreatedAt
	s.data[a.AttemptID] = &attemptCopy
	return nil
}

// GetByID retrieves an attempt by its ID. Returns ErrNotFound if not exists.
func (s *AttemptStore) GetByID(_ context.Context, attemptID string) (*ledger.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[attemptID]
	if !exists {
		return nil, ledger.ErrNotFound
	}

	attemptCopy := *a
	return &attemptCopy, nil
}

// SetTransactionHash records the transfer's hash on an attempt.
func (s *AttemptStore) SetTransactionHash(_ context.Context, attemptID, txHash string) error {
	if txHash == "" {
		return ledger.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[attemptID]
	if !exists {
		return ledger.ErrNotFound
	}
	a.TransactionHash = &txHash
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// SetOutcome records the attempt's final status.
func (s *AttemptStore) SetOutcome(_ context.Context, attemptID string, status ledger.Status, reason, reference *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[attemptID]
	if !exists {
		return ledger.ErrNotFound
	}
	a.Status = status
	a.FailureReason = reason
	a.Reference = reference
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// ListAwaitingReconcile returns partial-failure attempts, oldest first.
func (s *AttemptStore) ListAwaitingReconcile(_ context.Context) ([]*ledger.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*ledger.Attempt
	for _, a := range s.data {
		if a.Status == ledger.StatusAwaitingReconcile {
			attemptCopy := *a
			result = append(result, &attemptCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// MarkReconciled resolves a stuck attempt manually.
func (s *AttemptStore) MarkReconciled(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[attemptID]
	if !exists {
		return ledger.ErrNotFound
	}
	if a.Status != ledger.StatusAwaitingReconcile {
		return ledger.ErrInvalidInput
	}
	a.Status = ledger.StatusReconciled
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// Verify interface compliance at compile time.
var _ ledger.AttemptStore = (*AttemptStore)(nil)
