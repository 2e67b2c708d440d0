package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-billpay/internal/ledger"
)

// AttemptStore implements ledger.AttemptStore using PostgreSQL.
type AttemptStore struct {
	pool *Pool
}

// NewAttemptStore creates a new AttemptStore.
func NewAttemptStore(pool *Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

// Compile-time interface check.
var _ ledger.AttemptStore = (*AttemptStore)(nil)

// Insert adds a new attempt. Returns ErrDuplicateKey if attempt_id exists.
func (s *AttemptStore) Insert(ctx context.Context, a *ledger.Attempt) error {
	if a == nil || a.AttemptID == "" {
		return ledger.ErrInvalidInput
	}

	createdAt := a.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO purchase_attempts (
			attempt_id, session_id, type, chain, network, service_id,
			customer_id, fiat_amount, crypto_amount, transaction_hash,
			status, failure_reason, reference, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AttemptID,
		a.SessionID,
		a.Type,
		a.Chain,
		a.Network,
		a.ServiceID,
		a.CustomerID,
		a.FiatAmount,
		a.CryptoAmount,
		a.TransactionHash,
		string(a.Status),
		a.FailureReason,
		a.Reference,
		createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ledger.ErrDuplicateKey
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// GetByID retrieves an attempt by its ID. Returns ErrNotFound if not exists.
func (s *AttemptStore) GetByID(ctx context.Context, attemptID string) (*ledger.Attempt, error) {
	query := `
		SELECT attempt_id, session_id, type, chain, network, service_id,
			customer_id, fiat_amount, crypto_amount, transaction_hash,
			status, failure_reason, reference, created_at, updated_at
		FROM purchase_attempts
		WHERE attempt_id = $1
	`

	row := s.pool.QueryRow(ctx, query, attemptID)
	a, err := scanAttempt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get attempt by id: %w", err)
	}
	return a, nil
}

// SetTransactionHash records the transfer's hash on an attempt.
func (s *AttemptStore) SetTransactionHash(ctx context.Context, attemptID, txHash string) error {
	if txHash == "" {
		return ledger.ErrInvalidInput
	}

	query := `
		UPDATE purchase_attempts
		SET transaction_hash = $2, updated_at = $3
		WHERE attempt_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, attemptID, txHash, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set transaction hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// SetOutcome records the attempt's final status.
func (s *AttemptStore) SetOutcome(ctx context.Context, attemptID string, status ledger.Status, reason, reference *string) error {
	query := `
		UPDATE purchase_attempts
		SET status = $2, failure_reason = $3, reference = $4, updated_at = $5
		WHERE attempt_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, attemptID, string(status), reason, reference, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// ListAwaitingReconcile returns partial-failure attempts, oldest first.
func (s *AttemptStore) ListAwaitingReconcile(ctx context.Context) ([]*ledger.Attempt, error) {
	query := `
		SELECT attempt_id, session_id, type, chain, network, service_id,
			customer_id, fiat_amount, crypto_amount, transaction_hash,
			status, failure_reason, reference, created_at, updated_at
		FROM purchase_attempts
		WHERE status = $1
		ORDER BY created_at ASC, attempt_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(ledger.StatusAwaitingReconcile))
	if err != nil {
		return nil, fmt.Errorf("list awaiting reconcile: %w", err)
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// MarkReconciled resolves a stuck attempt manually.
func (s *AttemptStore) MarkReconciled(ctx context.Context, attemptID string) error {
	query := `
		UPDATE purchase_attempts
		SET status = $2, updated_at = $3
		WHERE attempt_id = $1 AND status = $4
	`

	tag, err := s.pool.Exec(ctx, query,
		attemptID,
		string(ledger.StatusReconciled),
		time.Now().UnixMilli(),
		string(ledger.StatusAwaitingReconcile),
	)
	if err != nil {
		return fmt.Errorf("mark reconciled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either absent or not awaiting reconcile.
		if _, err := s.GetByID(ctx, attemptID); err != nil {
			return err
		}
		return ledger.ErrInvalidInput
	}
	return nil
}

// scanAttempt scans a single row into an Attempt.
func scanAttempt(row pgx.Row) (*ledger.Attempt, error) {
	var a ledger.Attempt
	var statusStr string

	err := row.Scan(
		&a.AttemptID,
		&a.SessionID,
		&a.Type,
		&a.Chain,
		&a.Network,
		&a.ServiceID,
		&a.CustomerID,
		&a.FiatAmount,
		&a.CryptoAmount,
		&a.TransactionHash,
		&statusStr,
		&a.FailureReason,
		&a.Reference,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = ledger.Status(statusStr)
	return &a, nil
}

// scanAttempts scans multiple rows into a slice of Attempt.
func scanAttempts(rows pgx.Rows) ([]*ledger.Attempt, error) {
	var attempts []*ledger.Attempt

	for rows.Next() {
		var a ledger.Attempt
		var statusStr string

		err := rows.Scan(
			&a.AttemptID,
			&a.SessionID,
			&a.Type,
			&a.Chain,
			&a.Network,
			&a.ServiceID,
			&a.CustomerID,
			&a.FiatAmount,
			&a.CryptoAmount,
			&a.TransactionHash,
			&statusStr,
			&a.FailureReason,
			&a.Reference,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}

		a.Status = ledger.Status(statusStr)
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt rows: %w", err)
	}

	return attempts, nil
}
