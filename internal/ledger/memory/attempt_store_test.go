package memory

import (
	"context"
	"errors"
	"testing"

	"crypto-billpay/internal/ledger"
)

func newAttempt(id string) *ledger.Attempt {
	return &ledger.Attempt{
		AttemptID:    id,
		SessionID:    "sess-1",
		Type:         "airtime",
		Chain:        "ethereum",
		Network:      "mainnet",
		ServiceID:    "mtn",
		CustomerID:   "08012345678",
		FiatAmount:   500,
		CryptoAmount: 0.0001235,
		Status:       ledger.StatusPending,
		CreatedAt:    1000,
	}
}

func TestAttemptStore_InsertAndGet(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	a := newAttempt("att-1")
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "att-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SessionID != "sess-1" || got.Status != ledger.StatusPending {
		t.Errorf("got %+v", got)
	}
	if got.UpdatedAt != got.CreatedAt {
		t.Errorf("UpdatedAt = %d, want %d", got.UpdatedAt, got.CreatedAt)
	}
}

func TestAttemptStore_InsertDuplicate(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newAttempt("att-1")); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	if err := store.Insert(ctx, newAttempt("att-1")); !errors.Is(err, ledger.ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestAttemptStore_InsertInvalid(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("nil attempt: err = %v, want ErrInvalidInput", err)
	}
	if err := store.Insert(ctx, &ledger.Attempt{}); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("empty id: err = %v, want ErrInvalidInput", err)
	}
}

func TestAttemptStore_GetNotFound(t *testing.T) {
	store := NewAttemptStore()

	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAttemptStore_CopyOnRead(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newAttempt("att-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "att-1")
	got.Status = ledger.StatusCompleted

	again, _ := store.GetByID(ctx, "att-1")
	if again.Status != ledger.StatusPending {
		t.Error("mutation through a returned attempt must not affect the store")
	}
}

func TestAttemptStore_SetTransactionHash(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newAttempt("att-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.SetTransactionHash(ctx, "att-1", "0xabc"); err != nil {
		t.Fatalf("SetTransactionHash failed: %v", err)
	}
	got, _ := store.GetByID(ctx, "att-1")
	if got.TransactionHash == nil || *got.TransactionHash != "0xabc" {
		t.Errorf("TransactionHash = %v", got.TransactionHash)
	}

	if err := store.SetTransactionHash(ctx, "att-1", ""); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("empty hash: err = %v, want ErrInvalidInput", err)
	}
	if err := store.SetTransactionHash(ctx, "missing", "0xdef"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("missing attempt: err = %v, want ErrNotFound", err)
	}
}

func TestAttemptStore_SetOutcome(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newAttempt("att-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	reason := "purchase submit failed"
	if err := store.SetOutcome(ctx, "att-1", ledger.StatusAwaitingReconcile, &reason, nil); err != nil {
		t.Fatalf("SetOutcome failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "att-1")
	if got.Status != ledger.StatusAwaitingReconcile {
		t.Errorf("Status = %s", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != reason {
		t.Errorf("FailureReason = %v", got.FailureReason)
	}
}

func TestAttemptStore_ListAwaitingReconcile(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	a := newAttempt("att-old")
	a.CreatedAt = 100
	b := newAttempt("att-new")
	b.CreatedAt = 200
	c := newAttempt("att-done")
	c.CreatedAt = 150

	for _, att := range []*ledger.Attempt{b, c, a} {
		if err := store.Insert(ctx, att); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	_ = store.SetOutcome(ctx, "att-old", ledger.StatusAwaitingReconcile, nil, nil)
	_ = store.SetOutcome(ctx, "att-new", ledger.StatusAwaitingReconcile, nil, nil)
	_ = store.SetOutcome(ctx, "att-done", ledger.StatusCompleted, nil, nil)

	stuck, err := store.ListAwaitingReconcile(ctx)
	if err != nil {
		t.Fatalf("ListAwaitingReconcile failed: %v", err)
	}
	if len(stuck) != 2 {
		t.Fatalf("len = %d, want 2", len(stuck))
	}
	if stuck[0].AttemptID != "att-old" || stuck[1].AttemptID != "att-new" {
		t.Errorf("order = %s, %s; want oldest first", stuck[0].AttemptID, stuck[1].AttemptID)
	}
}

func TestAttemptStore_MarkReconciled(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newAttempt("att-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Only attempts awaiting reconcile can be marked.
	if err := store.MarkReconciled(ctx, "att-1"); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("pending attempt: err = %v, want ErrInvalidInput", err)
	}

	_ = store.SetOutcome(ctx, "att-1", ledger.StatusAwaitingReconcile, nil, nil)
	if err := store.MarkReconciled(ctx, "att-1"); err != nil {
		t.Fatalf("MarkReconciled failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "att-1")
	if got.Status != ledger.StatusReconciled {
		t.Errorf("Status = %s", got.Status)
	}

	if err := store.MarkReconciled(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("missing attempt: err = %v, want ErrNotFound", err)
	}
}
