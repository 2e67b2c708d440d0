package cache

import (
	"testing"
	"time"
)

func TestStore_SetAndGet(t *testing.T) {
	store := NewStore()

	store.Set("k", "v", time.Minute)

	got, ok := store.Get("k")
	if !ok {
		t.Fatal("expected entry for k")
	}
	if got != "v" {
		t.Errorf("value mismatch: got %v, want v", got)
	}

	// Get is idempotent: same value without an intervening Set.
	again, ok := store.Get("k")
	if !ok || again != got {
		t.Errorf("second Get returned %v (%v), want %v", again, ok, got)
	}
}

func TestStore_SetReplaces(t *testing.T) {
	store := NewStore()

	store.Set("k", 1, time.Minute)
	store.Set("k", 2, time.Minute)

	got, ok := store.Get("k")
	if !ok || got != 2 {
		t.Errorf("got %v (%v), want 2", got, ok)
	}
	if store.Len() != 1 {
		t.Errorf("expected one entry per key, got %d", store.Len())
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := NewStore(WithClock(func() time.Time { return now }))

	store.Set("k", "v", time.Minute)

	if _, ok := store.Get("k"); !ok {
		t.Fatal("entry should be fresh")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get("k"); ok {
		t.Error("entry should be expired")
	}
	// Expired entries persist until deleted or purged.
	if store.Len() != 1 {
		t.Errorf("expired entry should still be held, Len = %d", store.Len())
	}
}

func TestStore_FetchingFlag(t *testing.T) {
	store := NewStore()

	if store.IsFetching("k") {
		t.Error("new key should not be fetching")
	}
	store.SetFetching("k", true)
	if !store.IsFetching("k") {
		t.Error("expected fetching flag set")
	}
	store.SetFetching("k", false)
	if store.IsFetching("k") {
		t.Error("expected fetching flag cleared")
	}
}

func TestStore_TrySetFetching(t *testing.T) {
	store := NewStore()

	if !store.TrySetFetching("k") {
		t.Fatal("first acquisition must succeed")
	}
	if store.TrySetFetching("k") {
		t.Error("second acquisition must fail while the flag is held")
	}
	store.SetFetching("k", false)
	if !store.TrySetFetching("k") {
		t.Error("acquisition must succeed again after release")
	}
}

func TestStore_Invalidate(t *testing.T) {
	store := NewStore()
	store.Set("a", 1, time.Minute)
	store.Set("b", 2, time.Minute)
	store.Set("c", 3, time.Minute)

	store.Invalidate("a", "b")

	if _, ok := store.Get("a"); ok {
		t.Error("a should be gone")
	}
	if _, ok := store.Get("b"); ok {
		t.Error("b should be gone")
	}
	if _, ok := store.Get("c"); !ok {
		t.Error("c should survive")
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore()
	store.Set("a", 1, time.Minute)
	store.SetFetching("b", true)

	store.Clear()

	if store.Len() != 0 {
		t.Errorf("Len = %d after Clear", store.Len())
	}
	if store.IsFetching("b") {
		t.Error("fetching flags should be cleared")
	}
}

func TestStore_PurgeExpired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := NewStore(WithClock(func() time.Time { return now }))

	store.Set("old", 1, time.Minute)
	now = now.Add(time.Hour)
	store.Set("new", 2, time.Minute)

	purged := store.PurgeExpired()
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d after purge, want 1", store.Len())
	}
	if _, ok := store.Get("new"); !ok {
		t.Error("fresh entry should survive purge")
	}
}
