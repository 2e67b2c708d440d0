package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"crypto-billpay/internal/auth"
)

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer server.Close()

	tokens := auth.NewMemoryTokenStore("tok-123")
	client := NewClient(server.URL, WithTokenStore(tokens))

	var out map[string]string
	if err := client.Get(context.Background(), "/ping", nil, &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	// No header without a token.
	tokens.Clear()
	if err := client.Get(context.Background(), "/ping", nil, &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := auth.NewMemoryTokenStore("tok-123")
	var expired atomic.Int32
	client := NewClient(server.URL,
		WithTokenStore(tokens),
		WithSessionExpiredHandler(func() { expired.Add(1) }),
	)

	err := client.Get(context.Background(), "/wallet", nil, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if tokens.Token() != "" {
		t.Error("a 401 must clear the stored token")
	}
	if expired.Load() != 1 {
		t.Errorf("session-expired handler fired %d times, want 1", expired.Load())
	}
}

func TestClient_TimeoutIsDistinct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond), WithMaxRetries(0))

	err := client.Get(context.Background(), "/slow", nil, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(3))
	client.retryDelay = time.Millisecond
	client.maxDelay = time.Millisecond

	var out map[string]string
	if err := client.Get(context.Background(), "/flaky", nil, &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "bad amount"})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(3))
	client.retryDelay = time.Millisecond

	err := client.Get(context.Background(), "/bad", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "bad amount" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, a 4xx must not be retried", calls.Load())
	}
}

func TestClient_PostNeverRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(3))
	client.retryDelay = time.Millisecond

	if err := client.Post(context.Background(), "/purchase", map[string]string{"a": "b"}, nil); err == nil {
		t.Fatal("Post must surface the failure")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, a POST must not be retried", calls.Load())
	}
}
