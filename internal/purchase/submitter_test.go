package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/auth"
	"crypto-billpay/internal/cache"
	"crypto-billpay/internal/domain"
)

func TestSubmitter_AirtimePayload(t *testing.T) {
	var got api.AirtimePurchase
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/airtime/purchase" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(domain.PurchaseResult{Reference: "REF-1", Provider: "MTN"})
	}))
	defer server.Close()

	sub := NewSubmitter(SubmitterOptions{Client: api.NewClient(server.URL)})
	s := &Session{
		Type:          domain.PurchaseAirtime,
		SelectedChain: "ethereum",
		Form: FormState{
			ServiceID:  "mtn",
			FiatAmount: 500,
			CustomerID: "08012345678",
		},
	}

	result, err := sub.Submit(context.Background(), s, "0xhash")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Reference != "REF-1" {
		t.Errorf("Reference = %q", result.Reference)
	}
	if got.TransactionHash != "0xhash" {
		t.Errorf("TransactionHash = %q, the hash must reach the backend", got.TransactionHash)
	}
	if got.ServiceID != "mtn" || got.Amount != 500 || got.PhoneNumber != "08012345678" || got.Chain != "ethereum" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSubmitter_ElectricityPayload(t *testing.T) {
	var got api.ElectricityPurchase
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/electricity/purchase" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(domain.PurchaseResult{Reference: "REF-2", Token: "1234-5678"})
	}))
	defer server.Close()

	sub := NewSubmitter(SubmitterOptions{Client: api.NewClient(server.URL)})
	s := &Session{
		Type:          domain.PurchaseElectricity,
		SelectedChain: "tron",
		Form: FormState{
			ServiceID:   "ikeja",
			FiatAmount:  5000,
			CustomerID:  "45021837265",
			MeterType:   "prepaid",
			PhoneNumber: "08000000000",
		},
	}

	result, err := sub.Submit(context.Background(), s, "txhash")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Token != "1234-5678" {
		t.Errorf("Token = %q, the voucher must come through", result.Token)
	}
	if got.MeterNumber != "45021837265" || got.MeterType != "prepaid" || got.TransactionHash != "txhash" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSubmitter_InvalidatesHistory(t *testing.T) {
	var historyCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/purchases/history":
			historyCalls.Add(1)
			json.NewEncoder(w).Encode([]domain.PurchaseRecord{{Reference: "REF-0"}})
		case "/data/purchase":
			json.NewEncoder(w).Encode(domain.PurchaseResult{Reference: "REF-3"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	tokens := auth.NewMemoryTokenStore("tok-123")
	manager := cache.NewManager(cache.ManagerOptions{Tokens: tokens})
	sub := NewSubmitter(SubmitterOptions{
		Client:  api.NewClient(server.URL, api.WithTokenStore(tokens)),
		Manager: manager,
	})

	ctx := context.Background()

	// Warm the history cache; a second read is served from memory.
	if _, err := sub.History(ctx); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if _, err := sub.History(ctx); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if n := historyCalls.Load(); n != 1 {
		t.Fatalf("history fetches = %d, want 1", n)
	}

	plan := domain.DataPlan{PlanID: "plan-1", FiatAmount: 1000}
	s := &Session{
		Type:          domain.PurchaseData,
		SelectedChain: "ethereum",
		Form:          FormState{ServiceID: "mtn", CustomerID: "08012345678", Plan: &plan},
	}
	if _, err := sub.Submit(ctx, s, "0xhash"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// The cached history was invalidated by the submission.
	if _, err := sub.History(ctx); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if n := historyCalls.Load(); n != 2 {
		t.Errorf("history fetches = %d, want a refetch after submit", n)
	}
}

func TestSubmitter_SubmitFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "order rejected"})
	}))
	defer server.Close()

	sub := NewSubmitter(SubmitterOptions{Client: api.NewClient(server.URL)})
	s := &Session{
		Type:          domain.PurchaseAirtime,
		SelectedChain: "ethereum",
		Form:          FormState{ServiceID: "mtn", FiatAmount: 500, CustomerID: "08012345678"},
	}

	_, err := sub.Submit(context.Background(), s, "0xhash")
	if err == nil {
		t.Fatal("Submit must surface the backend rejection")
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "order rejected" {
		t.Errorf("err = %v", err)
	}
}
