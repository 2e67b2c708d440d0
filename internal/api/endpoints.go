package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"crypto-billpay/internal/domain"
)

// QuoteParams are the inputs of an expected-amount request.
type QuoteParams struct {
	ServiceID  string
	FiatAmount float64
	Chain      string
	PlanID     string // data purchases only
}

// AirtimePurchase is the submission payload for airtime.
type AirtimePurchase struct {
	ServiceID       string  `json:"serviceId"`
	Amount          float64 `json:"amount"`
	PhoneNumber     string  `json:"phoneNumber"`
	Chain           string  `json:"chain"`
	TransactionHash string  `json:"transactionHash"`
}

// DataPurchase is the submission payload for mobile data.
type DataPurchase struct {
	ServiceID       string `json:"serviceId"`
	PlanID          string `json:"planId"`
	PhoneNumber     string `json:"phoneNumber"`
	Chain           string `json:"chain"`
	TransactionHash string `json:"transactionHash"`
}

// ElectricityPurchase is the submission payload for electricity.
type ElectricityPurchase struct {
	ServiceID       string  `json:"serviceId"`
	MeterNumber     string  `json:"meterNumber"`
	MeterType       string  `json:"meterType"`
	Amount          float64 `json:"amount"`
	PhoneNumber     string  `json:"phoneNumber,omitempty"`
	Chain           string  `json:"chain"`
	TransactionHash string  `json:"transactionHash"`
}

// SupportedOptions fetches the provider catalog for a purchase type.
func (c *Client) SupportedOptions(ctx context.Context, typ domain.PurchaseType) ([]domain.Provider, error) {
	var providers []domain.Provider
	if err := c.Get(ctx, fmt.Sprintf("/%s/supported-options", typ), nil, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// DataPlans fetches the data-plan catalog for a mobile network.
func (c *Client) DataPlans(ctx context.Context, network string, refresh bool) ([]domain.DataPlan, error) {
	q := url.Values{}
	q.Set("network", network)
	q.Set("refresh", strconv.FormatBool(refresh))

	var plans []domain.DataPlan
	if err := c.Get(ctx, "/data/plans", q, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// MeterTypes fetches the electricity meter-type catalog.
func (c *Client) MeterTypes(ctx context.Context) ([]domain.MeterType, error) {
	var types []domain.MeterType
	if err := c.Get(ctx, "/electricity/meter-types", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// ExpectedAmount fetches the fiat-to-crypto quote for a purchase.
func (c *Client) ExpectedAmount(ctx context.Context, typ domain.PurchaseType, params QuoteParams) (*domain.ExpectedAmount, error) {
	q := url.Values{}
	q.Set("serviceId", params.ServiceID)
	q.Set("chain", params.Chain)
	if params.PlanID != "" {
		q.Set("planId", params.PlanID)
	}
	if params.FiatAmount > 0 {
		q.Set("amount", strconv.FormatFloat(params.FiatAmount, 'f', -1, 64))
	}

	var quote domain.ExpectedAmount
	if err := c.Get(ctx, fmt.Sprintf("/%s/expected-amount", typ), q, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// VerifyMeter checks a meter number against an electricity company.
func (c *Client) VerifyMeter(ctx context.Context, company, meterNumber string) (*domain.MeterVerification, error) {
	q := url.Values{}
	q.Set("company", company)
	q.Set("meterNumber", meterNumber)

	var v domain.MeterVerification
	if err := c.Get(ctx, "/electricity/verify-meter", q, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SubmitPurchase posts a purchase record. The body must be one of the
// type-specific payload structs and include the transaction hash.
func (c *Client) SubmitPurchase(ctx context.Context, typ domain.PurchaseType, body interface{}) (*domain.PurchaseResult, error) {
	var result domain.PurchaseResult
	if err := c.Post(ctx, fmt.Sprintf("/%s/purchase", typ), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WalletAddresses fetches deposit addresses for a network.
func (c *Client) WalletAddresses(ctx context.Context, network string) ([]domain.WalletAddress, error) {
	var addrs []domain.WalletAddress
	if err := c.Get(ctx, "/wallet/addresses/"+network, nil, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// WalletBalances fetches balances for a network.
func (c *Client) WalletBalances(ctx context.Context, network string) ([]domain.WalletBalance, error) {
	var balances []domain.WalletBalance
	if err := c.Get(ctx, "/wallet/balances/"+network, nil, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// PurchaseHistory fetches the recorded purchase history.
func (c *Client) PurchaseHistory(ctx context.Context) ([]domain.PurchaseRecord, error) {
	var records []domain.PurchaseRecord
	if err := c.Get(ctx, "/purchases/history", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}
