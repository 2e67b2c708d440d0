// Package pricing converts fiat amounts into required crypto amounts.
package pricing

import (
	"context"
	"math"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/domain"
)

// precision is the rounding granularity for required amounts: 7 decimals.
const precision = 1e7

// intEpsilon absorbs float64 noise when the scaled amount is already an
// integer (0.001*1e7 evaluates to 10000.000000000002).
const intEpsilon = 1e-6

// RequiredCryptoAmount rounds a quoted crypto amount up to 7 decimal
// places. Rounding is always up so underpayment is structurally impossible.
func RequiredCryptoAmount(quoted float64) float64 {
	scaled := quoted * precision
	if nearest := math.Round(scaled); math.Abs(scaled-nearest) < intEpsilon {
		return nearest / precision
	}
	return math.Ceil(scaled) / precision
}

// Quoter fetches fiat-to-crypto quotes from the backend. Quotes are never
// cached: any change to amount, plan, or chain requires a fresh one.
type Quoter struct {
	client *api.Client
}

// NewQuoter creates a Quoter.
func NewQuoter(client *api.Client) *Quoter {
	return &Quoter{client: client}
}

// Quote fetches the expected amount for a purchase and the required crypto
// amount derived from it.
func (q *Quoter) Quote(ctx context.Context, typ domain.PurchaseType, params api.QuoteParams) (*domain.ExpectedAmount, float64, error) {
	quote, err := q.client.ExpectedAmount(ctx, typ, params)
	if err != nil {
		return nil, 0, err
	}
	return quote, RequiredCryptoAmount(quote.CryptoAmount), nil
}
