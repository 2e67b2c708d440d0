package purchase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/cache"
	"crypto-billpay/internal/domain"
)

// HistoryTTL is the cache lifetime of the purchase-history read.
const HistoryTTL = 2 * time.Minute

const historyKey = "purchases:history"

// Submitter posts purchase records to the backend and serves the purchase
// history through the request cache.
type Submitter struct {
	client  *api.Client
	manager *cache.Manager
	logger  *zap.Logger
}

// SubmitterOptions contains configuration for creating a Submitter.
type SubmitterOptions struct {
	Client  *api.Client
	Manager *cache.Manager
	Logger  *zap.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(opts SubmitterOptions) *Submitter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		client:  opts.Client,
		manager: opts.Manager,
		logger:  logger,
	}
}

var _ RecordSubmitter = (*Submitter)(nil)

// Submit posts the type-specific purchase payload, carrying the
// transaction hash as proof of payment. A success invalidates the cached
// purchase history.
func (sub *Submitter) Submit(ctx context.Context, s *Session, txHash string) (*domain.PurchaseResult, error) {
	var body interface{}

	switch s.Type {
	case domain.PurchaseAirtime:
		body = api.AirtimePurchase{
			ServiceID:       s.Form.ServiceID,
			Amount:          s.Form.FiatAmount,
			PhoneNumber:     s.Form.CustomerID,
			Chain:           s.SelectedChain,
			TransactionHash: txHash,
		}
	case domain.PurchaseData:
		planID := ""
		if s.Form.Plan != nil {
			planID = s.Form.Plan.PlanID
		}
		body = api.DataPurchase{
			ServiceID:       s.Form.ServiceID,
			PlanID:          planID,
			PhoneNumber:     s.Form.CustomerID,
			Chain:           s.SelectedChain,
			TransactionHash: txHash,
		}
	case domain.PurchaseElectricity:
		body = api.ElectricityPurchase{
			ServiceID:       s.Form.ServiceID,
			MeterNumber:     s.Form.CustomerID,
			MeterType:       s.Form.MeterType,
			Amount:          s.Form.FiatAmount,
			PhoneNumber:     s.Form.PhoneNumber,
			Chain:           s.SelectedChain,
			TransactionHash: txHash,
		}
	default:
		return nil, ErrInvalidPurchaseType
	}

	result, err := sub.client.SubmitPurchase(ctx, s.Type, body)
	if err != nil {
		return nil, err
	}

	if sub.manager != nil {
		sub.manager.Invalidate(ctx, historyKey)
	}
	sub.logger.Info("purchase recorded",
		zap.String("type", string(s.Type)),
		zap.String("reference", result.Reference))
	return result, nil
}

// History returns the recorded purchase history, served cache-first.
func (sub *Submitter) History(ctx context.Context) ([]domain.PurchaseRecord, error) {
	req := cache.Request{
		Key:         historyKey,
		TTL:         HistoryTTL,
		RequireAuth: true,
	}
	return cache.Fetch(ctx, sub.manager, req, func(ctx context.Context) ([]domain.PurchaseRecord, error) {
		return sub.client.PurchaseHistory(ctx)
	})
}
