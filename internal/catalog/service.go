// Package catalog serves provider, plan, and meter-type catalogs through
// the request cache, plus one-shot meter verification.
package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/cache"
	"crypto-billpay/internal/domain"
	"crypto-billpay/internal/observability"
)

// ErrVerificationInFlight is returned when a meter verification is already
// running; re-submission is disabled until the prior call resolves.
var ErrVerificationInFlight = errors.New("meter verification already in progress")

// Cache TTL tiers, matched to catalog volatility.
const (
	ProvidersTTL  = 10 * time.Minute
	DataPlansTTL  = 30 * time.Minute
	MeterTypesTTL = 6 * time.Hour
)

// Service is the catalog read layer.
type Service struct {
	client  *api.Client
	manager *cache.Manager
	logger  *zap.Logger
	metrics *observability.Metrics

	verifying atomic.Bool
}

// ServiceOptions contains configuration for creating a Service.
type ServiceOptions struct {
	Client  *api.Client
	Manager *cache.Manager
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewService creates a catalog Service.
func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:  opts.Client,
		manager: opts.Manager,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Providers returns the provider catalog for a purchase type.
func (s *Service) Providers(ctx context.Context, typ domain.PurchaseType) ([]domain.Provider, error) {
	req := cache.Request{
		Key:               "catalog:providers:" + string(typ),
		TTL:               ProvidersTTL,
		BackgroundRefresh: true,
	}
	return cache.Fetch(ctx, s.manager, req, func(ctx context.Context) ([]domain.Provider, error) {
		return s.client.SupportedOptions(ctx, typ)
	})
}

// DataPlans returns the data-plan catalog for a mobile network.
func (s *Service) DataPlans(ctx context.Context, network string) ([]domain.DataPlan, error) {
	req := cache.Request{
		Key:               "catalog:plans:" + network,
		TTL:               DataPlansTTL,
		BackgroundRefresh: true,
	}
	return cache.Fetch(ctx, s.manager, req, func(ctx context.Context) ([]domain.DataPlan, error) {
		return s.client.DataPlans(ctx, network, false)
	})
}

// MeterTypes returns the electricity meter-type catalog.
func (s *Service) MeterTypes(ctx context.Context) ([]domain.MeterType, error) {
	req := cache.Request{
		Key: "catalog:meter-types",
		TTL: MeterTypesTTL,
	}
	return cache.Fetch(ctx, s.manager, req, func(ctx context.Context) ([]domain.MeterType, error) {
		return s.client.MeterTypes(ctx)
	})
}

// VerifyMeter checks a meter number against an electricity company. The
// call is never cached, and only one verification runs at a time.
func (s *Service) VerifyMeter(ctx context.Context, company, meterNumber string) (*domain.MeterVerification, error) {
	if !s.verifying.CompareAndSwap(false, true) {
		return nil, ErrVerificationInFlight
	}
	defer s.verifying.Store(false)

	v, err := s.client.VerifyMeter(ctx, company, meterNumber)
	if err != nil {
		if s.metrics != nil {
			s.metrics.MeterVerifications.WithLabelValues("failure").Inc()
		}
		s.logger.Warn("meter verification failed",
			zap.String("company", company),
			zap.Error(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MeterVerifications.WithLabelValues("success").Inc()
	}
	return v, nil
}

// Verifying reports whether a meter verification is currently in flight.
func (s *Service) Verifying() bool {
	return s.verifying.Load()
}
