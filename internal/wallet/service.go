package wallet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/cache"
	"crypto-billpay/internal/domain"
)

// Cache TTL tiers. Addresses barely change; balances move with every
// transfer and poll.
const (
	AddressesTTL = 10 * time.Minute
	BalancesTTL  = 30 * time.Second
)

// Service reads wallet state through the request cache and aggregates it
// into per-chain tokens.
type Service struct {
	client  *api.Client
	manager *cache.Manager
	rates   RateSource
	network string
	logger  *zap.Logger
}

// ServiceOptions contains configuration for creating a Service.
type ServiceOptions struct {
	Client  *api.Client
	Manager *cache.Manager
	Rates   RateSource
	Network string
	Logger  *zap.Logger
}

// NewService creates a wallet Service.
func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:  opts.Client,
		manager: opts.Manager,
		rates:   opts.Rates,
		network: opts.Network,
		logger:  logger,
	}
}

func addressesKey(network string) string {
	return "wallet:addresses:" + network
}

func balancesKey(network string) string {
	return "wallet:balances:" + network
}

func (s *Service) addressesRequest() cache.Request {
	return cache.Request{
		Key:               addressesKey(s.network),
		TTL:               AddressesTTL,
		RequireAuth:       true,
		BackgroundRefresh: true,
	}
}

func (s *Service) balancesRequest() cache.Request {
	return cache.Request{
		Key:               balancesKey(s.network),
		TTL:               BalancesTTL,
		RequireAuth:       true,
		BackgroundRefresh: true,
	}
}

// Tokens returns the aggregated per-chain token list, served cache-first.
func (s *Service) Tokens(ctx context.Context) ([]domain.WalletToken, error) {
	addrs, err := cache.Fetch(ctx, s.manager, s.addressesRequest(), func(ctx context.Context) ([]domain.WalletAddress, error) {
		return s.client.WalletAddresses(ctx, s.network)
	})
	if err != nil {
		return nil, err
	}

	balances, err := cache.Fetch(ctx, s.manager, s.balancesRequest(), func(ctx context.Context) ([]domain.WalletBalance, error) {
		return s.client.WalletBalances(ctx, s.network)
	})
	if err != nil {
		return nil, err
	}

	return Aggregate(addrs, balances, s.rates), nil
}

// InvalidateBalances drops cached balances, e.g. right after a transfer.
func (s *Service) InvalidateBalances(ctx context.Context) {
	s.manager.Invalidate(ctx, balancesKey(s.network))
}

// RefreshBalances revalidates the balance cache out of band; wired to the
// balance poller.
func (s *Service) RefreshBalances(ctx context.Context) {
	cache.Refresh(ctx, s.manager, s.balancesRequest(), func(ctx context.Context) ([]domain.WalletBalance, error) {
		return s.client.WalletBalances(ctx, s.network)
	})
}
