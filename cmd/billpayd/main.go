// Package main runs the bill-payment daemon: a REST surface over purchase
// sessions, the catalog and wallet read layer, background balance polling,
// and the reconciliation view of the local attempt ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"crypto-billpay/internal/api"
	"crypto-billpay/internal/auth"
	"crypto-billpay/internal/cache"
	"crypto-billpay/internal/catalog"
	"crypto-billpay/internal/config"
	"crypto-billpay/internal/ledger"
	ledgermem "crypto-billpay/internal/ledger/memory"
	"crypto-billpay/internal/ledger/migrations"
	ledgerpg "crypto-billpay/internal/ledger/postgres"
	"crypto-billpay/internal/observability"
	"crypto-billpay/internal/pricing"
	"crypto-billpay/internal/purchase"
	"crypto-billpay/internal/rates"
	"crypto-billpay/internal/transfer"
	"crypto-billpay/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Flags override the environment.
	listenAddr := flag.String("listen-addr", cfg.ListenAddr, "API listen address")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics address")
	apiURL := flag.String("api-url", cfg.APIBaseURL, "Billing backend base URL")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL DSN for the attempt ledger (empty = in-memory)")
	redisAddr := flag.String("redis-addr", cfg.RedisAddr, "Redis address for the durable cache (empty = memory only)")
	ratesURL := flag.String("rates-ws-url", cfg.RatesEndpoint, "Rate feed websocket URL (empty = neutral rates)")
	network := flag.String("network", cfg.Network, "Wallet network")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("")
	tokens := auth.NewMemoryTokenStore(cfg.APIToken)

	var backend cache.Backend
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis unreachable", zap.String("addr", *redisAddr), zap.Error(err))
		}
		defer rdb.Close()
		backend = cache.NewRedisBackend(rdb, "billpay:")
		logger.Info("durable cache enabled", zap.String("addr", *redisAddr))
	}

	manager := cache.NewManager(cache.ManagerOptions{
		Backend: backend,
		Tokens:  tokens,
		Logger:  logger,
		Metrics: metrics,
	})

	client := api.NewClient(*apiURL,
		api.WithTokenStore(tokens),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
		api.WithSessionExpiredHandler(func() {
			// Wipe the memory layer so nothing auth-gated is served stale.
			manager.Clear()
			logger.Warn("session expired, cache cleared")
		}),
	)

	rateTable := rates.NewTable()
	if *ratesURL != "" {
		feed := rates.NewFeed(*ratesURL, cfg.RatesSymbols, rateTable, nil, logger)
		if err := feed.Start(ctx); err != nil {
			logger.Fatal("rate feed connect", zap.String("endpoint", *ratesURL), zap.Error(err))
		}
		defer feed.Close()
	}

	attempts, cleanup, err := createAttemptStore(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("attempt ledger", zap.Error(err))
	}
	defer cleanup()

	catalogSvc := catalog.NewService(catalog.ServiceOptions{
		Client:  client,
		Manager: manager,
		Logger:  logger,
		Metrics: metrics,
	})
	walletSvc := wallet.NewService(wallet.ServiceOptions{
		Client:  client,
		Manager: manager,
		Rates:   rateTable,
		Network: *network,
		Logger:  logger,
	})
	quoter := pricing.NewQuoter(client)
	gate := transfer.NewGate(transfer.NewHTTPSender(cfg.SignerURL, nil), logger)
	submitter := purchase.NewSubmitter(purchase.SubmitterOptions{
		Client:  client,
		Manager: manager,
		Logger:  logger,
	})

	orch := purchase.NewOrchestrator(purchase.Options{
		Verifier:   catalogSvc,
		Tokens:     walletSvc,
		Quoter:     quoter,
		Gate:       gate,
		Submitter:  submitter,
		Attempts:   attempts,
		Recipients: cfg.Recipients,
		Network:    *network,
		Logger:     logger,
		Metrics:    metrics,
	})

	srv := &server{
		orch:      orch,
		catalog:   catalogSvc,
		wallet:    walletSvc,
		submitter: submitter,
		attempts:  attempts,
		logger:    logger,
	}

	// Balance polling pauses while no client reports activity and issues
	// one immediate refresh on resume.
	poller := cache.NewPoller(cache.PollerOptions{
		Interval: cfg.BalancePollInterval,
		Run:      walletSvc.RefreshBalances,
		Logger:   logger,
		Metrics:  metrics,
	})
	poller.Start(ctx)
	defer poller.Stop()
	srv.poller = poller

	go runPurgeTimer(ctx, manager, cfg.CachePurgeInterval, logger, metrics)
	go serveMetrics(*metricsAddr, logger)

	httpSrv := &http.Server{Addr: *listenAddr, Handler: srv.routes()}
	go func() {
		logger.Info("api listening", zap.String("addr", *listenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// createAttemptStore selects the ledger backend: postgres when a DSN is
// given, in-memory otherwise.
func createAttemptStore(ctx context.Context, dsn string) (ledger.AttemptStore, func(), error) {
	if dsn == "" {
		return ledgermem.NewAttemptStore(), func() {}, nil
	}

	pool, err := ledgerpg.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return ledgerpg.NewAttemptStore(pool), pool.Close, nil
}

// runPurgeTimer drops expired cache entries periodically so long-running
// processes do not accumulate dead keys.
func runPurgeTimer(ctx context.Context, manager *cache.Manager, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged := manager.Store().PurgeExpired()
			metrics.CacheEntries.Set(float64(manager.Store().Len()))
			if purged > 0 {
				logger.Debug("cache purged", zap.Int("entries", purged))
			}
		}
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", zap.Error(err))
	}
}
