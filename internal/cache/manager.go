package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"crypto-billpay/internal/auth"
	"crypto-billpay/internal/observability"
)

// ErrAuthRequired is returned when a read requires a session and none is
// established. The network is never hit in that case.
var ErrAuthRequired = errors.New("authorization required")

// DefaultRefreshDelay is the pause before a background revalidation fetch.
const DefaultRefreshDelay = 100 * time.Millisecond

type fetchFunc func(ctx context.Context) (interface{}, error)

type decodeFunc func(data []byte) (interface{}, error)

// inflightCall tracks one underlying fetch shared by coalesced callers.
type inflightCall struct {
	done  chan struct{}
	value interface{}
	err   error
}

// Manager wraps fetch functions with cache-first serving, in-flight request
// coalescing, background revalidation, and auth gating.
type Manager struct {
	store        *Store
	backend      Backend
	tokens       auth.TokenStore
	logger       *zap.Logger
	metrics      *observability.Metrics
	refreshDelay time.Duration

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	Store        *Store // defaults to a fresh empty store
	Backend      Backend
	Tokens       auth.TokenStore
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	RefreshDelay time.Duration
}

// NewManager creates a Manager.
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		store:        opts.Store,
		backend:      opts.Backend,
		tokens:       opts.Tokens,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		refreshDelay: opts.RefreshDelay,
		inflight:     make(map[string]*inflightCall),
	}
	if m.store == nil {
		m.store = NewStore()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.refreshDelay == 0 {
		m.refreshDelay = DefaultRefreshDelay
	}
	return m
}

// Request describes one cacheable read.
type Request struct {
	Key               string
	TTL               time.Duration
	RequireAuth       bool
	BackgroundRefresh bool
}

// Fetch returns the cached value for req.Key or runs fetch, caching the
// result. Concurrent callers for the same uncached key share one underlying
// fetch. Durable-layer hits are decoded into T.
func Fetch[T any](ctx context.Context, m *Manager, req Request, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := m.fetch(ctx, req,
		func(ctx context.Context) (interface{}, error) { return fetch(ctx) },
		func(data []byte) (interface{}, error) {
			var out T
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, err
			}
			return out, nil
		})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: key %q holds %T", req.Key, v)
	}
	return typed, nil
}

// Refresh revalidates req.Key out of band, for interval pollers. It is
// skipped while a fetch for the key is in flight; failures keep stale data.
func Refresh[T any](ctx context.Context, m *Manager, req Request, fetch func(ctx context.Context) (T, error)) {
	m.refresh(ctx, req, func(ctx context.Context) (interface{}, error) { return fetch(ctx) })
}

func (m *Manager) fetch(ctx context.Context, req Request, fetch fetchFunc, decode decodeFunc) (interface{}, error) {
	if v, ok := m.store.Get(req.Key); ok {
		m.countHit("memory")
		if req.BackgroundRefresh {
			m.scheduleRefresh(req, fetch)
		}
		return v, nil
	}
	m.countMiss("memory")

	if req.RequireAuth && m.token() == "" {
		return nil, ErrAuthRequired
	}

	// Join an identical in-flight fetch instead of issuing a duplicate.
	m.mu.Lock()
	if call, ok := m.inflight[req.Key]; ok {
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.CoalescedRequests.Inc()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-call.done:
			return call.value, call.err
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	m.inflight[req.Key] = call
	m.mu.Unlock()

	value, err := m.load(ctx, req, fetch, decode)

	call.value, call.err = value, err
	m.mu.Lock()
	delete(m.inflight, req.Key)
	m.mu.Unlock()
	close(call.done)

	return value, err
}

// load consults the durable layer, then the network. The fetching flag is
// raised before the durable read so a refresh timer firing anywhere in the
// window sees it; a refresh already holding the flag does not block the
// foreground path, which must return data either way.
func (m *Manager) load(ctx context.Context, req Request, fetch fetchFunc, decode decodeFunc) (interface{}, error) {
	if m.store.TrySetFetching(req.Key) {
		defer m.store.SetFetching(req.Key, false)
	}

	if m.backend != nil {
		data, ok, err := m.backend.Get(ctx, req.Key)
		switch {
		case err != nil:
			// Treated as a miss; the durable layer is best-effort.
			m.logger.Warn("durable cache read failed", zap.String("key", req.Key), zap.Error(err))
		case ok:
			v, derr := decode(data)
			if derr != nil {
				m.logger.Warn("durable cache entry undecodable", zap.String("key", req.Key), zap.Error(derr))
				break
			}
			m.countHit("durable")
			m.store.Set(req.Key, v, req.TTL)
			if req.BackgroundRefresh {
				m.scheduleRefresh(req, fetch)
			}
			return v, nil
		}
		m.countMiss("durable")
	}

	value, err := fetch(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.FetchErrors.WithLabelValues("foreground").Inc()
		}
		return nil, err
	}

	m.persist(ctx, req, value)
	return value, nil
}

// persist writes through to both layers. Durable-layer failures are logged
// and otherwise ignored.
func (m *Manager) persist(ctx context.Context, req Request, value interface{}) {
	m.store.Set(req.Key, value, req.TTL)
	if m.metrics != nil {
		m.metrics.CacheEntries.Set(float64(m.store.Len()))
	}
	if m.backend == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("durable cache encode failed", zap.String("key", req.Key), zap.Error(err))
		return
	}
	if err := m.backend.Set(ctx, req.Key, data, req.TTL); err != nil {
		m.logger.Warn("durable cache write failed", zap.String("key", req.Key), zap.Error(err))
	}
}

func (m *Manager) scheduleRefresh(req Request, fetch fetchFunc) {
	go func() {
		time.Sleep(m.refreshDelay)
		m.refresh(context.Background(), req, fetch)
	}()
}

// refresh revalidates req.Key. Skipped silently while no session exists for
// an auth-gated read (avoids the clear-refresh-401 loop) and while a fetch
// for the key is already in flight.
func (m *Manager) refresh(ctx context.Context, req Request, fetch fetchFunc) {
	if req.RequireAuth && m.token() == "" {
		return
	}
	if !m.store.TrySetFetching(req.Key) {
		return
	}
	defer m.store.SetFetching(req.Key, false)

	if m.metrics != nil {
		m.metrics.BackgroundRefreshes.Inc()
	}

	value, err := fetch(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.FetchErrors.WithLabelValues("background").Inc()
		}
		m.logger.Warn("background refresh failed", zap.String("key", req.Key), zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		// Consumer torn down while the fetch ran; drop the result.
		return
	}
	m.persist(ctx, req, value)
}

// Invalidate drops keys from both layers.
func (m *Manager) Invalidate(ctx context.Context, keys ...string) {
	m.store.Invalidate(keys...)
	if m.backend != nil {
		if err := m.backend.Delete(ctx, keys...); err != nil {
			m.logger.Warn("durable cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
		}
	}
}

// Clear wipes the in-memory layer. Used on logout.
func (m *Manager) Clear() {
	m.store.Clear()
}

// Store exposes the underlying store for direct reads and purge timers.
func (m *Manager) Store() *Store {
	return m.store
}

func (m *Manager) token() string {
	if m.tokens == nil {
		return ""
	}
	return m.tokens.Token()
}

func (m *Manager) countHit(layer string) {
	if m.metrics != nil {
		m.metrics.CacheHits.WithLabelValues(layer).Inc()
	}
}

func (m *Manager) countMiss(layer string) {
	if m.metrics != nil {
		m.metrics.CacheMisses.WithLabelValues(layer).Inc()
	}
}
