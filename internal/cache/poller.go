package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"crypto-billpay/internal/observability"
)

// Poller runs a refresh function at a fixed interval while the host is
// active. Regaining activity triggers one immediate run instead of a
// backlog of missed ticks.
type Poller struct {
	interval time.Duration
	active   func() bool
	run      func(ctx context.Context)
	logger   *zap.Logger
	metrics  *observability.Metrics

	paused   atomic.Bool
	resume   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PollerOptions contains configuration for creating a Poller.
type PollerOptions struct {
	Interval time.Duration
	// Active reports whether the host wants polling right now (the
	// document-visibility predicate). Nil means always active.
	Active  func() bool
	Run     func(ctx context.Context)
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewPoller creates a Poller. Start must be called to begin polling.
func NewPoller(opts PollerOptions) *Poller {
	p := &Poller{
		interval: opts.Interval,
		active:   opts.Active,
		run:      opts.Run,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		resume:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Start launches the polling loop. It returns immediately.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(ctx)
	}()
}

// Pause suspends polling until Resume is called.
func (p *Poller) Pause() {
	p.paused.Store(true)
}

// Resume lifts a pause and triggers one immediate refresh.
func (p *Poller) Resume() {
	p.paused.Store(false)
	select {
	case p.resume <- struct{}{}:
	default:
	}
}

// Stop terminates the polling loop and waits for it to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			if !p.runnable() {
				if p.metrics != nil {
					p.metrics.PollTicksSkipped.Inc()
				}
				continue
			}
			p.run(ctx)
		case <-p.resume:
			if !p.runnable() {
				continue
			}
			if p.metrics != nil {
				p.metrics.PollResumes.Inc()
			}
			p.run(ctx)
		}
	}
}

func (p *Poller) runnable() bool {
	if p.paused.Load() {
		return false
	}
	return p.active == nil || p.active()
}
