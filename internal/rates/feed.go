package rates

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FeedConfig configures websocket feed behavior.
type FeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Feed streams fiat rates over a websocket into a Table, reconnecting with
// capped backoff and resubscribing its symbol set after every reconnect.
type Feed struct {
	endpoint string
	symbols  []string
	table    *Table
	config   FeedConfig
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// subscribeMsg is the subscription frame sent after every connect.
type subscribeMsg struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// rateMsg is one rate update from the feed.
type rateMsg struct {
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

// NewFeed creates a Feed updating table with rates for the given symbols.
func NewFeed(endpoint string, symbols []string, table *Table, config *FeedConfig, logger *zap.Logger) *Feed {
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		endpoint: endpoint,
		symbols:  symbols,
		table:    table,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start connects and launches the read and ping loops. It returns once the
// first connection is established.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.connect(ctx); err != nil {
		return err
	}

	f.wg.Add(1)
	go f.readLoop(ctx)

	f.wg.Add(1)
	go f.pingLoop()

	return nil
}

// Close shuts the feed down and waits for its goroutines.
func (f *Feed) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
}

func (f *Feed) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return err
	}

	sub := subscribeMsg{Op: "subscribe", Symbols: f.symbols}
	_ = conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return err
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	f.logger.Info("rate feed connected", zap.String("endpoint", f.endpoint), zap.Int("symbols", len(f.symbols)))
	return nil
}

func (f *Feed) readLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		_ = conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.logger.Warn("rate feed read failed, reconnecting", zap.Error(err))
			if !f.reconnect(ctx) {
				return
			}
			continue
		}

		var msg rateMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Debug("rate feed message skipped", zap.Error(err))
			continue
		}
		if msg.Symbol == "" || msg.Rate <= 0 {
			continue
		}
		f.table.Update(msg.Symbol, msg.Rate)
	}
}

// reconnect retries with capped exponential backoff until the feed is
// closed or the context ends. Returns false when shutting down.
func (f *Feed) reconnect(ctx context.Context) bool {
	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := f.connect(ctx); err != nil {
			delay *= 2
			if delay > f.config.MaxReconnectDelay {
				delay = f.config.MaxReconnectDelay
			}
			f.logger.Warn("rate feed reconnect failed", zap.Duration("next_delay", delay), zap.Error(err))
			continue
		}
		return true
	}
}

func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			f.connMu.Unlock()
			if conn == nil {
				continue
			}
			deadline := time.Now().Add(f.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.logger.Debug("rate feed ping failed", zap.Error(err))
			}
		}
	}
}
