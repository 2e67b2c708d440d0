package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// PINLength is the number of digits required to authorize a transfer.
const PINLength = 4

// Gate errors.
var (
	// ErrPINIncomplete is returned when the PIN is not exactly 4 digits.
	ErrPINIncomplete = errors.New("pin incomplete")

	// ErrSendInFlight is returned when a transfer is already running;
	// the collaborator is not invoked a second time.
	ErrSendInFlight = errors.New("transfer already in progress")
)

// SendRequest carries everything the transfer collaborator needs.
type SendRequest struct {
	Chain       string
	Network     string
	FromAddress string
	ToAddress   string
	Amount      float64
	PIN         string
}

// Sender performs the on-chain transfer and returns the transaction hash.
// Signing and broadcast live outside this module.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (string, error)
}

// Gate collects a PIN through a keypad abstraction and, once satisfied,
// invokes the transfer collaborator with normalized addresses.
type Gate struct {
	sender Sender
	logger *zap.Logger

	mu     sync.Mutex
	digits []byte

	sending atomic.Bool
}

// NewGate creates a Gate around the given sender.
func NewGate(sender Sender, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{sender: sender, logger: logger}
}

// Press appends one keypad digit. It reports whether the PIN is complete.
// Non-digits and presses past the PIN length are ignored.
func (g *Gate) Press(digit byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if digit >= '0' && digit <= '9' && len(g.digits) < PINLength {
		g.digits = append(g.digits, digit)
	}
	return len(g.digits) == PINLength
}

// Backspace removes the last entered digit.
func (g *Gate) Backspace() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.digits) > 0 {
		g.digits = g.digits[:len(g.digits)-1]
	}
}

// Reset clears all entered digits.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.digits = nil
}

// PIN returns the digits entered so far.
func (g *Gate) PIN() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return string(g.digits)
}

// Send authorizes and performs the transfer. Both addresses are normalized
// immediately before the call; a normalization failure aborts without any
// network activity. Only one send may run at a time.
func (g *Gate) Send(ctx context.Context, req SendRequest) (string, error) {
	if len(req.PIN) != PINLength {
		return "", ErrPINIncomplete
	}
	for i := 0; i < len(req.PIN); i++ {
		if req.PIN[i] < '0' || req.PIN[i] > '9' {
			return "", ErrPINIncomplete
		}
	}

	if !g.sending.CompareAndSwap(false, true) {
		return "", ErrSendInFlight
	}
	defer g.sending.Store(false)

	from, err := NormalizeAddress(req.Chain, req.FromAddress)
	if err != nil {
		return "", fmt.Errorf("sender address: %w", err)
	}
	to, err := NormalizeAddress(req.Chain, req.ToAddress)
	if err != nil {
		return "", fmt.Errorf("recipient address: %w", err)
	}
	req.FromAddress, req.ToAddress = from, to

	txHash, err := g.sender.Send(ctx, req)
	if err != nil {
		return "", err
	}
	g.logger.Info("transfer sent",
		zap.String("chain", req.Chain),
		zap.String("tx_hash", txHash))
	return txHash, nil
}

// Sending reports whether a transfer is currently in flight.
func (g *Gate) Sending() bool {
	return g.sending.Load()
}
