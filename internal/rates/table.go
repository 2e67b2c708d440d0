// Package rates tracks fiat rates per token symbol.
package rates

import (
	"strings"
	"sync"
)

// Table is a concurrent symbol-to-rate map. Symbols are case-insensitive.
type Table struct {
	mu    sync.RWMutex
	rates map[string]float64
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{rates: make(map[string]float64)}
}

// Rate returns the rate for symbol and whether one is known.
func (t *Table) Rate(symbol string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rate, ok := t.rates[strings.ToUpper(symbol)]
	return rate, ok
}

// RateOrDefault returns the rate for symbol, or the neutral rate 1 when
// none is known.
func (t *Table) RateOrDefault(symbol string) float64 {
	if rate, ok := t.Rate(symbol); ok {
		return rate
	}
	return 1
}

// Update stores the rate for symbol.
func (t *Table) Update(symbol string, rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[strings.ToUpper(symbol)] = rate
}

// Snapshot returns a copy of all known rates.
func (t *Table) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.rates))
	for symbol, rate := range t.rates {
		out[symbol] = rate
	}
	return out
}
