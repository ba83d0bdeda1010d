// Package resource tracks the VRAM budget consumed by models loaded on
// this machine. Admission happens before a local model is used; eviction
// is reference-counting by "still assigned to a conversation", not LRU.
package resource

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

// Unloader issues the unload side-effect for an evicted model.
type Unloader interface {
	Unload(ctx context.Context, name string) error
}

// UnloadFunc adapts a func to the Unloader interface.
type UnloadFunc func(ctx context.Context, name string) error

func (f UnloadFunc) Unload(ctx context.Context, name string) error {
	return f(ctx, name)
}

// Manager holds the ledger of reserved capacity. Costs are fractional
// gigabytes; decimal arithmetic keeps repeated reserve/release cycles
// from drifting.
type Manager struct {
	mu       sync.Mutex
	capacity decimal.Decimal
	ledger   map[string]decimal.Decimal
	unloader Unloader
}

func NewManager(capacityGB float64, unloader Unloader) *Manager {
	return &Manager{
		capacity: decimal.NewFromFloat(capacityGB),
		ledger:   make(map[string]decimal.Decimal),
		unloader: unloader,
	}
}

// Admit reserves costGB for the named model. Returns true when the
// reservation fits (or already exists); a zero cost always fits and
// reserves nothing. The ledger total never exceeds capacity.
func (m *Manager) Admit(name string, costGB float64) bool {
	if costGB <= 0 {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ledger[name]; ok {
		return true
	}

	cost := decimal.NewFromFloat(costGB)
	if m.total().Add(cost).GreaterThan(m.capacity) {
		return false
	}
	m.ledger[name] = cost
	return true
}

// EvictUnused drops every reservation whose model is not in active,
// issuing an unload call for each. Unload failures are logged and the
// reservation is released anyway so a wedged backend cannot pin the
// budget forever.
func (m *Manager) EvictUnused(ctx context.Context, active map[string]struct{}) {
	m.mu.Lock()
	var evicted []string
	for name := range m.ledger {
		if _, ok := active[name]; !ok {
			delete(m.ledger, name)
			evicted = append(evicted, name)
		}
	}
	m.mu.Unlock()

	for _, name := range evicted {
		slog.Info("evicting unused model", "model", name)
		if m.unloader == nil {
			continue
		}
		if err := m.unloader.Unload(ctx, name); err != nil {
			slog.Error("unload evicted model", "model", name, "error", err)
		}
	}
}

// Reserved returns the current ledger total in GB.
func (m *Manager) Reserved() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, _ := m.total().Float64()
	return f
}

// Loaded reports whether the named model holds a reservation.
func (m *Manager) Loaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ledger[name]
	return ok
}

func (m *Manager) total() decimal.Decimal {
	total := decimal.Zero
	for _, cost := range m.ledger {
		total = total.Add(cost)
	}
	return total
}
