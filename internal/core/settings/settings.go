// Package settings exposes the process-wide operational switches read
// by the inventory core.
package settings

import (
	"context"
	"sync"
)

// Switch names (constants for type safety)
const (
	// SwitchAllowNegativeStock lets debiting movements drive a balance
	// below zero instead of failing with INSUFFICIENT_STOCK.
	SwitchAllowNegativeStock = "allow_negative_stock"

	// SwitchAllowForcedAdjustments gates direct balance adjustments and
	// inventory reconciliation.
	SwitchAllowForcedAdjustments = "allow_forced_adjustments"
)

// Provider provides switch evaluation.
// Abstraction allows different backends: in-memory, database-backed
// with cache invalidation, etc. Services must consult the provider at
// the start of each operation rather than caching values themselves,
// so switches stay refreshable without a restart.
type Provider interface {
	// IsEnabled checks if the named switch is currently on.
	IsEnabled(ctx context.Context, name string) bool
}

// InMemory is a simple in-memory switch provider.
// Suitable for tests and single-process deployments.
type InMemory struct {
	mu       sync.RWMutex
	switches map[string]bool
}

// NewInMemory creates an in-memory provider with all switches off.
func NewInMemory() *InMemory {
	return &InMemory{
		switches: make(map[string]bool),
	}
}

func (p *InMemory) IsEnabled(ctx context.Context, name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.switches[name]
}

// Set flips a switch (admin/tests).
func (p *InMemory) Set(name string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.switches[name] = enabled
}

var _ Provider = (*InMemory)(nil)
