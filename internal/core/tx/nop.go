package tx

import (
	"context"
)

// NopManager runs functions directly without any transaction.
// Use in unit tests with in-memory repositories; atomicity is then the
// test's concern, not the manager's.
type NopManager struct{}

// NewNopManager creates a pass-through manager.
func NewNopManager() *NopManager {
	return &NopManager{}
}

func (NopManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (NopManager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (NopManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ Manager          = (*NopManager)(nil)
	_ SavepointManager = (*NopManager)(nil)
	_ ReadOnlyManager  = (*NopManager)(nil)
)
