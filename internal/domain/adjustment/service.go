// Package adjustment provides permission-gated balance overrides:
// single direct adjustments and bulk physical-count reconciliation.
package adjustment

import (
	"context"
	"fmt"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/settings"
	"epitrack/internal/core/tx"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/catalog"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// Service forces bucket balances to counted values through the ledger.
type Service struct {
	ledger    *ledger.Service
	catalog   catalog.Reader
	flags     settings.Provider
	txManager tx.Manager
}

// NewService creates a new adjustment service.
func NewService(ledgerSvc *ledger.Service, catalogReader catalog.Reader, flags settings.Provider, txManager tx.Manager) *Service {
	return &Service{
		ledger:    ledgerSvc,
		catalog:   catalogReader,
		flags:     flags,
		txManager: txManager,
	}
}

// Count is one physical count against a bucket.
type Count struct {
	Bucket   ledger.BucketKey `json:"bucket"`
	Quantity types.Quantity   `json:"quantity"`
}

// ReconcileResult aggregates a reconciliation run.
type ReconcileResult struct {
	// PositiveAdjustments counts buckets adjusted upward.
	PositiveAdjustments int `json:"positiveAdjustments"`
	// NegativeAdjustments counts buckets adjusted downward.
	NegativeAdjustments int `json:"negativeAdjustments"`
	// Skipped counts buckets whose counted quantity matched the book.
	Skipped int `json:"skipped"`
	// TotalVariance is the sum of absolute deltas in units.
	TotalVariance types.Quantity `json:"totalVariance"`
	// VarianceValue prices the variance at each item type's unit cost.
	VarianceValue types.Money `json:"varianceValue"`

	Entries []*ledger.Entry `json:"entries"`
}

// AdjustDirect forces one bucket to a counted quantity and emits a
// single corrective ADJUSTMENT entry. Rejected with
// NO_ADJUSTMENT_NEEDED when the count already matches the book.
func (s *Service) AdjustDirect(ctx context.Context, bucket ledger.BucketKey, newQuantity types.Quantity, actorID, reason string) (*ledger.Entry, error) {
	if err := s.authorize(ctx, actorID, reason); err != nil {
		return nil, err
	}
	if newQuantity.IsNegative() {
		return nil, apperror.NewValidation("counted quantity must be >= 0")
	}

	var entry *ledger.Entry
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.adjustOne(ctx, bucket, newQuantity, actorID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "direct adjustment applied",
		"bucket", bucket.String(),
		"new_quantity", newQuantity,
		"actor_id", actorID,
	)
	return entry, nil
}

// Reconcile applies counted quantities to many buckets, skipping keys
// whose delta is zero, and returns aggregate variance counts. The run
// is one atomic unit of work.
func (s *Service) Reconcile(ctx context.Context, counts []Count, actorID, reason string) (*ReconcileResult, error) {
	if err := s.authorize(ctx, actorID, reason); err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return nil, apperror.NewValidation("no counts to reconcile")
	}
	for i, c := range counts {
		if c.Quantity.IsNegative() {
			return nil, apperror.NewValidation(fmt.Sprintf("count %d: counted quantity must be >= 0", i))
		}
	}

	result := &ReconcileResult{VarianceValue: types.ZeroMoney()}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, c := range counts {
			entry, err := s.adjustOne(ctx, c.Bucket, c.Quantity, actorID, reason)
			if err != nil {
				if apperror.IsCode(err, apperror.CodeNoAdjustmentNeeded) {
					result.Skipped++
					continue
				}
				return err
			}

			if entry.Direction == ledger.DirectionCredit {
				result.PositiveAdjustments++
			} else {
				result.NegativeAdjustments++
			}
			result.TotalVariance += entry.Quantity
			result.Entries = append(result.Entries, entry)

			itemType, err := s.catalog.GetItemType(ctx, c.Bucket.ItemTypeID)
			if err != nil {
				return fmt.Errorf("value variance: %w", err)
			}
			lineValue := itemType.UnitCost.Mul(types.MoneyFromUnits(entry.Quantity.Int64()))
			result.VarianceValue = result.VarianceValue.Add(lineValue)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory reconciled",
		"adjusted", len(result.Entries),
		"skipped", result.Skipped,
		"total_variance", result.TotalVariance,
		"actor_id", actorID,
	)
	return result, nil
}

// authorize enforces the forced-adjustments switch and actor presence.
// A missing actor is rejected regardless of the switch.
func (s *Service) authorize(ctx context.Context, actorID, reason string) error {
	if actorID == "" {
		return apperror.NewValidation("actor_id is required")
	}
	if reason == "" {
		return apperror.NewValidation("reason is required")
	}
	// Read per operation so the switch stays refreshable at runtime.
	if !s.flags.IsEnabled(ctx, settings.SwitchAllowForcedAdjustments) {
		return apperror.NewPermissionDenied("forced adjustments are disabled")
	}
	return nil
}

func (s *Service) adjustOne(ctx context.Context, bucket ledger.BucketKey, newQuantity types.Quantity, actorID, reason string) (*ledger.Entry, error) {
	if err := s.ledger.LockBucket(ctx, bucket); err != nil {
		return nil, err
	}

	current, err := s.ledger.GetBalance(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	delta := newQuantity - current.Quantity
	if delta.IsZero() {
		return nil, apperror.NewNoAdjustmentNeeded(current.Quantity.Int64())
	}

	direction := ledger.DirectionCredit
	if delta.IsNegative() {
		direction = ledger.DirectionDebit
	}

	return s.ledger.Apply(ctx, ledger.MovementRequest{
		Bucket:    bucket,
		Kind:      ledger.KindAdjustment,
		Direction: direction,
		Quantity:  delta.Abs(),
		ActorID:   actorID,
		Reason:    reason,
	})
}
