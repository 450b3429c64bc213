// Package devolution processes returns of delivered PPE units: single
// and batch processing, condition-based stock routing, and cancellation
// within a grace window.
package devolution

import (
	"context"
	"fmt"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/tx"
	"epitrack/internal/domain/delivery"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// CancellationWindow is how long after a return it may still be undone.
const CancellationWindow = 72 * time.Hour

// Item is one unit coming back, with its declared condition.
type Item struct {
	UnitID    id.ID                    `json:"unitId"`
	Condition delivery.ReturnCondition `json:"condition"`
	Reason    string                   `json:"reason,omitempty"`
}

// ItemError pairs a failed batch item with its error.
type ItemError struct {
	UnitID id.ID `json:"unitId"`
	Err    error `json:"error"`
}

// BatchResult aggregates a best-effort batch run.
// A non-empty Errors list with processed items is a normal outcome:
// batch returns are explicitly not atomic.
type BatchResult struct {
	Processed []id.ID     `json:"processed"`
	Errors    []ItemError `json:"errors"`
}

// Service processes unit returns against signed deliveries.
type Service struct {
	deliveries delivery.Repository
	ledger     *ledger.Service
	txManager  tx.SavepointManager
}

// NewService creates a new return processing service.
func NewService(deliveries delivery.Repository, ledgerSvc *ledger.Service, txManager tx.SavepointManager) *Service {
	return &Service{
		deliveries: deliveries,
		ledger:     ledgerSvc,
		txManager:  txManager,
	}
}

// Process returns a set of units in one atomic unit of work: the first
// per-item failure aborts the whole call with nothing applied.
//
// The delivery must be SIGNED. GOOD units credit the AVAILABLE bucket,
// DAMAGED units are quarantined in AWAITING_INSPECTION, LOST units are
// written off with no stock credit.
func (s *Service) Process(ctx context.Context, deliveryID id.ID, items []Item, actorID string) ([]*ledger.Entry, error) {
	if err := validateItems(items, actorID); err != nil {
		return nil, err
	}

	var entries []*ledger.Entry
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.loadSigned(ctx, deliveryID)
		if err != nil {
			return err
		}
		for _, item := range items {
			entry, err := s.processItem(ctx, d, item, actorID)
			if err != nil {
				return err
			}
			if entry != nil {
				entries = append(entries, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return processed",
		"delivery_id", deliveryID,
		"units", len(items),
		"actor_id", actorID,
	)
	return entries, nil
}

// ProcessBatch returns units best-effort: each item runs in its own
// savepoint, failures are collected and the remaining items continue.
// Callers must not treat a nil error as "all items processed".
func (s *Service) ProcessBatch(ctx context.Context, deliveryID id.ID, items []Item, actorID string) (*BatchResult, error) {
	if err := validateItems(items, actorID); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.loadSigned(ctx, deliveryID)
		if err != nil {
			return err
		}

		for _, item := range items {
			item := item
			err := s.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
				_, err := s.processItem(ctx, d, item, actorID)
				return err
			})
			if err != nil {
				result.Errors = append(result.Errors, ItemError{UnitID: item.UnitID, Err: err})
				// The savepoint rolled the item back; reload so later
				// items see the committed unit states.
				if d, err = s.loadSigned(ctx, deliveryID); err != nil {
					return err
				}
				continue
			}
			result.Processed = append(result.Processed, item.UnitID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch return processed",
		"delivery_id", deliveryID,
		"processed", len(result.Processed),
		"failed", len(result.Errors),
	)
	return result, nil
}

// CancelReturn undoes returns recorded within the grace window:
// units revert to WITH_WORKER and their credit entries are reversed.
func (s *Service) CancelReturn(ctx context.Context, deliveryID id.ID, unitIDs []id.ID, reason, actorID string) error {
	if actorID == "" {
		return apperror.NewValidation("actor_id is required")
	}
	if reason == "" {
		return apperror.NewValidation("reason is required")
	}
	if len(unitIDs) == 0 {
		return apperror.NewValidation("no units to cancel")
	}

	now := time.Now().UTC()
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.deliveries.GetByID(ctx, deliveryID)
		if err != nil {
			return err
		}

		for _, unitID := range unitIDs {
			unit := d.UnitByID(unitID)
			if unit == nil {
				return apperror.NewNotFound("delivery unit", unitID)
			}
			if unit.Status != delivery.UnitReturned {
				return apperror.NewInvalidItemState(unitID, string(unit.Status), string(delivery.UnitReturned))
			}
			if unit.ReturnedAt == nil || now.Sub(*unit.ReturnedAt) > CancellationWindow {
				returnedAt := ""
				if unit.ReturnedAt != nil {
					returnedAt = unit.ReturnedAt.Format(time.RFC3339)
				}
				return apperror.NewCancellationWindowExpired(unitID, returnedAt, int(CancellationWindow.Hours()))
			}

			// LOST returns credited nothing; only the state flips back.
			if unit.ReturnEntryID != nil {
				if _, err := s.ledger.Reverse(ctx, *unit.ReturnEntryID, actorID); err != nil {
					return err
				}
			}

			unit.Status = delivery.UnitWithWorker
			unit.ReturnedAt = nil
			unit.ReturnCondition = nil
			unit.ReturnReason = ""
			unit.ReturnEntryID = nil
			if err := s.deliveries.UpdateUnit(ctx, unit); err != nil {
				return fmt.Errorf("update unit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "return cancelled",
		"delivery_id", deliveryID,
		"units", len(unitIDs),
		"actor_id", actorID,
	)
	return nil
}

// loadSigned loads a delivery and enforces the signed precondition:
// returns against provisional deliveries are always rejected.
func (s *Service) loadSigned(ctx context.Context, deliveryID id.ID) (*delivery.Delivery, error) {
	d, err := s.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.Status != delivery.StatusSigned {
		return nil, apperror.NewDeliveryNotSigned(d.ID, string(d.Status))
	}
	return d, nil
}

// processItem transitions one unit to RETURNED and credits stock per
// its condition. Returns the credit entry, or nil for LOST write-offs.
func (s *Service) processItem(ctx context.Context, d *delivery.Delivery, item Item, actorID string) (*ledger.Entry, error) {
	unit := d.UnitByID(item.UnitID)
	if unit == nil {
		return nil, apperror.NewNotFound("delivery unit", item.UnitID)
	}
	if unit.Status != delivery.UnitWithWorker {
		return nil, apperror.NewInvalidItemState(item.UnitID, string(unit.Status), string(delivery.UnitWithWorker))
	}

	now := time.Now().UTC()
	condition := item.Condition
	unit.Status = delivery.UnitReturned
	unit.ReturnedAt = &now
	unit.ReturnCondition = &condition
	unit.ReturnReason = item.Reason

	var entry *ledger.Entry
	if condition != delivery.ConditionLost {
		bucket := unit.SourceBucket()
		if condition == delivery.ConditionDamaged {
			bucket.Status = ledger.StatusAwaitingInspection
		}

		deliveryID := d.ID
		unitID := unit.ID
		var err error
		entry, err = s.ledger.Apply(ctx, ledger.MovementRequest{
			Bucket:   bucket,
			Kind:     ledger.KindReturn,
			Quantity: 1,
			ActorID:  actorID,
			Reason:   item.Reason,
			Links: ledger.Links{
				DeliveryID:     &deliveryID,
				DeliveryUnitID: &unitID,
			},
		})
		if err != nil {
			return nil, err
		}
		unit.ReturnEntryID = &entry.ID
	}

	if err := s.deliveries.UpdateUnit(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit: %w", err)
	}
	return entry, nil
}

func validateItems(items []Item, actorID string) error {
	if actorID == "" {
		return apperror.NewValidation("actor_id is required")
	}
	if len(items) == 0 {
		return apperror.NewValidation("no items to return")
	}
	seen := make(map[id.ID]struct{}, len(items))
	for i, item := range items {
		if !delivery.ValidReturnCondition(item.Condition) {
			return apperror.NewValidation(fmt.Sprintf("item %d: unknown condition %q", i, item.Condition))
		}
		if _, dup := seen[item.UnitID]; dup {
			return apperror.NewValidation(fmt.Sprintf("item %d: duplicate unit", i)).
				WithDetail("unit_id", item.UnitID.String())
		}
		seen[item.UnitID] = struct{}{}
	}
	return nil
}
