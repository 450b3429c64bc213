package note

import (
	"context"
	"fmt"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/tx"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// Service provides the movement note lifecycle.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	txManager tx.Manager
}

// NewService creates a new movement note service.
func NewService(repo Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		txManager: txManager,
	}
}

// Create persists a new DRAFT note with its lines.
func (s *Service) Create(ctx context.Context, n *Note) error {
	if err := n.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, n); err != nil {
			return fmt.Errorf("create note: %w", err)
		}
		if err := s.repo.SaveLines(ctx, n.ID, n.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "movement note created", "id", n.ID, "type", n.Type)
	return nil
}

// GetByID loads a note with lines.
func (s *Service) GetByID(ctx context.Context, noteID id.ID) (*Note, error) {
	return s.repo.GetByID(ctx, noteID)
}

// List returns notes matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Note, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces a DRAFT note's header and lines.
func (s *Service) Update(ctx context.Context, n *Note) error {
	current, err := s.repo.GetByID(ctx, n.ID)
	if err != nil {
		return err
	}
	if err := current.CanModify(); err != nil {
		return err
	}
	if err := n.Validate(ctx); err != nil {
		return err
	}

	n.Touch()
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, n); err != nil {
			return fmt.Errorf("update note: %w", err)
		}
		if err := s.repo.SaveLines(ctx, n.ID, n.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
}

// Cancel flips a DRAFT note to CANCELLED. No ledger effect.
func (s *Service) Cancel(ctx context.Context, noteID id.ID) error {
	n, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		return err
	}
	if err := n.CanModify(); err != nil {
		return err
	}

	n.Status = StatusCancelled
	n.Touch()
	if err := s.repo.Update(ctx, n); err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	logger.Info(ctx, "movement note cancelled", "id", n.ID)
	return nil
}

// Conclude validates the note and atomically emits the ledger entries
// and balance updates for every line, then flips it to CONCLUDED.
//
// The whole conclusion is one unit of work: any per-line failure aborts
// the note with nothing applied. validateStock=false suppresses the
// insufficient-stock check on debiting lines.
func (s *Service) Conclude(ctx context.Context, noteID id.ID, actorID string, validateStock bool) ([]*ledger.Entry, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor_id is required")
	}

	var entries []*ledger.Entry
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.repo.GetByID(ctx, noteID)
		if err != nil {
			return err
		}
		if n.Status != StatusDraft {
			return apperror.NewInvalidState("movement note", n.ID.String(), string(n.Status), string(StatusDraft))
		}
		if len(n.Lines) == 0 {
			return apperror.NewEmptyNote(n.ID)
		}
		if err := n.Validate(ctx); err != nil {
			return err
		}

		reqs, err := s.planMovements(n, actorID, validateStock)
		if err != nil {
			return err
		}

		entries, err = s.ledger.ApplyBatch(ctx, reqs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range n.Lines {
			n.Lines[i].ProcessedQuantity = n.Lines[i].RequestedQuantity
		}
		n.Status = StatusConcluded
		n.ConcludedAt = &now
		n.ConcludedBy = actorID
		n.Touch()

		if err := s.repo.Update(ctx, n); err != nil {
			return fmt.Errorf("update note: %w", err)
		}
		if err := s.repo.SaveLines(ctx, n.ID, n.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement note concluded",
		"id", noteID,
		"entries", len(entries),
		"actor_id", actorID,
	)
	return entries, nil
}

// planMovements maps note lines onto ledger movement requests.
func (s *Service) planMovements(n *Note, actorID string, validateStock bool) ([]ledger.MovementRequest, error) {
	noteID := n.ID
	links := ledger.Links{NoteID: &noteID}

	var reqs []ledger.MovementRequest
	for _, line := range n.Lines {
		switch n.Type {
		case TypeIntake:
			reqs = append(reqs, ledger.MovementRequest{
				Bucket: ledger.BucketKey{
					LocationID: *n.DestLocationID,
					ItemTypeID: line.ItemTypeID,
					Status:     line.StockStatus,
				},
				Kind:     ledger.KindIntake,
				Quantity: line.RequestedQuantity,
				ActorID:  actorID,
				Links:    links,
			})

		case TypeDisposal:
			reqs = append(reqs, ledger.MovementRequest{
				Bucket: ledger.BucketKey{
					LocationID: *n.SourceLocationID,
					ItemTypeID: line.ItemTypeID,
					Status:     line.StockStatus,
				},
				Kind:           ledger.KindDisposal,
				Quantity:       line.RequestedQuantity,
				ActorID:        actorID,
				Links:          links,
				SkipStockCheck: !validateStock,
			})

		case TypeTransfer:
			// Debit the source leg before crediting the destination;
			// both land in the same atomic batch.
			reqs = append(reqs,
				ledger.MovementRequest{
					Bucket: ledger.BucketKey{
						LocationID: *n.SourceLocationID,
						ItemTypeID: line.ItemTypeID,
						Status:     line.StockStatus,
					},
					Kind:           ledger.KindTransferOut,
					Quantity:       line.RequestedQuantity,
					ActorID:        actorID,
					Links:          links,
					SkipStockCheck: !validateStock,
				},
				ledger.MovementRequest{
					Bucket: ledger.BucketKey{
						LocationID: *n.DestLocationID,
						ItemTypeID: line.ItemTypeID,
						Status:     line.StockStatus,
					},
					Kind:     ledger.KindTransferIn,
					Quantity: line.RequestedQuantity,
					ActorID:  actorID,
					Links:    links,
				},
			)

		case TypeAdjustment:
			reqs = append(reqs, ledger.MovementRequest{
				Bucket: ledger.BucketKey{
					LocationID: *n.SourceLocationID,
					ItemTypeID: line.ItemTypeID,
					Status:     line.StockStatus,
				},
				Kind:      ledger.KindAdjustment,
				Direction: line.Direction,
				Quantity:  line.RequestedQuantity,
				ActorID:   actorID,
				Links:     links,
			})

		default:
			return nil, apperror.NewValidation("unknown note type").WithDetail("type", string(n.Type))
		}
	}
	return reqs, nil
}
