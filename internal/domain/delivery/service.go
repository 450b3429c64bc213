package delivery

import (
	"context"
	"fmt"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/tx"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/catalog"
	"epitrack/internal/domain/ficha"
	"epitrack/internal/domain/ledger"
	"epitrack/pkg/logger"
)

// Service provides the delivery lifecycle: creation with unit
// expansion, signature, and cancellation of unsigned deliveries.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   catalog.Reader
	fichas    ficha.Directory
	txManager tx.Manager
}

// NewService creates a new delivery service.
func NewService(repo Repository, ledgerSvc *ledger.Service, catalogReader catalog.Reader, fichas ficha.Directory, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		catalog:   catalogReader,
		fichas:    fichas,
		txManager: txManager,
	}
}

// CreateLine is one requested item-type position.
type CreateLine struct {
	ItemTypeID id.ID          `json:"itemTypeId"`
	Quantity   types.Quantity `json:"quantity"`
}

// CreateInput carries everything needed to create a delivery.
type CreateInput struct {
	FichaID            id.ID        `json:"fichaId"`
	LocationID         id.ID        `json:"locationId"`
	ResponsibleActorID string       `json:"responsibleActorId"`
	DeliveryDate       time.Time    `json:"deliveryDate"`
	Lines              []CreateLine `json:"lines"`
}

// Create expands requested quantities into individually tracked units
// and debits available stock one ISSUE entry per physical unit.
// Creation, expansion and stock debit are one atomic unit of work: any
// failure rolls the entire delivery back.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Delivery, error) {
	if input.DeliveryDate.IsZero() {
		input.DeliveryDate = time.Now().UTC()
	}
	if len(input.Lines) == 0 {
		return nil, apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for i, line := range input.Lines {
		if id.IsNil(line.ItemTypeID) {
			return nil, apperror.NewValidation("item type is required").WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return nil, apperror.NewValidation("quantity must be positive").WithDetail("lineNo", i+1)
		}
	}

	d := &Delivery{
		ID:                 id.New(),
		FichaID:            input.FichaID,
		LocationID:         input.LocationID,
		ResponsibleActorID: input.ResponsibleActorID,
		DeliveryDate:       input.DeliveryDate,
		Status:             StatusPendingSignature,
		CreatedAt:          time.Now().UTC(),
		UpdatedAt:          time.Now().UTC(),
		Version:            1,
	}
	if err := d.Validate(ctx); err != nil {
		return nil, err
	}

	record, err := s.fichas.GetRecord(ctx, input.FichaID)
	if err != nil {
		return nil, err
	}
	if record.Status != ficha.StatusActive {
		return nil, apperror.NewInvalidState("ficha", record.ID.String(), string(record.Status), string(ficha.StatusActive))
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		units, reqs, err := s.expandLines(ctx, d, input.Lines)
		if err != nil {
			return err
		}

		entries, err := s.ledger.ApplyBatch(ctx, reqs)
		if err != nil {
			return err
		}
		for i := range units {
			units[i].IssueEntryID = entries[i].ID
		}
		d.Units = units

		if err := s.repo.Create(ctx, d); err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		if err := s.repo.SaveUnits(ctx, d.ID, d.Units); err != nil {
			return fmt.Errorf("save units: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery created",
		"id", d.ID,
		"ficha_id", d.FichaID,
		"units", len(d.Units),
	)
	return d, nil
}

// expandLines turns requested quantities into units and the per-unit
// ISSUE movements, after validating stock per line.
func (s *Service) expandLines(ctx context.Context, d *Delivery, lines []CreateLine) ([]Unit, []ledger.MovementRequest, error) {
	var units []Unit
	var reqs []ledger.MovementRequest

	for _, line := range lines {
		itemType, err := s.catalog.GetItemType(ctx, line.ItemTypeID)
		if err != nil {
			return nil, nil, err
		}
		if !itemType.Active {
			return nil, nil, apperror.NewValidation("item type is discontinued").
				WithDetail("item_type_id", itemType.ID.String())
		}

		bucket := ledger.BucketKey{
			LocationID: d.LocationID,
			ItemTypeID: line.ItemTypeID,
			Status:     ledger.StatusAvailable,
		}

		// Upfront per-line availability check; the per-unit debits
		// below re-check under the same lock.
		if err := s.ledger.LockBucket(ctx, bucket); err != nil {
			return nil, nil, err
		}
		balance, err := s.ledger.GetBalance(ctx, bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("get balance: %w", err)
		}
		if balance.Quantity < line.Quantity {
			return nil, nil, apperror.NewInsufficientStock(
				line.ItemTypeID.String(),
				line.Quantity.Int64(),
				balance.Quantity.Int64(),
			).WithDetail("location_id", d.LocationID.String())
		}

		var deadline *time.Time
		if itemType.ShelfLifeDays != nil {
			t := d.DeliveryDate.AddDate(0, 0, *itemType.ShelfLifeDays)
			deadline = &t
		}

		// One unit and one ISSUE entry per physical item; a single
		// entry for N units would lose unit-level auditability.
		for n := types.Quantity(0); n < line.Quantity; n++ {
			unit := Unit{
				ID:               id.New(),
				DeliveryID:       d.ID,
				ItemTypeID:       line.ItemTypeID,
				SourceLocationID: d.LocationID,
				Quantity:         1,
				Status:           UnitWithWorker,
				ReturnDeadline:   deadline,
			}
			units = append(units, unit)

			deliveryID := d.ID
			unitID := unit.ID
			reqs = append(reqs, ledger.MovementRequest{
				Bucket:   bucket,
				Kind:     ledger.KindIssue,
				Quantity: 1,
				ActorID:  d.ResponsibleActorID,
				Links: ledger.Links{
					DeliveryID:     &deliveryID,
					DeliveryUnitID: &unitID,
				},
			})
		}
	}

	return units, reqs, nil
}

// Sign acknowledges the delivery, making returns possible.
func (s *Service) Sign(ctx context.Context, deliveryID id.ID, actorID string) (*Delivery, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor_id is required")
	}

	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusPendingSignature {
		return nil, apperror.NewInvalidState("delivery", d.ID.String(), string(d.Status), string(StatusPendingSignature))
	}

	now := time.Now().UTC()
	d.Status = StatusSigned
	d.SignedAt = &now
	d.SignedBy = actorID
	d.Touch()

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update delivery: %w", err)
	}

	logger.Info(ctx, "delivery signed", "id", d.ID, "actor_id", actorID)
	return d, nil
}

// CancelPending cancels an unsigned delivery, reversing every unit's
// ISSUE entry so the stock flows back to its source bucket. Signed
// deliveries cannot be cancelled; their units come back via returns.
func (s *Service) CancelPending(ctx context.Context, deliveryID id.ID, actorID string) (*Delivery, error) {
	if actorID == "" {
		return nil, apperror.NewValidation("actor_id is required")
	}

	var d *Delivery
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.repo.GetByID(ctx, deliveryID)
		if err != nil {
			return err
		}
		if d.Status != StatusPendingSignature {
			return apperror.NewInvalidState("delivery", d.ID.String(), string(d.Status), string(StatusPendingSignature))
		}

		for i := range d.Units {
			if _, err := s.ledger.Reverse(ctx, d.Units[i].IssueEntryID, actorID); err != nil {
				return err
			}
		}

		d.Status = StatusCancelled
		d.Touch()
		if err := s.repo.Update(ctx, d); err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery cancelled", "id", d.ID, "units_reversed", len(d.Units))
	return d, nil
}

// GetByID loads a delivery with units.
func (s *Service) GetByID(ctx context.Context, deliveryID id.ID) (*Delivery, error) {
	return s.repo.GetByID(ctx, deliveryID)
}

// List returns deliveries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	return s.repo.List(ctx, filter)
}

// Summary returns the computed return projection for a delivery.
func (s *Service) Summary(ctx context.Context, deliveryID id.ID) (*ReturnSummary, error) {
	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	summary := d.Summarize()
	return &summary, nil
}
