package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/delivery"
)

const (
	deliveriesTable    = "deliveries"
	deliveryUnitsTable = "delivery_units"
)

var deliveryColumns = []string{
	"id", "ficha_id", "location_id", "responsible_actor_id",
	"delivery_date", "status",
	"signed_at", "signed_by",
	"created_at", "updated_at", "version",
}

var deliveryUnitColumns = []string{
	"id", "delivery_id", "item_type_id", "source_location_id",
	"quantity", "status", "return_deadline", "issue_entry_id",
	"returned_at", "return_condition", "return_reason", "return_entry_id",
}

// Compile-time check that DeliveryRepo implements delivery.Repository.
var _ delivery.Repository = (*DeliveryRepo)(nil)

// DeliveryRepo implements delivery.Repository on PostgreSQL.
type DeliveryRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewDeliveryRepo creates a new delivery repository.
func NewDeliveryRepo(txm *TxManager) *DeliveryRepo {
	return &DeliveryRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new delivery header.
func (r *DeliveryRepo) Create(ctx context.Context, d *delivery.Delivery) error {
	q := r.builder.Insert(deliveriesTable).
		Columns(deliveryColumns...).
		Values(
			d.ID, d.FichaID, d.LocationID, d.ResponsibleActorID,
			d.DeliveryDate, d.Status,
			d.SignedAt, d.SignedBy,
			d.CreatedAt, d.UpdatedAt, d.Version,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// Update persists header changes with an optimistic version guard.
func (r *DeliveryRepo) Update(ctx context.Context, d *delivery.Delivery) error {
	q := r.builder.Update(deliveriesTable).
		Set("status", d.Status).
		Set("signed_at", d.SignedAt).
		Set("signed_by", d.SignedBy).
		Set("updated_at", d.UpdatedAt).
		Set("version", d.Version).
		Where(squirrel.Eq{"id": d.ID}).
		Where(squirrel.Lt{"version": d.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, d.ID); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("delivery", d.ID)
	}
	return nil
}

// SaveUnits inserts the delivery's units.
func (r *DeliveryRepo) SaveUnits(ctx context.Context, deliveryID id.ID, units []delivery.Unit) error {
	if len(units) == 0 {
		return nil
	}

	q := r.builder.Insert(deliveryUnitsTable).Columns(deliveryUnitColumns...)
	for _, u := range units {
		q = q.Values(
			u.ID, deliveryID, u.ItemTypeID, u.SourceLocationID,
			u.Quantity, u.Status, u.ReturnDeadline, u.IssueEntryID,
			u.ReturnedAt, u.ReturnCondition, u.ReturnReason, u.ReturnEntryID,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert units: %w", err)
	}
	return nil
}

// UpdateUnit persists one unit's state transition.
func (r *DeliveryRepo) UpdateUnit(ctx context.Context, u *delivery.Unit) error {
	q := r.builder.Update(deliveryUnitsTable).
		Set("status", u.Status).
		Set("returned_at", u.ReturnedAt).
		Set("return_condition", u.ReturnCondition).
		Set("return_reason", u.ReturnReason).
		Set("return_entry_id", u.ReturnEntryID).
		Where(squirrel.Eq{"id": u.ID, "delivery_id": u.DeliveryID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("delivery unit", u.ID)
	}
	return nil
}

// GetByID loads a delivery with its units.
func (r *DeliveryRepo) GetByID(ctx context.Context, deliveryID id.ID) (*delivery.Delivery, error) {
	q := r.builder.Select(deliveryColumns...).
		From(deliveriesTable).
		Where(squirrel.Eq{"id": deliveryID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var d delivery.Delivery
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("delivery", deliveryID)
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}

	units, err := r.getUnits(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	d.Units = units
	return &d, nil
}

// List returns deliveries matching the filter, newest first.
// Headers only; units are loaded per delivery via GetByID.
func (r *DeliveryRepo) List(ctx context.Context, filter delivery.ListFilter) ([]delivery.Delivery, error) {
	q := r.builder.Select(deliveryColumns...).From(deliveriesTable)

	if filter.FichaID != nil {
		q = q.Where(squirrel.Eq{"ficha_id": *filter.FichaID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"delivery_date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"delivery_date": *filter.ToDate})
	}
	q = q.OrderBy("delivery_date DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var deliveries []delivery.Delivery
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &deliveries, sql, args...); err != nil {
		return nil, fmt.Errorf("select deliveries: %w", err)
	}
	return deliveries, nil
}

func (r *DeliveryRepo) getUnits(ctx context.Context, deliveryID id.ID) ([]delivery.Unit, error) {
	q := r.builder.Select(deliveryUnitColumns...).
		From(deliveryUnitsTable).
		Where(squirrel.Eq{"delivery_id": deliveryID}).
		OrderBy("id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var units []delivery.Unit
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &units, sql, args...); err != nil {
		return nil, fmt.Errorf("select units: %w", err)
	}
	return units, nil
}
