package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/ledger"
)

const (
	ledgerEntriesTable = "ledger_entries"
	stockBalancesTable = "stock_balances"
)

var entryColumns = []string{
	"id", "location_id", "item_type_id", "status",
	"kind", "direction",
	"quantity", "balance_before", "balance_after",
	"actor_id", "reason",
	"note_id", "delivery_id", "delivery_unit_id", "origin_entry_id",
	"created_at",
}

// Compile-time check that LedgerRepo implements ledger.Repository.
var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository on PostgreSQL.
type LedgerRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// LockBuckets pins balance rows for the rest of the transaction,
// creating zero rows for buckets that do not exist yet. Keys must
// arrive in canonical order; locks are taken one by one in that order
// so concurrent transactions cannot deadlock on each other.
func (r *LedgerRepo) LockBuckets(ctx context.Context, keys []ledger.BucketKey) error {
	querier := r.txm.GetQuerier(ctx)
	for _, key := range keys {
		_, err := querier.Exec(ctx, `
			INSERT INTO stock_balances (location_id, item_type_id, status, quantity, last_movement_at, updated_at)
			VALUES ($1, $2, $3, 0, now(), now())
			ON CONFLICT (location_id, item_type_id, status) DO NOTHING
		`, key.LocationID, key.ItemTypeID, key.Status)
		if err != nil {
			return fmt.Errorf("ensure bucket %s: %w", key, err)
		}

		_, err = querier.Exec(ctx, `
			SELECT quantity FROM stock_balances
			WHERE location_id = $1 AND item_type_id = $2 AND status = $3
			FOR UPDATE
		`, key.LocationID, key.ItemTypeID, key.Status)
		if err != nil {
			return fmt.Errorf("lock bucket %s: %w", key, err)
		}
	}
	return nil
}

// GetBalance returns a bucket's balance, zero if it was never moved into.
func (r *LedgerRepo) GetBalance(ctx context.Context, key ledger.BucketKey) (ledger.Balance, error) {
	var balance ledger.Balance

	q := r.builder.Select(
		"location_id", "item_type_id", "status",
		"quantity", "last_movement_at", "updated_at",
	).From(stockBalancesTable).
		Where(squirrel.Eq{
			"location_id":  key.LocationID,
			"item_type_id": key.ItemTypeID,
			"status":       key.Status,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return balance, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &balance, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return ledger.Balance{BucketKey: key}, nil
		}
		return balance, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ApplyDelta shifts a bucket's quantity by delta and returns the result.
// The new quantity is computed server-side in one statement, so two
// concurrent writers can never base it on the same stale read.
func (r *LedgerRepo) ApplyDelta(ctx context.Context, key ledger.BucketKey, delta types.Quantity) (ledger.Balance, error) {
	balance := ledger.Balance{BucketKey: key}

	querier := r.txm.GetQuerier(ctx)
	row := querier.QueryRow(ctx, `
		INSERT INTO stock_balances (location_id, item_type_id, status, quantity, last_movement_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (location_id, item_type_id, status)
		DO UPDATE SET quantity = stock_balances.quantity + EXCLUDED.quantity,
		              last_movement_at = now(),
		              updated_at = now()
		RETURNING quantity, last_movement_at, updated_at
	`, key.LocationID, key.ItemTypeID, key.Status, delta)
	if err := row.Scan(&balance.Quantity, &balance.LastMovementAt, &balance.UpdatedAt); err != nil {
		return balance, fmt.Errorf("apply delta: %w", err)
	}
	return balance, nil
}

// ListBalances returns balances matching the filter.
func (r *LedgerRepo) ListBalances(ctx context.Context, filter ledger.BalanceFilter) ([]ledger.Balance, error) {
	q := r.builder.Select(
		"location_id", "item_type_id", "status",
		"quantity", "last_movement_at", "updated_at",
	).From(stockBalancesTable)

	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.ItemTypeID != nil {
		q = q.Where(squirrel.Eq{"item_type_id": *filter.ItemTypeID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}
	q = q.OrderBy("location_id", "item_type_id", "status")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []ledger.Balance
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return balances, nil
}

// CreateEntry appends one immutable ledger entry.
func (r *LedgerRepo) CreateEntry(ctx context.Context, entry *ledger.Entry) error {
	q := r.builder.Insert(ledgerEntriesTable).
		Columns(entryColumns...).
		Values(
			entry.ID, entry.LocationID, entry.ItemTypeID, entry.Status,
			entry.Kind, entry.Direction,
			entry.Quantity, entry.BalanceBefore, entry.BalanceAfter,
			entry.ActorID, entry.Reason,
			entry.NoteID, entry.DeliveryID, entry.DeliveryUnitID, entry.OriginEntryID,
			entry.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetEntry retrieves one entry by id.
func (r *LedgerRepo) GetEntry(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	q := r.builder.Select(entryColumns...).
		From(ledgerEntriesTable).
		Where(squirrel.Eq{"id": entryID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry ledger.Entry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger entry", entryID)
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

// HasReversal reports whether an entry countering originID exists.
func (r *LedgerRepo) HasReversal(ctx context.Context, originID id.ID) (bool, error) {
	var exists bool
	querier := r.txm.GetQuerier(ctx)
	row := querier.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE origin_entry_id = $1)",
		originID,
	)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check reversal: %w", err)
	}
	return exists, nil
}

// ListEntries returns entries matching the filter, oldest first.
func (r *LedgerRepo) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	q := r.builder.Select(entryColumns...).From(ledgerEntriesTable)

	if filter.NoteID != nil {
		q = q.Where(squirrel.Eq{"note_id": *filter.NoteID})
	}
	if filter.DeliveryID != nil {
		q = q.Where(squirrel.Eq{"delivery_id": *filter.DeliveryID})
	}
	if filter.ItemTypeID != nil {
		q = q.Where(squirrel.Eq{"item_type_id": *filter.ItemTypeID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}
	q = q.OrderBy("created_at", "id")
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

	var entries []ledger.Entry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	return entries, nil
}
