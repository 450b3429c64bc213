package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/catalog"
)

const itemTypesTable = "item_types"

// Compile-time check that CatalogRepo implements catalog.Reader.
var _ catalog.Reader = (*CatalogRepo)(nil)

// CatalogRepo implements catalog.Reader on PostgreSQL.
type CatalogRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewCatalogRepo creates a new catalog reader.
func NewCatalogRepo(txm *TxManager) *CatalogRepo {
	return &CatalogRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetItemType returns one item type by id.
func (r *CatalogRepo) GetItemType(ctx context.Context, itemTypeID id.ID) (*catalog.ItemType, error) {
	q := r.builder.Select(
		"id", "code", "name", "shelf_life_days", "unit_cost", "active",
	).From(itemTypesTable).
		Where(squirrel.Eq{"id": itemTypeID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it catalog.ItemType
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item type", itemTypeID)
		}
		return nil, fmt.Errorf("get item type: %w", err)
	}
	return &it, nil
}

// ListItemTypes returns active item types ordered by code.
func (r *CatalogRepo) ListItemTypes(ctx context.Context) ([]catalog.ItemType, error) {
	q := r.builder.Select(
		"id", "code", "name", "shelf_life_days", "unit_cost", "active",
	).From(itemTypesTable).
		Where(squirrel.Eq{"active": true}).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []catalog.ItemType
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select item types: %w", err)
	}
	return items, nil
}
