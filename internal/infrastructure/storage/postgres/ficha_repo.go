package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/ficha"
)

const fichasTable = "fichas"

// Compile-time check that FichaRepo implements ficha.Directory.
var _ ficha.Directory = (*FichaRepo)(nil)

// FichaRepo implements ficha.Directory on PostgreSQL.
type FichaRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewFichaRepo creates a new ficha directory.
func NewFichaRepo(txm *TxManager) *FichaRepo {
	return &FichaRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetRecord returns one worker record by id.
func (r *FichaRepo) GetRecord(ctx context.Context, fichaID id.ID) (*ficha.Record, error) {
	q := r.builder.Select("id", "worker_name", "status").
		From(fichasTable).
		Where(squirrel.Eq{"id": fichaID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec ficha.Record
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ficha", fichaID)
		}
		return nil, fmt.Errorf("get ficha: %w", err)
	}
	return &rec, nil
}
