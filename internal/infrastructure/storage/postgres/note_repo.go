package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/note"
)

const (
	notesTable     = "movement_notes"
	noteLinesTable = "movement_note_lines"
)

var noteColumns = []string{
	"id", "type", "status",
	"source_location_id", "dest_location_id",
	"comment",
	"created_at", "updated_at", "created_by",
	"concluded_at", "concluded_by",
	"version",
}

var noteLineColumns = []string{
	"line_id", "line_no", "item_type_id", "stock_status",
	"requested_quantity", "processed_quantity", "direction",
}

// Compile-time check that NoteRepo implements note.Repository.
var _ note.Repository = (*NoteRepo)(nil)

// NoteRepo implements note.Repository on PostgreSQL.
type NoteRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewNoteRepo creates a new movement note repository.
func NewNoteRepo(txm *TxManager) *NoteRepo {
	return &NoteRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new note header.
func (r *NoteRepo) Create(ctx context.Context, n *note.Note) error {
	q := r.builder.Insert(notesTable).
		Columns(noteColumns...).
		Values(
			n.ID, n.Type, n.Status,
			n.SourceLocationID, n.DestLocationID,
			n.Comment,
			n.CreatedAt, n.UpdatedAt, n.CreatedBy,
			n.ConcludedAt, n.ConcludedBy,
			n.Version,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// Update persists header changes. The version guard makes concurrent
// conclusions of the same note a first-committer-wins race.
func (r *NoteRepo) Update(ctx context.Context, n *note.Note) error {
	q := r.builder.Update(notesTable).
		Set("status", n.Status).
		Set("source_location_id", n.SourceLocationID).
		Set("dest_location_id", n.DestLocationID).
		Set("comment", n.Comment).
		Set("updated_at", n.UpdatedAt).
		Set("concluded_at", n.ConcludedAt).
		Set("concluded_by", n.ConcludedBy).
		Set("version", n.Version).
		Where(squirrel.Eq{"id": n.ID}).
		Where(squirrel.Lt{"version": n.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, n.ID); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("movement note", n.ID)
	}
	return nil
}

// SaveLines replaces the note's lines.
func (r *NoteRepo) SaveLines(ctx context.Context, noteID id.ID, lines []note.Line) error {
	querier := r.txm.GetQuerier(ctx)

	del := r.builder.Delete(noteLinesTable).Where(squirrel.Eq{"note_id": noteID})
	sql, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	ins := r.builder.Insert(noteLinesTable).Columns(append([]string{"note_id"}, noteLineColumns...)...)
	for _, l := range lines {
		ins = ins.Values(
			noteID,
			l.LineID, l.LineNo, l.ItemTypeID, l.StockStatus,
			l.RequestedQuantity, l.ProcessedQuantity, l.Direction,
		)
	}

	sql, args, err = ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// GetByID loads a note with its lines.
func (r *NoteRepo) GetByID(ctx context.Context, noteID id.ID) (*note.Note, error) {
	q := r.builder.Select(noteColumns...).
		From(notesTable).
		Where(squirrel.Eq{"id": noteID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var n note.Note
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &n, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement note", noteID)
		}
		return nil, fmt.Errorf("get note: %w", err)
	}

	lines, err := r.getLines(ctx, noteID)
	if err != nil {
		return nil, err
	}
	n.Lines = lines
	return &n, nil
}

// List returns notes matching the filter, newest first.
func (r *NoteRepo) List(ctx context.Context, filter note.ListFilter) ([]note.Note, error) {
	q := r.builder.Select(noteColumns...).From(notesTable)

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"source_location_id": *filter.LocationID},
			squirrel.Eq{"dest_location_id": *filter.LocationID},
		})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}
	q = q.OrderBy("created_at DESC", "id DESC")
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

	var notes []note.Note
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &notes, sql, args...); err != nil {
		return nil, fmt.Errorf("select notes: %w", err)
	}
	return notes, nil
}

func (r *NoteRepo) getLines(ctx context.Context, noteID id.ID) ([]note.Line, error) {
	q := r.builder.Select(noteLineColumns...).
		From(noteLinesTable).
		Where(squirrel.Eq{"note_id": noteID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []note.Line
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}
	return lines, nil
}
