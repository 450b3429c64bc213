package note

import (
	"context"
	"time"

	"epitrack/internal/core/id"
)

// Repository defines storage operations for movement notes.
type Repository interface {
	// Create persists a new note header.
	Create(ctx context.Context, n *Note) error

	// Update persists header changes using optimistic locking on
	// Version; a stale version yields CONCURRENT_MODIFICATION.
	Update(ctx context.Context, n *Note) error

	// SaveLines replaces the note's lines.
	SaveLines(ctx context.Context, noteID id.ID, lines []Line) error

	// GetByID loads a note with its lines, or NOT_FOUND.
	GetByID(ctx context.Context, noteID id.ID) (*Note, error)

	// List returns notes matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Note, error)
}

// ListFilter for note queries.
type ListFilter struct {
	Type       *NoteType
	Status     *NoteStatus
	LocationID *id.ID
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
