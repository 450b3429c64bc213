package note

import (
	"context"
	"sort"
	"sync"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
)

// MemoryRepository is an in-memory Repository for unit tests and seeding.
type MemoryRepository struct {
	mu    sync.Mutex
	notes map[id.ID]*Note
}

// NewMemoryRepository creates an empty in-memory note store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{notes: make(map[id.ID]*Note)}
}

func (r *MemoryRepository) Create(ctx context.Context, n *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *n
	stored.Lines = nil
	r.notes[n.ID] = &stored
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, n *Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.notes[n.ID]
	if !ok {
		return apperror.NewNotFound("movement note", n.ID)
	}
	if n.Version <= existing.Version {
		return apperror.NewConcurrentModification("movement note", n.ID)
	}
	stored := *n
	stored.Lines = existing.Lines
	r.notes[n.ID] = &stored
	return nil
}

func (r *MemoryRepository) SaveLines(ctx context.Context, noteID id.ID, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.notes[noteID]
	if !ok {
		return apperror.NewNotFound("movement note", noteID)
	}
	copied := make([]Line, len(lines))
	copy(copied, lines)
	existing.Lines = copied
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, noteID id.ID) (*Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.notes[noteID]
	if !ok {
		return nil, apperror.NewNotFound("movement note", noteID)
	}
	out := *existing
	out.Lines = make([]Line, len(existing.Lines))
	copy(out.Lines, existing.Lines)
	return &out, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Note
	for _, n := range r.notes {
		if filter.Type != nil && n.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		if filter.LocationID != nil {
			match := (n.SourceLocationID != nil && *n.SourceLocationID == *filter.LocationID) ||
				(n.DestLocationID != nil && *n.DestLocationID == *filter.LocationID)
			if !match {
				continue
			}
		}
		if filter.FromDate != nil && n.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && !n.CreatedAt.Before(*filter.ToDate) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
