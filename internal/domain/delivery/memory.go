package delivery

import (
	"context"
	"sort"
	"sync"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
)

// MemoryRepository is an in-memory Repository for unit tests.
type MemoryRepository struct {
	mu         sync.Mutex
	deliveries map[id.ID]*Delivery
}

// NewMemoryRepository creates an empty in-memory delivery store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{deliveries: make(map[id.ID]*Delivery)}
}

func (r *MemoryRepository) Create(ctx context.Context, d *Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *d
	stored.Units = nil
	r.deliveries[d.ID] = &stored
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, d *Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.deliveries[d.ID]
	if !ok {
		return apperror.NewNotFound("delivery", d.ID)
	}
	if d.Version <= existing.Version {
		return apperror.NewConcurrentModification("delivery", d.ID)
	}
	stored := *d
	stored.Units = existing.Units
	r.deliveries[d.ID] = &stored
	return nil
}

func (r *MemoryRepository) SaveUnits(ctx context.Context, deliveryID id.ID, units []Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.deliveries[deliveryID]
	if !ok {
		return apperror.NewNotFound("delivery", deliveryID)
	}
	copied := make([]Unit, len(units))
	copy(copied, units)
	existing.Units = copied
	return nil
}

func (r *MemoryRepository) UpdateUnit(ctx context.Context, u *Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.deliveries[u.DeliveryID]
	if !ok {
		return apperror.NewNotFound("delivery", u.DeliveryID)
	}
	for i := range existing.Units {
		if existing.Units[i].ID == u.ID {
			existing.Units[i] = *u
			return nil
		}
	}
	return apperror.NewNotFound("delivery unit", u.ID)
}

func (r *MemoryRepository) GetByID(ctx context.Context, deliveryID id.ID) (*Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.deliveries[deliveryID]
	if !ok {
		return nil, apperror.NewNotFound("delivery", deliveryID)
	}
	out := *existing
	out.Units = make([]Unit, len(existing.Units))
	copy(out.Units, existing.Units)
	return &out, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Delivery
	for _, d := range r.deliveries {
		if filter.FichaID != nil && d.FichaID != *filter.FichaID {
			continue
		}
		if filter.LocationID != nil && d.LocationID != *filter.LocationID {
			continue
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.FromDate != nil && d.DeliveryDate.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && !d.DeliveryDate.Before(*filter.ToDate) {
			continue
		}
		listed := *d
		listed.Units = make([]Unit, len(d.Units))
		copy(listed.Units, d.Units)
		out = append(out, listed)
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
