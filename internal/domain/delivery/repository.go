package delivery

import (
	"context"
	"time"

	"epitrack/internal/core/id"
)

// Repository defines storage operations for deliveries and their units.
type Repository interface {
	// Create persists a new delivery header.
	Create(ctx context.Context, d *Delivery) error

	// Update persists header changes using optimistic locking on
	// Version; a stale version yields CONCURRENT_MODIFICATION.
	Update(ctx context.Context, d *Delivery) error

	// SaveUnits inserts the delivery's units (creation time only).
	SaveUnits(ctx context.Context, deliveryID id.ID, units []Unit) error

	// UpdateUnit persists one unit's state transition.
	UpdateUnit(ctx context.Context, u *Unit) error

	// GetByID loads a delivery with its units, or NOT_FOUND.
	GetByID(ctx context.Context, deliveryID id.ID) (*Delivery, error)

	// List returns deliveries matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Delivery, error)
}

// ListFilter for delivery queries.
type ListFilter struct {
	FichaID    *id.ID
	LocationID *id.ID
	Status     *Status
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
