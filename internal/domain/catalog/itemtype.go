// Package catalog provides read-only access to the PPE item-type catalog.
// The catalog is an external collaborator of the inventory core: the
// core reads shelf life and lifecycle status, it never writes.
package catalog

import (
	"context"

	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
)

// ItemType describes one kind of protective equipment.
type ItemType struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// ShelfLifeDays is the fixed usable life once delivered to a
	// worker. nil means the type has no fixed life and deliveries of
	// it carry no return deadline.
	ShelfLifeDays *int `db:"shelf_life_days" json:"shelfLifeDays,omitempty"`

	// UnitCost values reconciliation variances.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	Active bool `db:"active" json:"active"`
}

// Reader exposes catalog lookups to the core.
type Reader interface {
	// GetItemType returns the item type or a NOT_FOUND error.
	GetItemType(ctx context.Context, itemTypeID id.ID) (*ItemType, error)
}
