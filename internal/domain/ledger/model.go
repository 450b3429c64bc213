// Package ledger provides the stock movement ledger and balance store.
//
// Balances are a materialized view over an append-only sequence of
// entries. Entries are never edited or deleted; mistakes are countered
// by reversal entries referencing the original.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
)

// StockStatus is the condition dimension of a balance bucket.
type StockStatus string

const (
	// StatusAvailable - stock ready to be delivered to workers.
	StatusAvailable StockStatus = "AVAILABLE"
	// StatusAwaitingInspection - quarantine for units returned damaged.
	StatusAwaitingInspection StockStatus = "AWAITING_INSPECTION"
	// StatusUnusable - condemned stock pending disposal.
	StatusUnusable StockStatus = "UNUSABLE"
)

// ValidStockStatus reports whether s is a known status.
func ValidStockStatus(s StockStatus) bool {
	switch s {
	case StatusAvailable, StatusAwaitingInspection, StatusUnusable:
		return true
	}
	return false
}

// BucketKey identifies a balance slot: one location, one item type, one
// condition status. Buckets are created lazily on first movement and
// never deleted, only zeroed.
type BucketKey struct {
	LocationID id.ID       `db:"location_id" json:"locationId"`
	ItemTypeID id.ID       `db:"item_type_id" json:"itemTypeId"`
	Status     StockStatus `db:"status" json:"status"`
}

// String returns the canonical textual form of the key.
// Lexicographic order of this form is the bucket lock order.
func (k BucketKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.LocationID, k.ItemTypeID, k.Status)
}

// Less orders keys canonically for deadlock-free multi-bucket locking.
func (k BucketKey) Less(other BucketKey) bool {
	return strings.Compare(k.String(), other.String()) < 0
}

// Balance is the current quantity of one bucket.
type Balance struct {
	BucketKey

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Direction of a balance change.
type Direction string

const (
	// DirectionCredit increases the bucket balance.
	DirectionCredit Direction = "credit"
	// DirectionDebit decreases the bucket balance.
	DirectionDebit Direction = "debit"
)

// Opposite returns the inverse direction.
func (d Direction) Opposite() Direction {
	if d == DirectionCredit {
		return DirectionDebit
	}
	return DirectionCredit
}

// EntryKind classifies what business event produced a ledger entry.
type EntryKind string

const (
	KindIntake      EntryKind = "INTAKE"
	KindIssue       EntryKind = "ISSUE"
	KindTransferOut EntryKind = "TRANSFER_OUT"
	KindTransferIn  EntryKind = "TRANSFER_IN"
	KindAdjustment  EntryKind = "ADJUSTMENT"
	KindDisposal    EntryKind = "DISPOSAL"
	KindReturn      EntryKind = "RETURN"

	// Reversal kinds counter a prior entry without editing it.
	KindReversalCredit EntryKind = "REVERSAL_CREDIT"
	KindReversalDebit  EntryKind = "REVERSAL_DEBIT"
)

// FixedDirection returns the direction implied by the kind.
// ADJUSTMENT has no fixed direction: the counted delta decides it.
func (k EntryKind) FixedDirection() (Direction, bool) {
	switch k {
	case KindIntake, KindTransferIn, KindReturn, KindReversalCredit:
		return DirectionCredit, true
	case KindIssue, KindTransferOut, KindDisposal, KindReversalDebit:
		return DirectionDebit, true
	}
	return "", false
}

// IsReversal reports whether the kind is a reversal kind.
func (k EntryKind) IsReversal() bool {
	return k == KindReversalCredit || k == KindReversalDebit
}

// ValidEntryKind reports whether k is a known kind.
func ValidEntryKind(k EntryKind) bool {
	switch k {
	case KindIntake, KindIssue, KindTransferOut, KindTransferIn,
		KindAdjustment, KindDisposal, KindReturn,
		KindReversalCredit, KindReversalDebit:
		return true
	}
	return false
}

// Links carries the optional references an entry can hold back into the
// operation that produced it.
type Links struct {
	NoteID         *id.ID `db:"note_id" json:"noteId,omitempty"`
	DeliveryID     *id.ID `db:"delivery_id" json:"deliveryId,omitempty"`
	DeliveryUnitID *id.ID `db:"delivery_unit_id" json:"deliveryUnitId,omitempty"`
	OriginEntryID  *id.ID `db:"origin_entry_id" json:"originEntryId,omitempty"`
}

// Entry is one immutable audit row representing a balance change.
// Quantity is always positive; the direction carries the sign.
// Invariant: BalanceAfter = BalanceBefore + Quantity for credits,
// BalanceBefore - Quantity for debits.
type Entry struct {
	ID id.ID `db:"id" json:"id"`

	BucketKey

	Kind      EntryKind `db:"kind" json:"kind"`
	Direction Direction `db:"direction" json:"direction"`

	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	BalanceBefore types.Quantity `db:"balance_before" json:"balanceBefore"`
	BalanceAfter  types.Quantity `db:"balance_after" json:"balanceAfter"`

	ActorID string `db:"actor_id" json:"actorId"`
	Reason  string `db:"reason" json:"reason,omitempty"`

	Links

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedQuantity returns the entry's effect on its bucket.
func (e *Entry) SignedQuantity() types.Quantity {
	if e.Direction == DirectionDebit {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// MovementRequest describes one balance change to record.
type MovementRequest struct {
	Bucket BucketKey
	Kind   EntryKind

	// Direction is required for ADJUSTMENT and ignored for every other
	// kind (the kind fixes it).
	Direction Direction

	Quantity types.Quantity
	ActorID  string
	Reason   string
	Links    Links

	// SkipStockCheck suppresses the insufficient-stock check for a
	// debit. Note conclusion sets this when called with stock
	// validation disabled. Adjustments always skip the check.
	SkipStockCheck bool
}
