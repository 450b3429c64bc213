// Package delivery provides the hand-off of individually tracked PPE
// units to a worker, from draft through signature to cancellation.
package delivery

import (
	"context"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/ledger"
)

// Status is the delivery lifecycle state.
type Status string

const (
	// StatusPendingSignature - created but provisional until the worker signs.
	StatusPendingSignature Status = "PENDING_SIGNATURE"
	// StatusSigned - acknowledged by the worker; returns become possible.
	StatusSigned Status = "SIGNED"
	// StatusCancelled - terminal; issue movements were reversed.
	StatusCancelled Status = "CANCELLED"
)

// UnitStatus tracks one physical unit.
type UnitStatus string

const (
	UnitWithWorker UnitStatus = "WITH_WORKER"
	UnitReturned   UnitStatus = "RETURNED"
)

// ReturnCondition is the physical condition declared on return.
// It decides where (and whether) the unit's quantity re-enters stock.
type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "GOOD"
	ConditionDamaged ReturnCondition = "DAMAGED"
	ConditionLost    ReturnCondition = "LOST"
)

// ValidReturnCondition reports whether c is a known condition.
func ValidReturnCondition(c ReturnCondition) bool {
	switch c {
	case ConditionGood, ConditionDamaged, ConditionLost:
		return true
	}
	return false
}

// Delivery hands a batch of units to one worker at one location.
type Delivery struct {
	ID         id.ID `db:"id" json:"id"`
	FichaID    id.ID `db:"ficha_id" json:"fichaId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	ResponsibleActorID string `db:"responsible_actor_id" json:"responsibleActorId"`

	DeliveryDate time.Time `db:"delivery_date" json:"deliveryDate"`
	Status       Status    `db:"status" json:"status"`

	SignedAt *time.Time `db:"signed_at" json:"signedAt,omitempty"`
	SignedBy string     `db:"signed_by" json:"signedBy,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	Version   int       `db:"version" json:"version"`

	Units []Unit `db:"-" json:"units"`
}

// Unit is exactly one physical PPE item. Quantity is fixed at 1: the
// system never aggregates units, to preserve individual traceability.
type Unit struct {
	ID         id.ID `db:"id" json:"id"`
	DeliveryID id.ID `db:"delivery_id" json:"deliveryId"`

	ItemTypeID       id.ID `db:"item_type_id" json:"itemTypeId"`
	SourceLocationID id.ID `db:"source_location_id" json:"sourceLocationId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	Status UnitStatus `db:"status" json:"status"`

	// ReturnDeadline is derived once at creation from the item type's
	// shelf life; nil when the type has no fixed life.
	ReturnDeadline *time.Time `db:"return_deadline" json:"returnDeadline,omitempty"`

	// IssueEntryID links the ISSUE ledger entry that debited stock for
	// this unit.
	IssueEntryID id.ID `db:"issue_entry_id" json:"issueEntryId"`

	// Return fields, populated when the unit comes back.
	ReturnedAt      *time.Time       `db:"returned_at" json:"returnedAt,omitempty"`
	ReturnCondition *ReturnCondition `db:"return_condition" json:"returnCondition,omitempty"`
	ReturnReason    string           `db:"return_reason" json:"returnReason,omitempty"`

	// ReturnEntryID links the RETURN credit entry; nil for LOST
	// returns, which credit nothing.
	ReturnEntryID *id.ID `db:"return_entry_id" json:"returnEntryId,omitempty"`
}

// SourceBucket is the bucket the unit was issued from.
func (u *Unit) SourceBucket() ledger.BucketKey {
	return ledger.BucketKey{
		LocationID: u.SourceLocationID,
		ItemTypeID: u.ItemTypeID,
		Status:     ledger.StatusAvailable,
	}
}

// Touch bumps the optimistic-locking version and update timestamp.
func (d *Delivery) Touch() {
	d.Version++
	d.UpdatedAt = time.Now().UTC()
}

// UnitByID finds a unit owned by this delivery.
func (d *Delivery) UnitByID(unitID id.ID) *Unit {
	for i := range d.Units {
		if d.Units[i].ID == unitID {
			return &d.Units[i]
		}
	}
	return nil
}

// Validate checks internal invariants.
func (d *Delivery) Validate(ctx context.Context) error {
	if id.IsNil(d.FichaID) {
		return apperror.NewValidation("ficha is required").WithDetail("field", "fichaId")
	}
	if id.IsNil(d.LocationID) {
		return apperror.NewValidation("location is required").WithDetail("field", "locationId")
	}
	if d.ResponsibleActorID == "" {
		return apperror.NewValidation("responsible actor is required").
			WithDetail("field", "responsibleActorId")
	}
	if d.DeliveryDate.IsZero() {
		return apperror.NewValidation("delivery date is required").
			WithDetail("field", "deliveryDate")
	}
	return nil
}

// ReturnSummary is the computed projection over unit states.
// "Partially returned" is never a stored delivery status; readers
// derive it from here.
type ReturnSummary struct {
	DeliveryID id.ID `json:"deliveryId"`

	WithWorker int `json:"withWorker"`
	Returned   int `json:"returned"`
	Lost       int `json:"lost"`

	FullyReturned     bool `json:"fullyReturned"`
	PartiallyReturned bool `json:"partiallyReturned"`
}

// Summarize computes the return projection for this delivery.
func (d *Delivery) Summarize() ReturnSummary {
	s := ReturnSummary{DeliveryID: d.ID}
	for i := range d.Units {
		u := &d.Units[i]
		switch u.Status {
		case UnitWithWorker:
			s.WithWorker++
		case UnitReturned:
			s.Returned++
			if u.ReturnCondition != nil && *u.ReturnCondition == ConditionLost {
				s.Lost++
			}
		}
	}
	s.FullyReturned = s.WithWorker == 0 && s.Returned > 0
	s.PartiallyReturned = s.WithWorker > 0 && s.Returned > 0
	return s
}
