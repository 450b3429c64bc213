// Package note provides the movement note: a draftable batch of
// intake/transfer/disposal/adjustment lines concluded atomically.
package note

import (
	"context"
	"time"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/ledger"
)

// NoteType determines which bucket operations a note emits on conclusion.
type NoteType string

const (
	TypeIntake     NoteType = "INTAKE"
	TypeTransfer   NoteType = "TRANSFER"
	TypeDisposal   NoteType = "DISPOSAL"
	TypeAdjustment NoteType = "ADJUSTMENT"
)

// NoteStatus is the note lifecycle state.
// DRAFT is the only mutable state; CONCLUDED and CANCELLED are terminal.
type NoteStatus string

const (
	StatusDraft     NoteStatus = "DRAFT"
	StatusConcluded NoteStatus = "CONCLUDED"
	StatusCancelled NoteStatus = "CANCELLED"
)

// Note is a batched multi-line stock operation.
type Note struct {
	ID     id.ID      `db:"id" json:"id"`
	Type   NoteType   `db:"type" json:"type"`
	Status NoteStatus `db:"status" json:"status"`

	// SourceLocationID is the debited location (TRANSFER, DISPOSAL) or
	// the adjusted location (ADJUSTMENT). Nil for INTAKE.
	SourceLocationID *id.ID `db:"source_location_id" json:"sourceLocationId,omitempty"`

	// DestLocationID is the credited location (INTAKE, TRANSFER).
	DestLocationID *id.ID `db:"dest_location_id" json:"destLocationId,omitempty"`

	Comment string `db:"comment" json:"comment,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`

	ConcludedAt *time.Time `db:"concluded_at" json:"concludedAt,omitempty"`
	ConcludedBy string     `db:"concluded_by" json:"concludedBy,omitempty"`

	// Version for optimistic locking (incremented on each update).
	Version int `db:"version" json:"version"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one item-type position on a note.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ItemTypeID id.ID `db:"item_type_id" json:"itemTypeId"`

	// StockStatus selects the condition bucket the line moves through.
	StockStatus ledger.StockStatus `db:"stock_status" json:"stockStatus"`

	RequestedQuantity types.Quantity `db:"requested_quantity" json:"requestedQuantity"`

	// ProcessedQuantity is written on conclusion; zero while DRAFT.
	ProcessedQuantity types.Quantity `db:"processed_quantity" json:"processedQuantity"`

	// Direction applies to ADJUSTMENT lines only: whether the counted
	// delta credits or debits the bucket.
	Direction ledger.Direction `db:"direction" json:"direction,omitempty"`
}

// New creates a note in DRAFT.
func New(noteType NoteType, source, dest *id.ID, createdBy string) *Note {
	now := time.Now().UTC()
	return &Note{
		ID:               id.New(),
		Type:             noteType,
		Status:           StatusDraft,
		SourceLocationID: source,
		DestLocationID:   dest,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        createdBy,
		Version:          1,
		Lines:            make([]Line, 0),
	}
}

// AddLine appends a line. Defaults the stock status to AVAILABLE.
func (n *Note) AddLine(itemTypeID id.ID, quantity types.Quantity, status ledger.StockStatus, direction ledger.Direction) {
	if status == "" {
		status = ledger.StatusAvailable
	}
	n.Lines = append(n.Lines, Line{
		LineID:            id.New(),
		LineNo:            len(n.Lines) + 1,
		ItemTypeID:        itemTypeID,
		StockStatus:       status,
		RequestedQuantity: quantity,
		Direction:         direction,
	})
}

// Touch bumps the optimistic-locking version and update timestamp.
func (n *Note) Touch() {
	n.Version++
	n.UpdatedAt = time.Now().UTC()
}

// CanModify checks the note is still editable.
func (n *Note) CanModify() error {
	if n.Status != StatusDraft {
		return apperror.NewInvalidState("movement note", n.ID.String(), string(n.Status), string(StatusDraft))
	}
	return nil
}

// Validate checks internal invariants (no database access).
func (n *Note) Validate(ctx context.Context) error {
	switch n.Type {
	case TypeIntake:
		if n.DestLocationID == nil {
			return apperror.NewValidation("intake note requires a destination location").
				WithDetail("field", "destLocationId")
		}
	case TypeTransfer:
		if n.SourceLocationID == nil || n.DestLocationID == nil {
			return apperror.NewValidation("transfer note requires source and destination locations")
		}
		if *n.SourceLocationID == *n.DestLocationID {
			return apperror.NewValidation("transfer source and destination must differ")
		}
	case TypeDisposal, TypeAdjustment:
		if n.SourceLocationID == nil {
			return apperror.NewValidation("note requires a source location").
				WithDetail("field", "sourceLocationId")
		}
	default:
		return apperror.NewValidation("unknown note type").WithDetail("type", string(n.Type))
	}

	for i, line := range n.Lines {
		if id.IsNil(line.ItemTypeID) {
			return apperror.NewValidation("item type is required").
				WithDetail("lineNo", i+1)
		}
		if !line.RequestedQuantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("lineNo", i+1)
		}
		if n.Type == TypeAdjustment &&
			line.Direction != ledger.DirectionCredit && line.Direction != ledger.DirectionDebit {
			return apperror.NewValidation("adjustment line requires a direction").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}
