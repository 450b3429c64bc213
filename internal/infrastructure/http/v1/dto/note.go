package dto

// NoteLineRequest is one requested line on a movement note.
type NoteLineRequest struct {
	ItemTypeID string `json:"itemTypeId" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"required,min=1"`

	// StockStatus defaults to AVAILABLE when empty.
	StockStatus string `json:"stockStatus"`

	// Direction is only meaningful on ADJUSTMENT notes.
	Direction string `json:"direction"`
}

// CreateNoteRequest creates a draft movement note.
type CreateNoteRequest struct {
	Type             string            `json:"type" binding:"required"`
	SourceLocationID *string           `json:"sourceLocationId"`
	DestLocationID   *string           `json:"destLocationId"`
	Comment          string            `json:"comment"`
	Lines            []NoteLineRequest `json:"lines"`
}

// UpdateNoteRequest replaces a draft note's comment and lines.
type UpdateNoteRequest struct {
	Comment string            `json:"comment"`
	Lines   []NoteLineRequest `json:"lines" binding:"required"`
}

// ConcludeNoteRequest finalizes a draft note.
type ConcludeNoteRequest struct {
	// ValidateStock defaults to true; turning it off lets outbound
	// lines drive buckets negative (controlled drain scenarios).
	ValidateStock *bool `json:"validateStock"`
}

// NoteListQuery filters note listings.
type NoteListQuery struct {
	Type       string `form:"type"`
	Status     string `form:"status"`
	LocationID string `form:"locationId"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}
