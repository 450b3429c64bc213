package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/core/types"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/domain/note"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// NoteHandler handles movement note endpoints.
type NoteHandler struct {
	*BaseHandler
	service *note.Service
}

// NewNoteHandler creates a new note handler.
func NewNoteHandler(service *note.Service) *NoteHandler {
	return &NoteHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// Create handles POST /notes.
func (h *NoteHandler) Create(c *gin.Context) {
	var req dto.CreateNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sourceID, ok := h.OptionalID(c, deref(req.SourceLocationID))
	if !ok {
		return
	}
	destID, ok := h.OptionalID(c, deref(req.DestLocationID))
	if !ok {
		return
	}

	n := note.New(note.NoteType(req.Type), sourceID, destID, h.ActorID(c))
	n.Comment = req.Comment
	for _, line := range req.Lines {
		itemTypeID, err := id.Parse(line.ItemTypeID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid itemTypeId").WithDetail("value", line.ItemTypeID))
			return
		}
		n.AddLine(itemTypeID, types.Quantity(line.Quantity),
			ledger.StockStatus(line.StockStatus), ledger.Direction(line.Direction))
	}

	if err := h.service.Create(c.Request.Context(), n); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, n.ID)
}

// Get handles GET /notes/:id.
func (h *NoteHandler) Get(c *gin.Context) {
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	n, err := h.service.GetByID(c.Request.Context(), noteID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, n)
}

// Update handles PUT /notes/:id. Drafts only; lines are replaced
// wholesale.
func (h *NoteHandler) Update(c *gin.Context) {
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.GetByID(c.Request.Context(), noteID)
	if err != nil {
		h.Error(c, err)
		return
	}

	n.Comment = req.Comment
	n.Lines = nil
	for _, line := range req.Lines {
		itemTypeID, err := id.Parse(line.ItemTypeID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid itemTypeId").WithDetail("value", line.ItemTypeID))
			return
		}
		n.AddLine(itemTypeID, types.Quantity(line.Quantity),
			ledger.StockStatus(line.StockStatus), ledger.Direction(line.Direction))
	}

	if err := h.service.Update(c.Request.Context(), n); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, n)
}

// List handles GET /notes.
func (h *NoteHandler) List(c *gin.Context) {
	var q dto.NoteListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := note.ListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Type != "" {
		t := note.NoteType(q.Type)
		filter.Type = &t
	}
	if q.Status != "" {
		s := note.NoteStatus(q.Status)
		filter.Status = &s
	}
	locationID, ok := h.OptionalID(c, q.LocationID)
	if !ok {
		return
	}
	filter.LocationID = locationID

	notes, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: notes, Count: len(notes), Limit: q.Limit, Offset: q.Offset})
}

// Conclude handles POST /notes/:id/conclude.
// Applies every line to the ledger atomically and freezes the note.
func (h *NoteHandler) Conclude(c *gin.Context) {
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	req := dto.ConcludeNoteRequest{}
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	validateStock := req.ValidateStock == nil || *req.ValidateStock

	entries, err := h.service.Conclude(c.Request.Context(), noteID, h.ActorID(c), validateStock)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"entries": entries})
}

// Cancel handles POST /notes/:id/cancel.
func (h *NoteHandler) Cancel(c *gin.Context) {
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), noteID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "note cancelled")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
