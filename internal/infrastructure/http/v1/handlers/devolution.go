package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/internal/domain/delivery"
	"epitrack/internal/domain/devolution"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// DevolutionHandler handles return processing endpoints.
type DevolutionHandler struct {
	*BaseHandler
	service *devolution.Service
}

// NewDevolutionHandler creates a new return handler.
func NewDevolutionHandler(service *devolution.Service) *DevolutionHandler {
	return &DevolutionHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// Process handles POST /deliveries/:id/returns.
// All items succeed or none do.
func (h *DevolutionHandler) Process(c *gin.Context) {
	deliveryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	items, ok := h.bindItems(c)
	if !ok {
		return
	}

	entries, err := h.service.Process(c.Request.Context(), deliveryID, items, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"entries": entries})
}

// ProcessBatch handles POST /deliveries/:id/returns/batch.
// Items fail independently; the response reports both sides.
func (h *DevolutionHandler) ProcessBatch(c *gin.Context) {
	deliveryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	items, ok := h.bindItems(c)
	if !ok {
		return
	}

	result, err := h.service.ProcessBatch(c.Request.Context(), deliveryID, items, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	status := http.StatusOK
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"processed": result.Processed,
		"errors":    batchErrors(result.Errors),
	})
}

// CancelReturn handles POST /deliveries/:id/returns/cancel.
func (h *DevolutionHandler) CancelReturn(c *gin.Context) {
	deliveryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	var req dto.CancelReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	unitIDs := make([]id.ID, 0, len(req.UnitIDs))
	for _, raw := range req.UnitIDs {
		unitID, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid unitId").WithDetail("value", raw))
			return
		}
		unitIDs = append(unitIDs, unitID)
	}

	err := h.service.CancelReturn(c.Request.Context(), deliveryID, unitIDs, req.Reason, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "return cancelled")
}

func (h *DevolutionHandler) bindItems(c *gin.Context) ([]devolution.Item, bool) {
	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return nil, false
	}

	items := make([]devolution.Item, 0, len(req.Items))
	for _, item := range req.Items {
		unitID, ok := h.OptionalID(c, item.UnitID)
		if !ok {
			return nil, false
		}
		items = append(items, devolution.Item{
			UnitID:    *unitID,
			Condition: delivery.ReturnCondition(item.Condition),
			Reason:    item.Reason,
		})
	}
	return items, true
}

// batchErrors flattens item errors into a serializable shape,
// preserving the structured code when the error carries one.
func batchErrors(errs []devolution.ItemError) []gin.H {
	out := make([]gin.H, 0, len(errs))
	for _, ie := range errs {
		entry := gin.H{"unitId": ie.UnitID}
		if appErr, ok := apperror.AsAppError(ie.Err); ok {
			entry["code"] = appErr.Code
			entry["message"] = appErr.Message
		} else {
			entry["message"] = ie.Err.Error()
		}
		out = append(out, entry)
	}
	return out
}
