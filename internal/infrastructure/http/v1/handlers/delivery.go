package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/core/types"
	"epitrack/internal/domain/delivery"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// DeliveryHandler handles delivery lifecycle endpoints.
type DeliveryHandler struct {
	*BaseHandler
	service *delivery.Service
}

// NewDeliveryHandler creates a new delivery handler.
func NewDeliveryHandler(service *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// Create handles POST /deliveries.
// Each requested quantity expands into individually tracked units.
func (h *DeliveryHandler) Create(c *gin.Context) {
	var req dto.CreateDeliveryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	fichaID, ok := h.OptionalID(c, req.FichaID)
	if !ok {
		return
	}
	locationID, ok := h.OptionalID(c, req.LocationID)
	if !ok {
		return
	}

	input := delivery.CreateInput{
		FichaID:            *fichaID,
		LocationID:         *locationID,
		ResponsibleActorID: h.ActorID(c),
	}
	if req.DeliveryDate != nil {
		input.DeliveryDate = *req.DeliveryDate
	}
	for _, line := range req.Lines {
		itemTypeID, ok := h.OptionalID(c, line.ItemTypeID)
		if !ok {
			return
		}
		input.Lines = append(input.Lines, delivery.CreateLine{
			ItemTypeID: *itemTypeID,
			Quantity:   types.Quantity(line.Quantity),
		})
	}

	d, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, d.ID)
}

// Get handles GET /deliveries/:id.
func (h *DeliveryHandler) Get(c *gin.Context) {
	deliveryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	d, err := h.service.GetByID(c.Request.Context(), deliveryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// List handles GET /deliveries.
func (h *DeliveryHandler) List(c *gin.Context) {
	var q dto.DeliveryListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := delivery.ListFilter{Limit: q.Limit, Offset: q.Offset}
	fichaID, ok := h.OptionalID(c, q.FichaID)
	if !ok {
		return
	}
	filter.FichaID = fichaID

	locationID, ok := h.OptionalID(c, q.LocationID)
	if !ok {
		return
	}
	filter.LocationID = locationID

	if q.Status != "" {
		s := delivery.Status(q.Status)
		filter.Status = &s
	}

	deliveries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: deliveries, Count: len(deliveries), Limit: q.Limit, Offset: q.Offset})
}

// Sign handles POST /deliveries/:id/sign.
func (h *DeliveryHandler) Sign(c *gin.Context) {
	deliveryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	d, err := h.service.Sign(c.Request.Context(), deliveryID, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Cancel handles POST /deliveries/:id/cancel.
// Only provisional deliveries can be cancelled; every issue entry is
// reversed so stock returns to the shelf.
func (h *DeliveryHandler) Cancel(c *gin.Context) {
	deliveryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	d, err := h.service.CancelPending(c.Request.Context(), deliveryID, h.ActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Summary handles GET /deliveries/:id/summary.
func (h *DeliveryHandler) Summary(c *gin.Context) {
	deliveryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), deliveryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}
