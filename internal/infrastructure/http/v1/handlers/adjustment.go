package handlers

import (
	"github.com/gin-gonic/gin"

	"epitrack/internal/core/types"
	"epitrack/internal/domain/adjustment"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// AdjustmentHandler handles forced adjustment and reconciliation endpoints.
type AdjustmentHandler struct {
	*BaseHandler
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new adjustment handler.
func NewAdjustmentHandler(service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// Adjust handles POST /adjustments.
// Sets one bucket to a counted quantity, gated by the forced-adjustments
// switch.
func (h *AdjustmentHandler) Adjust(c *gin.Context) {
	var req dto.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}

	bucket, ok := h.bucketKey(c, req.Bucket)
	if !ok {
		return
	}

	entry, err := h.service.AdjustDirect(c.Request.Context(), bucket,
		types.Quantity(req.NewQuantity), h.ActorID(c), req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entry)
}

// Reconcile handles POST /adjustments/reconcile.
func (h *AdjustmentHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	counts := make([]adjustment.Count, 0, len(req.Counts))
	for _, count := range req.Counts {
		bucket, ok := h.bucketKey(c, count.Bucket)
		if !ok {
			return
		}
		counts = append(counts, adjustment.Count{
			Bucket:   bucket,
			Quantity: types.Quantity(count.Quantity),
		})
	}

	result, err := h.service.Reconcile(c.Request.Context(), counts, h.ActorID(c), req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

func (h *AdjustmentHandler) bucketKey(c *gin.Context, req dto.BucketRequest) (ledger.BucketKey, bool) {
	locationID, ok := h.OptionalID(c, req.LocationID)
	if !ok {
		return ledger.BucketKey{}, false
	}
	itemTypeID, ok := h.OptionalID(c, req.ItemTypeID)
	if !ok {
		return ledger.BucketKey{}, false
	}

	status := ledger.StockStatus(req.Status)
	if status == "" {
		status = ledger.StatusAvailable
	}
	return ledger.BucketKey{
		LocationID: *locationID,
		ItemTypeID: *itemTypeID,
		Status:     status,
	}, true
}
