package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"epitrack/internal/core/tx"
	"epitrack/internal/domain/ledger"
	"epitrack/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock balance and ledger entry endpoints.
type StockHandler struct {
	*BaseHandler
	service   *ledger.Service
	txManager tx.Manager
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(service *ledger.Service, txManager tx.Manager) *StockHandler {
	return &StockHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
		txManager:   txManager,
	}
}

// Balances handles GET /stock/balances.
func (h *StockHandler) Balances(c *gin.Context) {
	var q dto.BalanceQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := ledger.BalanceFilter{ExcludeZero: q.ExcludeZero}
	locationID, ok := h.OptionalID(c, q.LocationID)
	if !ok {
		return
	}
	filter.LocationID = locationID

	itemTypeID, ok := h.OptionalID(c, q.ItemTypeID)
	if !ok {
		return
	}
	filter.ItemTypeID = itemTypeID

	if q.Status != "" {
		s := ledger.StockStatus(q.Status)
		filter.Status = &s
	}

	balances, err := h.service.ListBalances(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: balances, Count: len(balances)})
}

// Entries handles GET /stock/entries.
func (h *StockHandler) Entries(c *gin.Context) {
	var q dto.EntryQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := ledger.EntryFilter{
		FromDate: q.From,
		ToDate:   q.To,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	noteID, ok := h.OptionalID(c, q.NoteID)
	if !ok {
		return
	}
	filter.NoteID = noteID

	deliveryID, ok := h.OptionalID(c, q.DeliveryID)
	if !ok {
		return
	}
	filter.DeliveryID = deliveryID

	itemTypeID, ok := h.OptionalID(c, q.ItemTypeID)
	if !ok {
		return
	}
	filter.ItemTypeID = itemTypeID

	if q.Kind != "" {
		k := ledger.EntryKind(q.Kind)
		filter.Kind = &k
	}

	entries, err := h.service.ListEntries(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: entries, Count: len(entries), Limit: q.Limit, Offset: q.Offset})
}

// Reverse handles POST /stock/entries/:id/reverse.
// Appends a counter-entry; the original row is never touched.
func (h *StockHandler) Reverse(c *gin.Context) {
	entryID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	var reversal *ledger.Entry
	err := h.txManager.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		var txErr error
		reversal, txErr = h.service.Reverse(ctx, entryID, h.ActorID(c))
		return txErr
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, reversal)
}
