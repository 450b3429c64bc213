package dto

import "time"

// DeliveryLineRequest asks for N units of one item type.
type DeliveryLineRequest struct {
	ItemTypeID string `json:"itemTypeId" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"required,min=1"`
}

// CreateDeliveryRequest creates a delivery to a worker.
type CreateDeliveryRequest struct {
	FichaID      string                `json:"fichaId" binding:"required"`
	LocationID   string                `json:"locationId" binding:"required"`
	DeliveryDate *time.Time            `json:"deliveryDate"`
	Lines        []DeliveryLineRequest `json:"lines" binding:"required"`
}

// DeliveryListQuery filters delivery listings.
type DeliveryListQuery struct {
	FichaID    string `form:"fichaId"`
	LocationID string `form:"locationId"`
	Status     string `form:"status"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// ReturnItemRequest is one unit coming back.
type ReturnItemRequest struct {
	UnitID    string `json:"unitId" binding:"required"`
	Condition string `json:"condition" binding:"required"`
	Reason    string `json:"reason"`
}

// ReturnRequest processes returns against a delivery.
type ReturnRequest struct {
	Items []ReturnItemRequest `json:"items" binding:"required"`
}

// CancelReturnRequest undoes recent returns.
type CancelReturnRequest struct {
	UnitIDs []string `json:"unitIds" binding:"required"`
	Reason  string   `json:"reason" binding:"required"`
}
