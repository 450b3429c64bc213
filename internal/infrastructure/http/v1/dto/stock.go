package dto

import "time"

// BalanceQuery filters balance listings.
type BalanceQuery struct {
	LocationID  string `form:"locationId"`
	ItemTypeID  string `form:"itemTypeId"`
	Status      string `form:"status"`
	ExcludeZero bool   `form:"excludeZero"`
}

// EntryQuery filters ledger entry listings.
type EntryQuery struct {
	NoteID     string     `form:"noteId"`
	DeliveryID string     `form:"deliveryId"`
	ItemTypeID string     `form:"itemTypeId"`
	Kind       string     `form:"kind"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int        `form:"limit"`
	Offset     int        `form:"offset"`
}

// BucketRequest names one balance bucket.
type BucketRequest struct {
	LocationID string `json:"locationId" binding:"required"`
	ItemTypeID string `json:"itemTypeId" binding:"required"`
	Status     string `json:"status"`
}

// AdjustRequest sets a bucket to a counted quantity.
type AdjustRequest struct {
	Bucket      BucketRequest `json:"bucket" binding:"required"`
	NewQuantity int64         `json:"newQuantity" binding:"min=0"`
	Reason      string        `json:"reason" binding:"required"`
}

// CountRequest is one physical count line in a reconciliation.
type CountRequest struct {
	Bucket   BucketRequest `json:"bucket" binding:"required"`
	Quantity int64         `json:"quantity" binding:"min=0"`
}

// ReconcileRequest reconciles counted quantities against the book.
type ReconcileRequest struct {
	Counts []CountRequest `json:"counts" binding:"required"`
	Reason string         `json:"reason" binding:"required"`
}
