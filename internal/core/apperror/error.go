// Package apperror provides structured error handling for the PPE inventory core.
// All business errors must use AppError so the boundary layer can render
// precise messages without the core doing any formatting.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInvalidState       = "INVALID_STATE"
	CodeEmptyNote          = "EMPTY_NOTE"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeInvalidItemState   = "INVALID_ITEM_STATE"
	CodeDeliveryNotSigned  = "DELIVERY_NOT_SIGNED"
	CodeCancellationWindow = "CANCELLATION_WINDOW_EXPIRED"
	CodeNoAdjustmentNeeded = "NO_ADJUSTMENT_NEEDED"
	CodeAlreadyReversed    = "ALREADY_REVERSED"

	// Concurrency (409)
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization (403)
	CodePermissionDenied = "PERMISSION_DENIED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the platform.
// It implements the error interface and carries structured details
// (entity ids, offending quantities/states) for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (ids, quantities, states)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInvalidState creates an illegal-transition error (422).
// Used when an operation targets an entity in a terminal or wrong-phase state.
func NewInvalidState(entity string, id any, current, expected string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("%s is %s, expected %s", entity, current, expected),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"entity":   entity,
			"id":       id,
			"current":  current,
			"expected": expected,
		},
	}
}

// NewEmptyNote is returned when concluding a note without lines.
func NewEmptyNote(noteID any) *AppError {
	return &AppError{
		Code:       CodeEmptyNote,
		Message:    "movement note has no lines",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"note_id": noteID},
	}
}

// NewInsufficientStock creates a stock shortage error.
func NewInsufficientStock(itemTypeID string, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"item_type_id": itemTypeID,
			"requested":    requested,
			"available":    available,
		},
	}
}

// NewInvalidItemState is the per-unit condition check failure inside returns.
func NewInvalidItemState(unitID any, current, expected string) *AppError {
	return &AppError{
		Code:       CodeInvalidItemState,
		Message:    fmt.Sprintf("delivery unit is %s, expected %s", current, expected),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"unit_id":  unitID,
			"current":  current,
			"expected": expected,
		},
	}
}

// NewDeliveryNotSigned rejects returns against a provisional delivery.
func NewDeliveryNotSigned(deliveryID any, status string) *AppError {
	return &AppError{
		Code:       CodeDeliveryNotSigned,
		Message:    "delivery must be signed before returns",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"delivery_id": deliveryID, "status": status},
	}
}

// NewCancellationWindowExpired rejects a return cancellation outside the grace window.
func NewCancellationWindowExpired(unitID any, returnedAt string, windowHours int) *AppError {
	return &AppError{
		Code:       CodeCancellationWindow,
		Message:    "return cancellation window has expired",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"unit_id":      unitID,
			"returned_at":  returnedAt,
			"window_hours": windowHours,
		},
	}
}

// NewNoAdjustmentNeeded rejects a direct adjustment with zero delta.
func NewNoAdjustmentNeeded(current int64) *AppError {
	return &AppError{
		Code:       CodeNoAdjustmentNeeded,
		Message:    "counted quantity equals current balance",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"current": current},
	}
}

// NewAlreadyReversed guards double reversal of a ledger entry.
func NewAlreadyReversed(entryID any) *AppError {
	return &AppError{
		Code:       CodeAlreadyReversed,
		Message:    "ledger entry is already reversed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entry_id": entryID},
	}
}

// NewPermissionDenied creates an authorization error (403).
func NewPermissionDenied(message string) *AppError {
	return &AppError{
		Code:       CodePermissionDenied,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConcurrentModification creates an optimistic locking error.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}
