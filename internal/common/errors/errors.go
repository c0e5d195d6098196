// Package errors provides standardized error handling for the
// notification center.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeCreateFailed       ErrorCode = "NOTIFICATION_CREATE_FAILED"
	ErrCodeNotFound           ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeValidationFailed   ErrorCode = "NOTIFICATION_VALIDATION_FAILED"
	ErrCodeChannelUnavailable ErrorCode = "REALTIME_CHANNEL_UNAVAILABLE"
	ErrCodeStorageReadFailed  ErrorCode = "KV_STORAGE_READ_FAILED"
	ErrCodeStorageWriteFailed ErrorCode = "KV_STORAGE_WRITE_FAILED"
	ErrCodeCatalogFetchFailed ErrorCode = "CATALOG_FETCH_FAILED"
	ErrCodeDeliveryFailed     ErrorCode = "DELIVERY_SEND_FAILED"
	ErrCodeArchiveIndexFailed ErrorCode = "ARCHIVE_INDEX_FAILED"
	ErrCodeNoUser             ErrorCode = "NO_AUTHENTICATED_USER"
)

// StandardError is a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewStoreUnavailableError marks a retryable durable-backend failure.
// Read and mutation paths swallow this and serve the fallback set;
// only create propagates it.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Notification store backend unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCreateFailedError marks a failed notification insert. Create
// failures always surface to the caller so the UI can retry or report.
func NewCreateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCreateFailed,
		Message:   "Notification create failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotFoundError marks a missing notification id.
func NewNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError marks rejected notification fields.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Notification fields validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelUnavailableError marks a realtime subscription failure.
func NewChannelUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelUnavailable,
		Message:   "Realtime channel subscription failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStorageReadFailedError marks a key/value storage read failure.
func NewStorageReadFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageReadFailed,
		Message:   "Key/value storage read failed",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStorageWriteFailedError marks a key/value storage write failure.
func NewStorageWriteFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageWriteFailed,
		Message:   "Key/value storage write failed",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCatalogFetchFailedError marks a remote update-catalog fetch
// failure. The announcer falls back to the embedded catalog.
func NewCatalogFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogFetchFailed,
		Message:   "Update catalog fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDeliveryFailedError marks a failed out-of-band delivery attempt.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewArchiveIndexFailedError marks a failed analytics index write.
func NewArchiveIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveIndexFailed,
		Message:   "Archive index write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNoUserError marks an operation attempted without an authenticated
// user. Callers treat this state as "uninitialized, no-op".
func NewNoUserError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNoUser,
		Message:   "No authenticated user",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
