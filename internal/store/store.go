// Package store implements the durable notification store with a
// realtime change feed and an in-memory fallback.
//
// Failure semantics are deliberately asymmetric: read and mutation
// paths never propagate backend errors (they serve or mutate the
// fallback set and still emit change events), while Create always
// surfaces failure so callers can retry or report. Badge counts and
// list contents depend on this asymmetry.
package store

import (
	"context"

	"notification-center/internal/models"
)

// NotificationStore is the persistence and realtime transport boundary
// for one user's notifications.
type NotificationStore interface {
	// Initialize opens the realtime subscription for userID. A second
	// call for the same user is a no-op.
	Initialize(ctx context.Context, userID string) error

	// List fetches a page of notifications ordered newest-first. On
	// backend failure it serves the in-memory fallback set instead of
	// propagating the error.
	List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)

	// UnreadCount returns the count of unread notifications, with the
	// same fallback behavior as List.
	UnreadCount(ctx context.Context, userID string) (int, error)

	// Create inserts a notification with read=false and a
	// store-assigned id and timestamp. Errors propagate.
	Create(ctx context.Context, userID string, fields models.NotificationFields) (*models.Notification, error)

	// MarkRead, MarkAllRead, Delete and ClearAll attempt the durable
	// mutation; on failure they mutate the fallback set and still emit
	// the corresponding change event. Unknown ids are no-ops.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id, userID string) error

	// ClearAll removes every notification for the user in one bulk
	// delete and reports the removed ids.
	ClearAll(ctx context.Context, userID string) ([]string, error)

	// Subscribe registers fn for change events from any client. The
	// returned func unregisters it.
	Subscribe(fn func(models.ChangeEvent)) (unsubscribe func())

	// Cleanup tears down subscriptions and listeners. Safe to call
	// multiple times.
	Cleanup()
}
