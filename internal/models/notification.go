// internal/models/notification.go
package models

import "time"

// NotificationType tags a notification for display styling. It carries
// no behavioral meaning beyond icon/color lookup in the UI.
type NotificationType string

const (
	TypeFeature     NotificationType = "feature"
	TypeSecurity    NotificationType = "security"
	TypeImprovement NotificationType = "improvement"
	TypeInfo        NotificationType = "info"
)

// ValidTypes lists every accepted notification type.
var ValidTypes = []NotificationType{TypeFeature, TypeSecurity, TypeImprovement, TypeInfo}

// IsValidType reports whether t is a known notification type.
func IsValidType(t NotificationType) bool {
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Notification is a discrete user-facing message with read/unread state.
// IDs are opaque strings (UUIDs assigned at the store boundary);
// Timestamp is set once at creation and never mutated.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Icon      string           `json:"icon"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	ActionURL string           `json:"actionUrl,omitempty"`
	Priority  string           `json:"priority,omitempty"` // "high" routes SMS delivery
}

// NotificationFields is the caller-supplied portion of a notification.
// ID, timestamp and the read flag are assigned by the store.
type NotificationFields struct {
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Icon      string           `json:"icon"`
	ActionURL string           `json:"actionUrl,omitempty"`
	Priority  string           `json:"priority,omitempty"`
}

// EventType identifies a realtime change event.
type EventType string

const (
	EventCreated EventType = "new_notification"
	EventUpdated EventType = "notification_updated"
	EventDeleted EventType = "notification_deleted"
)

// ChangeEvent is delivered over the realtime channel whenever a
// notification is inserted, updated or deleted, regardless of which
// client caused the change.
type ChangeEvent struct {
	Type         EventType    `json:"type"`
	Notification Notification `json:"notification"`
}

// Update is one entry of the product update catalog announced by the
// update announcer.
type Update struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	Icon        string           `json:"icon"`
	ReleaseDate time.Time        `json:"releaseDate"`
	ActionURL   string           `json:"actionUrl,omitempty"`
}

// Fields converts a catalog update into creatable notification fields.
func (u Update) Fields() NotificationFields {
	return NotificationFields{
		Title:     u.Title,
		Message:   u.Message,
		Type:      u.Type,
		Icon:      u.Icon,
		ActionURL: u.ActionURL,
	}
}
