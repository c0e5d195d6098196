// internal/center/demo.go
package center

import (
	"time"

	"notification-center/internal/models"

	"github.com/google/uuid"
)

// demoNotifications is the built-in list shown when initialization
// fails entirely. It keeps the UI populated instead of blank.
func demoNotifications(userID string) []models.Notification {
	now := time.Now().UTC()
	return []models.Notification{
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			Title:     "Welcome to your notification center",
			Message:   "Updates about new features and security improvements show up here.",
			Type:      models.TypeInfo,
			Icon:      "👋",
			Timestamp: now,
			Read:      false,
		},
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			Title:     "Smart collections are here",
			Message:   "Bookmarks now organize themselves by topic automatically.",
			Type:      models.TypeFeature,
			Icon:      "✨",
			Timestamp: now.Add(-2 * time.Hour),
			Read:      false,
		},
		{
			ID:        uuid.New().String(),
			UserID:    userID,
			Title:     "Two-factor authentication available",
			Message:   "Protect your account by enabling 2FA in security settings.",
			Type:      models.TypeSecurity,
			Icon:      "🔒",
			Timestamp: now.Add(-26 * time.Hour),
			Read:      true,
		},
	}
}
