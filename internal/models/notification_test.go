// internal/models/notification_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidType(t *testing.T) {
	tests := []struct {
		name  string
		t     NotificationType
		valid bool
	}{
		{"feature", TypeFeature, true},
		{"security", TypeSecurity, true},
		{"improvement", TypeImprovement, true},
		{"info", TypeInfo, true},
		{"unknown", NotificationType("promo"), false},
		{"empty", NotificationType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidType(tt.t))
		})
	}
}

func TestUpdateFields(t *testing.T) {
	u := Update{
		ID:          "feature-x",
		Title:       "Feature X",
		Message:     "Now available",
		Type:        TypeFeature,
		Icon:        "✨",
		ReleaseDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		ActionURL:   "/features/x",
	}

	f := u.Fields()
	assert.Equal(t, u.Title, f.Title)
	assert.Equal(t, u.Message, f.Message)
	assert.Equal(t, u.Type, f.Type)
	assert.Equal(t, u.Icon, f.Icon)
	assert.Equal(t, u.ActionURL, f.ActionURL)
	assert.Empty(t, f.Priority)
}
