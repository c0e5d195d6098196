// internal/archive/archive_test.go
package archive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"notification-center/internal/common/logger"
	"notification-center/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchiver(t *testing.T, handler http.HandlerFunc) *Archiver {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return New(es, "notification-events", logger.NewTestLogger(t))
}

func TestIndex_WritesLifecycleDocument(t *testing.T) {
	var got document
	var indexed int32
	a := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err == nil && got.NotificationID != "" {
			atomic.AddInt32(&indexed, 1)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"created"}`))
	})

	a.Index(context.Background(), models.ChangeEvent{
		Type: models.EventCreated,
		Notification: models.Notification{
			ID: "n-1", UserID: "user-1", Type: models.TypeSecurity, Priority: "high",
		},
	})

	require.EqualValues(t, 1, atomic.LoadInt32(&indexed))
	assert.Equal(t, models.EventCreated, got.EventType)
	assert.Equal(t, "n-1", got.NotificationID)
	assert.Equal(t, "user-1", got.UserID)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestIndex_RejectionIsSwallowed(t *testing.T) {
	a := newTestArchiver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"index_closed"}`))
	})

	// Must not panic or propagate.
	a.Index(context.Background(), models.ChangeEvent{
		Type:         models.EventDeleted,
		Notification: models.Notification{ID: "n-1", UserID: "user-1"},
	})
}
