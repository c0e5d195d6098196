// Package archive indexes notification lifecycle events into
// Elasticsearch for the product statistics views. Indexing is
// best-effort: failures are logged and never propagate to the paths
// that produced the event.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "notification-center/internal/common/errors"
	"notification-center/internal/common/logger"
	"notification-center/internal/models"
	"notification-center/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
)

// document is the indexed shape of one lifecycle event.
type document struct {
	EventType        models.EventType        `json:"eventType"`
	UserID           string                  `json:"userId"`
	NotificationID   string                  `json:"notificationId"`
	NotificationType models.NotificationType `json:"notificationType"`
	Read             bool                    `json:"read"`
	Priority         string                  `json:"priority,omitempty"`
	OccurredAt       time.Time               `json:"occurredAt"`
}

// Archiver writes lifecycle events to an Elasticsearch index.
type Archiver struct {
	es    *elasticsearch.Client
	index string
	log   logger.Logger
}

func New(es *elasticsearch.Client, index string, log logger.Logger) *Archiver {
	return &Archiver{
		es:    es,
		index: index,
		log:   log.WithFields(map[string]interface{}{"component": "archive"}),
	}
}

// Attach subscribes the archiver to the store's change feed. The
// returned func detaches it.
func (a *Archiver) Attach(st store.NotificationStore) func() {
	return st.Subscribe(func(ev models.ChangeEvent) {
		go a.Index(context.Background(), ev)
	})
}

// Index writes one event document. Errors are logged only.
func (a *Archiver) Index(ctx context.Context, ev models.ChangeEvent) {
	doc := document{
		EventType:        ev.Type,
		UserID:           ev.Notification.UserID,
		NotificationID:   ev.Notification.ID,
		NotificationType: ev.Notification.Type,
		Read:             ev.Notification.Read,
		Priority:         ev.Notification.Priority,
		OccurredAt:       time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		a.log.Warn("archive document marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	res, err := a.es.Index(
		a.index,
		bytes.NewReader(body),
		a.es.Index.WithContext(ctx),
		a.es.Index.WithDocumentID(uuid.New().String()),
	)
	if err != nil {
		a.log.Warn("archive index write failed", map[string]interface{}{
			"error": apperrors.NewArchiveIndexFailedError(err).Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		a.log.Warn("archive index write rejected", map[string]interface{}{
			"error": apperrors.NewArchiveIndexFailedError(fmt.Errorf("status %s", res.Status())).Error(),
		})
	}
}
