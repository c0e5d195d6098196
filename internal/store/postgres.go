// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	apperrors "notification-center/internal/common/errors"
	"notification-center/internal/common/logger"
	"notification-center/internal/common/metrics"
	"notification-center/internal/common/observability"
	"notification-center/internal/common/validation"
	"notification-center/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const returningColumns = `id, user_id, title, message, type, icon, timestamp, read, action_url, priority`

// Store is the PostgreSQL-backed NotificationStore with a Redis
// realtime channel and an in-memory fallback set.
type Store struct {
	db       *sql.DB
	rdb      *redis.Client
	log      logger.Logger
	obs      *observability.Observability
	fallback *fallbackStore

	mu          sync.Mutex
	subscribers map[int]func(models.ChangeEvent)
	nextSubID   int
	pubsubs     map[string]*redis.PubSub
	wg          sync.WaitGroup
}

// New creates a Store. obs may be nil.
func New(db *sql.DB, rdb *redis.Client, log logger.Logger, obs *observability.Observability) *Store {
	return &Store{
		db:          db,
		rdb:         rdb,
		log:         log.WithFields(map[string]interface{}{"component": "notification-store"}),
		obs:         obs,
		fallback:    newFallbackStore(),
		subscribers: make(map[int]func(models.ChangeEvent)),
		pubsubs:     make(map[string]*redis.PubSub),
	}
}

// createSchema validates the caller-supplied portion of a notification.
var createSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"title":     {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(200)},
		"message":   {Type: "string", MaxLength: intPtr(2000)},
		"type":      {Type: "string", Enum: []string{"feature", "security", "improvement", "info"}},
		"icon":      {Type: "string", MaxLength: intPtr(16)},
		"actionUrl": {Type: "string", MaxLength: intPtr(2048)},
		"priority":  {Type: "string", Enum: []string{"", "low", "medium", "high"}},
	},
	Required: []string{"title", "type"},
}

func intPtr(v int) *int { return &v }

// ==========================
// Lifecycle
// ==========================

// Initialize opens the realtime subscription for userID. Idempotent.
func (s *Store) Initialize(ctx context.Context, userID string) error {
	s.mu.Lock()
	if _, ok := s.pubsubs[userID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	pubsub := s.rdb.Subscribe(ctx, channelFor(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return apperrors.NewChannelUnavailableError(err)
	}

	s.mu.Lock()
	if _, ok := s.pubsubs[userID]; ok {
		// Lost the race with another Initialize for the same user.
		s.mu.Unlock()
		_ = pubsub.Close()
		return nil
	}
	s.pubsubs[userID] = pubsub
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readChannel(pubsub)

	s.log.Info("realtime subscription opened", map[string]interface{}{"userId": userID})
	return nil
}

// Cleanup unsubscribes every realtime channel and drops listeners.
// Safe to call multiple times.
func (s *Store) Cleanup() {
	s.mu.Lock()
	pubsubs := s.pubsubs
	s.pubsubs = make(map[string]*redis.PubSub)
	s.subscribers = make(map[int]func(models.ChangeEvent))
	s.mu.Unlock()

	for _, ps := range pubsubs {
		_ = ps.Close()
	}
	s.wg.Wait()
}

// Subscribe registers fn for change events. The returned func
// unregisters it.
func (s *Store) Subscribe(fn func(models.ChangeEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// ==========================
// Read path (fallback on failure)
// ==========================

// List fetches a page ordered newest-first. Backend failures serve the
// fallback set and are never propagated.
func (s *Store) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+returningColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		s.fallbackRead("list", err)
		return s.fallback.list(userID, limit, offset), nil
	}
	defer rows.Close()

	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := scanNotification(rows, &n); err != nil {
			s.fallbackRead("list", err)
			return s.fallback.list(userID, limit, offset), nil
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		s.fallbackRead("list", err)
		return s.fallback.list(userID, limit, offset), nil
	}

	if list == nil {
		list = []models.Notification{}
	}

	// Refresh the fallback mirror so a later outage serves recent data.
	if offset == 0 {
		s.fallback.seed(userID, list)
	}

	s.recordOp(ctx, "list", "ok", start)
	return list, nil
}

// UnreadCount returns the unread count with the same fallback behavior
// as List.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	start := time.Now()
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND read = FALSE`, userID).Scan(&count)
	if err != nil {
		s.fallbackRead("unread_count", err)
		return s.fallback.unreadCount(userID), nil
	}

	s.recordOp(ctx, "unread_count", "ok", start)
	return count, nil
}

// ==========================
// Create (errors propagate)
// ==========================

// Create inserts with read=false and a store-assigned id and
// timestamp. This path has no fallback: callers must see failures.
func (s *Store) Create(ctx context.Context, userID string, fields models.NotificationFields) (*models.Notification, error) {
	if result := validation.ValidateInput(fieldsToMap(fields), createSchema); !result.Valid {
		return nil, apperrors.NewValidationFailedError(formatValidationErrors(result.Errors))
	}

	n := models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     fields.Title,
		Message:   fields.Message,
		Type:      fields.Type,
		Icon:      fields.Icon,
		Timestamp: time.Now().UTC(),
		Read:      false,
		ActionURL: fields.ActionURL,
		Priority:  fields.Priority,
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, icon, timestamp, read, action_url, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type), n.Icon, n.Timestamp, n.Read, n.ActionURL, n.Priority)
	if err != nil {
		s.recordOp(ctx, "create", "error", start)
		return nil, apperrors.NewCreateFailedError(err)
	}

	s.fallback.upsert(n)
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	s.publish(ctx, userID, models.ChangeEvent{Type: models.EventCreated, Notification: n})
	s.recordOp(ctx, "create", "ok", start)
	return &n, nil
}

// ==========================
// Mutations (fallback on failure)
// ==========================

// MarkRead flips the read flag. An unknown id is a no-op; a backend
// failure mutates the fallback set and still emits the change event.
func (s *Store) MarkRead(ctx context.Context, id, userID string) error {
	start := time.Now()
	var n models.Notification
	row := s.db.QueryRowContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING `+returningColumns, id, userID)
	err := scanNotification(row, &n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.fallbackMutation("mark_read", err)
		n, ok := s.fallback.markRead(id, userID)
		if !ok {
			n = models.Notification{ID: id, UserID: userID, Read: true}
		}
		s.dispatch(models.ChangeEvent{Type: models.EventUpdated, Notification: n})
		return nil
	}

	s.fallback.markRead(id, userID)
	s.publish(ctx, userID, models.ChangeEvent{Type: models.EventUpdated, Notification: n})
	s.recordOp(ctx, "mark_read", "ok", start)
	return nil
}

// MarkAllRead flips every unread entry, emitting one update event per
// changed record.
func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE user_id = $1 AND read = FALSE
		RETURNING `+returningColumns, userID)
	if err != nil {
		s.fallbackMutation("mark_all_read", err)
		for _, n := range s.fallback.markAllRead(userID) {
			s.dispatch(models.ChangeEvent{Type: models.EventUpdated, Notification: n})
		}
		return nil
	}
	defer rows.Close()

	var changed []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := scanNotification(rows, &n); err != nil {
			break
		}
		changed = append(changed, n)
	}

	s.fallback.markAllRead(userID)
	for _, n := range changed {
		s.publish(ctx, userID, models.ChangeEvent{Type: models.EventUpdated, Notification: n})
	}
	s.recordOp(ctx, "mark_all_read", "ok", start)
	return nil
}

// Delete removes one notification. Unknown ids are no-ops.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	start := time.Now()
	var n models.Notification
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM notifications
		WHERE id = $1 AND user_id = $2
		RETURNING `+returningColumns, id, userID)
	err := scanNotification(row, &n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.fallbackMutation("delete", err)
		n, ok := s.fallback.delete(id, userID)
		if !ok {
			n = models.Notification{ID: id, UserID: userID}
		}
		s.dispatch(models.ChangeEvent{Type: models.EventDeleted, Notification: n})
		return nil
	}

	s.fallback.delete(id, userID)
	s.publish(ctx, userID, models.ChangeEvent{Type: models.EventDeleted, Notification: n})
	s.recordOp(ctx, "delete", "ok", start)
	return nil
}

// ClearAll removes every notification for the user in a single bulk
// delete and reports the removed ids.
func (s *Store) ClearAll(ctx context.Context, userID string) ([]string, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM notifications
		WHERE user_id = $1
		RETURNING `+returningColumns, userID)
	if err != nil {
		s.fallbackMutation("clear_all", err)
		removed := s.fallback.clearAll(userID)
		ids := make([]string, 0, len(removed))
		for _, n := range removed {
			ids = append(ids, n.ID)
			s.dispatch(models.ChangeEvent{Type: models.EventDeleted, Notification: n})
		}
		return ids, nil
	}
	defer rows.Close()

	var removed []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := scanNotification(rows, &n); err != nil {
			break
		}
		removed = append(removed, n)
	}

	s.fallback.clearAll(userID)
	ids := make([]string, 0, len(removed))
	for _, n := range removed {
		ids = append(ids, n.ID)
		s.publish(ctx, userID, models.ChangeEvent{Type: models.EventDeleted, Notification: n})
	}
	s.recordOp(ctx, "clear_all", "ok", start)
	return ids, nil
}

// ==========================
// Helpers
// ==========================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner, n *models.Notification) error {
	return row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
		&n.Icon, &n.Timestamp, &n.Read, &n.ActionURL, &n.Priority,
	)
}

func fieldsToMap(f models.NotificationFields) map[string]interface{} {
	m := map[string]interface{}{
		"title": f.Title,
		"type":  string(f.Type),
	}
	if f.Message != "" {
		m["message"] = f.Message
	}
	if f.Icon != "" {
		m["icon"] = f.Icon
	}
	if f.ActionURL != "" {
		m["actionUrl"] = f.ActionURL
	}
	if f.Priority != "" {
		m["priority"] = f.Priority
	}
	return m
}

func formatValidationErrors(errs []validation.ValidationError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e.Field + ": " + e.Message
	}
	return out
}

func (s *Store) fallbackRead(op string, err error) {
	metrics.FallbackActivations.WithLabelValues(op).Inc()
	if s.obs != nil {
		s.obs.RecordOperation(context.Background(), op, "fallback")
	}
	s.log.Warn("backend read failed, serving fallback set", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
}

func (s *Store) fallbackMutation(op string, err error) {
	metrics.FallbackActivations.WithLabelValues(op).Inc()
	if s.obs != nil {
		s.obs.RecordOperation(context.Background(), op, "fallback")
	}
	s.log.Warn("backend mutation failed, mutating fallback set", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
}

func (s *Store) recordOp(ctx context.Context, op, outcome string, start time.Time) {
	if s.obs != nil {
		s.obs.RecordOperation(ctx, op, outcome)
		s.obs.RecordDuration(ctx, op, time.Since(start))
	}
}
