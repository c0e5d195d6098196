// Package center owns the in-memory notification state for one user
// session: the notification list, the unread counter and the listener
// surface the UI consumes. All state sits behind a single mutex; the
// unread counter is always derived-consistent with the list (unread ==
// count of read=false) after every settled operation and is clamped at
// zero.
package center

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"notification-center/internal/common/config"
	"notification-center/internal/common/logger"
	"notification-center/internal/common/metrics"
	"notification-center/internal/kvstorage"
	"notification-center/internal/models"
	"notification-center/internal/store"

	"github.com/google/uuid"
)

// UserProvider reports the authenticated user of the session. When no
// user is present every center operation is a no-op.
type UserProvider interface {
	CurrentUserID() (string, bool)
}

// UserProviderFunc adapts a func to UserProvider.
type UserProviderFunc func() (string, bool)

func (f UserProviderFunc) CurrentUserID() (string, bool) { return f() }

// UpdateSource feeds the center with product update announcements.
type UpdateSource interface {
	CheckForNewUpdates(ctx context.Context, now time.Time) ([]models.Update, error)
	MarkUpdateAsSeen(ctx context.Context, id string) error
	StartPeriodicCheck(ctx context.Context, interval time.Duration, cb func([]models.Update)) (stop func())
}

// ChangeListener receives a snapshot of the list and unread count after
// every state change.
type ChangeListener func(list []models.Notification, unread int)

// Center is the single source of truth for the session's notifications.
type Center struct {
	store         store.NotificationStore
	updates       UpdateSource
	cache         kvstorage.Storage
	users         UserProvider
	cfg           config.CenterConfig
	checkInterval time.Duration
	log           logger.Logger

	mu             sync.Mutex
	userID         string
	list           []models.Notification
	unread         int
	initialized    bool
	closed         bool
	listeners      map[int]ChangeListener
	nextListenerID int
	toasts         chan models.Notification

	unsubscribe   func()
	stopAnnouncer func()
}

// New creates a Center. updates may be nil to disable announcements.
func New(
	st store.NotificationStore,
	updates UpdateSource,
	cache kvstorage.Storage,
	users UserProvider,
	cfg config.CenterConfig,
	checkInterval time.Duration,
	log logger.Logger,
) *Center {
	return &Center{
		store:         st,
		updates:       updates,
		cache:         cache,
		users:         users,
		cfg:           cfg,
		checkInterval: checkInterval,
		log:           log.WithFields(map[string]interface{}{"component": "notification-center"}),
		listeners:     make(map[int]ChangeListener),
		toasts:        make(chan models.Notification, cfg.ToastBuffer),
	}
}

// ==========================
// Lifecycle
// ==========================

// Initialize seeds state from the store, subscribes the realtime feed
// and starts the periodic update check. A failed initialization
// discards partial state and seeds the built-in demo list so the UI
// still has something to show. Idempotent.
func (c *Center) Initialize(ctx context.Context) error {
	userID, ok := c.users.CurrentUserID()
	if !ok {
		c.log.Info("no authenticated user, notification center inactive", nil)
		return nil
	}

	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// Subscribe before the seeding read so no event falls in the gap;
	// applyEvent is idempotent by id, so overlap is harmless.
	unsubscribe := c.store.Subscribe(c.handleEvent)

	if err := c.store.Initialize(ctx, userID); err != nil {
		unsubscribe()
		c.log.Error("store initialization failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		c.seedDemo(userID)
		return nil
	}

	// List and UnreadCount never propagate backend errors (fallback
	// contract), so from here on initialization cannot fail.
	list, _ := c.store.List(ctx, userID, c.cfg.PageSize, 0)
	unread, _ := c.store.UnreadCount(ctx, userID)

	c.mu.Lock()
	c.userID = userID
	c.list = list
	c.unread = unread
	c.initialized = true
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	metrics.UnreadCount.WithLabelValues(userID).Set(float64(unread))
	c.notifyListeners()

	if c.updates != nil {
		c.runUpdateCheck(ctx, time.Now())
		c.mu.Lock()
		c.stopAnnouncer = c.updates.StartPeriodicCheck(ctx, c.checkInterval, func(fresh []models.Update) {
			c.announce(context.Background(), fresh)
		})
		c.mu.Unlock()
	}

	c.log.Info("notification center initialized", map[string]interface{}{
		"userId": userID,
		"count":  len(list),
		"unread": unread,
	})
	return nil
}

// Close stops the periodic check and drops the realtime subscription.
func (c *Center) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop := c.stopAnnouncer
	unsub := c.unsubscribe
	c.listeners = make(map[int]ChangeListener)
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if unsub != nil {
		unsub()
	}
}

// seedDemo installs the built-in demo list after a failed init.
func (c *Center) seedDemo(userID string) {
	var list []models.Notification
	if c.cfg.DemoFallback {
		list = demoNotifications(userID)
	}

	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}

	c.mu.Lock()
	c.userID = userID
	c.list = list
	c.unread = unread
	c.initialized = true
	c.mu.Unlock()

	metrics.UnreadCount.WithLabelValues(userID).Set(float64(unread))
	c.notifyListeners()
}

// ==========================
// Read surface
// ==========================

// Notifications returns a copy of the current list, newest first.
func (c *Center) Notifications() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Notification, len(c.list))
	copy(out, c.list)
	return out
}

// UnreadCount returns the current unread counter.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// OnChange registers a listener invoked with a snapshot after every
// state change. The returned func unregisters it.
func (c *Center) OnChange(fn ChangeListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Toasts exposes newly arrived realtime notifications. The channel is
// buffered; when full, toasts are dropped rather than blocking the
// event path.
func (c *Center) Toasts() <-chan models.Notification {
	return c.toasts
}

// ==========================
// Mutations
// ==========================

// MarkAsRead marks one notification read. Idempotent; the counter
// decrements by at most one and never goes below zero.
func (c *Center) MarkAsRead(ctx context.Context, id string) error {
	userID, ok := c.users.CurrentUserID()
	if !ok {
		return nil
	}

	if err := c.store.MarkRead(ctx, id, userID); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.list {
		if c.list[i].ID == id {
			if !c.list[i].Read {
				c.list[i].Read = true
				c.decrementUnreadLocked()
			}
			break
		}
	}
	c.mu.Unlock()

	c.notifyListeners()
	return nil
}

// MarkAllAsRead marks every notification read and zeroes the counter.
func (c *Center) MarkAllAsRead(ctx context.Context) error {
	userID, ok := c.users.CurrentUserID()
	if !ok {
		return nil
	}

	if err := c.store.MarkAllRead(ctx, userID); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.list {
		c.list[i].Read = true
	}
	c.unread = 0
	c.mu.Unlock()

	metrics.UnreadCount.WithLabelValues(userID).Set(0)
	c.notifyListeners()
	return nil
}

// RemoveNotification deletes one notification, decrementing the
// counter only if the removed entry was unread.
func (c *Center) RemoveNotification(ctx context.Context, id string) error {
	userID, ok := c.users.CurrentUserID()
	if !ok {
		return nil
	}

	if err := c.store.Delete(ctx, id, userID); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.list {
		if c.list[i].ID == id {
			wasUnread := !c.list[i].Read
			c.list = append(c.list[:i], c.list[i+1:]...)
			if wasUnread {
				c.decrementUnreadLocked()
			}
			break
		}
	}
	c.mu.Unlock()

	c.notifyListeners()
	return nil
}

// ClearAllNotifications removes everything and zeroes the counter.
func (c *Center) ClearAllNotifications(ctx context.Context) error {
	userID, ok := c.users.CurrentUserID()
	if !ok {
		return nil
	}

	if _, err := c.store.ClearAll(ctx, userID); err != nil {
		return err
	}

	c.mu.Lock()
	c.list = nil
	c.unread = 0
	c.mu.Unlock()

	metrics.UnreadCount.WithLabelValues(userID).Set(0)
	c.notifyListeners()
	return nil
}

// AddNotification appends a local-only notification synchronously: it
// never touches the durable store. Used for in-app signals that do not
// need to survive the session. The session cache write is best-effort.
func (c *Center) AddNotification(fields models.NotificationFields) *models.Notification {
	userID, ok := c.users.CurrentUserID()
	if !ok {
		return nil
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

	c.mu.Lock()
	c.list = append([]models.Notification{n}, c.list...)
	c.unread++
	unread := c.unread
	snapshot := make([]models.Notification, len(c.list))
	copy(snapshot, c.list)
	c.mu.Unlock()

	metrics.UnreadCount.WithLabelValues(userID).Set(float64(unread))
	c.writeSessionCache(userID, snapshot)
	c.notifyListeners()
	return &n
}

// SendNotification persists through the store only. Local state is not
// touched here: it updates when the realtime echo of the Created event
// arrives. Callers observing the list immediately after a successful
// send may not see the new entry yet.
func (c *Center) SendNotification(ctx context.Context, userID string, fields models.NotificationFields) error {
	_, err := c.store.Create(ctx, userID, fields)
	return err
}

// ==========================
// Realtime event handling
// ==========================

func (c *Center) handleEvent(ev models.ChangeEvent) {
	c.mu.Lock()
	if !c.initialized || c.closed || ev.Notification.UserID != c.userID {
		c.mu.Unlock()
		return
	}

	metrics.EventsApplied.WithLabelValues(string(ev.Type)).Inc()

	var toast *models.Notification
	switch ev.Type {
	case models.EventCreated:
		if idx := c.indexOfLocked(ev.Notification.ID); idx >= 0 {
			// Echo of an entry we already hold (seed overlap).
			c.applyReplaceLocked(idx, ev.Notification)
		} else {
			c.list = append([]models.Notification{ev.Notification}, c.list...)
			if !ev.Notification.Read {
				c.unread++
			}
			n := ev.Notification
			toast = &n
		}
	case models.EventUpdated:
		if idx := c.indexOfLocked(ev.Notification.ID); idx >= 0 {
			c.applyReplaceLocked(idx, ev.Notification)
		}
		// Unknown id: the record was removed locally first. Ignore so
		// deletions never resurrect.
	case models.EventDeleted:
		if idx := c.indexOfLocked(ev.Notification.ID); idx >= 0 {
			wasUnread := !c.list[idx].Read
			c.list = append(c.list[:idx], c.list[idx+1:]...)
			if wasUnread {
				c.decrementUnreadLocked()
			}
		}
	}

	userID := c.userID
	unread := c.unread
	c.mu.Unlock()

	metrics.UnreadCount.WithLabelValues(userID).Set(float64(unread))
	if toast != nil {
		select {
		case c.toasts <- *toast:
		default:
		}
	}
	c.notifyListeners()
}

func (c *Center) indexOfLocked(id string) int {
	for i := range c.list {
		if c.list[i].ID == id {
			return i
		}
	}
	return -1
}

// applyReplaceLocked swaps in the new record and adjusts the counter
// on a read-state transition.
func (c *Center) applyReplaceLocked(idx int, n models.Notification) {
	old := c.list[idx]
	c.list[idx] = n
	if !old.Read && n.Read {
		c.decrementUnreadLocked()
	} else if old.Read && !n.Read {
		// Read flags only move false -> true, but a foreign client
		// could misbehave. Keep the counter derived from the list.
		c.unread++
	}
}

func (c *Center) decrementUnreadLocked() {
	if c.unread > 0 {
		c.unread--
	}
}

func (c *Center) notifyListeners() {
	c.mu.Lock()
	fns := make([]ChangeListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	snapshot := make([]models.Notification, len(c.list))
	copy(snapshot, c.list)
	unread := c.unread
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot, unread)
	}
}

// ==========================
// Update announcements
// ==========================

// runUpdateCheck performs one gated check and announces the results.
func (c *Center) runUpdateCheck(ctx context.Context, now time.Time) {
	fresh, err := c.updates.CheckForNewUpdates(ctx, now)
	if err != nil {
		c.log.Warn("update check failed", map[string]interface{}{"error": err.Error()})
		return
	}
	c.announce(ctx, fresh)
}

// announce persists one notification per fresh catalog entry and marks
// it seen, so it is never announced again.
func (c *Center) announce(ctx context.Context, fresh []models.Update) {
	userID, ok := c.users.CurrentUserID()
	if !ok {
		return
	}

	for _, u := range fresh {
		if err := c.SendNotification(ctx, userID, u.Fields()); err != nil {
			c.log.Warn("announcing update failed", map[string]interface{}{
				"updateId": u.ID,
				"error":    err.Error(),
			})
			continue
		}
		if err := c.updates.MarkUpdateAsSeen(ctx, u.ID); err != nil {
			c.log.Warn("marking update seen failed", map[string]interface{}{
				"updateId": u.ID,
				"error":    err.Error(),
			})
		}
	}
}

// ==========================
// Session cache
// ==========================

func (c *Center) writeSessionCache(userID string, list []models.Notification) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := c.cache.Set(context.Background(), "session:"+userID, string(data)); err != nil {
		c.log.Debug("session cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
