// internal/store/realtime.go
package store

import (
	"context"
	"encoding/json"

	"notification-center/internal/common/metrics"
	"notification-center/internal/models"

	"github.com/redis/go-redis/v9"
)

// channelFor returns the per-user realtime channel name.
func channelFor(userID string) string {
	return "notifications:" + userID
}

// readChannel pumps realtime messages into local subscribers until the
// pubsub is closed.
func (s *Store) readChannel(pubsub *redis.PubSub) {
	defer s.wg.Done()

	for msg := range pubsub.Channel() {
		var ev models.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			s.log.Warn("dropping malformed realtime payload", map[string]interface{}{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
			continue
		}
		if ev.Type == "" || ev.Notification.ID == "" {
			s.log.Warn("dropping incomplete realtime event", map[string]interface{}{
				"channel": msg.Channel,
			})
			continue
		}
		s.dispatch(ev)
	}
}

// publish sends the event over the realtime channel. When the channel
// is unavailable the event is delivered to local subscribers directly
// so this process stays consistent with its own mutations.
func (s *Store) publish(ctx context.Context, userID string, ev models.ChangeEvent) {
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("marshal change event", map[string]interface{}{"error": err.Error()})
		s.dispatch(ev)
		return
	}

	if err := s.rdb.Publish(ctx, channelFor(userID), data).Err(); err != nil {
		s.log.Warn("realtime publish failed, delivering locally", map[string]interface{}{
			"userId": userID,
			"event":  string(ev.Type),
			"error":  err.Error(),
		})
		s.dispatch(ev)
	}
}

// dispatch fans an event out to local subscribers. Callbacks run
// outside the store lock.
func (s *Store) dispatch(ev models.ChangeEvent) {
	s.mu.Lock()
	fns := make([]func(models.ChangeEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
