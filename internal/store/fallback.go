// internal/store/fallback.go
package store

import (
	"sort"
	"sync"

	"notification-center/internal/models"
)

// fallbackStore is the in-memory substitute notification set used when
// the durable backend is unreachable. It is also refreshed from
// successful reads so a later outage serves recent data instead of an
// empty list.
type fallbackStore struct {
	mu    sync.Mutex
	users map[string][]models.Notification
}

func newFallbackStore() *fallbackStore {
	return &fallbackStore{users: make(map[string][]models.Notification)}
}

// seed replaces the user's cached set with the given notifications.
func (f *fallbackStore) seed(userID string, list []models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]models.Notification, len(list))
	copy(cp, list)
	f.users[userID] = cp
}

func (f *fallbackStore) list(userID string, limit, offset int) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := f.users[userID]
	sorted := make([]models.Notification, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if offset >= len(sorted) {
		return []models.Notification{}
	}
	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.Notification, end-offset)
	copy(out, sorted[offset:end])
	return out
}

func (f *fallbackStore) unreadCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, n := range f.users[userID] {
		if !n.Read {
			count++
		}
	}
	return count
}

func (f *fallbackStore) upsert(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.users[n.UserID]
	for i := range list {
		if list[i].ID == n.ID {
			list[i] = n
			return
		}
	}
	f.users[n.UserID] = append([]models.Notification{n}, list...)
}

// markRead flips the read flag and returns the updated record. ok is
// false when the id is unknown to the fallback set.
func (f *fallbackStore) markRead(id, userID string) (models.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.users[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return list[i], true
		}
	}
	return models.Notification{}, false
}

// markAllRead flips every unread entry and returns the ones that
// changed.
func (f *fallbackStore) markAllRead(userID string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	var changed []models.Notification
	list := f.users[userID]
	for i := range list {
		if !list[i].Read {
			list[i].Read = true
			changed = append(changed, list[i])
		}
	}
	return changed
}

func (f *fallbackStore) delete(id, userID string) (models.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.users[userID]
	for i := range list {
		if list[i].ID == id {
			removed := list[i]
			f.users[userID] = append(list[:i], list[i+1:]...)
			return removed, true
		}
	}
	return models.Notification{}, false
}

func (f *fallbackStore) clearAll(userID string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := f.users[userID]
	f.users[userID] = nil
	return removed
}
