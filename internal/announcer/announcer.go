// Package announcer surfaces product updates as notifications. It
// keeps a catalog of updates (embedded, optionally refreshed from a
// remote feed), a persisted set of already-announced ids, and a
// persisted last-checked timestamp gating how often a check runs.
package announcer

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"notification-center/internal/common/config"
	apperrors "notification-center/internal/common/errors"
	commonhttp "notification-center/internal/common/http"
	"notification-center/internal/common/logger"
	"notification-center/internal/common/metrics"
	"notification-center/internal/kvstorage"
	"notification-center/internal/models"
)

const (
	keyLastChecked = "notification_updates_last_checked"
	keySeenUpdates = "notification_updates_seen"
)

// Announcer decides which catalog updates are worth announcing.
type Announcer struct {
	storage kvstorage.Storage
	http    *commonhttp.Client
	cfg     config.AnnouncerConfig
	log     logger.Logger
}

// New creates an Announcer. httpClient may be nil when no remote feed
// is configured.
func New(storage kvstorage.Storage, httpClient *commonhttp.Client, cfg config.AnnouncerConfig, log logger.Logger) *Announcer {
	return &Announcer{
		storage: storage,
		http:    httpClient,
		cfg:     cfg,
		log:     log.WithFields(map[string]interface{}{"component": "update-announcer"}),
	}
}

// ==========================
// Catalog queries
// ==========================

// ListAvailableUpdates returns catalog entries released within the
// trailing window ending at now, newest first. now is a parameter so
// the window is deterministic under test.
func (a *Announcer) ListAvailableUpdates(ctx context.Context, now time.Time) []models.Update {
	cutoff := now.AddDate(0, 0, -a.cfg.WindowDays)

	var out []models.Update
	for _, u := range a.catalog(ctx) {
		if u.ReleaseDate.After(cutoff) && !u.ReleaseDate.After(now) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReleaseDate.After(out[j].ReleaseDate)
	})
	return out
}

// CheckForNewUpdates runs one gated check: if the last check happened
// less than the configured gap ago it returns nothing, otherwise it
// returns the in-window entries not yet announced and advances the
// last-checked timestamp.
func (a *Announcer) CheckForNewUpdates(ctx context.Context, now time.Time) ([]models.Update, error) {
	lastRaw, hasLast, err := a.storage.Get(ctx, keyLastChecked)
	if err != nil {
		metrics.AnnouncerChecks.WithLabelValues("error").Inc()
		return nil, apperrors.NewStorageReadFailedError(keyLastChecked, err)
	}

	var lastChecked time.Time
	if hasLast {
		lastChecked, err = time.Parse(time.RFC3339, lastRaw)
		if err != nil {
			// Corrupt timestamp: treat as never checked.
			a.log.Warn("discarding unparseable last-checked timestamp", map[string]interface{}{
				"value": lastRaw,
			})
			hasLast = false
		}
	}

	gap := time.Duration(a.cfg.CheckGapHours) * time.Hour
	if hasLast && now.Sub(lastChecked) < gap {
		metrics.AnnouncerChecks.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	seen, err := a.loadSeen(ctx)
	if err != nil {
		metrics.AnnouncerChecks.WithLabelValues("error").Inc()
		return nil, err
	}

	var fresh []models.Update
	for _, u := range a.ListAvailableUpdates(ctx, now) {
		if seen[u.ID] {
			continue
		}
		if hasLast && !u.ReleaseDate.After(lastChecked) {
			continue
		}
		fresh = append(fresh, u)
	}

	if err := a.storage.Set(ctx, keyLastChecked, now.UTC().Format(time.RFC3339)); err != nil {
		metrics.AnnouncerChecks.WithLabelValues("error").Inc()
		return nil, apperrors.NewStorageWriteFailedError(keyLastChecked, err)
	}

	metrics.AnnouncerChecks.WithLabelValues("ok").Inc()
	return fresh, nil
}

// ==========================
// Seen set
// ==========================

// IsUpdateSeen reports whether the update id was already announced.
func (a *Announcer) IsUpdateSeen(ctx context.Context, id string) (bool, error) {
	seen, err := a.loadSeen(ctx)
	if err != nil {
		return false, err
	}
	return seen[id], nil
}

// MarkUpdateAsSeen records the id so it is never announced again.
func (a *Announcer) MarkUpdateAsSeen(ctx context.Context, id string) error {
	seen, err := a.loadSeen(ctx)
	if err != nil {
		return err
	}
	if seen[id] {
		return nil
	}
	seen[id] = true

	ids := make([]string, 0, len(seen))
	for k := range seen {
		ids = append(ids, k)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := a.storage.Set(ctx, keySeenUpdates, string(data)); err != nil {
		return apperrors.NewStorageWriteFailedError(keySeenUpdates, err)
	}
	return nil
}

func (a *Announcer) loadSeen(ctx context.Context) (map[string]bool, error) {
	raw, ok, err := a.storage.Get(ctx, keySeenUpdates)
	if err != nil {
		return nil, apperrors.NewStorageReadFailedError(keySeenUpdates, err)
	}
	seen := make(map[string]bool)
	if !ok {
		return seen, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// Corrupt set: start over rather than fail every check.
		a.log.Warn("discarding unparseable seen-update set", nil)
		return seen, nil
	}
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// ==========================
// Periodic loop
// ==========================

// StartPeriodicCheck runs one check after a short initial delay, then
// on every interval tick, invoking cb with any fresh updates. Check
// errors are logged and the loop keeps running. The returned func
// stops the loop and is safe to call more than once.
func (a *Announcer) StartPeriodicCheck(ctx context.Context, interval time.Duration, cb func([]models.Update)) func() {
	stopCh := make(chan struct{})
	var once sync.Once

	go func() {
		initialDelay := time.Duration(a.cfg.InitialDelayMS) * time.Millisecond
		timer := time.NewTimer(initialDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
			a.runOnce(ctx, cb)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.runOnce(ctx, cb)
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopCh) })
	}
}

func (a *Announcer) runOnce(ctx context.Context, cb func([]models.Update)) {
	fresh, err := a.CheckForNewUpdates(ctx, time.Now())
	if err != nil {
		a.log.Warn("periodic update check failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(fresh) > 0 {
		cb(fresh)
	}
}
