// test/e2e/e2e_test.go
//
// End-to-end coverage of the realtime pipeline: a notification created
// through one store client reaches a second client's center over the
// shared Redis channel, and the center's unread counter tracks the
// change stream.
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-center/internal/center"
	"notification-center/internal/common/config"
	"notification-center/internal/common/logger"
	"notification-center/internal/kvstorage"
	"notification-center/internal/models"
	"notification-center/internal/store"
)

type client struct {
	store *store.Store
	mock  sqlmock.Sqlmock
}

func newClient(t *testing.T, mr *miniredis.Miniredis) *client {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := store.New(db, rdb, logger.NewTestLogger(t), nil)
	t.Cleanup(s.Cleanup)
	return &client{store: s, mock: mock}
}

func TestCrossClientNotificationFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	// Client A only creates; client B runs a full center session.
	sender := newClient(t, mr)
	receiver := newClient(t, mr)

	receiver.mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "title", "message", "type", "icon",
			"timestamp", "read", "action_url", "priority",
		}))
	receiver.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	users := center.UserProviderFunc(func() (string, bool) { return "user-1", true })
	cfg := config.CenterConfig{PageSize: 50, ToastBuffer: 4}
	ctr := center.New(receiver.store, nil, kvstorage.NewMemoryStorage(), users, cfg, time.Hour, logger.NewTestLogger(t))
	t.Cleanup(ctr.Close)

	require.NoError(t, ctr.Initialize(ctx))
	require.Empty(t, ctr.Notifications())

	// Sender inserts; the event crosses the Redis channel into the
	// receiver's center.
	sender.mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := sender.store.Create(ctx, "user-1", models.NotificationFields{
		Title:   "Two-factor authentication available",
		Message: "Enable 2FA in security settings.",
		Type:    models.TypeSecurity,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		list := ctr.Notifications()
		return len(list) == 1 && list[0].ID == created.ID
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, ctr.UnreadCount())

	select {
	case toast := <-ctr.Toasts():
		assert.Equal(t, created.ID, toast.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a toast for the realtime arrival")
	}

	// The receiver marks it read; its own echo must not double-count.
	receiver.mock.ExpectQuery(`UPDATE notifications SET read = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "title", "message", "type", "icon",
			"timestamp", "read", "action_url", "priority",
		}).AddRow(created.ID, "user-1", created.Title, created.Message,
			string(created.Type), "", created.Timestamp, true, "", ""))

	require.NoError(t, ctr.MarkAsRead(ctx, created.ID))
	assert.Equal(t, 0, ctr.UnreadCount())

	// Give the echo time to arrive, then re-check the counter held.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, ctr.UnreadCount())
	list := ctr.Notifications()
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestCrossClientDeleteRace(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	deleter := newClient(t, mr)
	receiver := newClient(t, mr)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	receiver.mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "title", "message", "type", "icon",
			"timestamp", "read", "action_url", "priority",
		}).AddRow("n-1", "user-1", "t", "m", "info", "", ts, false, "", ""))
	receiver.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users := center.UserProviderFunc(func() (string, bool) { return "user-1", true })
	cfg := config.CenterConfig{PageSize: 50, ToastBuffer: 4}
	ctr := center.New(receiver.store, nil, kvstorage.NewMemoryStorage(), users, cfg, time.Hour, logger.NewTestLogger(t))
	t.Cleanup(ctr.Close)

	require.NoError(t, ctr.Initialize(ctx))
	require.Equal(t, 1, ctr.UnreadCount())

	// Another client deletes the record the receiver still holds
	// unread; the counter must settle at zero, never negative.
	deleter.mock.ExpectQuery(`DELETE FROM notifications`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "title", "message", "type", "icon",
			"timestamp", "read", "action_url", "priority",
		}).AddRow("n-1", "user-1", "t", "m", "info", "", ts, false, "", ""))
	require.NoError(t, deleter.store.Initialize(ctx, "user-1"))
	require.NoError(t, deleter.store.Delete(ctx, "n-1", "user-1"))

	require.Eventually(t, func() bool {
		return len(ctr.Notifications()) == 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, ctr.UnreadCount())

	// A late mark-read for the deleted id is ignored on both sides.
	receiver.mock.ExpectQuery(`UPDATE notifications SET read = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "title", "message", "type", "icon",
			"timestamp", "read", "action_url", "priority",
		}))
	require.NoError(t, ctr.MarkAsRead(ctx, "n-1"))
	assert.Equal(t, 0, ctr.UnreadCount())
	assert.Empty(t, ctr.Notifications())
}
