// internal/center/center_test.go
package center

import (
	"context"
	"errors"
	"testing"
	"time"

	"notification-center/internal/common/config"
	"notification-center/internal/common/logger"
	"notification-center/internal/kvstorage"
	"notification-center/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockStore struct {
	InitializeFunc  func(ctx context.Context, userID string) error
	ListFunc        func(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	UnreadCountFunc func(ctx context.Context, userID string) (int, error)
	CreateFunc      func(ctx context.Context, userID string, fields models.NotificationFields) (*models.Notification, error)
	MarkReadFunc    func(ctx context.Context, id, userID string) error
	MarkAllReadFunc func(ctx context.Context, userID string) error
	DeleteFunc      func(ctx context.Context, id, userID string) error
	ClearAllFunc    func(ctx context.Context, userID string) ([]string, error)

	subscriber func(models.ChangeEvent)
}

func (m *MockStore) Initialize(ctx context.Context, userID string) error {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, userID)
	}
	return nil
}

func (m *MockStore) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (m *MockStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockStore) Create(ctx context.Context, userID string, fields models.NotificationFields) (*models.Notification, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, fields)
	}
	return &models.Notification{ID: "created", UserID: userID}, nil
}

func (m *MockStore) MarkRead(ctx context.Context, id, userID string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id, userID)
	}
	return nil
}

func (m *MockStore) MarkAllRead(ctx context.Context, userID string) error {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, userID)
	}
	return nil
}

func (m *MockStore) Delete(ctx context.Context, id, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, userID)
	}
	return nil
}

func (m *MockStore) ClearAll(ctx context.Context, userID string) ([]string, error) {
	if m.ClearAllFunc != nil {
		return m.ClearAllFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockStore) Subscribe(fn func(models.ChangeEvent)) func() {
	m.subscriber = fn
	return func() { m.subscriber = nil }
}

func (m *MockStore) Cleanup() {}

// deliver pushes an event the way the realtime channel would.
func (m *MockStore) deliver(ev models.ChangeEvent) {
	if m.subscriber != nil {
		m.subscriber(ev)
	}
}

// ==========================
// Test Helper Functions
// ==========================

func testConfig() config.CenterConfig {
	return config.CenterConfig{PageSize: 50, ToastBuffer: 4, DemoFallback: true}
}

func staticUser(id string) UserProvider {
	return UserProviderFunc(func() (string, bool) { return id, id != "" })
}

func seededNotifications() []models.Notification {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []models.Notification{
		{ID: "n-2", UserID: "user-1", Title: "second", Timestamp: ts.Add(time.Hour), Read: false},
		{ID: "n-1", UserID: "user-1", Title: "first", Timestamp: ts, Read: true},
	}
}

func newTestCenter(t *testing.T, st *MockStore) *Center {
	t.Helper()
	c := New(st, nil, kvstorage.NewMemoryStorage(), staticUser("user-1"), testConfig(), time.Hour, logger.NewTestLogger(t))
	t.Cleanup(c.Close)
	return c
}

func newSeededCenter(t *testing.T, st *MockStore) *Center {
	t.Helper()
	st.ListFunc = func(context.Context, string, int, int) ([]models.Notification, error) {
		return seededNotifications(), nil
	}
	st.UnreadCountFunc = func(context.Context, string) (int, error) { return 1, nil }

	c := newTestCenter(t, st)
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

// assertCounterConsistent checks unread == count(read == false).
func assertCounterConsistent(t *testing.T, c *Center) {
	t.Helper()
	want := 0
	for _, n := range c.Notifications() {
		if !n.Read {
			want++
		}
	}
	assert.Equal(t, want, c.UnreadCount())
}

// ==========================
// Initialization
// ==========================

func TestInitialize_SeedsStateFromStore(t *testing.T) {
	st := &MockStore{}
	c := newSeededCenter(t, st)

	assert.Len(t, c.Notifications(), 2)
	assert.Equal(t, 1, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestInitialize_FailureSeedsDemoList(t *testing.T) {
	st := &MockStore{
		InitializeFunc: func(context.Context, string) error {
			return errors.New("channel down")
		},
	}
	c := newTestCenter(t, st)

	require.NoError(t, c.Initialize(context.Background()))
	assert.NotEmpty(t, c.Notifications())
	assertCounterConsistent(t, c)

	// The subscription was torn down: realtime events no longer apply.
	assert.Nil(t, st.subscriber)
}

func TestInitialize_FailureWithoutDemoFallbackLeavesEmptyState(t *testing.T) {
	st := &MockStore{
		InitializeFunc: func(context.Context, string) error {
			return errors.New("channel down")
		},
	}
	cfg := testConfig()
	cfg.DemoFallback = false
	c := New(st, nil, kvstorage.NewMemoryStorage(), staticUser("user-1"), cfg, time.Hour, logger.NewTestLogger(t))
	t.Cleanup(c.Close)

	require.NoError(t, c.Initialize(context.Background()))
	assert.Empty(t, c.Notifications())
	assert.Equal(t, 0, c.UnreadCount())
}

func TestInitialize_NoUserIsNoOp(t *testing.T) {
	st := &MockStore{
		InitializeFunc: func(context.Context, string) error {
			t.Fatal("store must not be touched without a user")
			return nil
		},
	}
	c := New(st, nil, kvstorage.NewMemoryStorage(), staticUser(""), testConfig(), time.Hour, logger.NewTestLogger(t))
	t.Cleanup(c.Close)

	require.NoError(t, c.Initialize(context.Background()))
	assert.Empty(t, c.Notifications())
}

// ==========================
// Mark as read
// ==========================

func TestMarkAsRead_DecrementsOnceAndIsIdempotent(t *testing.T) {
	c := newSeededCenter(t, &MockStore{})
	ctx := context.Background()

	require.NoError(t, c.MarkAsRead(ctx, "n-2"))
	assert.Equal(t, 0, c.UnreadCount())
	assertCounterConsistent(t, c)

	// Marking again changes nothing and never goes negative.
	require.NoError(t, c.MarkAsRead(ctx, "n-2"))
	require.NoError(t, c.MarkAsRead(ctx, "n-1"))
	assert.Equal(t, 0, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestMarkAsRead_AbsentIDIsNoOp(t *testing.T) {
	c := newSeededCenter(t, &MockStore{})

	require.NoError(t, c.MarkAsRead(context.Background(), "missing"))
	assert.Equal(t, 1, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestMarkAsRead_StoreErrorLeavesStateUntouched(t *testing.T) {
	st := &MockStore{
		MarkReadFunc: func(context.Context, string, string) error {
			return errors.New("rejected")
		},
	}
	c := newSeededCenter(t, st)

	err := c.MarkAsRead(context.Background(), "n-2")
	require.Error(t, err)
	assert.Equal(t, 1, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestMarkAllAsRead_ZeroesCounter(t *testing.T) {
	c := newSeededCenter(t, &MockStore{})

	require.NoError(t, c.MarkAllAsRead(context.Background()))
	assert.Equal(t, 0, c.UnreadCount())
	for _, n := range c.Notifications() {
		assert.True(t, n.Read)
	}
}

// ==========================
// Remove / clear
// ==========================

func TestRemoveNotification_DecrementsOnlyIfUnread(t *testing.T) {
	c := newSeededCenter(t, &MockStore{})
	ctx := context.Background()

	require.NoError(t, c.RemoveNotification(ctx, "n-1")) // read entry
	assert.Equal(t, 1, c.UnreadCount())

	require.NoError(t, c.RemoveNotification(ctx, "n-2")) // unread entry
	assert.Equal(t, 0, c.UnreadCount())
	assert.Empty(t, c.Notifications())
	assertCounterConsistent(t, c)
}

func TestClearAllNotifications_EmptiesEverything(t *testing.T) {
	st := &MockStore{
		ClearAllFunc: func(context.Context, string) ([]string, error) {
			return []string{"n-1", "n-2"}, nil
		},
	}
	c := newSeededCenter(t, st)

	require.NoError(t, c.ClearAllNotifications(context.Background()))
	assert.Empty(t, c.Notifications())
	assert.Equal(t, 0, c.UnreadCount())
}

// ==========================
// Add / send
// ==========================

func TestAddNotification_IsLocalOnlyAndSynchronous(t *testing.T) {
	st := &MockStore{
		CreateFunc: func(context.Context, string, models.NotificationFields) (*models.Notification, error) {
			t.Fatal("local add must not hit the store")
			return nil, nil
		},
	}
	c := newSeededCenter(t, st)

	n := c.AddNotification(models.NotificationFields{Title: "Link check finished", Type: models.TypeInfo})
	require.NotNil(t, n)
	assert.NotEmpty(t, n.ID)

	list := c.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, n.ID, list[0].ID)
	assert.Equal(t, 2, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestSendNotification_DoesNotTouchLocalStateUntilEcho(t *testing.T) {
	created := models.Notification{
		ID: "n-3", UserID: "user-1", Title: "fresh",
		Timestamp: time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
	}
	st := &MockStore{
		CreateFunc: func(context.Context, string, models.NotificationFields) (*models.Notification, error) {
			return &created, nil
		},
	}
	c := newSeededCenter(t, st)

	require.NoError(t, c.SendNotification(context.Background(), "user-1", models.NotificationFields{
		Title: "fresh", Type: models.TypeInfo,
	}))
	assert.Len(t, c.Notifications(), 2)

	// The realtime echo is what updates local state.
	st.deliver(models.ChangeEvent{Type: models.EventCreated, Notification: created})
	list := c.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, "n-3", list[0].ID)
	assert.Equal(t, 2, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestSendNotification_CreateFailurePropagates(t *testing.T) {
	st := &MockStore{
		CreateFunc: func(context.Context, string, models.NotificationFields) (*models.Notification, error) {
			return nil, errors.New("insert failed")
		},
	}
	c := newSeededCenter(t, st)

	err := c.SendNotification(context.Background(), "user-1", models.NotificationFields{
		Title: "fresh", Type: models.TypeInfo,
	})
	require.Error(t, err)
	assert.Len(t, c.Notifications(), 2)
}

// ==========================
// Realtime events
// ==========================

func TestHandleEvent_CreatedPrependsAndSignalsToast(t *testing.T) {
	st := &MockStore{}
	c := newSeededCenter(t, st)

	n := models.Notification{ID: "n-9", UserID: "user-1", Title: "from another client"}
	st.deliver(models.ChangeEvent{Type: models.EventCreated, Notification: n})

	list := c.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, "n-9", list[0].ID)
	assert.Equal(t, 2, c.UnreadCount())

	select {
	case toast := <-c.Toasts():
		assert.Equal(t, "n-9", toast.ID)
	default:
		t.Fatal("expected a toast for the new notification")
	}
}

func TestHandleEvent_UpdatedAdjustsCounterOnTransition(t *testing.T) {
	st := &MockStore{}
	c := newSeededCenter(t, st)

	updated := models.Notification{ID: "n-2", UserID: "user-1", Title: "second", Read: true}
	st.deliver(models.ChangeEvent{Type: models.EventUpdated, Notification: updated})
	assert.Equal(t, 0, c.UnreadCount())

	// Re-delivering the same update must not decrement again.
	st.deliver(models.ChangeEvent{Type: models.EventUpdated, Notification: updated})
	assert.Equal(t, 0, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestHandleEvent_IgnoresOtherUsers(t *testing.T) {
	st := &MockStore{}
	c := newSeededCenter(t, st)

	st.deliver(models.ChangeEvent{
		Type:         models.EventCreated,
		Notification: models.Notification{ID: "x-1", UserID: "someone-else"},
	})
	assert.Len(t, c.Notifications(), 2)
}

func TestHandleEvent_DeleteThenUpdateNeverResurrects(t *testing.T) {
	st := &MockStore{}
	c := newSeededCenter(t, st)

	// A delete and a mark-read for the same record race on the channel;
	// whichever order they arrive in, the record stays gone and the
	// counter stays consistent.
	st.deliver(models.ChangeEvent{
		Type:         models.EventDeleted,
		Notification: models.Notification{ID: "n-2", UserID: "user-1", Read: false},
	})
	st.deliver(models.ChangeEvent{
		Type:         models.EventUpdated,
		Notification: models.Notification{ID: "n-2", UserID: "user-1", Read: true},
	})

	assert.Len(t, c.Notifications(), 1)
	assert.Equal(t, 0, c.UnreadCount())
	assertCounterConsistent(t, c)
}

func TestHandleEvent_UpdateThenDeleteStaysConsistent(t *testing.T) {
	st := &MockStore{}
	c := newSeededCenter(t, st)

	st.deliver(models.ChangeEvent{
		Type:         models.EventUpdated,
		Notification: models.Notification{ID: "n-2", UserID: "user-1", Title: "second", Read: true},
	})
	st.deliver(models.ChangeEvent{
		Type:         models.EventDeleted,
		Notification: models.Notification{ID: "n-2", UserID: "user-1", Read: true},
	})

	assert.Len(t, c.Notifications(), 1)
	assert.Equal(t, 0, c.UnreadCount())
	assertCounterConsistent(t, c)
}

// ==========================
// Listener surface
// ==========================

func TestOnChange_ReceivesSnapshots(t *testing.T) {
	st := &MockStore{}
	c := newSeededCenter(t, st)

	var gotList []models.Notification
	var gotUnread int
	unsub := c.OnChange(func(list []models.Notification, unread int) {
		gotList = list
		gotUnread = unread
	})
	defer unsub()

	require.NoError(t, c.MarkAsRead(context.Background(), "n-2"))
	require.Len(t, gotList, 2)
	assert.Equal(t, 0, gotUnread)

	unsub()
	require.NoError(t, c.RemoveNotification(context.Background(), "n-1"))
	assert.Len(t, gotList, 2) // no further snapshots after unsubscribe
}

// ==========================
// No-user behavior
// ==========================

func TestOperations_NoUserAreNoOps(t *testing.T) {
	st := &MockStore{
		MarkReadFunc: func(context.Context, string, string) error {
			t.Fatal("store must not be touched without a user")
			return nil
		},
	}
	c := New(st, nil, kvstorage.NewMemoryStorage(), staticUser(""), testConfig(), time.Hour, logger.NewTestLogger(t))
	t.Cleanup(c.Close)

	ctx := context.Background()
	assert.NoError(t, c.MarkAsRead(ctx, "n-1"))
	assert.NoError(t, c.MarkAllAsRead(ctx))
	assert.NoError(t, c.RemoveNotification(ctx, "n-1"))
	assert.NoError(t, c.ClearAllNotifications(ctx))
	assert.Nil(t, c.AddNotification(models.NotificationFields{Title: "x", Type: models.TypeInfo}))
}
