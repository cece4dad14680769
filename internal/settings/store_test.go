package settings

import (
	"context"
	"fmt"
	"testing"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/storage"
	"notification-engine/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func setupRedisStorage(t *testing.T) storage.Storage {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return storage.NewRedisStorage(client, "test:")
}

// failingStorage rejects every write.
type failingStorage struct {
	storage.Storage
}

func (f *failingStorage) Set(ctx context.Context, key, value string) error {
	return fmt.Errorf("disk full")
}

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

func boolPtr(b bool) *bool { return &b }

// ==========================
// Load Tests
// ==========================

func TestStore_Load_MissingSnapshotUsesDefaults(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage(), newTestLogger(t))

	got := store.Load(context.Background())

	assert.True(t, got.Enabled)
	assert.True(t, got.PushEnabled)
	assert.True(t, got.InAppEnabled)
	assert.True(t, got.ReminderTiming.ThreeDays)
	assert.True(t, got.ReminderTiming.OneDay)
	assert.True(t, got.ReminderTiming.SameDay)
	for _, typ := range models.AllNotificationTypes {
		assert.True(t, got.CategoryEnabled(typ), "category %s should default on", typ)
	}
}

func TestStore_Load_InvalidSnapshotUsesDefaults(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{{{"},
		{name: "missing required field", raw: `{"pushEnabled": true}`},
		{name: "wrong type", raw: `{"enabled": "yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storage.NewMemoryStorage()
			require.NoError(t, mem.Set(context.Background(), "settings", tt.raw))

			store := NewStore(mem, newTestLogger(t))
			got := store.Load(context.Background())

			assert.True(t, got.Enabled)
			assert.Equal(t, Default().ReminderTiming, got.ReminderTiming)
		})
	}
}

func TestStore_Load_BackfillsNewCategories(t *testing.T) {
	mem := storage.NewMemoryStorage()
	raw := `{"enabled": true, "categories": {"expense_reminder": false}}`
	require.NoError(t, mem.Set(context.Background(), "settings", raw))

	store := NewStore(mem, newTestLogger(t))
	got := store.Load(context.Background())

	assert.False(t, got.CategoryEnabled(models.TypeExpenseReminder))
	assert.True(t, got.CategoryEnabled(models.TypeExpenseDue))
	assert.True(t, got.CategoryEnabled(models.TypeTaskReminder))
}

// ==========================
// Update Tests
// ==========================

func TestStore_Update_RoundTrip(t *testing.T) {
	mem := storage.NewMemoryStorage()
	store := NewStore(mem, newTestLogger(t))
	store.Load(context.Background())

	updated, err := store.Update(context.Background(), Update{
		PushEnabled: boolPtr(false),
		Categories: map[models.NotificationType]bool{
			models.TypeIncomeReceived: false,
		},
		ReminderTiming: &TimingUpdate{OneDay: boolPtr(false)},
	})
	require.NoError(t, err)

	assert.False(t, updated.PushEnabled)
	assert.False(t, updated.CategoryEnabled(models.TypeIncomeReceived))
	assert.False(t, updated.ReminderTiming.OneDay)
	// Untouched fields survive the merge.
	assert.True(t, updated.Enabled)
	assert.True(t, updated.ReminderTiming.ThreeDays)
	assert.True(t, updated.CategoryEnabled(models.TypeExpenseDue))

	// A fresh store over the same storage sees the persisted state.
	reloaded := NewStore(mem, newTestLogger(t)).Load(context.Background())
	assert.Equal(t, updated, reloaded)
}

func TestStore_Update_PersistFailureRollsBack(t *testing.T) {
	store := NewStore(&failingStorage{storage.NewMemoryStorage()}, newTestLogger(t))
	store.Load(context.Background())

	_, err := store.Update(context.Background(), Update{Enabled: boolPtr(false)})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSettingsPersistFailed))

	// In-memory state rolled back to the previous snapshot.
	assert.True(t, store.Get().Enabled)
}

func TestStore_Update_TimingMergeIsPartial(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage(), newTestLogger(t))
	store.Load(context.Background())

	_, err := store.Update(context.Background(), Update{
		ReminderTiming: &TimingUpdate{SameDay: boolPtr(false)},
	})
	require.NoError(t, err)

	got := store.Get()
	assert.True(t, got.ReminderTiming.ThreeDays)
	assert.True(t, got.ReminderTiming.OneDay)
	assert.False(t, got.ReminderTiming.SameDay)
}

func TestStore_Get_ReturnsCopy(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage(), newTestLogger(t))
	store.Load(context.Background())

	got := store.Get()
	got.Categories[models.TypeExpenseDue] = false

	assert.True(t, store.Get().CategoryEnabled(models.TypeExpenseDue))
}

func TestStore_RedisBackend(t *testing.T) {
	st := setupRedisStorage(t)
	store := NewStore(st, newTestLogger(t))
	store.Load(context.Background())

	_, err := store.Update(context.Background(), Update{SoundEnabled: boolPtr(false)})
	require.NoError(t, err)

	reloaded := NewStore(st, newTestLogger(t)).Load(context.Background())
	assert.False(t, reloaded.SoundEnabled)
}
