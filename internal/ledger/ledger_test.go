package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/storage"
	"notification-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

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

func record(id string) models.InAppNotification {
	return models.InAppNotification{
		ID:        id,
		Title:     "Expense due",
		Message:   "Rent is due today",
		Type:      models.TypeExpenseDue,
		Priority:  models.PriorityUrgent,
		CreatedAt: time.Now(),
	}
}

// ==========================
// Capacity and Ordering Tests
// ==========================

func TestLedger_Add_NewestFirst(t *testing.T) {
	led := New(storage.NewMemoryStorage(), newTestLogger(t))
	ctx := context.Background()

	led.Add(ctx, record("a"))
	led.Add(ctx, record("b"))
	led.Add(ctx, record("c"))

	got := led.List()
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "a", got[2].ID)
}

func TestLedger_Add_EvictsOldestBeyondCapacity(t *testing.T) {
	led := New(storage.NewMemoryStorage(), newTestLogger(t))
	ctx := context.Background()

	for i := 0; i < Capacity+10; i++ {
		led.Add(ctx, record(fmt.Sprintf("n-%d", i)))
	}

	got := led.List()
	require.Len(t, got, Capacity)
	// Newest entry first, oldest ten evicted.
	assert.Equal(t, fmt.Sprintf("n-%d", Capacity+9), got[0].ID)
	assert.Equal(t, "n-10", got[Capacity-1].ID)
}

// ==========================
// Read State Tests
// ==========================

func TestLedger_MarkAsRead(t *testing.T) {
	led := New(storage.NewMemoryStorage(), newTestLogger(t))
	ctx := context.Background()

	led.Add(ctx, record("a"))
	led.Add(ctx, record("b"))
	assert.Equal(t, 2, led.UnreadCount())

	led.MarkAsRead(ctx, "a")
	assert.Equal(t, 1, led.UnreadCount())

	// Unknown id is a no-op.
	led.MarkAsRead(ctx, "missing")
	assert.Equal(t, 1, led.UnreadCount())

	// Marking again is idempotent.
	led.MarkAsRead(ctx, "a")
	assert.Equal(t, 1, led.UnreadCount())
}

func TestLedger_MarkAllAsRead(t *testing.T) {
	led := New(storage.NewMemoryStorage(), newTestLogger(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		led.Add(ctx, record(fmt.Sprintf("n-%d", i)))
	}

	led.MarkAllAsRead(ctx)
	assert.Equal(t, 0, led.UnreadCount())
}

func TestLedger_Delete(t *testing.T) {
	led := New(storage.NewMemoryStorage(), newTestLogger(t))
	ctx := context.Background()

	led.Add(ctx, record("a"))
	led.Add(ctx, record("b"))

	led.Delete(ctx, "a")
	got := led.List()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	led.Delete(ctx, "missing")
	assert.Len(t, led.List(), 1)
}

// ==========================
// Persistence Tests
// ==========================

func TestLedger_PersistenceRoundTrip(t *testing.T) {
	mem := storage.NewMemoryStorage()
	ctx := context.Background()

	led := New(mem, newTestLogger(t))
	led.Add(ctx, record("a"))
	led.Add(ctx, record("b"))
	led.MarkAsRead(ctx, "a")

	reloaded := New(mem, newTestLogger(t))
	reloaded.Load(ctx)

	got := reloaded.List()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, 1, reloaded.UnreadCount())
}

// failingStorage rejects every write.
type failingStorage struct {
	storage.Storage
}

func (f *failingStorage) Set(ctx context.Context, key, value string) error {
	return fmt.Errorf("disk full")
}

func TestLedger_Add_PersistFailureKeepsMemoryState(t *testing.T) {
	led := New(&failingStorage{storage.NewMemoryStorage()}, newTestLogger(t))
	ctx := context.Background()

	led.Add(ctx, record("a"))

	// The in-memory ledger stays authoritative when the snapshot write
	// fails.
	got := led.List()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestLedger_Load_CorruptSnapshotStartsEmpty(t *testing.T) {
	mem := storage.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "ledger", "not-json"))

	led := New(mem, newTestLogger(t))
	led.Load(ctx)

	assert.Empty(t, led.List())
}

// ==========================
// Expiry Tests
// ==========================

func TestLedger_ExpiredEntriesSwept(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	led := New(storage.NewMemoryStorage(), newTestLogger(t),
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	fresh := record("fresh")
	freshExpiry := now.Add(time.Hour)
	fresh.ExpiresAt = &freshExpiry

	stale := record("stale")
	staleExpiry := now.Add(-time.Hour)
	stale.ExpiresAt = &staleExpiry

	forever := record("forever")

	led.Add(ctx, forever)
	led.Add(ctx, stale)
	led.Add(ctx, fresh)

	got := led.List()
	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].ID)
	assert.Equal(t, "forever", got[1].ID)
}
