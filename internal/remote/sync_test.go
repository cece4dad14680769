package remote

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
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

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testRecord() models.InAppNotification {
	created := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	return models.InAppNotification{
		ID:        "n-1",
		Title:     "Expense due today",
		Message:   "Rent (1200.00) is due today",
		Type:      models.TypeExpenseDue,
		Priority:  models.PriorityUrgent,
		Category:  "expense_due",
		IsRead:    false,
		CreatedAt: created,
		UserID:    "user-1",
	}
}

// ==========================
// Persist Tests
// ==========================

func TestAdapter_Persist_Inserts(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := NewAdapter(db, newTestLogger(t))

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adapter.Persist(context.Background(), testRecord())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Persist_SwallowsInsertFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := NewAdapter(db, newTestLogger(t))

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(fmt.Errorf("connection reset"))

	// Must not panic or surface the error.
	adapter.Persist(context.Background(), testRecord())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Persist_PolicyRejectionFallsBackToProcedure(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := NewAdapter(db, newTestLogger(t))

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(&pq.Error{Code: "42501"})
	mock.ExpectExec(`SELECT insert_notification`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adapter.Persist(context.Background(), testRecord())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Persist_SwallowsFallbackFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := NewAdapter(db, newTestLogger(t))

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(&pq.Error{Code: "42501"})
	mock.ExpectExec(`SELECT insert_notification`).
		WillReturnError(fmt.Errorf("function does not exist"))

	adapter.Persist(context.Background(), testRecord())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Persist_CustomTable(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := NewAdapter(db, newTestLogger(t), WithTable("app_notifications"))

	mock.ExpectExec(`INSERT INTO app_notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adapter.Persist(context.Background(), testRecord())

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Hydration Tests
// ==========================

func TestAdapter_ListForUser(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := NewAdapter(db, newTestLogger(t))

	created := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "title", "message", "type", "priority",
		"category", "due_date", "is_read", "created_at", "expires_at", "data",
	}).
		AddRow("n-2", "user-1", "Expense due today", "Rent is due", "expense_due", "urgent",
			"expense_due", created, false, created, nil, []byte(`{"expenseId":"exp-1"}`)).
		AddRow("n-1", "user-1", "Upcoming expense", "Rent in 3 days", "expense_reminder", "medium",
			nil, nil, true, created.Add(-72*time.Hour), nil, nil)

	mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE user_id = \$1`).
		WithArgs("user-1", 50).
		WillReturnRows(rows)

	got, err := adapter.ListForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "n-2", got[0].ID)
	assert.Equal(t, models.TypeExpenseDue, got[0].Type)
	assert.Equal(t, models.PriorityUrgent, got[0].Priority)
	require.NotNil(t, got[0].DueDate)
	assert.Equal(t, created, *got[0].DueDate)
	assert.Equal(t, "exp-1", got[0].Data["expenseId"])

	assert.Equal(t, "n-1", got[1].ID)
	assert.True(t, got[1].IsRead)
	assert.Nil(t, got[1].DueDate)
	assert.Empty(t, got[1].Category)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ListForUser_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	adapter := NewAdapter(db, newTestLogger(t))

	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WillReturnError(fmt.Errorf("relation does not exist"))

	_, err := adapter.ListForUser(context.Background(), "user-1")
	assert.Error(t, err)
}

// ==========================
// Contact Store Tests
// ==========================

func TestContactStore_Email(t *testing.T) {
	db, mock := setupMockDB(t)
	contacts := NewContactStore(db)

	mock.ExpectQuery(`SELECT email FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("user@example.com"))

	email, err := contacts.Email(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactStore_Email_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	contacts := NewContactStore(db)

	mock.ExpectQuery(`SELECT email FROM users WHERE id = \$1`).
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"email"}))

	_, err := contacts.Email(context.Background(), "user-2")
	assert.Error(t, err)
}
