// Package scheduler computes expense reminder instants and arms timers
// for them. Scheduling is always supersede-style: re-scheduling an
// expense first cancels every pending reminder carrying its tag, so an
// expense never has two live timers for the same bucket.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notification-engine/internal/common/clock"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/models"
	"notification-engine/internal/remote"
	"notification-engine/internal/settings"
)

// ============================================================================
// DEPENDENCIES
// ============================================================================

// Dispatcher delivers a notification when a reminder fires.
type Dispatcher interface {
	ShowNotification(ctx context.Context, n models.Notification)
	ClearInFlight(ctx context.Context)
}

// PlannedReminder describes one armed reminder.
type PlannedReminder struct {
	Tag    models.ReminderTag
	FireAt time.Time
}

// ============================================================================
// ENGINE
// ============================================================================

// Engine owns the pending reminder timers. All methods are safe for
// concurrent use.
type Engine struct {
	mu         sync.Mutex
	clock      clock.Clock
	settings   *settings.Store
	dispatcher Dispatcher
	sync       remote.Syncer
	logger     logger.Logger
	timers     map[models.ReminderTag]clock.TimerHandle
}

// Option configures the engine.
type Option func(*Engine)

// WithSyncer enables best-effort remote persistence of each planned
// reminder's content at scheduling time.
func WithSyncer(s remote.Syncer) Option {
	return func(e *Engine) { e.sync = s }
}

// NewEngine creates a scheduling engine. The dispatcher receives fired
// reminders; the settings store gates scheduling and per-bucket
// preferences.
func NewEngine(clk clock.Clock, store *settings.Store, dispatcher Dispatcher, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		clock:      clk,
		settings:   store,
		dispatcher: dispatcher,
		logger:     log.WithFields(map[string]interface{}{"component": "scheduler"}),
		timers:     make(map[models.ReminderTag]clock.TimerHandle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScheduleExpenseReminder arms reminders for an expense and returns the
// instants it planned. No reminders are armed when notifications are
// disabled, the expense has no due date, or the expense opted out.
func (e *Engine) ScheduleExpenseReminder(ctx context.Context, expense models.Expense) []PlannedReminder {
	current := e.settings.Get()
	now := e.clock.Now()

	// Cancel and re-arm under one lock acquisition: concurrent calls
	// for the same expense must not interleave cancel/arm and leave an
	// orphaned timer behind.
	e.mu.Lock()
	defer e.mu.Unlock()

	// Supersede before anything else so a re-schedule that no longer
	// qualifies still clears stale timers.
	e.cancelLocked(expense.ID)

	if !current.Enabled || expense.DueDate == nil || !expense.NotificationEnabled {
		metrics.RemindersPending.Set(float64(len(e.timers)))
		return nil
	}

	var planned []PlannedReminder

	for _, bucket := range models.AllReminderBuckets {
		if !current.BucketEnabled(bucket) {
			continue
		}

		fireAt := expense.DueDate.Add(-bucket.Offset())
		if !fireAt.After(now) {
			continue
		}

		tag := models.ReminderTag{ExpenseID: expense.ID, Bucket: bucket}
		n := e.buildNotification(expense, bucket, tag)

		handle := e.clock.Schedule(fireAt.Sub(now), func() {
			e.fire(tag, n)
		})
		e.timers[tag] = handle

		if e.sync != nil {
			go e.sync.Persist(context.WithoutCancel(ctx), reminderRecord(n))
		}

		planned = append(planned, PlannedReminder{Tag: tag, FireAt: fireAt})
		metrics.RemindersScheduled.WithLabelValues(string(bucket)).Inc()
	}

	metrics.RemindersPending.Set(float64(len(e.timers)))

	if len(planned) > 0 {
		e.logger.Debug("reminders scheduled", map[string]interface{}{
			"expenseId": expense.ID,
			"count":     len(planned),
		})
	}
	return planned
}

func (e *Engine) buildNotification(expense models.Expense, bucket models.ReminderBucket, tag models.ReminderTag) models.Notification {
	due := *expense.DueDate
	return models.Notification{
		ID:        models.NewNotificationID(),
		Tag:       tag.String(),
		Title:     reminderTitle(bucket),
		Body:      reminderBody(expense, bucket),
		Type:      bucket.NotificationType(),
		Priority:  bucket.Priority(),
		UserID:    expense.UserID,
		DueDate:   &due,
		CreatedAt: e.clock.Now(),
		Data: map[string]interface{}{
			"expenseId": expense.ID,
			"bucket":    string(bucket),
		},
	}
}

// reminderRecord is the durable form of a planned reminder, written to
// the remote store so other devices see it before it fires here.
func reminderRecord(n models.Notification) models.InAppNotification {
	return models.InAppNotification{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Body,
		Type:      n.Type,
		Priority:  n.Priority,
		Category:  string(n.Type),
		DueDate:   n.DueDate,
		CreatedAt: n.CreatedAt,
		UserID:    n.UserID,
		Data:      n.Data,
	}
}

func reminderTitle(bucket models.ReminderBucket) string {
	switch bucket {
	case models.BucketSameDay:
		return "Expense due today"
	case models.BucketOneDay:
		return "Expense due tomorrow"
	default:
		return "Upcoming expense"
	}
}

func reminderBody(expense models.Expense, bucket models.ReminderBucket) string {
	switch bucket {
	case models.BucketSameDay:
		return fmt.Sprintf("%s (%.2f) is due today", expense.Description, expense.Value)
	case models.BucketOneDay:
		return fmt.Sprintf("%s (%.2f) is due tomorrow", expense.Description, expense.Value)
	default:
		return fmt.Sprintf("%s (%.2f) is due in 3 days", expense.Description, expense.Value)
	}
}

// fire runs on the timer goroutine. Settings are re-checked at fire
// time so a user who disabled notifications after scheduling is not
// surprised later.
func (e *Engine) fire(tag models.ReminderTag, n models.Notification) {
	e.mu.Lock()
	delete(e.timers, tag)
	metrics.RemindersPending.Set(float64(len(e.timers)))
	e.mu.Unlock()

	current := e.settings.Get()
	if !current.Enabled || !current.BucketEnabled(tag.Bucket) {
		metrics.NotificationsSuppressed.WithLabelValues("settings").Inc()
		return
	}

	metrics.RemindersFired.WithLabelValues(string(tag.Bucket)).Inc()
	e.dispatcher.ShowNotification(context.Background(), n)
}

// CancelExpenseNotifications stops every pending reminder for the
// expense. Cancelling an expense with no pending reminders is a no-op.
func (e *Engine) CancelExpenseNotifications(ctx context.Context, expenseID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked(expenseID)
	metrics.RemindersPending.Set(float64(len(e.timers)))
}

// cancelLocked stops and forgets every bucket timer for the expense.
// Callers hold e.mu.
func (e *Engine) cancelLocked(expenseID string) {
	for _, bucket := range models.AllReminderBuckets {
		tag := models.ReminderTag{ExpenseID: expenseID, Bucket: bucket}
		if handle, ok := e.timers[tag]; ok {
			handle.Stop()
			delete(e.timers, tag)
			metrics.RemindersCancelled.Inc()
		}
	}
}

// CancelAllNotifications stops every pending reminder and clears the
// dispatcher's in-flight registry. Used on shutdown and when the user
// turns the master switch off.
func (e *Engine) CancelAllNotifications(ctx context.Context) {
	e.mu.Lock()
	for tag, handle := range e.timers {
		handle.Stop()
		delete(e.timers, tag)
		metrics.RemindersCancelled.Inc()
	}
	metrics.RemindersPending.Set(0)
	e.mu.Unlock()

	e.dispatcher.ClearInFlight(ctx)
	e.logger.Info("all pending reminders cancelled", nil)
}

// PendingCount reports the number of armed reminder timers.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}
