// internal/models/reminder.go
package models

import (
	"fmt"
	"time"
)

// ReminderBucket is one of the fixed offsets before an expense due date
// at which a reminder may fire.
type ReminderBucket string

const (
	BucketThreeDays ReminderBucket = "3days"
	BucketOneDay    ReminderBucket = "1day"
	BucketSameDay   ReminderBucket = "sameday"
)

// AllReminderBuckets lists the buckets in firing order (earliest first).
var AllReminderBuckets = []ReminderBucket{BucketThreeDays, BucketOneDay, BucketSameDay}

// Offset returns how long before the due date this bucket fires.
// Offsets are exact wall-clock durations, not calendar days.
func (b ReminderBucket) Offset() time.Duration {
	switch b {
	case BucketThreeDays:
		return 72 * time.Hour
	case BucketOneDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Priority escalates with proximity to the due date.
func (b ReminderBucket) Priority() NotificationPriority {
	switch b {
	case BucketThreeDays:
		return PriorityMedium
	case BucketOneDay:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}

// NotificationType returns the category a reminder in this bucket carries.
// Same-day reminders escalate from "reminder" to "due".
func (b ReminderBucket) NotificationType() NotificationType {
	if b == BucketSameDay {
		return TypeExpenseDue
	}
	return TypeExpenseReminder
}

// ReminderTag is the composite key identifying one scheduled reminder.
// The rendered string form is used only for logs and the in-flight
// registry.
type ReminderTag struct {
	ExpenseID string
	Bucket    ReminderBucket
}

func (t ReminderTag) String() string {
	return fmt.Sprintf("expense-%s-%s", t.ExpenseID, t.Bucket)
}

// Expense is the due-dated entity reminders are scheduled for.
type Expense struct {
	ID                  string     `json:"id"`
	Description         string     `json:"description"`
	Value               float64    `json:"value"`
	DueDate             *time.Time `json:"dueDate,omitempty"`
	NotificationEnabled bool       `json:"notificationEnabled"`
	UserID              string     `json:"userId"`
}
