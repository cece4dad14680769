// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the category a notification belongs to.
// Categories can be toggled individually in the user settings.
type NotificationType string

const (
	TypeExpenseReminder NotificationType = "expense_reminder"
	TypeExpenseDue      NotificationType = "expense_due"
	TypeIncomeReceived  NotificationType = "income_received"
	TypeReserveGoal     NotificationType = "reserve_goal"
	TypeSystemAlert     NotificationType = "system_alert"
	TypeTaskReminder    NotificationType = "task_reminder"
	TypeJobUpdate       NotificationType = "job_update"
	TypeGeneral         NotificationType = "general"
)

// AllNotificationTypes lists every known category, in a stable order.
var AllNotificationTypes = []NotificationType{
	TypeExpenseReminder,
	TypeExpenseDue,
	TypeIncomeReceived,
	TypeReserveGoal,
	TypeSystemAlert,
	TypeTaskReminder,
	TypeJobUpdate,
	TypeGeneral,
}

// IsValid reports whether t is one of the known categories.
func (t NotificationType) IsValid() bool {
	for _, known := range AllNotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NotificationPriority orders notifications from low to urgent.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// RequiresInteraction reports whether an OS-level notification with this
// priority must stay on screen until the user dismisses it.
func (p NotificationPriority) RequiresInteraction() bool {
	return p == PriorityUrgent
}

// Notification is the payload handed to the delivery dispatcher.
type Notification struct {
	ID        string                 `json:"id"`
	Tag       string                 `json:"tag,omitempty"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Type      NotificationType       `json:"type"`
	Priority  NotificationPriority   `json:"priority"`
	UserID    string                 `json:"userId"`
	DueDate   *time.Time             `json:"dueDate,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// InAppNotification is the durable record kept in the in-app ledger and
// mirrored to the remote store.
type InAppNotification struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      NotificationType       `json:"type"`
	Priority  NotificationPriority   `json:"priority"`
	Category  string                 `json:"category,omitempty"`
	DueDate   *time.Time             `json:"dueDate,omitempty"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt time.Time              `json:"createdAt"`
	ExpiresAt *time.Time             `json:"expiresAt,omitempty"`
	UserID    string                 `json:"userId"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Expired reports whether the record has an expiry in the past.
func (n InAppNotification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// NewNotificationID returns a fresh notification identifier.
func NewNotificationID() string {
	return uuid.New().String()
}
