// Package errors provides the standardized error taxonomy for the
// notification engine. Delivery and sync failures are logged at their
// adapter boundary and never propagated; only settings persistence
// failures surface to callers.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSettingsPersistFailed ErrorCode = "SETTINGS_PERSIST_FAILED"
	ErrCodeStorageReadFailed     ErrorCode = "STORAGE_READ_FAILED"
	ErrCodeLedgerPersistFailed   ErrorCode = "LEDGER_PERSIST_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodePermissionDenied       ErrorCode = "PERMISSION_DENIED"

	ErrCodeRemoteSyncFailed   ErrorCode = "REMOTE_SYNC_FAILED"
	ErrCodeRemoteSyncRejected ErrorCode = "REMOTE_SYNC_REJECTED"

	ErrCodeInvalidNotificationType ErrorCode = "INVALID_NOTIFICATION_TYPE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSettingsPersistFailedError creates a retryable settings persistence
// error. This is the one error the engine propagates to its caller:
// silently dropping a settings change would violate user expectation.
func NewSettingsPersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettingsPersistFailed,
		Message:   "Failed to persist notification settings",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageReadFailedError creates a retryable storage read error.
func NewStorageReadFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageReadFailed,
		Message:   "Failed to read from durable storage",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLedgerPersistFailedError creates a retryable ledger snapshot error.
func NewLedgerPersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerPersistFailed,
		Message:   "Failed to persist in-app notification ledger",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable sender error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPermissionDeniedError creates a non-retryable permission error.
// Delivery degrades to in-app-only when this is seen.
func NewPermissionDeniedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePermissionDenied,
		Message:   "OS notification permission denied",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteSyncFailedError creates a retryable remote sync error.
func NewRemoteSyncFailedError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteSyncFailed,
		Message:   "Remote notification sync failed",
		Details:   fmt.Sprintf("target: %s, error: %s", target, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteSyncRejectedError creates a non-retryable access-policy
// rejection; the adapter falls back to the stored-procedure path.
func NewRemoteSyncRejectedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteSyncRejected,
		Message:   "Remote store rejected direct insert",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidNotificationTypeError creates a non-retryable category error.
func NewInvalidNotificationTypeError(typ string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNotificationType,
		Message:   "Unknown notification type",
		Details:   fmt.Sprintf("type: %s", typ),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}
