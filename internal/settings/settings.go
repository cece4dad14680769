// Package settings holds the user-configurable notification preferences:
// the master switch, per-channel toggles, per-category opt-ins, and the
// reminder timing flags. The store is a process-wide singleton loaded at
// startup and persisted after every mutation.
package settings

import (
	"notification-engine/internal/models"
)

// ReminderTiming controls which reminder buckets may fire.
type ReminderTiming struct {
	ThreeDays bool `json:"threeDays"`
	OneDay    bool `json:"oneDay"`
	SameDay   bool `json:"sameDay"`
}

// Settings is the full preference set. When Enabled is false every
// scheduling and delivery call is a no-op regardless of the other flags.
type Settings struct {
	Enabled          bool                             `json:"enabled"`
	PushEnabled      bool                             `json:"pushEnabled"`
	InAppEnabled     bool                             `json:"inAppEnabled"`
	SoundEnabled     bool                             `json:"soundEnabled"`
	VibrationEnabled bool                             `json:"vibrationEnabled"`
	Categories       map[models.NotificationType]bool `json:"categories"`
	ReminderTiming   ReminderTiming                   `json:"reminderTiming"`
}

// Default returns the hard-coded defaults: everything on.
func Default() Settings {
	categories := make(map[models.NotificationType]bool, len(models.AllNotificationTypes))
	for _, t := range models.AllNotificationTypes {
		categories[t] = true
	}

	return Settings{
		Enabled:          true,
		PushEnabled:      true,
		InAppEnabled:     true,
		SoundEnabled:     true,
		VibrationEnabled: true,
		Categories:       categories,
		ReminderTiming: ReminderTiming{
			ThreeDays: true,
			OneDay:    true,
			SameDay:   true,
		},
	}
}

// CategoryEnabled reports whether notifications of type t may be shown.
// Categories absent from the map are treated as enabled.
func (s Settings) CategoryEnabled(t models.NotificationType) bool {
	enabled, ok := s.Categories[t]
	return !ok || enabled
}

// BucketEnabled reports whether the given reminder bucket may fire.
func (s Settings) BucketEnabled(b models.ReminderBucket) bool {
	switch b {
	case models.BucketThreeDays:
		return s.ReminderTiming.ThreeDays
	case models.BucketOneDay:
		return s.ReminderTiming.OneDay
	case models.BucketSameDay:
		return s.ReminderTiming.SameDay
	default:
		return false
	}
}

func (s Settings) clone() Settings {
	out := s
	out.Categories = make(map[models.NotificationType]bool, len(s.Categories))
	for k, v := range s.Categories {
		out.Categories[k] = v
	}
	return out
}

// TimingUpdate is a partial update of the reminder timing flags.
type TimingUpdate struct {
	ThreeDays *bool `json:"threeDays,omitempty"`
	OneDay    *bool `json:"oneDay,omitempty"`
	SameDay   *bool `json:"sameDay,omitempty"`
}

// Update is a partial settings mutation. Nil fields are left untouched;
// Categories and ReminderTiming merge one level deep instead of
// replacing the whole object.
type Update struct {
	Enabled          *bool                            `json:"enabled,omitempty"`
	PushEnabled      *bool                            `json:"pushEnabled,omitempty"`
	InAppEnabled     *bool                            `json:"inAppEnabled,omitempty"`
	SoundEnabled     *bool                            `json:"soundEnabled,omitempty"`
	VibrationEnabled *bool                            `json:"vibrationEnabled,omitempty"`
	Categories       map[models.NotificationType]bool `json:"categories,omitempty"`
	ReminderTiming   *TimingUpdate                    `json:"reminderTiming,omitempty"`
}

func (s Settings) merge(u Update) Settings {
	out := s.clone()

	if u.Enabled != nil {
		out.Enabled = *u.Enabled
	}
	if u.PushEnabled != nil {
		out.PushEnabled = *u.PushEnabled
	}
	if u.InAppEnabled != nil {
		out.InAppEnabled = *u.InAppEnabled
	}
	if u.SoundEnabled != nil {
		out.SoundEnabled = *u.SoundEnabled
	}
	if u.VibrationEnabled != nil {
		out.VibrationEnabled = *u.VibrationEnabled
	}

	for k, v := range u.Categories {
		out.Categories[k] = v
	}

	if u.ReminderTiming != nil {
		if u.ReminderTiming.ThreeDays != nil {
			out.ReminderTiming.ThreeDays = *u.ReminderTiming.ThreeDays
		}
		if u.ReminderTiming.OneDay != nil {
			out.ReminderTiming.OneDay = *u.ReminderTiming.OneDay
		}
		if u.ReminderTiming.SameDay != nil {
			out.ReminderTiming.SameDay = *u.ReminderTiming.SameDay
		}
	}

	return out
}
