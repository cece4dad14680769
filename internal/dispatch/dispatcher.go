// Package dispatch delivers notifications to the user: an OS-level
// push or email channel when one is available, and the in-app ledger
// always. Delivery is gated by user settings and deduplicated by tag.
package dispatch

import (
	"context"
	"time"

	"notification-engine/internal/common/clock"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/common/observability"
	"notification-engine/internal/ledger"
	"notification-engine/internal/models"
	"notification-engine/internal/remote"
	"notification-engine/internal/settings"
)

// ============================================================================
// ROUTING
// ============================================================================

// Router maps a clicked notification to an app destination.
type Router interface {
	Destination(typ models.NotificationType) string
}

type mapRouter map[models.NotificationType]string

func (r mapRouter) Destination(typ models.NotificationType) string {
	if dest, ok := r[typ]; ok {
		return dest
	}
	return "/notifications"
}

// DefaultRouter routes each notification type to its section of the
// app.
func DefaultRouter() Router {
	return mapRouter{
		models.TypeExpenseDue:      "/monthly-costs",
		models.TypeExpenseReminder: "/monthly-costs",
		models.TypeIncomeReceived:  "/incomes",
		models.TypeReserveGoal:     "/reserves",
		models.TypeTaskReminder:    "/kanban",
		models.TypeJobUpdate:       "/jobs",
		models.TypeSystemAlert:     "/notifications",
		models.TypeGeneral:         "/notifications",
	}
}

// Theme supplies the icon and badge shown with a notification.
type Theme func(typ models.NotificationType) (icon, badge string)

func defaultTheme(typ models.NotificationType) (string, string) {
	return "/icons/notification-192.png", "/icons/badge-72.png"
}

// ============================================================================
// DISPATCHER
// ============================================================================

// Dispatcher is the single delivery path. It never returns an error:
// a failed OS delivery degrades to in-app only, and remote sync is
// fire-and-forget.
type Dispatcher struct {
	settings    *settings.Store
	ledger      *ledger.Ledger
	inflight    InFlightRegistry
	sender      Sender
	sync        remote.Syncer
	clock       clock.Clock
	logger      logger.Logger
	obs         *observability.Observability
	router      Router
	theme       Theme
	autoDismiss time.Duration
	ledgerTTL   time.Duration
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithAutoDismiss sets how long an OS notification stays on screen
// before it is withdrawn and its tag released.
func WithAutoDismiss(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.autoDismiss = d }
}

// WithObservability enables OpenTelemetry dispatch metrics.
func WithObservability(obs *observability.Observability) Option {
	return func(dp *Dispatcher) { dp.obs = obs }
}

// WithRouter overrides the click destination mapping.
func WithRouter(r Router) Option {
	return func(dp *Dispatcher) { dp.router = r }
}

// WithTheme overrides the notification icon set.
func WithTheme(t Theme) Option {
	return func(dp *Dispatcher) { dp.theme = t }
}

// WithLedgerTTL sets how long in-app entries live before the ledger
// sweeps them. Zero means entries never expire.
func WithLedgerTTL(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.ledgerTTL = d }
}

// NewDispatcher wires the delivery path. The sender is resolved once at
// startup via ResolveSender.
func NewDispatcher(
	store *settings.Store,
	led *ledger.Ledger,
	inflight InFlightRegistry,
	sender Sender,
	syncer remote.Syncer,
	clk clock.Clock,
	log logger.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		settings:    store,
		ledger:      led,
		inflight:    inflight,
		sender:      sender,
		sync:        syncer,
		clock:       clk,
		logger:      log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		router:      DefaultRouter(),
		theme:       defaultTheme,
		autoDismiss: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ShowNotification delivers a notification. The order of gates matters:
// the tag is claimed before the category check so that a suppressed
// notification still wins the dedup race, and released again when
// nothing ends up on screen.
func (d *Dispatcher) ShowNotification(ctx context.Context, n models.Notification) {
	current := d.settings.Get()
	if !current.Enabled {
		metrics.NotificationsSuppressed.WithLabelValues("disabled").Inc()
		return
	}

	if !n.Type.IsValid() {
		d.logger.WithError(errors.NewInvalidNotificationTypeError(string(n.Type))).Debug(
			"unknown notification type, treating as general", map[string]interface{}{
				"tag": n.Tag,
			})
		n.Type = models.TypeGeneral
	}

	if n.Tag == "" {
		n.Tag = models.NewNotificationID()
	}
	if n.ID == "" {
		n.ID = models.NewNotificationID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.clock.Now()
	}

	if !d.inflight.Acquire(ctx, n.Tag) {
		metrics.NotificationsSuppressed.WithLabelValues("duplicate").Inc()
		d.logger.Debug("duplicate notification suppressed", map[string]interface{}{
			"tag": n.Tag,
		})
		return
	}

	if !current.CategoryEnabled(n.Type) {
		d.inflight.Release(ctx, n.Tag)
		metrics.NotificationsSuppressed.WithLabelValues("category").Inc()
		return
	}

	opts := SendOptions{
		RequireInteraction: n.Priority.RequiresInteraction(),
		Silent:             !current.SoundEnabled,
	}
	opts.Icon, opts.Badge = d.theme(n.Type)

	shown := false
	if current.PushEnabled && d.sender.Capability() != CapabilityNone {
		start := d.clock.Now()
		handle, err := d.sender.Send(ctx, n, opts)
		if err != nil {
			d.recordDispatch(ctx, "error")
			d.logger.Warn("platform delivery failed, in-app only", map[string]interface{}{
				"tag":   n.Tag,
				"error": err,
			})
		} else {
			shown = true
			metrics.NotificationsDelivered.WithLabelValues(string(d.sender.Capability())).Inc()
			d.recordDispatch(ctx, "success")
			if d.obs != nil {
				d.obs.RecordDispatchDuration(ctx, string(d.sender.Capability()), d.clock.Now().Sub(start))
			}
			d.scheduleAutoDismiss(n.Tag, handle)
		}
	}

	rec := d.toInAppRecord(n)
	if current.InAppEnabled {
		d.ledger.Add(ctx, rec)
		metrics.NotificationsDelivered.WithLabelValues("in-app").Inc()
	}

	if d.sync != nil {
		go d.sync.Persist(context.WithoutCancel(ctx), rec)
	}

	if !shown {
		d.inflight.Release(ctx, n.Tag)
	}
}

// scheduleAutoDismiss withdraws the notification after the configured
// window and frees its tag for the next occurrence.
func (d *Dispatcher) scheduleAutoDismiss(tag string, handle *Handle) {
	d.clock.Schedule(d.autoDismiss, func() {
		if handle != nil {
			handle.Close()
		}
		d.inflight.Release(context.Background(), tag)
	})
}

func (d *Dispatcher) toInAppRecord(n models.Notification) models.InAppNotification {
	rec := models.InAppNotification{
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
	if d.ledgerTTL > 0 {
		expires := n.CreatedAt.Add(d.ledgerTTL)
		rec.ExpiresAt = &expires
	}
	return rec
}

func (d *Dispatcher) recordDispatch(ctx context.Context, status string) {
	if d.obs != nil {
		d.obs.RecordDispatch(ctx, string(d.sender.Capability()), status)
	}
}

// ScheduleLocalNotification delivers the notification after the given
// delay. Channel selection (platform push, email, or in-app only)
// happens at fire time, so a capability change in settings between now
// and then is honored.
func (d *Dispatcher) ScheduleLocalNotification(ctx context.Context, n models.Notification, delay time.Duration) clock.TimerHandle {
	if delay <= 0 {
		d.ShowNotification(ctx, n)
		return nil
	}
	return d.clock.Schedule(delay, func() {
		d.ShowNotification(context.WithoutCancel(ctx), n)
	})
}

// HandleClick resolves a clicked notification to its app destination
// and releases the tag so the reminder can fire again later.
func (d *Dispatcher) HandleClick(ctx context.Context, tag string, typ models.NotificationType) string {
	if tag != "" {
		d.inflight.Release(ctx, tag)
	}
	return d.router.Destination(typ)
}

// ClearInFlight drops every claimed tag. Called when all pending
// reminders are cancelled.
func (d *Dispatcher) ClearInFlight(ctx context.Context) {
	d.inflight.Clear(ctx)
}
