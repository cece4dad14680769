// Package ledger keeps the bounded, ordered log of delivered in-app
// notifications. Entries are newest-first; the list never exceeds
// Capacity and eviction always removes the oldest entries.
package ledger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/common/storage"
	"notification-engine/internal/models"
)

// Capacity is the fixed cap on retained notifications.
const Capacity = 50

const storageKey = "ledger"

// Ledger is the in-app notification log. All mutation serializes
// read-modify-persist under the mutex; persistence failures are logged
// and swallowed (the in-memory state remains authoritative).
type Ledger struct {
	mu      sync.Mutex
	storage storage.Storage
	logger  logger.Logger
	clock   func() time.Time
	items   []models.InAppNotification
}

// Option configures the ledger.
type Option func(*Ledger)

// WithClock injects the time source used for expiry sweeps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// New creates an empty ledger; call Load to hydrate from storage.
func New(st storage.Storage, log logger.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		storage: st,
		logger:  log.WithFields(map[string]interface{}{"component": "ledger"}),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the persisted snapshot and drops expired entries. A missing
// or undecodable snapshot resolves to an empty ledger.
func (l *Ledger) Load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.storage.Get(ctx, storageKey)
	if err != nil {
		if !stderrors.Is(err, storage.ErrNotFound) {
			l.logger.WithError(errors.NewStorageReadFailedError(storageKey, err)).Warn(
				"ledger snapshot unreadable, starting empty", nil)
		}
		l.items = nil
		return
	}

	var items []models.InAppNotification
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		l.logger.Warn("ledger snapshot undecodable, starting empty", map[string]interface{}{
			"error": err,
		})
		l.items = nil
		return
	}

	l.items = l.sweepLocked(items)
	metrics.LedgerSize.Set(float64(len(l.items)))
}

// Add prepends the record and evicts from the tail beyond Capacity.
func (l *Ledger) Add(ctx context.Context, n models.InAppNotification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]models.InAppNotification, 0, len(l.items)+1)
	items = append(items, n)
	items = append(items, l.items...)
	if len(items) > Capacity {
		items = items[:Capacity]
	}
	l.items = items

	metrics.LedgerSize.Set(float64(len(l.items)))
	l.persistLocked(ctx)
}

// MarkAsRead flags the record read. Unknown ids are a no-op.
func (l *Ledger) MarkAsRead(ctx context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for i := range l.items {
		if l.items[i].ID == id && !l.items[i].IsRead {
			l.items[i].IsRead = true
			changed = true
		}
	}
	if changed {
		l.persistLocked(ctx)
	}
}

// MarkAllAsRead flags every record read.
func (l *Ledger) MarkAllAsRead(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for i := range l.items {
		if !l.items[i].IsRead {
			l.items[i].IsRead = true
			changed = true
		}
	}
	if changed {
		l.persistLocked(ctx)
	}
}

// Delete removes the record. Unknown ids are a no-op.
func (l *Ledger) Delete(ctx context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.items {
		if l.items[i].ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			metrics.LedgerSize.Set(float64(len(l.items)))
			l.persistLocked(ctx)
			return
		}
	}
}

// List returns the current entries, newest first, with expired entries
// swept. Never triggers storage reads.
func (l *Ledger) List() []models.InAppNotification {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = l.sweepLocked(l.items)

	out := make([]models.InAppNotification, len(l.items))
	copy(out, l.items)
	return out
}

// UnreadCount returns the number of unread entries.
func (l *Ledger) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, n := range l.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func (l *Ledger) sweepLocked(items []models.InAppNotification) []models.InAppNotification {
	now := l.clock()
	kept := items[:0]
	for _, n := range items {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	return kept
}

// persistLocked snapshots the full list. Failures are logged only: the
// ledger is a delivery-path store and must not fail the caller.
func (l *Ledger) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(l.items)
	if err != nil {
		l.logger.Error("ledger snapshot marshal failed", map[string]interface{}{
			"error": err,
		})
		return
	}

	if err := l.storage.Set(ctx, storageKey, string(raw)); err != nil {
		l.logger.WithError(errors.NewLedgerPersistFailedError(err)).Error(
			"ledger snapshot persist failed", map[string]interface{}{
				"size": len(l.items),
			})
	}
}
