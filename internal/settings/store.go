// internal/settings/store.go
package settings

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/storage"
	"notification-engine/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

const storageKey = "settings"

// settingsSchema guards the persisted snapshot: a snapshot that fails
// validation is discarded in favor of defaults rather than surfacing a
// decode error at startup.
const settingsSchema = `{
  "type": "object",
  "properties": {
    "enabled": {"type": "boolean"},
    "pushEnabled": {"type": "boolean"},
    "inAppEnabled": {"type": "boolean"},
    "soundEnabled": {"type": "boolean"},
    "vibrationEnabled": {"type": "boolean"},
    "categories": {
      "type": "object",
      "additionalProperties": {"type": "boolean"}
    },
    "reminderTiming": {
      "type": "object",
      "properties": {
        "threeDays": {"type": "boolean"},
        "oneDay": {"type": "boolean"},
        "sameDay": {"type": "boolean"}
      }
    }
  },
  "required": ["enabled"]
}`

// Store owns the in-memory settings and their persistence. All mutation
// goes through Update, which serializes merge-then-persist under a mutex.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	logger  logger.Logger
	current Settings
}

// NewStore creates a settings store with defaults; call Load to hydrate
// from durable storage.
func NewStore(st storage.Storage, log logger.Logger) *Store {
	return &Store{
		storage: st,
		logger:  log.WithFields(map[string]interface{}{"component": "settings"}),
		current: Default(),
	}
}

// Load reads the persisted snapshot. A missing, unreadable, or invalid
// snapshot resolves to defaults; Load never fails.
func (s *Store) Load(ctx context.Context) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.storage.Get(ctx, storageKey)
	if err != nil {
		if !stderrors.Is(err, storage.ErrNotFound) {
			s.logger.WithError(errors.NewStorageReadFailedError(storageKey, err)).Warn(
				"settings snapshot unreadable, using defaults", nil)
		}
		s.current = Default()
		return s.current.clone()
	}

	if !s.snapshotValid(raw) {
		s.logger.Warn("settings snapshot failed schema validation, using defaults", nil)
		s.current = Default()
		return s.current.clone()
	}

	loaded := Default()
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		s.logger.Warn("settings snapshot undecodable, using defaults", map[string]interface{}{
			"error": err,
		})
		s.current = Default()
		return s.current.clone()
	}

	// Categories added after the snapshot was written default to enabled.
	defaults := Default()
	if loaded.Categories == nil {
		loaded.Categories = make(map[models.NotificationType]bool, len(defaults.Categories))
	}
	for k, v := range defaults.Categories {
		if _, ok := loaded.Categories[k]; !ok {
			loaded.Categories[k] = v
		}
	}

	s.current = loaded
	return s.current.clone()
}

func (s *Store) snapshotValid(raw string) bool {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(settingsSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return false
	}
	return result.Valid()
}

// Get returns a copy of the current settings. Never triggers I/O.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// Update merges the partial update into the current settings and
// persists the result synchronously. On persistence failure the
// in-memory settings are rolled back and the error is surfaced: this is
// the one failure path the engine propagates.
func (s *Store) Update(ctx context.Context, u Update) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.current
	merged := s.current.merge(u)

	raw, err := json.Marshal(merged)
	if err != nil {
		return previous.clone(), errors.NewSettingsPersistFailedError(err)
	}

	s.current = merged
	if err := s.storage.Set(ctx, storageKey, string(raw)); err != nil {
		s.current = previous
		return previous.clone(), errors.NewSettingsPersistFailedError(err)
	}

	return merged.clone(), nil
}
