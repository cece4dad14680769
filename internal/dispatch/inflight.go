package dispatch

import (
	"context"
	"sync"
	"time"

	"notification-engine/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// ============================================================================
// IN-FLIGHT REGISTRY
// ============================================================================

// InFlightRegistry tracks tags with a visible OS notification so a
// re-fired reminder cannot show a duplicate while the first is still on
// screen.
type InFlightRegistry interface {
	// Acquire claims the tag. It returns false when the tag is already
	// in flight.
	Acquire(ctx context.Context, tag string) bool
	// Release frees the tag after the notification is dismissed.
	Release(ctx context.Context, tag string)
	// Clear drops every claimed tag.
	Clear(ctx context.Context)
}

// memoryRegistry is the single-process default.
type memoryRegistry struct {
	mu   sync.Mutex
	tags map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryRegistry creates an in-process registry. Entries older than
// ttl are treated as released, covering dismiss callbacks that never
// ran. A non-positive ttl means claimed tags never expire on their own.
func NewMemoryRegistry(ttl time.Duration) InFlightRegistry {
	return &memoryRegistry{
		tags: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (r *memoryRegistry) Acquire(ctx context.Context, tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if claimed, ok := r.tags[tag]; ok {
		if r.ttl <= 0 || r.now().Sub(claimed) < r.ttl {
			return false
		}
	}
	r.tags[tag] = r.now()
	return true
}

func (r *memoryRegistry) Release(ctx context.Context, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tags, tag)
}

func (r *memoryRegistry) Clear(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = make(map[string]time.Time)
}

// redisRegistry shares the in-flight set across instances.
type redisRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisRegistry creates a registry backed by Redis SET NX with a
// TTL. Registry errors fail open: a Redis outage must not suppress
// notifications.
func NewRedisRegistry(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) InFlightRegistry {
	return &redisRegistry{
		client: client,
		prefix: prefix + "inflight:",
		ttl:    ttl,
		logger: log,
	}
}

func (r *redisRegistry) Acquire(ctx context.Context, tag string) bool {
	ok, err := r.client.SetNX(ctx, r.prefix+tag, "1", r.ttl).Result()
	if err != nil {
		r.logger.Warn("inflight acquire failed, allowing delivery", map[string]interface{}{
			"tag":   tag,
			"error": err,
		})
		return true
	}
	return ok
}

func (r *redisRegistry) Release(ctx context.Context, tag string) {
	if err := r.client.Del(ctx, r.prefix+tag).Err(); err != nil {
		r.logger.Warn("inflight release failed", map[string]interface{}{
			"tag":   tag,
			"error": err,
		})
	}
}

func (r *redisRegistry) Clear(ctx context.Context) {
	keys, err := r.client.Keys(ctx, r.prefix+"*").Result()
	if err != nil {
		r.logger.Warn("inflight clear failed", map[string]interface{}{"error": err})
		return
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			r.logger.Warn("inflight clear failed", map[string]interface{}{"error": err})
		}
	}
}
