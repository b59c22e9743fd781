// Package calendar provides a read-through cache in front of the
// calendar store. Settings, weekly hours and blackout dates are
// admin-mutated and read on every availability computation, so they are
// cached with a short TTL; admin mutation paths call Invalidate.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"prohair/internal/models"
)

// Store is the subset of the database layer the cache fronts.
type Store interface {
	GetBusinessSettings(ctx context.Context) (*models.BusinessSettings, error)
	GetOpenHours(ctx context.Context, day int) (*models.WeeklyOpenHours, error)
	IsBlackout(ctx context.Context, date string) (bool, error)
	GetWorkingHours(ctx context.Context, stylistID int64, day int) ([]models.WorkingHour, error)
	GetTimeOffs(ctx context.Context, stylistID int64, start, end time.Time) ([]models.TimeOff, error)
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// Cache is a read-through TTL cache. The in-memory layer always
// applies; the Redis layer is optional and shares entries between
// workers.
type Cache struct {
	store  Store
	ttl    time.Duration
	redis  *redis.Client
	logger *zerolog.Logger

	mu  sync.RWMutex
	mem map[string]memEntry
}

// New creates a cache over store with the given TTL.
func New(store Store, ttl time.Duration, logger *zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger,
		mem:    make(map[string]memEntry),
	}
}

// UseRedis enables the shared Redis layer.
func (c *Cache) UseRedis(client *redis.Client) {
	c.redis = client
}

// Settings returns the business settings.
func (c *Cache) Settings(ctx context.Context) (*models.BusinessSettings, error) {
	var out models.BusinessSettings
	if c.readCache(ctx, "calendar:settings", &out) {
		return &out, nil
	}

	s, err := c.store.GetBusinessSettings(ctx)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, "calendar:settings", s)
	return s, nil
}

// OpenHours returns the weekly open hours for a weekday.
func (c *Cache) OpenHours(ctx context.Context, day int) (*models.WeeklyOpenHours, error) {
	key := fmt.Sprintf("calendar:hours:%d", day)
	var out models.WeeklyOpenHours
	if c.readCache(ctx, key, &out) {
		return &out, nil
	}

	wh, err := c.store.GetOpenHours(ctx, day)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, wh)
	return wh, nil
}

// IsBlackout reports whether a local date is blacked out.
func (c *Cache) IsBlackout(ctx context.Context, date string) (bool, error) {
	key := "calendar:blackout:" + date
	var out bool
	if c.readCache(ctx, key, &out) {
		return out, nil
	}

	blocked, err := c.store.IsBlackout(ctx, date)
	if err != nil {
		return false, err
	}
	c.writeCache(ctx, key, blocked)
	return blocked, nil
}

// WorkingHours returns the per-stylist override windows for a weekday.
func (c *Cache) WorkingHours(ctx context.Context, stylistID int64, day int) ([]models.WorkingHour, error) {
	key := fmt.Sprintf("calendar:working:%d:%d", stylistID, day)
	var out []models.WorkingHour
	if c.readCache(ctx, key, &out) {
		return out, nil
	}

	whs, err := c.store.GetWorkingHours(ctx, stylistID, day)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, whs)
	return whs, nil
}

// TimeOffs passes through uncached: the query is range-keyed and cheap.
func (c *Cache) TimeOffs(ctx context.Context, stylistID int64, start, end time.Time) ([]models.TimeOff, error) {
	return c.store.GetTimeOffs(ctx, stylistID, start, end)
}

// Invalidate drops cached calendar data. Called by admin mutation
// paths after weekly hours, blackouts or settings change. Date- and
// stylist-keyed entries are left to their TTL; the TTL is short enough
// that a stale read costs at most one cache period.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.mem = make(map[string]memEntry)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}

	keys := []string{"calendar:settings"}
	for day := 0; day <= 6; day++ {
		keys = append(keys, fmt.Sprintf("calendar:hours:%d", day))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Msg("calendar cache invalidation failed")
	}
}

func (c *Cache) readCache(ctx context.Context, key string, out interface{}) bool {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		if now.Before(entry.expires) {
			return json.Unmarshal(entry.data, out) == nil
		}
		c.mu.Lock()
		delete(c.mem, key)
		c.mu.Unlock()
	}

	if c.redis == nil {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	// Refill the local layer from the shared one.
	c.mu.Lock()
	c.mem[key] = memEntry{data: []byte(val), expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return true
}

func (c *Cache) writeCache(ctx context.Context, key string, val interface{}) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}

	now := time.Now()
	c.mu.Lock()
	// Dated keys (blackouts, per-stylist overrides) accumulate forever
	// otherwise; drop whatever has lapsed while we hold the lock.
	for k, e := range c.mem {
		if !now.Before(e.expires) {
			delete(c.mem, k)
		}
	}
	c.mem[key] = memEntry{data: data, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("redis cache write failed")
		}
	}
}
