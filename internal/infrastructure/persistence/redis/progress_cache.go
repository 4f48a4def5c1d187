package redis

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressCache is a read-through cache decorating a progress.Repository.
// Single-student lookups are the hottest read in the system (every dashboard
// load hits them), so snapshots are kept in Redis with a short TTL and
// invalidated on write. List queries always go to the underlying store.
type ProgressCache struct {
	inner progress.Repository
	cache *Cache
	ttl   time.Duration
}

// NewProgressCache wraps the given repository with a Redis snapshot cache.
func NewProgressCache(inner progress.Repository, cache *Cache) *ProgressCache {
	return &ProgressCache{
		inner: inner,
		cache: cache,
		ttl:   TTLProgressCache,
	}
}

// compile-time check
var _ progress.Repository = (*ProgressCache)(nil)

// Find loads the progress row for one student, serving from cache when fresh.
// Cache failures degrade to the underlying store rather than failing the read.
func (c *ProgressCache) Find(ctx context.Context, studentID shared.StudentID) (*progress.StudentProgress, error) {
	key := ProgressKey(studentID.String())

	// Any cache failure (miss or degraded Redis) falls through to the store.
	var cached progress.StudentProgress
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	row, err := c.inner.Find(ctx, studentID)
	if err != nil {
		return nil, err
	}

	_ = c.cache.Set(ctx, key, row, c.ttl)
	return row, nil
}

// Upsert writes through to the underlying store and drops the stale snapshot.
func (c *ProgressCache) Upsert(ctx context.Context, p *progress.StudentProgress) error {
	if err := c.inner.Upsert(ctx, p); err != nil {
		return err
	}

	_ = c.cache.Delete(ctx, ProgressKey(p.StudentID.String()))
	return nil
}

// Invalidate drops the cached snapshot for one student. Used by event
// handlers so that writes made by another instance do not leave a stale
// snapshot behind on this one.
func (c *ProgressCache) Invalidate(ctx context.Context, studentID shared.StudentID) error {
	return c.cache.Delete(ctx, ProgressKey(studentID.String()))
}

// ListAll returns every progress row, bypassing the cache.
func (c *ProgressCache) ListAll(ctx context.Context) ([]*progress.StudentProgress, error) {
	return c.inner.ListAll(ctx)
}

// ListBehind returns struggling-student rows, bypassing the cache.
func (c *ProgressCache) ListBehind(ctx context.Context, accuracyBelow float64, inactiveSince time.Time) ([]*progress.StudentProgress, error) {
	return c.inner.ListBehind(ctx, accuracyBelow, inactiveSince)
}
