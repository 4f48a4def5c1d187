package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// ══════════════════════════════════════════════════════════════════════════════
// USAGE WINDOW TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// UsageWindow tracks per-user usage event timestamps inside a short trailing
// window using a Redis sorted set. It backs anomaly detection so burst counts
// can be answered without scanning the event log in Postgres.
//
// Architecture:
//   - A single sorted set "usage:window:events" holds one member per event
//   - Member format is "{student_id}:{nonce}" so duplicates never collapse
//   - Score is the event timestamp in Unix milliseconds
//   - Old entries are pruned periodically by a background job
type UsageWindow struct {
	cache *Cache
}

// keyUsageWindowEvents is the sorted set containing tracked usage events.
const keyUsageWindowEvents = PrefixUsageWindow + "events"

// NewUsageWindow creates a new UsageWindow backed by the given cache.
func NewUsageWindow(cache *Cache) *UsageWindow {
	return &UsageWindow{cache: cache}
}

// compile-time check
var _ usage.WindowTracker = (*UsageWindow)(nil)

// Track records one event occurrence for the user at the given time.
func (w *UsageWindow) Track(ctx context.Context, studentID shared.StudentID, at time.Time) error {
	if studentID == "" {
		return ErrCacheKeyEmpty
	}

	member := string(studentID) + ":" + uuid.NewString()
	err := w.cache.Client().ZAdd(ctx, keyUsageWindowEvents, redis.Z{
		Score:  float64(at.UTC().UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to track usage event: %w", err)
	}

	return nil
}

// CountsInWindow returns per-user counts of events inside the trailing window
// ending now. Users with zero events in the window are absent from the map.
func (w *UsageWindow) CountsInWindow(ctx context.Context, window time.Duration) (map[shared.StudentID]int, error) {
	cutoff := time.Now().UTC().Add(-window).UnixMilli()

	members, err := w.cache.Client().ZRangeByScore(ctx, keyUsageWindowEvents, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read usage window: %w", err)
	}

	counts := make(map[shared.StudentID]int)
	for _, member := range members {
		// Strip the nonce suffix; the student ID may itself contain colons,
		// so cut at the last separator.
		idx := strings.LastIndexByte(member, ':')
		if idx <= 0 {
			continue
		}
		counts[shared.StudentID(member[:idx])]++
	}

	return counts, nil
}

// Prune discards tracked entries older than the retention period.
func (w *UsageWindow) Prune(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention).UnixMilli()

	err := w.cache.Client().ZRemRangeByScore(ctx, keyUsageWindowEvents,
		"-inf", strconv.FormatInt(cutoff, 10)).Err()
	if err != nil {
		return fmt.Errorf("failed to prune usage window: %w", err)
	}

	return nil
}
