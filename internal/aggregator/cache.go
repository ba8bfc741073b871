package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/report"
)

// DefaultTTL bounds how long a snapshot is served without refetching.
const DefaultTTL = 60 * time.Second

// Fetcher produces a complete snapshot; Aggregator.Fetch is the production
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context) (*report.Collection, error)
}

// Cache holds the most recent collection and refreshes it on read once the
// TTL has elapsed. Concurrent stale reads collapse into one in-flight fetch,
// and a failed refresh keeps serving the previous snapshot.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	log     zerolog.Logger
	now     func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	current   *report.Collection
	fetchedAt time.Time
}

func NewCache(fetcher Fetcher, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		log:     log.With().Str("component", "cache").Logger(),
		now:     time.Now,
	}
}

// Get returns the current snapshot, refreshing first if it is missing or
// older than the TTL. When the refresh fails and an old snapshot exists, the
// old one is served; with nothing cached the fetch error propagates.
func (c *Cache) Get(ctx context.Context) (*report.Collection, error) {
	c.mu.RLock()
	current := c.current
	fresh := current != nil && c.now().Sub(c.fetchedAt) < c.ttl
	c.mu.RUnlock()

	if fresh {
		return current, nil
	}

	updated, err, _ := c.group.Do("refresh", func() (any, error) {
		// A concurrent caller may have refreshed while we waited on the
		// flight group.
		c.mu.RLock()
		cur, at := c.current, c.fetchedAt
		c.mu.RUnlock()
		if cur != nil && c.now().Sub(at) < c.ttl {
			return cur, nil
		}

		collection, err := c.fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.current = collection
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return collection, nil
	})
	if err == nil {
		return updated.(*report.Collection), nil
	}

	if current != nil {
		c.log.Warn().Err(err).Msg("refresh failed, serving stale snapshot")
		return current, nil
	}
	return nil, apperr.Wrap(apperr.CodeNoData, "no snapshot available", err)
}

// Invalidate marks the snapshot stale so the next read refetches. The old
// data stays around to serve if that refetch fails.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
	c.log.Debug().Msg("snapshot invalidated")
}

// Refresh fetches unconditionally, for interval-driven warmers.
func (c *Cache) Refresh(ctx context.Context) error {
	collection, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.current = collection
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return nil
}
