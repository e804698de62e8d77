package ringslog

import (
	"sync"
	"time"
)

// ReviewCache is an in-memory cache of the review list with TTL.
type ReviewCache struct {
	mu      sync.RWMutex
	reviews []Review
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewReviewCache creates a ReviewCache backed by the given Store.
func NewReviewCache(s *Store, ttl time.Duration) *ReviewCache {
	return &ReviewCache{store: s, ttl: ttl}
}

func (c *ReviewCache) valid() bool {
	return c.reviews != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ReviewCache) Invalidate() {
	c.mu.Lock()
	c.reviews = nil
	c.mu.Unlock()
}

func (c *ReviewCache) load() error {
	if c.valid() {
		return nil
	}
	reviews, err := c.store.ListReviews()
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = []Review{}
	}
	c.reviews = reviews
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached reviews after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *ReviewCache) ensureLoaded() ([]Review, error) {
	c.mu.RLock()
	if c.valid() {
		reviews := c.reviews
		c.mu.RUnlock()
		return reviews, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.reviews, nil
}

// ListReviews returns all reviews, newest first.
func (c *ReviewCache) ListReviews() ([]Review, error) {
	return c.ensureLoaded()
}

// GetReview returns a single review by uid from the cache.
func (c *ReviewCache) GetReview(uid string) (Review, error) {
	reviews, err := c.ensureLoaded()
	if err != nil {
		return Review{}, err
	}
	for _, r := range reviews {
		if r.UID == uid {
			return r, nil
		}
	}
	return Review{}, ErrNotFound
}
