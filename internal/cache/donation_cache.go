package cache

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type DonationSource interface {
	PendingDonations(ctx context.Context) ([]*storage.Donation, error)
}

// PendingCache mirrors the donations that are still open for claiming.
// A donation never returns to pending, so once an id is deleted it stays
// out: a Set that lands after the transition is ignored.
type PendingCache struct {
	mu      sync.RWMutex
	cache   map[int64]*storage.Donation
	removed map[int64]struct{}
	loaded  bool
	logger  *zap.Logger
}

func NewPendingCache(logger *zap.Logger) *PendingCache {
	return &PendingCache{
		cache:   make(map[int64]*storage.Donation),
		removed: make(map[int64]struct{}),
		logger:  logger,
	}
}

func (c *PendingCache) LoadInitialData(ctx context.Context, source DonationSource) error {
	c.logger.Info("loading pending donations into cache")
	donations, err := source.PendingDonations(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, donation := range donations {
		if _, gone := c.removed[donation.ID]; gone {
			continue
		}
		donationCopy := *donation
		c.cache[donation.ID] = &donationCopy
	}
	c.loaded = true
	metrics.PendingCacheItems.Set(float64(len(c.cache)))
	c.logger.Info("pending cache loaded", zap.Int("items", len(c.cache)))
	return nil
}

func (c *PendingCache) Get(id int64) (*storage.Donation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	donation, found := c.cache[id]
	if !found {
		return nil, false
	}
	donationCopy := *donation
	return &donationCopy, true
}

func (c *PendingCache) Set(donation *storage.Donation) {
	if donation.Status != storage.StatusPending {
		c.Delete(donation.ID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, gone := c.removed[donation.ID]; gone {
		c.logger.Debug("cache: ignored set of a donation that left pending", zap.Int64("donation_id", donation.ID))
		return
	}
	donationCopy := *donation
	c.cache[donation.ID] = &donationCopy
	metrics.PendingCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("cache: set donation", zap.Int64("donation_id", donation.ID))
}

func (c *PendingCache) Delete(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed[id] = struct{}{}
	if _, found := c.cache[id]; found {
		delete(c.cache, id)
		metrics.PendingCacheItems.Set(float64(len(c.cache)))
		c.logger.Debug("cache: deleted donation", zap.Int64("donation_id", id))
	}
}

// Pending returns copies ordered newest first. The second result is false
// until LoadInitialData has succeeded.
func (c *PendingCache) Pending() ([]*storage.Donation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, false
	}
	out := make([]*storage.Donation, 0, len(c.cache))
	for _, donation := range c.cache {
		donationCopy := *donation
		out = append(out, &donationCopy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, true
}
