package pricing

import (
	"context"
	"sort"
	"sync"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/logger"
	"ExecGuard/pkg/util"
)

const (
	DefaultCacheTTL     = 24 * time.Hour
	DefaultPersistEvery = 10

	persistTimeout = 5 * time.Second
)

// CacheOptions tunes a PriceCache.
type CacheOptions struct {
	TTL          time.Duration
	PersistEvery int
}

// PriceCache is a TTL-bounded store of last-known prices backed by a durable PriceStore.
// All reads, writes and persists run under one mutex; durable state may lag memory by
// up to PersistEvery writes.
type PriceCache struct {
	mu           sync.Mutex
	entries      map[string]models.CachedPrice
	store        repository.PriceStore
	ttl          time.Duration
	persistEvery int
	clock        clock.Clock
	log          *logger.Logger
	metrics      repository.Metrics

	hits    int64
	misses  int64
	writes  int64
	pending int
}

// NewPriceCache creates a cache and loads the durable document. Load failures leave the cache empty.
func NewPriceCache(store repository.PriceStore, opts CacheOptions, clk clock.Clock, log *logger.Logger, metrics repository.Metrics) *PriceCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.PersistEvery <= 0 {
		opts.PersistEvery = DefaultPersistEvery
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	c := &PriceCache{
		entries:      make(map[string]models.CachedPrice),
		store:        store,
		ttl:          opts.TTL,
		persistEvery: opts.PersistEvery,
		clock:        clk,
		log:          log,
		metrics:      metrics,
	}
	c.load()
	return c
}

func (c *PriceCache) load() {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	doc, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn("price cache load failed, starting empty", logger.Error(err))
		return
	}

	skipped := 0
	for id, rec := range doc.Prices {
		ts, ok := util.ParseTime(rec.Timestamp)
		if !ok || rec.Price <= 0 {
			skipped++
			continue
		}
		c.entries[id] = models.CachedPrice{
			Price:        rec.Price,
			Symbol:       rec.Symbol,
			InstrumentID: id,
			Timestamp:    ts,
			Source:       rec.Source,
			Tier:         models.PriceTier(rec.Tier),
			Bid:          rec.Bid,
			Ask:          rec.Ask,
		}
	}
	c.log.Info("price cache loaded",
		logger.Int("entries", len(c.entries)),
		logger.Int("skipped", skipped),
		logger.String("version", doc.Version),
	)
}

// Get returns the cached price for id if it is younger than maxAge (default TTL when maxAge <= 0).
func (c *PriceCache) Get(id string, maxAge time.Duration) (models.CachedPrice, bool) {
	if maxAge <= 0 {
		maxAge = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok || entry.Timestamp.IsZero() || c.clock.Now().Sub(entry.Timestamp) > maxAge {
		c.misses++
		c.record(false)
		return models.CachedPrice{}, false
	}
	c.hits++
	c.record(true)
	return entry, true
}

// Set stores a valid result; results without a positive price are ignored.
func (c *PriceCache) Set(id string, r models.PriceResult) {
	if r.Price <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = models.CachedPrice{
		Price:        r.Price,
		Symbol:       r.Symbol,
		InstrumentID: id,
		Timestamp:    c.clock.Now(),
		Source:       r.Source,
		Tier:         r.Tier,
		Bid:          r.Bid,
		Ask:          r.Ask,
	}
	c.writes++
	c.pending++
	if c.pending >= c.persistEvery {
		c.persistLocked()
	}
}

// Invalidate drops one entry.
func (c *PriceCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		delete(c.entries, id)
		c.pending++
	}
}

// Clear drops every entry and persists the empty cache.
func (c *PriceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]models.CachedPrice)
	c.persistLocked()
}

// CleanupExpired removes entries older than maxAge (default TTL) and returns how many were removed.
func (c *PriceCache) CleanupExpired(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for id, entry := range c.entries {
		if now.Sub(entry.Timestamp) > maxAge {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.pending += removed
		c.log.Debug("price cache expired entries removed", logger.Int("removed", removed))
	}
	return removed
}

// Flush persists the cache now.
func (c *PriceCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistLocked()
}

// Close flushes pending writes.
func (c *PriceCache) Close() error {
	c.Flush()
	return nil
}

// Metrics returns a snapshot of the cache counters.
func (c *PriceCache) Metrics() models.CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return models.CacheMetrics{
		Hits:    c.hits,
		Misses:  c.misses,
		Writes:  c.writes,
		HitRate: hitRate(c.hits, c.misses),
		Size:    len(c.entries),
	}
}

// Snapshot lists every entry ordered by instrument id.
func (c *PriceCache) Snapshot() []models.CachedPrice {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CachedPrice, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (c *PriceCache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheAccess(hit)
	}
}

// persistLocked must be called with c.mu held. Errors are logged, never returned.
func (c *PriceCache) persistLocked() {
	if c.store == nil {
		c.pending = 0
		return
	}

	doc := &repository.PriceDocument{
		Prices:      make(map[string]repository.PriceRecord, len(c.entries)),
		LastUpdated: c.clock.Now().UTC(),
		Version:     repository.PriceDocumentVersion,
	}
	for id, e := range c.entries {
		doc.Prices[id] = repository.PriceRecord{
			Price:     e.Price,
			Symbol:    e.Symbol,
			Timestamp: util.FormatTimestamp(e.Timestamp),
			Source:    e.Source,
			Tier:      string(e.Tier),
			Bid:       e.Bid,
			Ask:       e.Ask,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.store.Save(ctx, doc); err != nil {
		c.log.Warn("price cache persist failed", logger.Error(err), logger.Int("entries", len(doc.Prices)))
		if c.metrics != nil {
			c.metrics.RecordError("cache_persist")
		}
		return
	}
	c.pending = 0
}
