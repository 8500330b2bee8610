package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/internal/domain/service"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const DefaultBatchParallelism = 4

// Resolver walks an ordered chain of price sources and returns the first positive price.
type Resolver struct {
	sources     []service.PriceSource
	cache       *PriceCache
	catalog     repository.InstrumentCatalog
	clock       clock.Clock
	log         *logger.Logger
	metrics     repository.Metrics
	staleAfter  time.Duration
	parallelism int

	mu           sync.Mutex
	requests     int64
	failures     int64
	tierHits     map[models.PriceTier]int64
	totalLatency time.Duration
}

type ResolverOption func(*Resolver)

func WithClock(clk clock.Clock) ResolverOption {
	return func(r *Resolver) {
		if clk != nil {
			r.clock = clk
		}
	}
}

func WithLogger(log *logger.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

func WithMetrics(m repository.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

func WithStaleAfter(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

func WithBatchParallelism(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// NewResolver creates a resolver over sources. Only live results (realtime, delayed,
// portfolio) are written back to cache; cached and guardrail results are not, so a
// static default never becomes a cached price and cache entries keep their original age.
// Once ctx is done the broker tiers are skipped while the cached and guardrail tiers
// still run.
func NewResolver(sources []service.PriceSource, cache *PriceCache, catalog repository.InstrumentCatalog, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		sources:     sources,
		cache:       cache,
		catalog:     catalog,
		clock:       clock.New(),
		log:         logger.NewNop(),
		staleAfter:  models.DefaultStaleAfter,
		parallelism: DefaultBatchParallelism,
		tierHits:    make(map[models.PriceTier]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetReferencePrice resolves one instrument. It never fails: when every source is
// exhausted the result carries TierFailed and an explanatory Error.
func (r *Resolver) GetReferencePrice(ctx context.Context, instrumentID, symbol string, conID int64) models.PriceResult {
	start := r.clock.Now()
	req := r.buildRequest(instrumentID, symbol, conID)

	var attempts []string
	for _, src := range r.sources {
		tctx := ctx
		if isLocalTier(src.Tier()) {
			tctx = context.WithoutCancel(ctx)
		} else if err := ctx.Err(); err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", src.Tier(), err))
			continue
		}

		result, err := r.try(tctx, src, req)
		if err != nil {
			r.log.Debug("price tier unavailable",
				logger.String("instrument", instrumentID),
				logger.String("tier", string(src.Tier())),
				logger.Error(err),
			)
			attempts = append(attempts, fmt.Sprintf("%s: %v", src.Tier(), err))
			continue
		}

		result = r.finish(result, src.Tier(), req)
		if writesBack(result.Tier) && r.cache != nil {
			r.cache.Set(instrumentID, result)
		}
		r.record(result.Tier, r.clock.Now().Sub(start))
		if result.Tier.Rank() > models.TierRealtime.Rank() {
			r.log.Debug("reference price resolved from fallback tier",
				logger.String("instrument", instrumentID),
				logger.String("tier", string(result.Tier)),
				logger.Float64("price", result.Price),
			)
		}
		return result
	}

	r.record(models.TierFailed, r.clock.Now().Sub(start))
	msg := fmt.Sprintf("all price tiers failed for %s", instrumentID)
	if len(attempts) > 0 {
		msg += " (" + strings.Join(attempts, "; ") + ")"
	}
	r.log.Warn("reference price unavailable",
		logger.String("instrument", instrumentID),
		logger.String("symbol", req.Symbol),
		logger.Strings("attempts", attempts),
	)
	return models.PriceResult{
		Tier:         models.TierFailed,
		Source:       "none",
		Symbol:       req.Symbol,
		InstrumentID: instrumentID,
		Timestamp:    r.clock.Now(),
		Confidence:   models.TierFailed.Confidence(),
		Error:        msg,
	}
}

// GetReferencePricesBatch resolves ids concurrently. Duplicate ids are resolved once.
func (r *Resolver) GetReferencePricesBatch(ctx context.Context, ids []string) map[string]models.PriceResult {
	out := make(map[string]models.PriceResult, len(ids))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.parallelism)

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		id := id
		g.Go(func() error {
			res := r.GetReferencePrice(ctx, id, "", 0)
			mu.Lock()
			out[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// IsStale reports whether result is older than the configured stale threshold.
func (r *Resolver) IsStale(result models.PriceResult) bool {
	return result.IsStaleAfter(r.staleAfter)
}

// Metrics returns cumulative resolver counters together with cache counters.
func (r *Resolver) Metrics() models.PriceMetrics {
	r.mu.Lock()
	m := models.PriceMetrics{
		Requests: r.requests,
		Failures: r.failures,
		TierHits: make(map[models.PriceTier]int64, len(r.tierHits)),
	}
	for tier, n := range r.tierHits {
		m.TierHits[tier] = n
	}
	if r.requests > 0 {
		m.AvgLatencyMs = float64(r.totalLatency.Microseconds()) / 1000 / float64(r.requests)
		m.SuccessRate = float64(r.requests-r.failures) / float64(r.requests)
	}
	r.mu.Unlock()

	if r.cache != nil {
		m.Cache = r.cache.Metrics()
	}
	return m
}

// ResetMetrics zeroes resolver counters.
func (r *Resolver) ResetMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = 0
	r.failures = 0
	r.totalLatency = 0
	r.tierHits = make(map[models.PriceTier]int64)
}

// Tiers lists the configured chain.
func (r *Resolver) Tiers() []models.PriceTier {
	out := make([]models.PriceTier, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s.Tier())
	}
	return out
}

func (r *Resolver) buildRequest(instrumentID, symbol string, conID int64) service.PriceRequest {
	req := service.PriceRequest{InstrumentID: instrumentID, Symbol: symbol, ConID: conID}
	if r.catalog != nil {
		if inst, ok := r.catalog.Instrument(instrumentID); ok {
			req.Instrument = inst
			if req.Symbol == "" {
				req.Symbol = inst.Symbol
			}
			if req.ConID == 0 {
				req.ConID = inst.ConID
			}
		}
	}
	if req.Symbol == "" {
		req.Symbol = instrumentID
	}
	return req
}

// try isolates a source so that a panicking collaborator only disables its tier.
func (r *Resolver) try(ctx context.Context, src service.PriceSource, req service.PriceRequest) (result models.PriceResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			if r.metrics != nil {
				r.metrics.RecordError("tier_panic")
			}
		}
	}()

	result, err = src.Resolve(ctx, req)
	if err == nil && result.Price <= 0 {
		err = ErrNoPrice
	}
	return result, err
}

func (r *Resolver) finish(result models.PriceResult, tier models.PriceTier, req service.PriceRequest) models.PriceResult {
	result.Tier = tier
	result.Confidence = tier.Confidence()
	result.InstrumentID = req.InstrumentID
	if result.Symbol == "" {
		result.Symbol = req.Symbol
	}
	now := r.clock.Now()
	if result.Timestamp.IsZero() {
		result.Timestamp = now
	}
	if result.Age == 0 {
		result.Age = now.Sub(result.Timestamp)
	}
	if result.SpreadBps == 0 && result.Bid > 0 && result.Ask > 0 {
		result.SpreadBps = models.Quote{Bid: result.Bid, Ask: result.Ask}.SpreadBps()
	}
	return result
}

func (r *Resolver) record(tier models.PriceTier, elapsed time.Duration) {
	r.mu.Lock()
	r.requests++
	r.totalLatency += elapsed
	if tier == models.TierFailed {
		r.failures++
	} else {
		r.tierHits[tier]++
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordResolution(tier, elapsed.Seconds())
		if tier != models.TierFailed {
			r.metrics.RecordTierHit(tier)
		}
	}
}

// isLocalTier marks tiers that resolve from process state without I/O.
func isLocalTier(tier models.PriceTier) bool {
	return tier == models.TierCached || tier == models.TierGuardrail
}

// writesBack excludes cached and guardrail results: rewriting them would refresh
// their timestamp and promote a static default to a cached price.
func writesBack(tier models.PriceTier) bool {
	switch tier {
	case models.TierRealtime, models.TierDelayed, models.TierPortfolio:
		return true
	default:
		return false
	}
}
