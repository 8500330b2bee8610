package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/internal/domain/service"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/logger"
)

var (
	// ErrNoPrice is returned by a source that produced no positive price.
	ErrNoPrice = errors.New("no price available")
	// ErrDisconnected is returned by broker-backed sources when the client is offline.
	ErrDisconnected = errors.New("market data client not connected")
)

const (
	DefaultRealtimeWait = time.Second
	DefaultDelayedWait  = 1500 * time.Millisecond

	modeResetTimeout = 2 * time.Second
)

// quoteSource requests a single quote within a wait budget and always cancels the subscription.
// The broker's data mode is global, so realtime quotes hold mode for reading and the delayed
// switch holds it for writing.
type quoteSource struct {
	client repository.MarketDataClient
	wait   time.Duration
	clock  clock.Clock
	mode   *sync.RWMutex
}

func (q *quoteSource) fetch(ctx context.Context, req service.PriceRequest, tier models.PriceTier, source string) (models.PriceResult, error) {
	if q.client == nil || !q.client.IsConnected() {
		return models.PriceResult{}, ErrDisconnected
	}

	inst := req.Instrument
	if inst.Symbol == "" {
		inst.Symbol = req.Symbol
	}
	if inst.ConID == 0 {
		inst.ConID = req.ConID
	}

	contract, err := q.client.QualifyContract(ctx, req.InstrumentID, inst)
	if err != nil {
		return models.PriceResult{}, fmt.Errorf("qualify contract: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, q.wait)
	defer cancel()
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), modeResetTimeout)
		defer ccancel()
		_ = q.client.CancelQuote(cctx, contract)
	}()

	quote, err := q.client.RequestQuote(waitCtx, contract)
	if err != nil && quote.BestPrice() <= 0 {
		return models.PriceResult{}, fmt.Errorf("request quote: %w", err)
	}

	price := quote.BestPrice()
	if price <= 0 {
		return models.PriceResult{}, ErrNoPrice
	}

	result := models.PriceResult{
		Price:     price,
		Tier:      tier,
		Source:    source,
		Timestamp: q.clock.Now(),
	}
	if quote.Bid > 0 && quote.Ask > 0 {
		result.Bid = quote.Bid
		result.Ask = quote.Ask
		result.SpreadBps = quote.SpreadBps()
	}
	return result, nil
}

// RealtimeSource prices from the live broker feed.
type RealtimeSource struct {
	quoteSource
}

func NewRealtimeSource(client repository.MarketDataClient, wait time.Duration, clk clock.Clock) *RealtimeSource {
	if wait <= 0 {
		wait = DefaultRealtimeWait
	}
	return &RealtimeSource{quoteSource{client: client, wait: wait, clock: orReal(clk), mode: &sync.RWMutex{}}}
}

func (s *RealtimeSource) Tier() models.PriceTier { return models.TierRealtime }

func (s *RealtimeSource) Resolve(ctx context.Context, req service.PriceRequest) (models.PriceResult, error) {
	s.mode.RLock()
	defer s.mode.RUnlock()
	return s.fetch(ctx, req, models.TierRealtime, "broker_realtime")
}

// DelayedSource switches the broker to delayed data for one quote and restores realtime afterwards.
type DelayedSource struct {
	quoteSource
	log *logger.Logger
}

func NewDelayedSource(client repository.MarketDataClient, wait time.Duration, clk clock.Clock, log *logger.Logger) *DelayedSource {
	if wait <= 0 {
		wait = DefaultDelayedWait
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DelayedSource{quoteSource: quoteSource{client: client, wait: wait, clock: orReal(clk), mode: &sync.RWMutex{}}, log: log}
}

func (s *DelayedSource) Tier() models.PriceTier { return models.TierDelayed }

func (s *DelayedSource) Resolve(ctx context.Context, req service.PriceRequest) (models.PriceResult, error) {
	if s.client == nil || !s.client.IsConnected() {
		return models.PriceResult{}, ErrDisconnected
	}

	s.mode.Lock()
	defer s.mode.Unlock()

	// the mode is reset even when the switch itself failed
	defer func() {
		rctx, cancel := context.WithTimeout(context.Background(), modeResetTimeout)
		defer cancel()
		if err := s.client.SetDataMode(rctx, models.DataModeRealtime); err != nil {
			s.log.Warn("failed to restore realtime data mode", logger.Error(err))
		}
	}()

	if err := s.client.SetDataMode(ctx, models.DataModeDelayed); err != nil {
		return models.PriceResult{}, fmt.Errorf("set delayed mode: %w", err)
	}
	return s.fetch(ctx, req, models.TierDelayed, "broker_delayed")
}

// PortfolioSource prices from the mark of a matching broker holding.
type PortfolioSource struct {
	client repository.MarketDataClient
	clock  clock.Clock
}

func NewPortfolioSource(client repository.MarketDataClient, clk clock.Clock) *PortfolioSource {
	return &PortfolioSource{client: client, clock: orReal(clk)}
}

func (s *PortfolioSource) Tier() models.PriceTier { return models.TierPortfolio }

func (s *PortfolioSource) Resolve(ctx context.Context, req service.PriceRequest) (models.PriceResult, error) {
	if s.client == nil || !s.client.IsConnected() {
		return models.PriceResult{}, ErrDisconnected
	}

	holdings, err := s.client.Portfolio(ctx)
	if err != nil {
		return models.PriceResult{}, fmt.Errorf("portfolio: %w", err)
	}

	for _, h := range holdings {
		if !matchesHolding(h, req) || h.MarkPrice <= 0 {
			continue
		}
		return models.PriceResult{
			Price:     h.MarkPrice,
			Tier:      models.TierPortfolio,
			Source:    "broker_portfolio",
			Timestamp: s.clock.Now(),
		}, nil
	}
	return models.PriceResult{}, ErrNoPrice
}

func matchesHolding(h models.Holding, req service.PriceRequest) bool {
	if req.ConID != 0 && h.ConID == req.ConID {
		return true
	}
	return req.Symbol != "" && strings.EqualFold(h.Symbol, req.Symbol)
}

// CachedSource prices from the last known good value.
type CachedSource struct {
	cache *PriceCache
	clock clock.Clock
}

func NewCachedSource(cache *PriceCache, clk clock.Clock) *CachedSource {
	return &CachedSource{cache: cache, clock: orReal(clk)}
}

func (s *CachedSource) Tier() models.PriceTier { return models.TierCached }

func (s *CachedSource) Resolve(_ context.Context, req service.PriceRequest) (models.PriceResult, error) {
	if s.cache == nil {
		return models.PriceResult{}, ErrNoPrice
	}
	entry, ok := s.cache.Get(req.InstrumentID, 0)
	if !ok {
		return models.PriceResult{}, ErrNoPrice
	}

	source := "cache"
	if entry.Source != "" {
		source = "cache:" + entry.Source
	}
	return models.PriceResult{
		Price:     entry.Price,
		Tier:      models.TierCached,
		Source:    source,
		Timestamp: entry.Timestamp,
		Age:       s.clock.Now().Sub(entry.Timestamp),
		Bid:       entry.Bid,
		Ask:       entry.Ask,
	}, nil
}

// GuardrailSource prices from static configuration.
type GuardrailSource struct {
	catalog repository.InstrumentCatalog
	clock   clock.Clock
}

func NewGuardrailSource(catalog repository.InstrumentCatalog, clk clock.Clock) *GuardrailSource {
	return &GuardrailSource{catalog: catalog, clock: orReal(clk)}
}

func (s *GuardrailSource) Tier() models.PriceTier { return models.TierGuardrail }

func (s *GuardrailSource) Resolve(_ context.Context, req service.PriceRequest) (models.PriceResult, error) {
	if s.catalog == nil {
		return models.PriceResult{}, ErrNoPrice
	}
	price, ok := s.catalog.GuardrailPrice(req.InstrumentID, req.Symbol)
	if !ok {
		return models.PriceResult{}, ErrNoPrice
	}
	return models.PriceResult{
		Price:     price,
		Tier:      models.TierGuardrail,
		Source:    "guardrail_config",
		Timestamp: s.clock.Now(),
	}, nil
}

// BuildSources assembles the chain in the given tier order. Unknown tiers are an error.
// The realtime and delayed sources share one data mode lock.
func BuildSources(order []models.PriceTier, client repository.MarketDataClient, cache *PriceCache,
	catalog repository.InstrumentCatalog, realtimeWait, delayedWait time.Duration, clk clock.Clock, log *logger.Logger,
) ([]service.PriceSource, error) {
	if len(order) == 0 {
		order = AllSourceTiers()
	}
	sources := make([]service.PriceSource, 0, len(order))
	mode := &sync.RWMutex{}
	for _, tier := range order {
		switch tier {
		case models.TierRealtime:
			src := NewRealtimeSource(client, realtimeWait, clk)
			src.mode = mode
			sources = append(sources, src)
		case models.TierDelayed:
			src := NewDelayedSource(client, delayedWait, clk, log)
			src.mode = mode
			sources = append(sources, src)
		case models.TierPortfolio:
			sources = append(sources, NewPortfolioSource(client, clk))
		case models.TierCached:
			sources = append(sources, NewCachedSource(cache, clk))
		case models.TierGuardrail:
			sources = append(sources, NewGuardrailSource(catalog, clk))
		default:
			return nil, fmt.Errorf("unknown price tier %q", tier)
		}
	}
	return sources, nil
}

// AllSourceTiers is the default resolution order.
func AllSourceTiers() []models.PriceTier {
	return []models.PriceTier{
		models.TierRealtime,
		models.TierDelayed,
		models.TierPortfolio,
		models.TierCached,
		models.TierGuardrail,
	}
}

func orReal(clk clock.Clock) clock.Clock {
	if clk == nil {
		return clock.New()
	}
	return clk
}
