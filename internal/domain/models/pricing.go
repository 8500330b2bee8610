package models

import "time"

// PriceTier is a priority-ordered price source in the fallback chain.
type PriceTier string

const (
	TierRealtime  PriceTier = "realtime"
	TierDelayed   PriceTier = "delayed"
	TierPortfolio PriceTier = "portfolio"
	TierCached    PriceTier = "cached"
	TierGuardrail PriceTier = "guardrail"
	TierFailed    PriceTier = "failed"
)

// DefaultStaleAfter is the age beyond which a resolved price is considered stale.
const DefaultStaleAfter = 300 * time.Second

// AllTiers lists tiers from most to least trusted.
func AllTiers() []PriceTier {
	return []PriceTier{TierRealtime, TierDelayed, TierPortfolio, TierCached, TierGuardrail, TierFailed}
}

// Confidence returns the trust score assigned to prices from this tier.
func (t PriceTier) Confidence() float64 {
	switch t {
	case TierRealtime:
		return 1.0
	case TierDelayed:
		return 0.85
	case TierPortfolio:
		return 0.75
	case TierCached:
		return 0.5
	case TierGuardrail:
		return 0.25
	default:
		return 0.0
	}
}

// Rank orders tiers, 0 being the most trusted.
func (t PriceTier) Rank() int {
	for i, tier := range AllTiers() {
		if tier == t {
			return i
		}
	}
	return len(AllTiers())
}

// IsValidTier reports whether s names a known tier.
func IsValidTier(s string) bool {
	for _, tier := range AllTiers() {
		if string(tier) == s {
			return true
		}
	}
	return false
}

// PriceResult is the outcome of one reference price resolution.
// A zero Price means no price was found; Bid/Ask of zero mean no quote side.
type PriceResult struct {
	Price        float64       `json:"price,omitempty"`
	Tier         PriceTier     `json:"tier"`
	Source       string        `json:"source"`
	Symbol       string        `json:"symbol"`
	InstrumentID string        `json:"instrument_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Age          time.Duration `json:"age"`
	Confidence   float64       `json:"confidence"`
	Bid          float64       `json:"bid,omitempty"`
	Ask          float64       `json:"ask,omitempty"`
	SpreadBps    float64       `json:"spread_bps,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// IsValid reports whether the result carries a usable price.
func (r *PriceResult) IsValid() bool {
	return r != nil && r.Price > 0
}

// IsStale reports whether the price is older than DefaultStaleAfter.
func (r *PriceResult) IsStale() bool {
	return r.IsStaleAfter(DefaultStaleAfter)
}

// IsStaleAfter reports whether the price is older than maxAge.
func (r *PriceResult) IsStaleAfter(maxAge time.Duration) bool {
	return r != nil && r.Age > maxAge
}

// HasQuote reports whether both sides of the book are known.
func (r *PriceResult) HasQuote() bool {
	return r != nil && r.Bid > 0 && r.Ask > 0
}

// CachedPrice is a last-known price held by the price cache.
type CachedPrice struct {
	Price        float64   `json:"price"`
	Symbol       string    `json:"symbol"`
	InstrumentID string    `json:"instrument_id"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	Tier         PriceTier `json:"tier"`
	Bid          float64   `json:"bid,omitempty"`
	Ask          float64   `json:"ask,omitempty"`
}

// Quote is a market data snapshot for one contract.
type Quote struct {
	Last  float64
	Bid   float64
	Ask   float64
	Close float64
}

// BestPrice returns last, else close, else zero.
func (q Quote) BestPrice() float64 {
	if q.Last > 0 {
		return q.Last
	}
	if q.Close > 0 {
		return q.Close
	}
	return 0
}

// SpreadBps returns the quoted spread relative to the mid, or zero if a side is missing.
func (q Quote) SpreadBps() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	mid := (q.Bid + q.Ask) / 2
	return (q.Ask - q.Bid) / mid * 10000
}

// DataMode selects the broker market data feed type.
type DataMode string

const (
	DataModeRealtime DataMode = "realtime"
	DataModeDelayed  DataMode = "delayed"
	DataModeFrozen   DataMode = "frozen"
)

// Holding is one position reported by the broker portfolio.
type Holding struct {
	Symbol      string  `json:"symbol"`
	ConID       int64   `json:"con_id"`
	Position    float64 `json:"position"`
	MarkPrice   float64 `json:"mark_price"`
	MarketValue float64 `json:"market_value"`
}

// PriceMetrics is a snapshot of resolver counters.
type PriceMetrics struct {
	Requests     int64               `json:"requests"`
	Failures     int64               `json:"failures"`
	TierHits     map[PriceTier]int64 `json:"tier_hits"`
	AvgLatencyMs float64             `json:"avg_latency_ms"`
	SuccessRate  float64             `json:"success_rate"`
	Cache        CacheMetrics        `json:"cache"`
}

// CacheMetrics is a snapshot of price cache counters.
type CacheMetrics struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Writes  int64   `json:"writes"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
}
