package orders

import (
	"sort"
	"strings"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/config"
	"ExecGuard/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const bpsPerUnit = 10000

// Generator turns a resolved reference price into a limit order spec.
// Apart from the order id and timestamp, the output is a pure function of its inputs.
type Generator struct {
	cfg     config.OrdersConfig
	ticks   []config.TickRule
	catalog repository.InstrumentCatalog
	clock   clock.Clock
	log     *logger.Logger
	metrics repository.Metrics
}

type Option func(*Generator)

func WithClock(clk clock.Clock) Option {
	return func(g *Generator) {
		if clk != nil {
			g.clock = clk
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

func NewGenerator(cfg config.OrdersConfig, catalog repository.InstrumentCatalog, opts ...Option) *Generator {
	ticks := append([]config.TickRule(nil), cfg.Ticks...)
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].MinPrice > ticks[j].MinPrice })

	g := &Generator{
		cfg:     cfg,
		ticks:   ticks,
		catalog: catalog,
		clock:   clock.New(),
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns nil when the inputs cannot produce a safe order.
func (g *Generator) Generate(instrumentID string, side models.Side, quantity int64, price *models.PriceResult, adj models.AdjustmentStrategy) *models.LimitOrderSpec {
	if !price.IsValid() {
		g.reject(instrumentID, "no_reference_price")
		return nil
	}
	if !side.IsValid() {
		g.reject(instrumentID, "invalid_side")
		return nil
	}
	if quantity <= 0 {
		g.reject(instrumentID, "invalid_quantity")
		return nil
	}
	if _, ok := g.cfg.StrategyFactors[string(adj)]; !ok {
		g.reject(instrumentID, "unknown_adjustment")
		return nil
	}

	spread := g.SpreadBps(price.Tier, price.Confidence, adj, instrumentID)
	limit := g.LimitPrice(instrumentID, side, price, adj, spread)

	spec := &models.LimitOrderSpec{
		OrderID:        uuid.NewString(),
		InstrumentID:   instrumentID,
		Side:           side,
		Quantity:       quantity,
		LimitPrice:     limit,
		ReferencePrice: price.Price,
		Confidence:     price.Confidence,
		Adjustment:     adj,
		SpreadBps:      spread,
		Tier:           price.Tier,
		Source:         price.Source,
		GeneratedAt:    g.clock.Now(),
	}

	if g.metrics != nil {
		g.metrics.RecordOrderGenerated(adj)
	}
	g.log.Info("limit order generated",
		logger.String("order_id", spec.OrderID),
		logger.String("instrument", instrumentID),
		logger.String("side", string(side)),
		logger.Int64("quantity", quantity),
		logger.Float64("reference", price.Price),
		logger.Float64("limit", limit),
		logger.Float64("spread_bps", spread),
		logger.String("tier", string(price.Tier)),
	)
	return spec
}

// SpreadBps is the safety margin for a price of the given tier and confidence.
// It does not increase as confidence rises.
func (g *Generator) SpreadBps(tier models.PriceTier, confidence float64, adj models.AdjustmentStrategy, instrumentID string) float64 {
	rng, ok := g.cfg.TierSpreads[string(tier)]
	if !ok {
		rng = config.SpreadRange{Min: g.cfg.MaxSpreadBps, Max: g.cfg.MaxSpreadBps}
	}
	confidence = clamp(confidence, 0, 1)

	spread := rng.Max - confidence*(rng.Max-rng.Min)

	if factor, ok := g.cfg.StrategyFactors[string(adj)]; ok {
		spread *= factor
	}

	if ov, ok := g.override(instrumentID); ok {
		if ov.Factor > 0 {
			spread *= ov.Factor
		}
		if spread < ov.MinSpreadBps {
			spread = ov.MinSpreadBps
		}
	}

	if g.cfg.MaxSpreadBps > 0 && spread > g.cfg.MaxSpreadBps {
		spread = g.cfg.MaxSpreadBps
	}
	return spread
}

// LimitPrice applies spreadBps to the reference, or crosses the book for aggressive orders with a quote.
func (g *Generator) LimitPrice(instrumentID string, side models.Side, price *models.PriceResult, adj models.AdjustmentStrategy, spreadBps float64) float64 {
	tick := g.TickSize(instrumentID, price.Price)

	if adj == models.AdjustAggressive && price.HasQuote() {
		if side == models.SideBuy {
			return roundToTick(price.Ask, tick, side)
		}
		return roundToTick(price.Bid, tick, side)
	}

	pct := spreadBps / bpsPerUnit
	raw := price.Price * (1 - pct)
	if side == models.SideBuy {
		raw = price.Price * (1 + pct)
	}
	return roundToTick(raw, tick, side)
}

// TickSize picks the option tick for option-like instruments, else the first rule whose floor price is met.
func (g *Generator) TickSize(instrumentID string, price float64) float64 {
	if g.catalog != nil {
		if inst, ok := g.catalog.Instrument(instrumentID); ok && inst.IsOptionLike() && g.cfg.OptionTick > 0 {
			return g.cfg.OptionTick
		}
	}
	for _, rule := range g.ticks {
		if price >= rule.MinPrice {
			return rule.Tick
		}
	}
	return 0
}

func (g *Generator) override(instrumentID string) (config.InstrumentSpread, bool) {
	if ov, ok := g.cfg.InstrumentOverrides[instrumentID]; ok {
		return ov, true
	}
	for key, ov := range g.cfg.InstrumentOverrides {
		if strings.EqualFold(key, instrumentID) {
			return ov, true
		}
	}
	return config.InstrumentSpread{}, false
}

func (g *Generator) reject(instrumentID, reason string) {
	g.log.Warn("limit order rejected",
		logger.String("instrument", instrumentID),
		logger.String("reason", reason),
	)
	if g.metrics != nil {
		g.metrics.RecordOrderRejected(reason)
	}
}

// roundToTick rounds away from the reference: buys up, sells down.
func roundToTick(price, tick float64, side models.Side) float64 {
	if tick <= 0 {
		return price
	}
	// float noise below 1e-8 must not push a price onto the next tick
	p := decimal.NewFromFloat(price).Round(8)
	t := decimal.NewFromFloat(tick)
	steps := p.Div(t)
	if side == models.SideBuy {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	return steps.Mul(t).InexactFloat64()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
