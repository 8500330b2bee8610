package orders

import (
	"testing"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogStub map[string]models.Instrument

func (c catalogStub) Instrument(id string) (models.Instrument, bool) {
	inst, ok := c[id]
	return inst, ok
}

func (c catalogStub) GuardrailPrice(string, string) (float64, bool) { return 0, false }

func newTestGenerator(mutate func(*config.OrdersConfig)) *Generator {
	cfg := config.Default().Orders
	if mutate != nil {
		mutate(&cfg)
	}
	catalog := catalogStub{
		"spx_call": {ID: "spx_call", Symbol: "SPX", SecType: "OPT"},
		"fgbl":     {ID: "fgbl", Symbol: "FGBL", SecType: "FUT"},
	}
	return NewGenerator(cfg, catalog, WithClock(clock.NewManual(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))))
}

func realtime(price float64) *models.PriceResult {
	return &models.PriceResult{Price: price, Tier: models.TierRealtime, Confidence: 1.0, Source: "broker_realtime"}
}

func TestGenerate_MidpointBracketsReference(t *testing.T) {
	g := newTestGenerator(nil)

	buy := g.Generate("es", models.SideBuy, 2, realtime(100), models.AdjustMidpoint)
	require.NotNil(t, buy)
	assert.InDelta(t, 100.02, buy.LimitPrice, 1e-9)
	assert.Greater(t, buy.LimitPrice, buy.ReferencePrice)
	assert.InDelta(t, 2.0, buy.SpreadBps, 1e-9)
	assert.Equal(t, models.TierRealtime, buy.Tier)
	assert.Equal(t, "broker_realtime", buy.Source)
	assert.NotEmpty(t, buy.OrderID)

	sell := g.Generate("es", models.SideSell, 2, realtime(100), models.AdjustMidpoint)
	require.NotNil(t, sell)
	assert.InDelta(t, 99.98, sell.LimitPrice, 1e-9)
	assert.Less(t, sell.LimitPrice, sell.ReferencePrice)
	assert.NotEqual(t, buy.OrderID, sell.OrderID)
}

func TestGenerate_MidpointHoldsAcrossTiersAndPrices(t *testing.T) {
	g := newTestGenerator(nil)
	for _, tier := range []models.PriceTier{models.TierRealtime, models.TierDelayed, models.TierPortfolio, models.TierCached, models.TierGuardrail} {
		for _, px := range []float64{0.37, 5, 10, 131.21, 4999.75} {
			pr := &models.PriceResult{Price: px, Tier: tier, Confidence: tier.Confidence()}
			buy := g.Generate("es", models.SideBuy, 1, pr, models.AdjustMidpoint)
			sell := g.Generate("es", models.SideSell, 1, pr, models.AdjustMidpoint)
			require.NotNil(t, buy)
			require.NotNil(t, sell)
			assert.Greater(t, buy.LimitPrice, px, "%s %v", tier, px)
			assert.Less(t, sell.LimitPrice, px, "%s %v", tier, px)
		}
	}
}

func TestSpreadBps_Formula(t *testing.T) {
	g := newTestGenerator(nil)

	assert.InDelta(t, 71.25, g.SpreadBps(models.TierCached, 0.5, models.AdjustPassive, "es"), 1e-9)
	assert.InDelta(t, 1.0, g.SpreadBps(models.TierRealtime, 1.0, models.AdjustAggressive, "es"), 1e-9)
	assert.InDelta(t, 200.0, g.SpreadBps(models.TierGuardrail, 0.25, models.AdjustGuardrail, "es"), 1e-9, "clamped to global max")
}

func TestSpreadBps_NonIncreasingInConfidence(t *testing.T) {
	g := newTestGenerator(nil)
	for _, tier := range []models.PriceTier{models.TierRealtime, models.TierCached, models.TierGuardrail} {
		for _, adj := range []models.AdjustmentStrategy{models.AdjustAggressive, models.AdjustPassive, models.AdjustGuardrail, models.AdjustMidpoint} {
			prev := g.SpreadBps(tier, 0, adj, "es")
			for c := 0.1; c <= 1.0001; c += 0.1 {
				cur := g.SpreadBps(tier, c, adj, "es")
				assert.LessOrEqual(t, cur, prev, "%s/%s at %.1f", tier, adj, c)
				prev = cur
			}
		}
	}
}

func TestSpreadBps_InstrumentOverride(t *testing.T) {
	g := newTestGenerator(func(c *config.OrdersConfig) {
		c.InstrumentOverrides = map[string]config.InstrumentSpread{
			"FGBL": {Factor: 2, MinSpreadBps: 30},
			"zn":   {Factor: 3},
		}
	})

	assert.InDelta(t, 30.0, g.SpreadBps(models.TierRealtime, 1.0, models.AdjustMidpoint, "fgbl"), 1e-9)
	assert.InDelta(t, 6.0, g.SpreadBps(models.TierRealtime, 1.0, models.AdjustMidpoint, "zn"), 1e-9)
}

func TestGenerate_AggressiveCrossesBook(t *testing.T) {
	g := newTestGenerator(nil)
	pr := &models.PriceResult{Price: 100, Bid: 99.95, Ask: 100.05, Tier: models.TierRealtime, Confidence: 1}

	buy := g.Generate("es", models.SideBuy, 1, pr, models.AdjustAggressive)
	sell := g.Generate("es", models.SideSell, 1, pr, models.AdjustAggressive)

	assert.InDelta(t, 100.05, buy.LimitPrice, 1e-9)
	assert.InDelta(t, 99.95, sell.LimitPrice, 1e-9)

	noQuote := g.Generate("es", models.SideBuy, 1, realtime(100), models.AdjustAggressive)
	assert.InDelta(t, 100.01, noQuote.LimitPrice, 1e-9)
}

func TestGenerate_TickSizes(t *testing.T) {
	g := newTestGenerator(nil)

	opt := g.Generate("spx_call", models.SideBuy, 1, realtime(3.37), models.AdjustMidpoint)
	assert.InDelta(t, 3.40, opt.LimitPrice, 1e-9)

	mid := g.Generate("es", models.SideBuy, 1, realtime(5), models.AdjustMidpoint)
	assert.InDelta(t, 5.005, mid.LimitPrice, 1e-9)

	penny := g.Generate("es", models.SideBuy, 1, realtime(0.5), models.AdjustMidpoint)
	assert.InDelta(t, 0.5001, penny.LimitPrice, 1e-9)

	assert.Equal(t, 0.05, g.TickSize("spx_call", 3.37))
	assert.Equal(t, 0.01, g.TickSize("fgbl", 131))
	assert.Equal(t, 0.005, g.TickSize("fgbl", 9.99))
	assert.Equal(t, 0.0001, g.TickSize("fgbl", 0.99))
}

func TestGenerate_RejectsInvalidInput(t *testing.T) {
	g := newTestGenerator(nil)

	assert.Nil(t, g.Generate("es", models.SideBuy, 1, nil, models.AdjustMidpoint))
	assert.Nil(t, g.Generate("es", models.SideBuy, 1, &models.PriceResult{Tier: models.TierFailed}, models.AdjustMidpoint))
	assert.Nil(t, g.Generate("es", models.SideBuy, 1, &models.PriceResult{Price: -3}, models.AdjustMidpoint))
	assert.Nil(t, g.Generate("es", models.SideBuy, 0, realtime(100), models.AdjustMidpoint))
	assert.Nil(t, g.Generate("es", models.Side("HOLD"), 1, realtime(100), models.AdjustMidpoint))
	assert.Nil(t, g.Generate("es", models.SideBuy, 1, realtime(100), models.AdjustmentStrategy("yolo")))
}

func TestGenerate_Deterministic(t *testing.T) {
	g := newTestGenerator(nil)
	pr := &models.PriceResult{Price: 131.21, Tier: models.TierDelayed, Confidence: 0.85}

	a := g.Generate("fgbl", models.SideSell, 3, pr, models.AdjustPassive)
	b := g.Generate("fgbl", models.SideSell, 3, pr, models.AdjustPassive)

	assert.Equal(t, a.LimitPrice, b.LimitPrice)
	assert.Equal(t, a.SpreadBps, b.SpreadBps)
	assert.Equal(t, a.GeneratedAt, b.GeneratedAt)
}
