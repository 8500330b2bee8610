package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/service"
	"ExecGuard/internal/service/instruments"
	"ExecGuard/internal/services/orders"
	"ExecGuard/internal/services/pricing"
	"ExecGuard/internal/services/risk"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/config"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu        sync.Mutex
	orders    []*models.LimitOrderSpec
	decisions []*models.ExecutionDecision
	err       error
}

func (p *recordingPublisher) PublishOrder(_ context.Context, spec *models.LimitOrderSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, spec)
	return p.err
}

func (p *recordingPublisher) PublishDecision(_ context.Context, d *models.ExecutionDecision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingAudit struct {
	stored []*models.ExecutionDecision
	err    error
}

func (a *recordingAudit) StoreDecision(_ context.Context, d *models.ExecutionDecision) error {
	a.stored = append(a.stored, d)
	return a.err
}

func (a *recordingAudit) Health(context.Context) error { return nil }
func (a *recordingAudit) Close() error                 { return nil }

type failingSource struct{}

func (failingSource) Tier() models.PriceTier { return models.TierRealtime }

func (failingSource) Resolve(context.Context, service.PriceRequest) (models.PriceResult, error) {
	return models.PriceResult{}, errors.New("offline")
}

type gateFixture struct {
	gate       *ExecutionGate
	discipline *risk.Discipline
	pub        *recordingPublisher
	audit      *recordingAudit
}

func newGateFixture(pubErr, auditErr error) *gateFixture {
	clk := clock.NewManual(t0)
	cfg := config.Default()
	cfg.Risk.KillSwitch.Engines = []string{"core"}

	catalog := instruments.New(
		map[string]map[string]config.InstrumentConfig{
			"rates": {"zn": {Symbol: "ZN", SecType: "FUT", Currency: "USD", Multiplier: 1000}},
		},
		map[string]float64{"zn": 110},
	)
	sources := []service.PriceSource{failingSource{}, pricing.NewGuardrailSource(catalog, clk)}
	resolver := pricing.NewResolver(sources, nil, catalog, pricing.WithClock(clk))
	generator := orders.NewGenerator(cfg.Orders, catalog, orders.WithClock(clk))
	discipline := risk.NewDiscipline(cfg.Risk, clk, nil, nil)

	pub := &recordingPublisher{err: pubErr}
	audit := &recordingAudit{err: auditErr}
	return &gateFixture{
		gate:       NewExecutionGate(resolver, generator, discipline, pub, audit, nil, clk, nil),
		discipline: discipline,
		pub:        pub,
		audit:      audit,
	}
}

func cleanRequest() models.ExecutionRequest {
	return models.ExecutionRequest{
		Engine:       "core",
		InstrumentID: "zn",
		Side:         models.SideBuy,
		Quantity:     5,
		Adjustment:   models.AdjustMidpoint,
		ProposedPositions: []models.Position{
			{Sleeve: "core_index_rv", InstrumentID: "zn", Value: 100_000},
		},
		NAV:        1_000_000,
		CurrentNAV: 1_000_000,
	}
}
