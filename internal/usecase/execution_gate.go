package usecase

import (
	"context"
	"fmt"

	"ExecGuard/internal/domain/models"
	domrepo "ExecGuard/internal/domain/repository"
	"ExecGuard/internal/services/orders"
	"ExecGuard/internal/services/pricing"
	"ExecGuard/internal/services/risk"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/logger"

	"github.com/google/uuid"
)

// ExecutionGate prices an order, turns it into a limit spec and vets it against risk.
type ExecutionGate struct {
	resolver   *pricing.Resolver
	generator  *orders.Generator
	discipline *risk.Discipline
	pub        domrepo.Publisher
	audit      domrepo.AuditStorage
	metrics    domrepo.Metrics
	clock      clock.Clock
	log        *logger.Logger
}

func NewExecutionGate(
	resolver *pricing.Resolver,
	generator *orders.Generator,
	discipline *risk.Discipline,
	pub domrepo.Publisher,
	audit domrepo.AuditStorage,
	metrics domrepo.Metrics,
	clk clock.Clock,
	log *logger.Logger,
) *ExecutionGate {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ExecutionGate{
		resolver:   resolver,
		generator:  generator,
		discipline: discipline,
		pub:        pub,
		audit:      audit,
		metrics:    metrics,
		clock:      clk,
		log:        log,
	}
}

// Execute returns the full decision for req. Downstream publish and audit failures
// are logged and never change the decision.
func (g *ExecutionGate) Execute(ctx context.Context, req models.ExecutionRequest) models.ExecutionDecision {
	if req.Adjustment == "" {
		req.Adjustment = models.AdjustMidpoint
	}

	price := g.resolver.GetReferencePrice(ctx, req.InstrumentID, req.Symbol, 0)

	decision := models.ExecutionDecision{
		DecisionID: uuid.NewString(),
		Engine:     req.Engine,
		Price:      price,
		Issues:     []string{},
	}

	if !price.IsValid() {
		decision.Issues = append(decision.Issues, fmt.Sprintf("no reference price for %s", req.InstrumentID))
	} else {
		decision.Order = g.generator.Generate(req.InstrumentID, req.Side, req.Quantity, &price, req.Adjustment)
		if decision.Order == nil {
			decision.Issues = append(decision.Issues, fmt.Sprintf("order rejected for %s", req.InstrumentID))
		}
	}

	check := g.discipline.PreTradeCheck(req.Engine, req.ProposedPositions, req.NAV, req.CurrentNAV)
	decision.Issues = append(decision.Issues, check.Issues...)
	decision.CanTrade = check.CanTrade && decision.Order != nil
	decision.DecidedAt = g.clock.Now()

	g.dispatch(ctx, &decision)
	return decision
}

func (g *ExecutionGate) dispatch(ctx context.Context, d *models.ExecutionDecision) {
	fields := []logger.Field{
		logger.String("decision_id", d.DecisionID),
		logger.String("engine", d.Engine),
		logger.String("instrument_id", d.Price.InstrumentID),
	}

	if d.CanTrade && d.Order != nil {
		if err := g.pub.PublishOrder(ctx, d.Order); err != nil {
			g.recordError("publish_order")
			g.log.Warn("publish order failed", append(fields, logger.Error(err))...)
		}
	}
	if err := g.pub.PublishDecision(ctx, d); err != nil {
		g.recordError("publish_decision")
		g.log.Warn("publish decision failed", append(fields, logger.Error(err))...)
	}
	if err := g.audit.StoreDecision(ctx, d); err != nil {
		g.recordError("audit_decision")
		g.log.Warn("audit decision failed", append(fields, logger.Error(err))...)
	}

	if d.CanTrade {
		g.log.Info("execution accepted", append(fields,
			logger.Float64("limit_price", d.Order.LimitPrice),
			logger.String("tier", string(d.Price.Tier)),
		)...)
	} else {
		g.log.Warn("execution blocked", append(fields, logger.Strings("issues", d.Issues))...)
	}
}

func (g *ExecutionGate) recordError(kind string) {
	if g.metrics != nil {
		g.metrics.RecordError(kind)
	}
}
