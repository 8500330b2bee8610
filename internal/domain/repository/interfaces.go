package repository

import (
	"context"

	"ExecGuard/internal/domain/models"
)

// MarketDataClient is the broker / market data collaborator consulted by the live tiers.
// Every error is treated by callers as "tier unavailable".
type MarketDataClient interface {
	IsConnected() bool
	QualifyContract(ctx context.Context, instrumentID string, inst models.Instrument) (models.Contract, error)
	// RequestQuote subscribes and blocks until the quote is populated or ctx is done.
	RequestQuote(ctx context.Context, c models.Contract) (models.Quote, error)
	CancelQuote(ctx context.Context, c models.Contract) error
	SetDataMode(ctx context.Context, mode models.DataMode) error
	Portfolio(ctx context.Context) ([]models.Holding, error)
}

// InstrumentCatalog resolves static instrument configuration.
type InstrumentCatalog interface {
	Instrument(id string) (models.Instrument, bool)
	GuardrailPrice(id, symbol string) (float64, bool)
}

// Publisher sends execution events downstream.
type Publisher interface {
	PublishOrder(ctx context.Context, spec *models.LimitOrderSpec) error
	PublishDecision(ctx context.Context, d *models.ExecutionDecision) error
	Close() error
}

// AuditStorage persists decisions for later review.
type AuditStorage interface {
	StoreDecision(ctx context.Context, d *models.ExecutionDecision) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records control plane observations.
type Metrics interface {
	RecordTierHit(tier models.PriceTier)
	RecordResolution(tier models.PriceTier, seconds float64)
	RecordCacheAccess(hit bool)
	RecordOrderGenerated(strategy models.AdjustmentStrategy)
	RecordOrderRejected(reason string)
	RecordRiskRejection(check string)
	RecordEngineState(engine string, state models.KillSwitchState)
	RecordError(kind string)
}
