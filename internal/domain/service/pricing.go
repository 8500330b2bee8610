package service

import (
	"context"

	"ExecGuard/internal/domain/models"
)

// PriceRequest identifies the instrument a source is asked to price.
type PriceRequest struct {
	InstrumentID string
	Symbol       string
	ConID        int64
	Instrument   models.Instrument
}

// PriceSource is one link of the reference price fallback chain.
// A source that cannot produce a positive price returns an error.
type PriceSource interface {
	Tier() models.PriceTier
	Resolve(ctx context.Context, req PriceRequest) (models.PriceResult, error)
}
