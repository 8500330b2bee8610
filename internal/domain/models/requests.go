package models

// BatchPriceRequest resolves several instruments at once.
type BatchPriceRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=200,dive,required"`
}

// LimitOrderRequest asks for a limit order spec priced off the current reference.
type LimitOrderRequest struct {
	InstrumentID string             `json:"instrument_id" validate:"required"`
	Symbol       string             `json:"symbol"`
	Side         Side               `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity     int64              `json:"quantity" validate:"gt=0"`
	Adjustment   AdjustmentStrategy `json:"adjustment" default:"midpoint" validate:"oneof=aggressive passive guardrail midpoint"`
}

// RiskCheckRequest runs the pre-trade check only.
type RiskCheckRequest struct {
	Engine            string     `json:"engine" validate:"required"`
	ProposedPositions []Position `json:"proposed_positions" validate:"dive"`
	NAV               float64    `json:"nav" validate:"gt=0"`
	CurrentNAV        float64    `json:"current_nav" validate:"gt=0"`
}

// EngineToggleRequest carries the operator's reason for a manual halt.
type EngineToggleRequest struct {
	Reason string `json:"reason" default:"operator request"`
}

// SpreadValidationRequest checks a duration-matched spread.
type SpreadValidationRequest struct {
	Long  SpreadLeg `json:"long" validate:"required"`
	Short SpreadLeg `json:"short" validate:"required"`
}
