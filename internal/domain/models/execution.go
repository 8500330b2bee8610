package models

import "time"

// ExecutionRequest asks the gate to price, size and vet one order.
type ExecutionRequest struct {
	Engine            string             `json:"engine" validate:"required"`
	InstrumentID      string             `json:"instrument_id" validate:"required"`
	Symbol            string             `json:"symbol"`
	Side              Side               `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity          int64              `json:"quantity" validate:"gt=0"`
	Adjustment        AdjustmentStrategy `json:"adjustment" default:"midpoint" validate:"oneof=aggressive passive guardrail midpoint"`
	ProposedPositions []Position         `json:"proposed_positions" validate:"dive"`
	NAV               float64            `json:"nav" validate:"gt=0"`
	CurrentNAV        float64            `json:"current_nav" validate:"gt=0"`
}

// ExecutionDecision is the full audit trail of one gated order.
type ExecutionDecision struct {
	DecisionID string          `json:"decision_id"`
	Engine     string          `json:"engine"`
	Price      PriceResult     `json:"price"`
	Order      *LimitOrderSpec `json:"order,omitempty"`
	CanTrade   bool            `json:"can_trade"`
	Issues     []string        `json:"issues"`
	DecidedAt  time.Time       `json:"decided_at"`
}

// PnLEvent is a daily result reported by a trading engine.
type PnLEvent struct {
	Engine               string   `json:"engine"`
	Date                 string   `json:"date"`
	PnL                  float64  `json:"pnl"`
	Profitable           bool     `json:"profitable"`
	ReconciliationPassed *bool    `json:"reconciliation_passed,omitempty"`
	Drawdown             *float64 `json:"drawdown,omitempty"`
}
