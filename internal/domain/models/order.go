package models

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IsValid reports whether s is BUY or SELL.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// AdjustmentStrategy selects how far from the reference a limit price is placed.
type AdjustmentStrategy string

const (
	AdjustAggressive AdjustmentStrategy = "aggressive"
	AdjustPassive    AdjustmentStrategy = "passive"
	AdjustGuardrail  AdjustmentStrategy = "guardrail"
	AdjustMidpoint   AdjustmentStrategy = "midpoint"
)

// LimitOrderSpec is a safety-scaled limit order ready for risk gating.
type LimitOrderSpec struct {
	OrderID        string             `json:"order_id"`
	InstrumentID   string             `json:"instrument_id"`
	Side           Side               `json:"side"`
	Quantity       int64              `json:"quantity"`
	LimitPrice     float64            `json:"limit_price"`
	ReferencePrice float64            `json:"reference_price"`
	Confidence     float64            `json:"confidence"`
	Adjustment     AdjustmentStrategy `json:"adjustment"`
	SpreadBps      float64            `json:"spread_bps"`
	Tier           PriceTier          `json:"tier"`
	Source         string             `json:"source"`
	GeneratedAt    time.Time          `json:"generated_at"`
}
