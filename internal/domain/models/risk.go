package models

import "time"

// SpreadLeg is one side of a duration-matched spread.
// DV01 overrides the configured per-contract value when positive.
type SpreadLeg struct {
	Instrument string  `json:"instrument" validate:"required"`
	Quantity   int64   `json:"quantity" validate:"ne=0"`
	DV01       float64 `json:"dv01,omitempty" validate:"gte=0"`
}

// SpreadValidation is the outcome of a DV01 match check.
type SpreadValidation struct {
	Valid         bool    `json:"valid"`
	MismatchPct   float64 `json:"mismatch_pct"`
	LongExposure  float64 `json:"long_dv01_exposure"`
	ShortExposure float64 `json:"short_dv01_exposure"`
	Reason        string  `json:"reason"`
}

// Position is a proposed or held exposure attributed to a sleeve.
type Position struct {
	Sleeve       string  `json:"sleeve" validate:"required"`
	InstrumentID string  `json:"instrument_id"`
	Value        float64 `json:"value"`
}

// CapCheck is the outcome of a single cap test.
type CapCheck struct {
	OK     bool    `json:"ok"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
	Reason string  `json:"reason"`
}

// LossCheck is the outcome of a daily loss test.
type LossCheck struct {
	CanContinue bool    `json:"can_continue"`
	ReturnPct   float64 `json:"return_pct"`
	Reason      string  `json:"reason"`
}

// WeeklyLossCheck carries the sizing multiplier derived from the trailing week.
type WeeklyLossCheck struct {
	Breached     bool    `json:"breached"`
	WeeklyReturn float64 `json:"weekly_return"`
	Multiplier   float64 `json:"multiplier"`
	Reason       string  `json:"reason"`
}

// PnLEntry is one day of realized P&L.
type PnLEntry struct {
	Date time.Time `json:"date"`
	PnL  float64   `json:"pnl"`
}

// KillSwitchState is the circuit breaker state of one engine.
type KillSwitchState string

const (
	KillSwitchActive   KillSwitchState = "ACTIVE"
	KillSwitchDisabled KillSwitchState = "DISABLED"
	KillSwitchAutoHalt KillSwitchState = "AUTO_HALT"
)

// EngineState is the per-engine risk state tracked by the kill switch.
type EngineState struct {
	Engine                 string          `json:"engine"`
	State                  KillSwitchState `json:"state"`
	ConsecutiveLosses      int             `json:"consecutive_losses"`
	ReconciliationFailures int             `json:"reconciliation_failures"`
	HaltedAt               time.Time       `json:"halted_at,omitempty"`
	HaltReason             string          `json:"halt_reason,omitempty"`
}

// PreTradeResult is the aggregated verdict of every risk check.
type PreTradeResult struct {
	Engine    string    `json:"engine"`
	CanTrade  bool      `json:"can_trade"`
	Issues    []string  `json:"issues"`
	CheckedAt time.Time `json:"checked_at"`
}

// RiskStatus is an operator view of all risk state.
type RiskStatus struct {
	Engines          []EngineState `json:"engines"`
	StartOfDayNAV    float64       `json:"start_of_day_nav"`
	PnLHistory       []PnLEntry    `json:"pnl_history"`
	WeeklyMultiplier float64       `json:"weekly_multiplier"`
}
