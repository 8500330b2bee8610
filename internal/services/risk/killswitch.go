package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/logger"
)

// KillSwitchConfig holds the circuit breaker thresholds.
type KillSwitchConfig struct {
	ConsecutiveLossLimit       int
	ReconciliationFailureLimit int
	DrawdownTriggerPct         float64
	Cooldown                   time.Duration
	RequireManualReview        bool
}

// KillSwitchManager is a per-engine circuit breaker.
//
// ACTIVE -> AUTO_HALT on repeated losses, reconciliation failures or drawdown.
// AUTO_HALT stays inactive until the cooldown has elapsed and, when manual review
// is required, until EnableEngine is called. DISABLED only clears through EnableEngine.
type KillSwitchManager struct {
	mu      sync.Mutex
	cfg     KillSwitchConfig
	engines map[string]*models.EngineState
	clock   clock.Clock
	log     *logger.Logger
	metrics repository.Metrics
}

func NewKillSwitchManager(cfg KillSwitchConfig, clk clock.Clock, log *logger.Logger, metrics repository.Metrics) *KillSwitchManager {
	if cfg.ConsecutiveLossLimit <= 0 {
		cfg.ConsecutiveLossLimit = 3
	}
	if cfg.ReconciliationFailureLimit <= 0 {
		cfg.ReconciliationFailureLimit = 2
	}
	if cfg.DrawdownTriggerPct <= 0 {
		cfg.DrawdownTriggerPct = 15
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &KillSwitchManager{
		cfg:     cfg,
		engines: make(map[string]*models.EngineState),
		clock:   clk,
		log:     log,
		metrics: metrics,
	}
}

// RegisterEngine sets the engine ACTIVE with zeroed counters.
func (k *KillSwitchManager) RegisterEngine(engine string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.engines[engine] = &models.EngineState{Engine: engine, State: models.KillSwitchActive}
	k.recordState(engine, models.KillSwitchActive)
}

// RecordDailyResult resets the loss streak on a profitable day, otherwise extends it.
// Unknown engines are registered first.
func (k *KillSwitchManager) RecordDailyResult(engine string, profitable bool, pnl float64) models.EngineState {
	k.mu.Lock()
	defer k.mu.Unlock()

	st := k.engineLocked(engine)
	if profitable {
		st.ConsecutiveLosses = 0
		return *st
	}
	st.ConsecutiveLosses++
	if st.ConsecutiveLosses >= k.cfg.ConsecutiveLossLimit {
		k.haltLocked(st, fmt.Sprintf("%d consecutive losing days (last pnl %.2f)", st.ConsecutiveLosses, pnl))
	}
	return *st
}

// RecordReconciliationResult counts consecutive reconciliation failures.
func (k *KillSwitchManager) RecordReconciliationResult(engine string, passed bool) models.EngineState {
	k.mu.Lock()
	defer k.mu.Unlock()

	st := k.engineLocked(engine)
	if passed {
		st.ReconciliationFailures = 0
		return *st
	}
	st.ReconciliationFailures++
	if st.ReconciliationFailures >= k.cfg.ReconciliationFailureLimit {
		k.haltLocked(st, fmt.Sprintf("%d reconciliation failures", st.ReconciliationFailures))
	}
	return *st
}

// CheckDrawdown halts the engine when |drawdown| exceeds the trigger. Drawdown is a fraction.
func (k *KillSwitchManager) CheckDrawdown(engine string, drawdown float64) bool {
	if math.Abs(drawdown) <= k.cfg.DrawdownTriggerPct/100 {
		return false
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	st := k.engineLocked(engine)
	k.haltLocked(st, fmt.Sprintf("drawdown %.2f%% exceeds %.2f%%", math.Abs(drawdown)*100, k.cfg.DrawdownTriggerPct))
	return true
}

// IsActive reports whether the engine may trade.
func (k *KillSwitchManager) IsActive(engine string) bool {
	ok, _ := k.Check(engine)
	return ok
}

// Check is IsActive with the reason the engine is blocked.
func (k *KillSwitchManager) Check(engine string) (bool, string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	st, ok := k.engines[engine]
	if !ok {
		return false, fmt.Sprintf("engine %s is not registered", engine)
	}

	switch st.State {
	case models.KillSwitchActive:
		return true, ""
	case models.KillSwitchDisabled:
		return false, fmt.Sprintf("engine %s is disabled: %s", engine, st.HaltReason)
	case models.KillSwitchAutoHalt:
		elapsed := k.clock.Now().Sub(st.HaltedAt)
		if elapsed < k.cfg.Cooldown {
			return false, fmt.Sprintf("engine %s auto-halted (%s), cooldown %s remaining",
				engine, st.HaltReason, (k.cfg.Cooldown - elapsed).Round(time.Second))
		}
		if k.cfg.RequireManualReview {
			return false, fmt.Sprintf("engine %s auto-halted (%s), awaiting manual review", engine, st.HaltReason)
		}
		k.resetLocked(st)
		k.log.Info("engine resumed after cooldown", logger.String("engine", engine))
		return true, ""
	default:
		return false, fmt.Sprintf("engine %s in unknown state %s", engine, st.State)
	}
}

// DisableEngine is a manual override.
func (k *KillSwitchManager) DisableEngine(engine, reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	st := k.engineLocked(engine)
	st.State = models.KillSwitchDisabled
	st.HaltedAt = k.clock.Now()
	st.HaltReason = reason
	k.recordState(engine, st.State)
	k.log.Warn("engine disabled", logger.String("engine", engine), logger.String("reason", reason))
}

// EnableEngine is a manual override that clears every counter.
func (k *KillSwitchManager) EnableEngine(engine string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	st := k.engineLocked(engine)
	k.resetLocked(st)
	k.log.Info("engine enabled", logger.String("engine", engine))
}

// State returns a copy of one engine's state.
func (k *KillSwitchManager) State(engine string) (models.EngineState, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	st, ok := k.engines[engine]
	if !ok {
		return models.EngineState{}, false
	}
	return *st, true
}

// States lists every engine ordered by name.
func (k *KillSwitchManager) States() []models.EngineState {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]models.EngineState, 0, len(k.engines))
	for _, st := range k.engines {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Engine < out[j].Engine })
	return out
}

func (k *KillSwitchManager) engineLocked(engine string) *models.EngineState {
	st, ok := k.engines[engine]
	if !ok {
		st = &models.EngineState{Engine: engine, State: models.KillSwitchActive}
		k.engines[engine] = st
		k.recordState(engine, st.State)
	}
	return st
}

// haltLocked only trips ACTIVE engines; an existing halt keeps its original timestamp.
func (k *KillSwitchManager) haltLocked(st *models.EngineState, reason string) {
	if st.State != models.KillSwitchActive {
		return
	}
	st.State = models.KillSwitchAutoHalt
	st.HaltedAt = k.clock.Now()
	st.HaltReason = reason
	k.recordState(st.Engine, st.State)
	k.log.Error("kill switch triggered",
		logger.String("engine", st.Engine),
		logger.String("reason", reason),
		logger.Int("consecutive_losses", st.ConsecutiveLosses),
		logger.Int("reconciliation_failures", st.ReconciliationFailures),
	)
}

func (k *KillSwitchManager) resetLocked(st *models.EngineState) {
	st.State = models.KillSwitchActive
	st.ConsecutiveLosses = 0
	st.ReconciliationFailures = 0
	st.HaltedAt = time.Time{}
	st.HaltReason = ""
	k.recordState(st.Engine, st.State)
}

func (k *KillSwitchManager) recordState(engine string, state models.KillSwitchState) {
	if k.metrics != nil {
		k.metrics.RecordEngineState(engine, state)
	}
}
