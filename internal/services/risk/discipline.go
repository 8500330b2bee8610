package risk

import (
	"math"
	"sort"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/config"
	"ExecGuard/pkg/logger"
)

// Discipline runs every pre-trade risk check and owns the session's risk state.
type Discipline struct {
	DV01        *DV01Matcher
	Caps        *PositionCapManager
	Loss        *DailyLossMonitor
	KillSwitch  *KillSwitchManager
	Correlation *CorrelationBudgetManager

	clock   clock.Clock
	log     *logger.Logger
	metrics repository.Metrics
}

// NewDiscipline builds every validator from configuration and registers the configured engines.
func NewDiscipline(cfg config.RiskConfig, clk clock.Clock, log *logger.Logger, metrics repository.Metrics) *Discipline {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.NewNop()
	}

	d := &Discipline{
		DV01: NewDV01Matcher(cfg.DV01.Table, cfg.DV01.TolerancePct),
		Caps: NewPositionCapManager(CapLimits{
			Sleeves:              cfg.Caps.Sleeves,
			MaxGrossPct:          cfg.Caps.MaxGrossPct,
			MaxNetPct:            cfg.Caps.MaxNetPct,
			MaxSinglePositionPct: cfg.Caps.MaxSinglePositionPct,
			MaxSinglePositionUSD: cfg.Caps.MaxSinglePositionUSD,
		}),
		Loss: NewDailyLossMonitor(LossLimits{
			MaxDailyLossPct:     cfg.Loss.MaxDailyLossPct,
			MaxWeeklyLossPct:    cfg.Loss.MaxWeeklyLossPct,
			HistoryWindow:       cfg.Loss.HistoryWindow,
			WeeklyWindow:        cfg.Loss.WeeklyWindow,
			MinSizingMultiplier: cfg.Loss.MinSizingMultiplier,
		}),
		KillSwitch: NewKillSwitchManager(KillSwitchConfig{
			ConsecutiveLossLimit:       cfg.KillSwitch.ConsecutiveLossLimit,
			ReconciliationFailureLimit: cfg.KillSwitch.ReconciliationFailureLimit,
			DrawdownTriggerPct:         cfg.KillSwitch.DrawdownTriggerPct,
			Cooldown:                   cfg.KillSwitch.Cooldown,
			RequireManualReview:        cfg.KillSwitch.RequireManualReview,
		}, clk, log, metrics),
		Correlation: NewCorrelationBudgetManager(cfg.Correlation.Groups, cfg.Correlation.MaxGroupAllocationPct),
		clock:       clk,
		log:         log,
		metrics:     metrics,
	}
	for _, engine := range cfg.KillSwitch.Engines {
		d.KillSwitch.RegisterEngine(engine)
	}
	return d
}

// PreTradeCheck runs the kill switch, position cap, daily loss and correlation budget
// checks and returns every issue found. nav is the basis for caps and allocations;
// currentNAV is compared with the start-of-day NAV, which is seeded from nav when unset
// and again on the first check of each new day.
func (d *Discipline) PreTradeCheck(engine string, positions []models.Position, nav, currentNAV float64) models.PreTradeResult {
	var issues []string

	if ok, reason := d.KillSwitch.Check(engine); !ok {
		issues = append(issues, reason)
		d.reject("kill_switch")
	}

	if ok, capIssues := d.Caps.CheckAllCaps(positions, nav); !ok {
		issues = append(issues, capIssues...)
		d.reject("position_caps")
	}

	if d.Loss.SeedDay(d.clock.Now(), nav) {
		d.log.Info("start of day NAV seeded",
			logger.String("engine", engine),
			logger.Float64("nav", nav),
		)
	}
	if lc := d.Loss.CheckDailyLoss(currentNAV); !lc.CanContinue {
		issues = append(issues, lc.Reason)
		d.reject("daily_loss")
	}

	if ok, corrIssues := d.Correlation.Check(Allocations(positions, nav)); !ok {
		issues = append(issues, corrIssues...)
		d.reject("correlation_budget")
	}

	res := models.PreTradeResult{
		Engine:    engine,
		CanTrade:  len(issues) == 0,
		Issues:    issues,
		CheckedAt: d.clock.Now(),
	}
	if res.Issues == nil {
		res.Issues = []string{}
	}
	if !res.CanTrade {
		d.log.Warn("pre-trade check rejected",
			logger.String("engine", engine),
			logger.Strings("issues", issues),
		)
	}
	return res
}

// DailyRollover closes a trading day: it records portfolio P&L, feeds each engine's
// result to the kill switch and starts the next day at newNAV.
func (d *Discipline) DailyRollover(date time.Time, pnl float64, profitableByEngine map[string]bool, newNAV float64) {
	d.Loss.RecordDailyPnL(date, pnl)

	engines := make([]string, 0, len(profitableByEngine))
	for e := range profitableByEngine {
		engines = append(engines, e)
	}
	sort.Strings(engines)
	for _, e := range engines {
		d.KillSwitch.RecordDailyResult(e, profitableByEngine[e], pnl)
	}

	if newNAV > 0 {
		d.Loss.SetStartOfDayNAV(newNAV)
	}
	d.log.Info("daily risk rollover",
		logger.String("date", date.Format(time.DateOnly)),
		logger.Float64("pnl", pnl),
		logger.Float64("start_of_day_nav", newNAV),
	)
}

// Status is an operator snapshot of all risk state.
func (d *Discipline) Status() models.RiskStatus {
	start := d.Loss.StartOfDayNAV()
	return models.RiskStatus{
		Engines:          d.KillSwitch.States(),
		StartOfDayNAV:    start,
		PnLHistory:       d.Loss.History(),
		WeeklyMultiplier: d.Loss.CheckWeeklyLoss(start).Multiplier,
	}
}

// Allocations converts positions to percent of NAV per sleeve. Positions are netted
// within a sleeve before taking the absolute value, matching the sleeve caps.
func Allocations(positions []models.Position, nav float64) map[string]float64 {
	out := make(map[string]float64)
	if nav <= 0 {
		return out
	}
	for sleeve, net := range SleeveExposures(positions) {
		out[sleeve] = math.Abs(net) / nav * 100
	}
	return out
}

func (d *Discipline) reject(check string) {
	if d.metrics != nil {
		d.metrics.RecordRiskRejection(check)
	}
}
