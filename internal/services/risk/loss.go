package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"ExecGuard/internal/domain/models"
)

// LossLimits configures the daily and weekly loss monitor.
type LossLimits struct {
	MaxDailyLossPct     float64
	MaxWeeklyLossPct    float64
	HistoryWindow       int
	WeeklyWindow        int
	MinSizingMultiplier float64
}

// DailyLossMonitor tracks start-of-day NAV and a rolling window of daily P&L.
type DailyLossMonitor struct {
	mu            sync.Mutex
	limits        LossLimits
	startOfDayNAV float64
	// day the start-of-day NAV belongs to; zero until the first SeedDay after an explicit set
	startDay time.Time
	history  []models.PnLEntry
}

func NewDailyLossMonitor(limits LossLimits) *DailyLossMonitor {
	if limits.HistoryWindow <= 0 {
		limits.HistoryWindow = 30
	}
	if limits.WeeklyWindow <= 0 {
		limits.WeeklyWindow = 5
	}
	if limits.MinSizingMultiplier <= 0 {
		limits.MinSizingMultiplier = 0.3
	}
	return &DailyLossMonitor{limits: limits}
}

// SetStartOfDayNAV sets the opening NAV for the next session to check against.
func (m *DailyLossMonitor) SetStartOfDayNAV(nav float64) {
	m.mu.Lock()
	m.startOfDayNAV = nav
	m.startDay = time.Time{}
	m.mu.Unlock()
}

// SeedDay opens the trading day containing now. The start-of-day NAV is taken from nav
// when none is set or when the last opened day is an earlier date; an explicitly set NAV
// is adopted for the first day seen. It reports whether nav was used.
func (m *DailyLossMonitor) SeedDay(now time.Time, nav float64) bool {
	day := truncateDay(now)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.startOfDayNAV <= 0 || (!m.startDay.IsZero() && !m.startDay.Equal(day)):
		if nav <= 0 {
			return false
		}
		m.startOfDayNAV = nav
		m.startDay = day
		return true
	case m.startDay.IsZero():
		m.startDay = day
	}
	return false
}

func (m *DailyLossMonitor) StartOfDayNAV() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startOfDayNAV
}

// CheckDailyLoss halts once the intraday return falls below the daily loss limit.
func (m *DailyLossMonitor) CheckDailyLoss(currentNAV float64) models.LossCheck {
	m.mu.Lock()
	start := m.startOfDayNAV
	m.mu.Unlock()

	if start <= 0 {
		return models.LossCheck{CanContinue: true, Reason: "start of day NAV not set"}
	}

	ret := currentNAV/start - 1
	limit := -m.limits.MaxDailyLossPct / 100
	if ret < limit {
		return models.LossCheck{
			ReturnPct: ret * 100,
			Reason:    fmt.Sprintf("daily loss %.2f%% breaches limit -%.2f%%, halt trading", ret*100, m.limits.MaxDailyLossPct),
		}
	}
	return models.LossCheck{CanContinue: true, ReturnPct: ret * 100}
}

// RecordDailyPnL adds pnl to the entry for date, so several engines reporting the same
// day share one entry. History stays ordered by date and pruned to its window.
func (m *DailyLossMonitor) RecordDailyPnL(date time.Time, pnl float64) {
	day := truncateDay(date)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.history {
		if m.history[i].Date.Equal(day) {
			m.history[i].PnL += pnl
			return
		}
	}
	m.history = append(m.history, models.PnLEntry{Date: day, PnL: pnl})
	sort.SliceStable(m.history, func(i, j int) bool { return m.history[i].Date.Before(m.history[j].Date) })
	if over := len(m.history) - m.limits.HistoryWindow; over > 0 {
		m.history = append([]models.PnLEntry(nil), m.history[over:]...)
	}
}

// CheckWeeklyLoss sums the trailing week and tapers position sizing once the weekly limit is breached.
func (m *DailyLossMonitor) CheckWeeklyLoss(nav float64) models.WeeklyLossCheck {
	m.mu.Lock()
	n := len(m.history)
	from := n - m.limits.WeeklyWindow
	if from < 0 {
		from = 0
	}
	var sum float64
	for _, e := range m.history[from:] {
		sum += e.PnL
	}
	m.mu.Unlock()

	if nav <= 0 {
		return models.WeeklyLossCheck{Multiplier: 1, Reason: "no NAV to measure weekly return"}
	}

	ret := sum / nav
	limit := -m.limits.MaxWeeklyLossPct / 100
	if ret >= limit {
		return models.WeeklyLossCheck{WeeklyReturn: ret, Multiplier: 1}
	}

	mult := math.Max(m.limits.MinSizingMultiplier, 1+(ret-limit)/math.Abs(limit))
	return models.WeeklyLossCheck{
		Breached:     true,
		WeeklyReturn: ret,
		Multiplier:   mult,
		Reason: fmt.Sprintf("weekly loss %.2f%% breaches limit -%.2f%%, sizing x%.2f",
			ret*100, m.limits.MaxWeeklyLossPct, mult),
	}
}

// History returns a copy of the rolling P&L window.
func (m *DailyLossMonitor) History() []models.PnLEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PnLEntry(nil), m.history...)
}

// Reset clears history and start-of-day NAV.
func (m *DailyLossMonitor) Reset() {
	m.mu.Lock()
	m.history = nil
	m.startOfDayNAV = 0
	m.startDay = time.Time{}
	m.mu.Unlock()
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
