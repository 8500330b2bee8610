package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLoss() *DailyLossMonitor {
	return NewDailyLossMonitor(LossLimits{MaxDailyLossPct: 3, MaxWeeklyLossPct: 7, HistoryWindow: 30, WeeklyWindow: 5, MinSizingMultiplier: 0.3})
}

func TestCheckDailyLoss(t *testing.T) {
	m := testLoss()
	m.SetStartOfDayNAV(1_000_000)

	halt := m.CheckDailyLoss(960_000)
	assert.False(t, halt.CanContinue)
	assert.InDelta(t, -4.0, halt.ReturnPct, 1e-9)
	assert.Contains(t, halt.Reason, "halt")

	assert.True(t, m.CheckDailyLoss(990_000).CanContinue)
	assert.True(t, m.CheckDailyLoss(971_000).CanContinue)
}

func TestCheckDailyLoss_NoStartNAV(t *testing.T) {
	assert.True(t, testLoss().CheckDailyLoss(1).CanContinue)
}

func TestSeedDay(t *testing.T) {
	mon := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

	t.Run("first check seeds", func(t *testing.T) {
		m := testLoss()
		assert.True(t, m.SeedDay(mon, 1_000_000))
		assert.False(t, m.SeedDay(mon.Add(6*time.Hour), 900_000))
		assert.Equal(t, 1_000_000.0, m.StartOfDayNAV())
	})

	t.Run("new date reseeds", func(t *testing.T) {
		m := testLoss()
		m.SeedDay(mon, 1_000_000)
		assert.True(t, m.SeedDay(mon.AddDate(0, 0, 1), 975_000))
		assert.Equal(t, 975_000.0, m.StartOfDayNAV())
		assert.True(t, m.CheckDailyLoss(965_250).CanContinue)
	})

	t.Run("explicit NAV is adopted for the next day seen", func(t *testing.T) {
		m := testLoss()
		m.SetStartOfDayNAV(980_000)
		assert.False(t, m.SeedDay(mon, 1_000_000))
		assert.Equal(t, 980_000.0, m.StartOfDayNAV())
		assert.True(t, m.SeedDay(mon.AddDate(0, 0, 1), 990_000))
		assert.Equal(t, 990_000.0, m.StartOfDayNAV())
	})

	t.Run("no nav leaves it unset", func(t *testing.T) {
		m := testLoss()
		assert.False(t, m.SeedDay(mon, 0))
		assert.Zero(t, m.StartOfDayNAV())
	})
}

func TestRecordDailyPnL_MergesSameDay(t *testing.T) {
	m := testLoss()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	for _, d := range []time.Time{day, day.AddDate(0, 0, 1)} {
		for engine := 0; engine < 4; engine++ {
			m.RecordDailyPnL(d.Add(time.Duration(engine)*time.Hour), -10_000)
		}
	}
	m.RecordDailyPnL(day.AddDate(0, 0, -1), 5_000)

	h := m.History()
	if assert.Len(t, h, 3) {
		assert.Equal(t, day.AddDate(0, 0, -1), h[0].Date)
		assert.Equal(t, -40_000.0, h[1].PnL)
		assert.Equal(t, -40_000.0, h[2].PnL)
	}
	assert.InDelta(t, -0.075, m.CheckWeeklyLoss(1_000_000).WeeklyReturn, 1e-12)
}

func TestRecordDailyPnL_RollingWindow(t *testing.T) {
	m := testLoss()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		m.RecordDailyPnL(day.AddDate(0, 0, i), float64(i))
	}

	h := m.History()
	assert.Len(t, h, 30)
	assert.Equal(t, 10.0, h[0].PnL)
	assert.Equal(t, 39.0, h[29].PnL)
}

func TestCheckWeeklyLoss(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("within limit", func(t *testing.T) {
		m := testLoss()
		for i := 0; i < 5; i++ {
			m.RecordDailyPnL(day.AddDate(0, 0, i), -10_000)
		}
		res := m.CheckWeeklyLoss(1_000_000)
		assert.False(t, res.Breached)
		assert.Equal(t, 1.0, res.Multiplier)
	})

	t.Run("linear taper", func(t *testing.T) {
		m := testLoss()
		m.RecordDailyPnL(day, 500_000) // outside the trailing week
		for i := 1; i <= 5; i++ {
			m.RecordDailyPnL(day.AddDate(0, 0, i), -20_000)
		}
		res := m.CheckWeeklyLoss(1_000_000)
		assert.True(t, res.Breached)
		assert.InDelta(t, -0.10, res.WeeklyReturn, 1e-12)
		assert.InDelta(t, 1-0.03/0.07, res.Multiplier, 1e-9)
	})

	t.Run("floor", func(t *testing.T) {
		m := testLoss()
		m.RecordDailyPnL(day, -300_000)
		res := m.CheckWeeklyLoss(1_000_000)
		assert.True(t, res.Breached)
		assert.Equal(t, 0.3, res.Multiplier)
	})
}
