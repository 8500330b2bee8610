package risk

import (
	"testing"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKillSwitch(manual bool) (*KillSwitchManager, *clock.Manual) {
	clk := clock.NewManual(time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC))
	k := NewKillSwitchManager(KillSwitchConfig{
		ConsecutiveLossLimit:       3,
		ReconciliationFailureLimit: 2,
		DrawdownTriggerPct:         15,
		Cooldown:                   24 * time.Hour,
		RequireManualReview:        manual,
	}, clk, nil, nil)
	return k, clk
}

func TestKillSwitch_ConsecutiveLosses(t *testing.T) {
	k, _ := testKillSwitch(true)
	k.RegisterEngine("core")

	k.RecordDailyResult("core", false, -100)
	k.RecordDailyResult("core", false, -100)
	assert.True(t, k.IsActive("core"))

	st := k.RecordDailyResult("core", false, -100)
	assert.Equal(t, models.KillSwitchAutoHalt, st.State)
	assert.False(t, k.IsActive("core"))

	k.EnableEngine("core")
	assert.True(t, k.IsActive("core"))
	k.RecordDailyResult("core", false, -1)
	st = k.RecordDailyResult("core", true, 5)
	assert.Equal(t, 0, st.ConsecutiveLosses)
}

func TestKillSwitch_ProfitableDayBreaksStreak(t *testing.T) {
	k, _ := testKillSwitch(true)
	k.RegisterEngine("core")

	k.RecordDailyResult("core", false, -1)
	k.RecordDailyResult("core", false, -1)
	k.RecordDailyResult("core", true, 1)
	k.RecordDailyResult("core", false, -1)

	assert.True(t, k.IsActive("core"))
}

func TestKillSwitch_Reconciliation(t *testing.T) {
	k, _ := testKillSwitch(true)
	k.RegisterEngine("carry")

	k.RecordReconciliationResult("carry", false)
	assert.True(t, k.IsActive("carry"))
	k.RecordReconciliationResult("carry", false)
	assert.False(t, k.IsActive("carry"))
}

func TestKillSwitch_Drawdown(t *testing.T) {
	k, _ := testKillSwitch(true)
	k.RegisterEngine("alpha")

	assert.False(t, k.CheckDrawdown("alpha", -0.10))
	assert.True(t, k.IsActive("alpha"))
	assert.True(t, k.CheckDrawdown("alpha", -0.16))
	assert.False(t, k.IsActive("alpha"))
}

func TestKillSwitch_CooldownWithManualReview(t *testing.T) {
	k, clk := testKillSwitch(true)
	k.RegisterEngine("core")
	k.CheckDrawdown("core", 0.2)

	clk.Advance(23 * time.Hour)
	ok, reason := k.Check("core")
	assert.False(t, ok)
	assert.Contains(t, reason, "cooldown")

	clk.Advance(2 * time.Hour)
	ok, reason = k.Check("core")
	assert.False(t, ok)
	assert.Contains(t, reason, "manual review")

	k.EnableEngine("core")
	assert.True(t, k.IsActive("core"))
}

func TestKillSwitch_CooldownWithoutManualReview(t *testing.T) {
	k, clk := testKillSwitch(false)
	k.RegisterEngine("core")
	k.CheckDrawdown("core", 0.2)
	assert.False(t, k.IsActive("core"))

	clk.Advance(24 * time.Hour)
	assert.True(t, k.IsActive("core"))

	st, ok := k.State("core")
	require.True(t, ok)
	assert.Equal(t, models.KillSwitchActive, st.State)
	assert.True(t, st.HaltedAt.IsZero())
}

func TestKillSwitch_ManualOverrides(t *testing.T) {
	k, clk := testKillSwitch(false)
	k.RegisterEngine("core")

	k.DisableEngine("core", "operator")
	clk.Advance(48 * time.Hour)
	assert.False(t, k.IsActive("core"), "disabled engines never resume on their own")

	k.EnableEngine("core")
	assert.True(t, k.IsActive("core"))
}

func TestKillSwitch_UnknownEngines(t *testing.T) {
	k, _ := testKillSwitch(true)

	assert.False(t, k.IsActive("ghost"))

	st := k.RecordDailyResult("ghost", false, -1)
	assert.Equal(t, models.KillSwitchActive, st.State)
	assert.Equal(t, 1, st.ConsecutiveLosses)
	assert.True(t, k.IsActive("ghost"))
	assert.Len(t, k.States(), 1)
}
