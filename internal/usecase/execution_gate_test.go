package usecase

import (
	"context"
	"errors"
	"testing"

	"ExecGuard/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Accepted(t *testing.T) {
	f := newGateFixture(nil, nil)

	d := f.gate.Execute(context.Background(), cleanRequest())

	assert.True(t, d.CanTrade)
	assert.Empty(t, d.Issues)
	assert.NotEmpty(t, d.DecisionID)
	assert.Equal(t, models.TierGuardrail, d.Price.Tier)
	assert.Equal(t, 110.0, d.Price.Price)
	require.NotNil(t, d.Order)
	assert.Greater(t, d.Order.LimitPrice, 110.0)
	assert.Equal(t, t0, d.DecidedAt)

	require.Len(t, f.pub.orders, 1)
	assert.Same(t, d.Order, f.pub.orders[0])
	assert.Len(t, f.pub.decisions, 1)
	assert.Len(t, f.audit.stored, 1)
}

func TestExecute_BlockedByDailyLoss(t *testing.T) {
	f := newGateFixture(nil, nil)
	req := cleanRequest()
	req.CurrentNAV = 900_000

	d := f.gate.Execute(context.Background(), req)

	assert.False(t, d.CanTrade)
	require.NotNil(t, d.Order)
	require.NotEmpty(t, d.Issues)
	assert.Contains(t, d.Issues[0], "loss")
	assert.Empty(t, f.pub.orders)
	assert.Len(t, f.pub.decisions, 1)
	assert.Len(t, f.audit.stored, 1)
}

func TestExecute_HaltedEngine(t *testing.T) {
	f := newGateFixture(nil, nil)
	f.discipline.KillSwitch.DisableEngine("core", "manual")

	d := f.gate.Execute(context.Background(), cleanRequest())

	assert.False(t, d.CanTrade)
	assert.NotEmpty(t, d.Issues)
	assert.Empty(t, f.pub.orders)
}

func TestExecute_NoReferencePrice(t *testing.T) {
	f := newGateFixture(nil, nil)
	req := cleanRequest()
	req.InstrumentID = "unknown"

	d := f.gate.Execute(context.Background(), req)

	assert.False(t, d.CanTrade)
	assert.Nil(t, d.Order)
	assert.Equal(t, models.TierFailed, d.Price.Tier)
	assert.Contains(t, d.Issues[0], "no reference price for unknown")
	assert.Len(t, f.audit.stored, 1)
}

func TestExecute_DefaultsAdjustment(t *testing.T) {
	f := newGateFixture(nil, nil)
	req := cleanRequest()
	req.Adjustment = ""

	d := f.gate.Execute(context.Background(), req)
	require.NotNil(t, d.Order)
	assert.Equal(t, models.AdjustMidpoint, d.Order.Adjustment)
}

func TestExecute_DownstreamFailuresDoNotChangeDecision(t *testing.T) {
	boom := errors.New("broker down")
	f := newGateFixture(boom, boom)

	d := f.gate.Execute(context.Background(), cleanRequest())

	assert.True(t, d.CanTrade)
	assert.Empty(t, d.Issues)
	assert.Len(t, f.pub.orders, 1)
	assert.Len(t, f.audit.stored, 1)
}
