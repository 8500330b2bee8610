package risk

import (
	"testing"

	"ExecGuard/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatcher() *DV01Matcher {
	return NewDV01Matcher(map[string]float64{"FGBL": 85, "FBTP": 90, "ZN": 65, "ZB": 135}, 5)
}

func TestValidateSpread_WithinTolerance(t *testing.T) {
	m := testMatcher()

	res := m.ValidateSpread(models.SpreadLeg{Instrument: "FGBL", Quantity: 10}, models.SpreadLeg{Instrument: "FBTP", Quantity: -9})

	assert.True(t, res.Valid, res.Reason)
	assert.InDelta(t, 4.94, res.MismatchPct, 0.01)
	assert.Equal(t, 850.0, res.LongExposure)
	assert.Equal(t, 810.0, res.ShortExposure)
}

func TestValidateSpread_Mismatch(t *testing.T) {
	m := testMatcher()

	res := m.ValidateSpread(models.SpreadLeg{Instrument: "FGBL", Quantity: 10}, models.SpreadLeg{Instrument: "FBTP", Quantity: -5})

	assert.False(t, res.Valid)
	assert.InDelta(t, 88.9, res.MismatchPct, 0.1)
	assert.Contains(t, res.Reason, "exceeds tolerance")
}

func TestValidateSpread_UnknownInstrument(t *testing.T) {
	m := testMatcher()

	res := m.ValidateSpread(models.SpreadLeg{Instrument: "FGBL", Quantity: 1}, models.SpreadLeg{Instrument: "JGB", Quantity: -1})
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "JGB")

	withOverride := m.ValidateSpread(models.SpreadLeg{Instrument: "FGBL", Quantity: 1}, models.SpreadLeg{Instrument: "JGB", Quantity: -1, DV01: 85})
	assert.True(t, withOverride.Valid)
	assert.Equal(t, 0.0, withOverride.MismatchPct)
}

func TestComputeSpreadRatioAndQuantities(t *testing.T) {
	m := testMatcher()

	ratio, err := m.ComputeSpreadRatio("zb", "ZN")
	require.NoError(t, err)
	assert.InDelta(t, 135.0/65.0, ratio, 1e-12)

	long, short, err := m.ComputeMatchedQuantities("ZB", "ZN", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), long)
	assert.Equal(t, int64(21), short)

	_, _, err = m.ComputeMatchedQuantities("ZB", "OAT", 10)
	assert.Error(t, err)
}
