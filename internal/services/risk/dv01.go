package risk

import (
	"fmt"
	"math"
	"strings"

	"ExecGuard/internal/domain/models"
)

const DefaultDV01TolerancePct = 5.0

// DV01Matcher checks that the two legs of a rates spread carry offsetting duration.
type DV01Matcher struct {
	table        map[string]float64
	tolerancePct float64
}

func NewDV01Matcher(table map[string]float64, tolerancePct float64) *DV01Matcher {
	if tolerancePct <= 0 {
		tolerancePct = DefaultDV01TolerancePct
	}
	t := make(map[string]float64, len(table))
	for k, v := range table {
		t[strings.ToUpper(k)] = v
	}
	return &DV01Matcher{table: t, tolerancePct: tolerancePct}
}

// DV01 returns the per-contract DV01 of an instrument.
func (m *DV01Matcher) DV01(instrument string) (float64, bool) {
	v, ok := m.table[strings.ToUpper(instrument)]
	return v, ok && v > 0
}

func (m *DV01Matcher) TolerancePct() float64 { return m.tolerancePct }

// ComputeSpreadRatio returns dv01(long)/dv01(short), the short contracts needed per long contract.
func (m *DV01Matcher) ComputeSpreadRatio(long, short string) (float64, error) {
	l, ok := m.DV01(long)
	if !ok {
		return 0, fmt.Errorf("unknown DV01 for %s", long)
	}
	s, ok := m.DV01(short)
	if !ok {
		return 0, fmt.Errorf("unknown DV01 for %s", short)
	}
	return l / s, nil
}

// ComputeMatchedQuantities sizes the short leg to neutralize targetLong contracts of the long leg.
func (m *DV01Matcher) ComputeMatchedQuantities(long, short string, targetLong int64) (int64, int64, error) {
	ratio, err := m.ComputeSpreadRatio(long, short)
	if err != nil {
		return 0, 0, err
	}
	return targetLong, int64(math.Round(float64(targetLong) * ratio)), nil
}

// ValidateSpread compares the DV01 exposure of both legs against the tolerance.
func (m *DV01Matcher) ValidateSpread(long, short models.SpreadLeg) models.SpreadValidation {
	ldv, ok := m.legDV01(long)
	if !ok {
		return models.SpreadValidation{Reason: fmt.Sprintf("unknown DV01 for %s", long.Instrument)}
	}
	sdv, ok := m.legDV01(short)
	if !ok {
		return models.SpreadValidation{Reason: fmt.Sprintf("unknown DV01 for %s", short.Instrument)}
	}

	res := models.SpreadValidation{
		LongExposure:  math.Abs(float64(long.Quantity)) * ldv,
		ShortExposure: math.Abs(float64(short.Quantity)) * sdv,
	}
	if res.ShortExposure == 0 {
		res.Reason = "short leg has no DV01 exposure"
		return res
	}

	res.MismatchPct = math.Abs(res.LongExposure-res.ShortExposure) / res.ShortExposure * 100
	if res.MismatchPct > m.tolerancePct {
		res.Reason = fmt.Sprintf("DV01 mismatch %.2f%% exceeds tolerance %.2f%%", res.MismatchPct, m.tolerancePct)
		return res
	}
	res.Valid = true
	res.Reason = fmt.Sprintf("DV01 matched within %.2f%%", res.MismatchPct)
	return res
}

func (m *DV01Matcher) legDV01(leg models.SpreadLeg) (float64, bool) {
	if leg.DV01 > 0 {
		return leg.DV01, true
	}
	return m.DV01(leg.Instrument)
}
