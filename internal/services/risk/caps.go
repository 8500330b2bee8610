package risk

import (
	"fmt"
	"math"
	"sort"

	"ExecGuard/internal/domain/models"
)

// CapLimits are percentage-of-NAV limits, plus an absolute single position ceiling.
type CapLimits struct {
	Sleeves              map[string]float64
	MaxGrossPct          float64
	MaxNetPct            float64
	MaxSinglePositionPct float64
	MaxSinglePositionUSD float64
}

// PositionCapManager enforces sleeve, gross, net and single position caps.
type PositionCapManager struct {
	limits CapLimits
}

func NewPositionCapManager(limits CapLimits) *PositionCapManager {
	if limits.Sleeves == nil {
		limits.Sleeves = map[string]float64{}
	}
	return &PositionCapManager{limits: limits}
}

// CheckSleeveCap fails when exposure exceeds the sleeve's share of NAV. Sleeves without a cap fail.
func (m *PositionCapManager) CheckSleeveCap(sleeve string, exposure, nav float64) models.CapCheck {
	if nav <= 0 {
		return models.CapCheck{Value: exposure, Reason: fmt.Sprintf("invalid NAV %.2f", nav)}
	}
	pct, ok := m.limits.Sleeves[sleeve]
	if !ok {
		return models.CapCheck{Value: exposure, Reason: fmt.Sprintf("sleeve %s has no configured cap", sleeve)}
	}
	limit := nav * pct / 100
	return capCheck(math.Abs(exposure), limit, fmt.Sprintf("sleeve %s exposure", sleeve))
}

// CheckGrossExposure sums absolute exposures.
func (m *PositionCapManager) CheckGrossExposure(positions []models.Position, nav float64) models.CapCheck {
	var gross float64
	for _, p := range positions {
		gross += math.Abs(p.Value)
	}
	if nav <= 0 {
		return models.CapCheck{Value: gross, Reason: fmt.Sprintf("invalid NAV %.2f", nav)}
	}
	return capCheck(gross, nav*m.limits.MaxGrossPct/100, "gross exposure")
}

// CheckNetExposure nets long and short exposures.
func (m *PositionCapManager) CheckNetExposure(positions []models.Position, nav float64) models.CapCheck {
	var net float64
	for _, p := range positions {
		net += p.Value
	}
	net = math.Abs(net)
	if nav <= 0 {
		return models.CapCheck{Value: net, Reason: fmt.Sprintf("invalid NAV %.2f", nav)}
	}
	return capCheck(net, nav*m.limits.MaxNetPct/100, "net exposure")
}

// CheckSinglePosition applies the tighter of the NAV share and the absolute cap.
func (m *PositionCapManager) CheckSinglePosition(value, nav float64) models.CapCheck {
	if nav <= 0 {
		return models.CapCheck{Value: value, Reason: fmt.Sprintf("invalid NAV %.2f", nav)}
	}
	limit := nav * m.limits.MaxSinglePositionPct / 100
	if m.limits.MaxSinglePositionUSD > 0 {
		limit = math.Min(limit, m.limits.MaxSinglePositionUSD)
	}
	return capCheck(math.Abs(value), limit, "single position")
}

// SleeveExposures nets signed position values per sleeve.
func SleeveExposures(positions []models.Position) map[string]float64 {
	bySleeve := make(map[string]float64)
	for _, p := range positions {
		bySleeve[p.Sleeve] += p.Value
	}
	return bySleeve
}

// CheckAllCaps reports every sleeve, gross and net violation.
func (m *PositionCapManager) CheckAllCaps(positions []models.Position, nav float64) (bool, []string) {
	bySleeve := SleeveExposures(positions)
	sleeves := make([]string, 0, len(bySleeve))
	for s := range bySleeve {
		sleeves = append(sleeves, s)
	}
	sort.Strings(sleeves)

	var issues []string
	for _, s := range sleeves {
		if c := m.CheckSleeveCap(s, bySleeve[s], nav); !c.OK {
			issues = append(issues, c.Reason)
		}
	}
	if c := m.CheckGrossExposure(positions, nav); !c.OK {
		issues = append(issues, c.Reason)
	}
	if c := m.CheckNetExposure(positions, nav); !c.OK {
		issues = append(issues, c.Reason)
	}
	return len(issues) == 0, issues
}

func capCheck(value, limit float64, what string) models.CapCheck {
	if value > limit {
		return models.CapCheck{
			Value:  value,
			Limit:  limit,
			Reason: fmt.Sprintf("%s %.2f exceeds limit %.2f", what, value, limit),
		}
	}
	return models.CapCheck{OK: true, Value: value, Limit: limit}
}
