package risk

import (
	"fmt"
	"sort"
	"strings"
)

const DefaultMaxGroupAllocationPct = 50.0

// CorrelationBudgetManager caps the combined allocation of sleeves that co-move under stress.
type CorrelationBudgetManager struct {
	groups map[string][]string
	maxPct float64
}

func NewCorrelationBudgetManager(groups map[string][]string, maxPct float64) *CorrelationBudgetManager {
	if maxPct <= 0 {
		maxPct = DefaultMaxGroupAllocationPct
	}
	return &CorrelationBudgetManager{groups: groups, maxPct: maxPct}
}

// Check takes allocation percentages per sleeve and reports one issue per group over budget.
func (m *CorrelationBudgetManager) Check(allocations map[string]float64) (bool, []string) {
	var issues []string
	for _, name := range m.Groups() {
		sleeves := m.groups[name]
		var total float64
		for _, s := range sleeves {
			total += allocations[s]
		}
		if total > m.maxPct {
			issues = append(issues, fmt.Sprintf("correlation group %s allocation %.2f%% exceeds %.2f%% (%s)",
				name, total, m.maxPct, strings.Join(sleeves, ", ")))
		}
	}
	return len(issues) == 0, issues
}

// Groups returns the configured group names in order.
func (m *CorrelationBudgetManager) Groups() []string {
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
