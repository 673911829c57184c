package alerts

import (
	"fmt"
	"sort"
)

// priorityRank orders HIGH before MEDIUM before LOW.
func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// typeTag maps an alert type to its id prefix. The switch is exhaustive so a
// new alert type fails loudly here instead of producing colliding ids.
func typeTag(t Type) string {
	switch t {
	case TypeBirthday:
		return "birthday"
	case TypeInactivity:
		return "inactivity"
	case TypeInstallment:
		return "installment"
	case TypeOverdue:
		return "overdue"
	default:
		panic(fmt.Sprintf("alerts: unknown alert type %q", t))
	}
}

// Aggregate concatenates rule outputs in a fixed order, assigns stable ids
// and sorts by priority. The sort is stable, so equal-priority alerts keep
// the order the rules produced them in.
func Aggregate(groups ...[]Alert) []Alert {
	var out []Alert
	for _, group := range groups {
		for _, alert := range group {
			alert.ID = typeTag(alert.Type) + "-" + alert.entityID.String()
			out = append(out, alert)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank(out[i].Priority) < priorityRank(out[j].Priority)
	})
	return out
}
