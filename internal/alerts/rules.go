package alerts

import (
	"fmt"
	"time"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// The four rules are pure functions over a snapshot and an explicit "today".
// None of them may read the wall clock: identical inputs must produce
// identical output, in the same order, on every invocation.

const dueWindowDays = 7

// BirthdayAlerts flags active clients whose birthday falls within the next
// seven days. The stored birth year is ignored; the next occurrence of
// (month, day) wraps into the following year when needed.
func BirthdayAlerts(clients []ClientRecord, today time.Time) []Alert {
	today = shared.Day(today)
	var out []Alert
	for _, client := range clients {
		next := shared.NextAnniversary(client.Birthday, today)
		daysUntil := shared.DaysBetween(today, next)
		if daysUntil < 0 || daysUntil > dueWindowDays {
			continue
		}
		due := next
		out = append(out, Alert{
			Type:       TypeBirthday,
			ClientID:   client.ID,
			ClientName: client.Name,
			Message:    fmt.Sprintf("Cumpleaños en %d %s", daysUntil, pluralDays(daysUntil)),
			Priority:   PriorityMedium,
			DueDate:    &due,
			CreatedAt:  today,
			entityID:   client.ID,
		})
	}
	return out
}

// InactivityAlerts flags active clients whose last purchase is strictly more
// than thresholdDays ago.
func InactivityAlerts(clients []ActivityRecord, today time.Time, thresholdDays int) []Alert {
	today = shared.Day(today)
	var out []Alert
	for _, client := range clients {
		daysSince := shared.DaysBetween(client.LastPurchase, today)
		if daysSince <= thresholdDays {
			continue
		}
		out = append(out, Alert{
			Type:       TypeInactivity,
			ClientID:   client.ID,
			ClientName: client.Name,
			Message:    fmt.Sprintf("Sin compras hace %d %s", daysSince, pluralDays(daysSince)),
			Priority:   PriorityLow,
			CreatedAt:  today,
			entityID:   client.ID,
		})
	}
	return out
}

// InstallmentDueAlerts flags PENDING/PARTIAL installments due within the
// inclusive [today, today+7] window.
func InstallmentDueAlerts(installments []InstallmentRecord, today time.Time) []Alert {
	today = shared.Day(today)
	var out []Alert
	for _, inst := range installments {
		if inst.Status != crm.StatusPending && inst.Status != crm.StatusPartial {
			continue
		}
		due := shared.Day(inst.DueDate)
		daysUntil := shared.DaysBetween(today, due)
		if daysUntil < 0 || daysUntil > dueWindowDays {
			continue
		}
		amount := inst.Outstanding()
		out = append(out, Alert{
			Type:       TypeInstallment,
			ClientID:   inst.ClientID,
			ClientName: inst.ClientName,
			Message:    fmt.Sprintf("Cuota vence en %d %s", daysUntil, pluralDays(daysUntil)),
			Priority:   PriorityMedium,
			DueDate:    &due,
			Amount:     &amount,
			CreatedAt:  today,
			entityID:   inst.ID,
		})
	}
	return out
}

// OverdueAlerts flags unpaid installments strictly past their due date.
// Installments already labeled OVERDUE are treated like past-due
// PENDING/PARTIAL ones, so the output does not depend on how recently the
// status sweep ran.
func OverdueAlerts(installments []InstallmentRecord, today time.Time) []Alert {
	today = shared.Day(today)
	var out []Alert
	for _, inst := range installments {
		if inst.Status == crm.StatusPaid {
			continue
		}
		due := shared.Day(inst.DueDate)
		if !due.Before(today) {
			continue
		}
		daysOverdue := shared.DaysBetween(due, today)
		amount := inst.Outstanding()
		out = append(out, Alert{
			Type:       TypeOverdue,
			ClientID:   inst.ClientID,
			ClientName: inst.ClientName,
			Message:    fmt.Sprintf("Cuota vencida hace %d %s", daysOverdue, pluralDays(daysOverdue)),
			Priority:   PriorityHigh,
			DueDate:    &due,
			Amount:     &amount,
			CreatedAt:  today,
			entityID:   inst.ID,
		})
	}
	return out
}

func pluralDays(n int) string {
	if n == 1 {
		return "día"
	}
	return "días"
}
