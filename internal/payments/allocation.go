package payments

import (
	"bytes"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// SortInstallments orders installments by (dueDate, installmentNumber, id)
// ascending. Oldest due date first; the trailing keys make the order total
// so allocation stays deterministic for equal due dates.
func SortInstallments(installments []crm.Installment) []crm.Installment {
	sorted := make([]crm.Installment, len(installments))
	copy(sorted, installments)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		ad, bd := shared.Day(a.DueDate), shared.Day(b.DueDate)
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		if a.InstallmentNumber != b.InstallmentNumber {
			return a.InstallmentNumber < b.InstallmentNumber
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return sorted
}

// Allocate distributes paymentAmount across the installments oldest due date
// first. Pure function: it mutates nothing and is reused unchanged by both
// the preview and commit paths. Conservation holds unconditionally:
// Σ amountToApply + remaining = paymentAmount.
func Allocate(paymentAmount decimal.Decimal, installments []crm.Installment) AllocationPlan {
	plan := AllocationPlan{
		PaymentAmount: paymentAmount,
		Remaining:     paymentAmount,
	}

	for _, inst := range SortInstallments(installments) {
		if !plan.Remaining.IsPositive() {
			break
		}
		if inst.Status == crm.StatusPaid {
			continue
		}
		owed := inst.Outstanding()
		if !owed.IsPositive() {
			continue
		}
		applied := decimal.Min(plan.Remaining, owed)
		plan.Lines = append(plan.Lines, AllocationLine{
			InstallmentID:     inst.ID,
			InstallmentNumber: inst.InstallmentNumber,
			DueDate:           shared.Day(inst.DueDate),
			Amount:            inst.Amount,
			PaidAmount:        inst.PaidAmount,
			AmountToApply:     applied,
		})
		plan.Remaining = plan.Remaining.Sub(applied)
	}

	return plan
}

// NextStatus computes the post-payment status transition. A fully settled
// installment becomes PAID; an OVERDUE one that is still unpaid keeps its
// OVERDUE label; anything else with money on it is PARTIAL.
func NextStatus(previous crm.InstallmentStatus, newPaidAmount, amount decimal.Decimal) crm.InstallmentStatus {
	switch {
	case newPaidAmount.GreaterThanOrEqual(amount):
		return crm.StatusPaid
	case previous == crm.StatusOverdue:
		return crm.StatusOverdue
	case newPaidAmount.IsPositive():
		return crm.StatusPartial
	default:
		return previous
	}
}
