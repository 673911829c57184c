package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationLine maps part of a payment to one installment.
type AllocationLine struct {
	InstallmentID     uuid.UUID
	InstallmentNumber int
	DueDate           time.Time
	Amount            decimal.Decimal
	PaidAmount        decimal.Decimal
	AmountToApply     decimal.Decimal
}

// AllocationPlan is the immutable result of allocating one payment across a
// client's unpaid installments. Invariant: TotalApplied() + Remaining equals
// PaymentAmount exactly.
type AllocationPlan struct {
	PaymentAmount decimal.Decimal
	Lines         []AllocationLine
	Remaining     decimal.Decimal
}

// TotalApplied sums the allocated amounts.
func (p AllocationPlan) TotalApplied() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.AmountToApply)
	}
	return total
}

// CommitInput describes a payment commit request.
type CommitInput struct {
	ClientID    uuid.UUID
	Amount      decimal.Decimal
	PaymentDate time.Time
	UserID      uuid.UUID
	ReceiptURL  string
	Notes       string
}

// CommitResult reports what a committed payment changed.
type CommitResult struct {
	PaymentID           uuid.UUID
	AmountApplied       decimal.Decimal
	InstallmentsUpdated int
	Remaining           decimal.Decimal
}

// RescheduleInput moves an installment's due date with a mandatory reason.
type RescheduleInput struct {
	InstallmentID uuid.UUID
	NewDueDate    time.Time
	Reason        string
	UserID        uuid.UUID
}
