package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallmentStatus enumerates installment lifecycle states.
type InstallmentStatus string

const (
	StatusPending InstallmentStatus = "PENDING"
	StatusPartial InstallmentStatus = "PARTIAL"
	StatusPaid    InstallmentStatus = "PAID"
	StatusOverdue InstallmentStatus = "OVERDUE"
)

// Client model.
type Client struct {
	ID               uuid.UUID
	Name             string
	Birthday         *time.Time
	Active           bool
	LastPurchaseDate *time.Time
	CreditLimit      decimal.Decimal
	CreditUsed       decimal.Decimal
}

// CreditAvailable returns max(0, creditLimit - creditUsed).
func (c Client) CreditAvailable() decimal.Decimal {
	available := c.CreditLimit.Sub(c.CreditUsed)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// CreditPlan model. The financed sale an installment belongs to.
type CreditPlan struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	SaleNumber  string
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
}

// Installment model. One scheduled partial payment of a credit plan.
type Installment struct {
	ID                uuid.UUID
	CreditPlanID      uuid.UUID
	ClientID          uuid.UUID
	InstallmentNumber int
	Amount            decimal.Decimal
	PaidAmount        decimal.Decimal
	DueDate           time.Time
	Status            InstallmentStatus
	PaidAt            *time.Time
}

// Outstanding returns the unpaid balance, never negative.
func (i Installment) Outstanding() decimal.Decimal {
	owed := i.Amount.Sub(i.PaidAmount)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

// Payment model. Immutable once committed.
type Payment struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	Amount      decimal.Decimal
	PaymentDate time.Time
	UserID      uuid.UUID
	ReceiptURL  string
	Notes       string
	CreatedAt   time.Time
}

// CreditSummary aggregates a client's credit position.
type CreditSummary struct {
	CreditLimit         decimal.Decimal
	CreditUsed          decimal.Decimal
	CreditAvailable     decimal.Decimal
	TotalDebt           decimal.Decimal
	OverdueDebt         decimal.Decimal
	PendingInstallments int
	OverdueInstallments int
}

// CreditValidationResult reports whether a new credit purchase fits the limit.
type CreditValidationResult struct {
	IsValid         bool
	AvailableCredit decimal.Decimal
	Message         string
}
