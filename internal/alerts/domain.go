package alerts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/crm"
)

// Type enumerates alert kinds.
type Type string

const (
	TypeBirthday    Type = "BIRTHDAY"
	TypeInactivity  Type = "INACTIVITY"
	TypeInstallment Type = "INSTALLMENT"
	TypeOverdue     Type = "OVERDUE"
)

// Priority enumerates operator-attention levels.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Alert is an ephemeral risk signal. Alerts are recomputed on every call and
// never persisted.
type Alert struct {
	ID         string
	Type       Type
	ClientID   uuid.UUID
	ClientName string
	Message    string
	Priority   Priority
	DueDate    *time.Time
	Amount     *decimal.Decimal
	CreatedAt  time.Time

	// entityID is the record the alert identity ties to: the client for
	// birthday/inactivity, the installment for due/overdue.
	entityID uuid.UUID
}

// ClientRecord is the slice of client state the birthday rule consumes.
type ClientRecord struct {
	ID       uuid.UUID
	Name     string
	Birthday time.Time
}

// ActivityRecord is the slice of client state the inactivity rule consumes.
type ActivityRecord struct {
	ID           uuid.UUID
	Name         string
	LastPurchase time.Time
}

// InstallmentRecord is the slice of installment state the due/overdue rules
// consume. ClientName is denormalised for the alert message.
type InstallmentRecord struct {
	ID         uuid.UUID
	ClientID   uuid.UUID
	ClientName string
	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
	DueDate    time.Time
	Status     crm.InstallmentStatus
}

// Outstanding returns amount - paidAmount.
func (r InstallmentRecord) Outstanding() decimal.Decimal {
	return r.Amount.Sub(r.PaidAmount)
}

// Snapshot is one consistent read of everything the rule set scans.
type Snapshot struct {
	BirthdayClients []ClientRecord
	ActiveClients   []ActivityRecord
	Upcoming        []InstallmentRecord
	Overdue         []InstallmentRecord
}
