package dashboard

import "github.com/shopspring/decimal"

// Metrics is the aggregated back-office overview. Everything here is derived
// in one pass over clients, installments and collection actions.
type Metrics struct {
	TotalActiveClients       int             `json:"total_active_clients"`
	TotalDeactivatedClients  int             `json:"total_deactivated_clients"`
	ClientsWithDebt          int             `json:"clients_with_debt"`
	ClientsWithOverdueDebt   int             `json:"clients_with_overdue_debt"`
	InactiveClients          int             `json:"inactive_clients"`
	BirthdaysThisMonth       int             `json:"birthdays_this_month"`
	PendingCollectionActions int             `json:"pending_collection_actions"`
	TotalOutstandingDebt     decimal.Decimal `json:"total_outstanding_debt"`
	TotalOverdueDebt         decimal.Decimal `json:"total_overdue_debt"`
}
