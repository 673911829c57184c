package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// Repository aggregates dashboard metrics in PostgreSQL. The whole overview
// is one statement so the database does the counting, not the application.
// Configuration reads go through the shared crm repository.
type Repository struct {
	pool *pgxpool.Pool
	crm  *crm.Repository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, crm: crm.NewRepository(pool)}
}

// InactivityThresholdDays returns the configured threshold, defaulting when
// system_config has no usable value.
func (r *Repository) InactivityThresholdDays(ctx context.Context) (int, error) {
	return r.crm.InactivityThresholdDays(ctx)
}

// Aggregate computes the metrics as of today. Overdue covers installments
// already flagged OVERDUE plus PENDING/PARTIAL rows whose due date has
// passed, so a late sweep never hides debt from the overview.
func (r *Repository) Aggregate(ctx context.Context, today time.Time, inactivityDays int) (*Metrics, error) {
	today = shared.Day(today)
	inactiveBefore := today.AddDate(0, 0, -inactivityDays)

	var m Metrics
	err := r.pool.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM clients WHERE active),
	(SELECT COUNT(*) FROM clients WHERE NOT active),
	(SELECT COUNT(DISTINCT client_id) FROM installments
		WHERE status <> 'PAID' AND amount > paid_amount),
	(SELECT COUNT(DISTINCT client_id) FROM installments
		WHERE status = 'OVERDUE' OR (status IN ('PENDING','PARTIAL') AND due_date < $1)),
	(SELECT COUNT(*) FROM clients
		WHERE active AND last_purchase_date IS NOT NULL AND last_purchase_date < $2),
	(SELECT COUNT(*) FROM clients
		WHERE active AND birthday IS NOT NULL
		AND EXTRACT(MONTH FROM birthday) = EXTRACT(MONTH FROM $1::date)),
	(SELECT COUNT(*) FROM collection_actions WHERE NOT completed),
	(SELECT COALESCE(SUM(amount - paid_amount), 0) FROM installments WHERE status <> 'PAID'),
	(SELECT COALESCE(SUM(amount - paid_amount), 0) FROM installments
		WHERE status = 'OVERDUE' OR (status IN ('PENDING','PARTIAL') AND due_date < $1))`,
		today, inactiveBefore).
		Scan(&m.TotalActiveClients, &m.TotalDeactivatedClients, &m.ClientsWithDebt,
			&m.ClientsWithOverdueDebt, &m.InactiveClients, &m.BirthdaysThisMonth,
			&m.PendingCollectionActions, &m.TotalOutstandingDebt, &m.TotalOverdueDebt)
	if err != nil {
		return nil, fmt.Errorf("dashboard: aggregate metrics: %w", err)
	}
	return &m, nil
}
