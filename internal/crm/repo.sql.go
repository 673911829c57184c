package crm

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const installmentColumns = `id, plan_id, client_id, installment_number, amount, paid_amount, due_date, status, paid_at`

// DefaultInactivityThresholdDays applies when system_config carries no
// inactivity_threshold_days override.
const DefaultInactivityThresholdDays = 90

// Repository provides PostgreSQL backed persistence for client and
// installment records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("crm: not found")

// InactivityThresholdDays reads inactivity_threshold_days from system_config.
// A missing key or an unusable value falls back to the default instead of
// erroring; only a failed read surfaces.
func (r *Repository) InactivityThresholdDays(ctx context.Context) (int, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM system_config WHERE key = 'inactivity_threshold_days'`).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultInactivityThresholdDays, nil
	}
	if err != nil {
		return 0, fmt.Errorf("crm: read system_config: %w", err)
	}
	return inactivityThreshold(value), nil
}

// inactivityThreshold converts a raw system_config value to days. Garbage and
// negative values fall back to the default.
func inactivityThreshold(value string) int {
	days, err := strconv.Atoi(value)
	if err != nil || days < 0 {
		return DefaultInactivityThresholdDays
	}
	return days
}

// GetClient returns one client by id.
func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, name, birthday, active, last_purchase_date, credit_limit, credit_used FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Birthday, &c.Active, &c.LastPurchaseDate, &c.CreditLimit, &c.CreditUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("crm: get client: %w", err)
	}
	return &c, nil
}

// GetInstallment returns one installment by id.
func (r *Repository) GetInstallment(ctx context.Context, id uuid.UUID) (*Installment, error) {
	var inst Installment
	err := r.pool.QueryRow(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id = $1`, id).
		Scan(&inst.ID, &inst.CreditPlanID, &inst.ClientID, &inst.InstallmentNumber, &inst.Amount, &inst.PaidAmount, &inst.DueDate, &inst.Status, &inst.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("crm: get installment: %w", err)
	}
	return &inst, nil
}

// ListUnpaidByClient returns the client's non-PAID installments ordered by
// (due_date, installment_number, id) so downstream allocation is deterministic.
func (r *Repository) ListUnpaidByClient(ctx context.Context, clientID uuid.UUID) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+installmentColumns+` FROM installments
WHERE client_id = $1 AND status IN ('PENDING','PARTIAL','OVERDUE')
ORDER BY due_date, installment_number, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("crm: list unpaid installments: %w", err)
	}
	defer rows.Close()
	var installments []Installment
	for rows.Next() {
		var inst Installment
		if err := rows.Scan(&inst.ID, &inst.CreditPlanID, &inst.ClientID, &inst.InstallmentNumber, &inst.Amount, &inst.PaidAmount, &inst.DueDate, &inst.Status, &inst.PaidAt); err != nil {
			return nil, fmt.Errorf("crm: scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crm: list unpaid installments: %w", err)
	}
	return installments, nil
}
