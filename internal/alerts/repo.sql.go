package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/platform/db"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// Repository provides PostgreSQL backed snapshot reads for alert generation.
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

// Snapshot reads the four record sets inside one repeatable-read transaction
// so the upcoming and overdue windows come from the same instant. Every
// query carries a total ORDER BY: generation output must be byte-identical
// across calls on an unchanged database.
func (r *Repository) Snapshot(ctx context.Context, today time.Time) (*Snapshot, error) {
	today = shared.Day(today)
	horizon := today.AddDate(0, 0, dueWindowDays)

	var snap Snapshot
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if snap.BirthdayClients, err = birthdayClients(ctx, tx); err != nil {
			return err
		}
		if snap.ActiveClients, err = activeClients(ctx, tx); err != nil {
			return err
		}
		if snap.Upcoming, err = installmentWindow(ctx, tx,
			`i.status IN ('PENDING','PARTIAL') AND i.due_date >= $1 AND i.due_date <= $2`, today, horizon); err != nil {
			return err
		}
		if snap.Overdue, err = installmentWindow(ctx, tx,
			`i.status IN ('PENDING','PARTIAL','OVERDUE') AND i.due_date < $1`, today); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("alerts: snapshot: %w", err)
	}
	return &snap, nil
}

func birthdayClients(ctx context.Context, tx pgx.Tx) ([]ClientRecord, error) {
	rows, err := tx.Query(ctx, `SELECT id, name, birthday FROM clients
WHERE active AND birthday IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClientRecord
	for rows.Next() {
		var rec ClientRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Birthday); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func activeClients(ctx context.Context, tx pgx.Tx) ([]ActivityRecord, error) {
	rows, err := tx.Query(ctx, `SELECT id, name, last_purchase_date FROM clients
WHERE active AND last_purchase_date IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActivityRecord
	for rows.Next() {
		var rec ActivityRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.LastPurchase); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func installmentWindow(ctx context.Context, tx pgx.Tx, where string, args ...any) ([]InstallmentRecord, error) {
	rows, err := tx.Query(ctx, `SELECT i.id, i.client_id, c.name, i.amount, i.paid_amount, i.due_date, i.status
FROM installments i JOIN clients c ON c.id = i.client_id
WHERE `+where+` ORDER BY i.due_date, i.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InstallmentRecord
	for rows.Next() {
		var rec InstallmentRecord
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.ClientName, &rec.Amount, &rec.PaidAmount, &rec.DueDate, &rec.Status); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
