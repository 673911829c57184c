package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/platform/db"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the payment paths.
// Reads go through the shared crm repository; the commit path runs inside a
// serializable transaction.
type Repository struct {
	pool *pgxpool.Pool
	crm  *crm.Repository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, crm: crm.NewRepository(pool)}
}

// GetClient returns one client by id.
func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (*crm.Client, error) {
	return r.crm.GetClient(ctx, id)
}

// ListUnpaid returns the client's non-PAID installments in allocation order.
func (r *Repository) ListUnpaid(ctx context.Context, clientID uuid.UUID) ([]crm.Installment, error) {
	return r.crm.ListUnpaidByClient(ctx, clientID)
}

// GetInstallment returns one installment by id.
func (r *Repository) GetInstallment(ctx context.Context, id uuid.UUID) (*crm.Installment, error) {
	return r.crm.GetInstallment(ctx, id)
}

// Reschedule moves an installment's due date and writes the audit row in the
// same transaction. Amounts and status are left alone. The reason lives in
// the audit entry, so a failed audit insert rolls the date change back.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, dueDate time.Time, log shared.AuditLog) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE installments SET due_date = $1 WHERE id = $2`, dueDate, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return crm.ErrNotFound
		}
		return shared.WriteAuditLog(ctx, tx, log)
	})
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return crm.ErrNotFound
		}
		return fmt.Errorf("payments: reschedule: %w", err)
	}
	return nil
}

// WithTx wraps the callback in a serializable transaction. Serialization
// failures propagate unwrapped so the service can retry the whole commit.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

// ListUnpaidForUpdate re-reads the unpaid installments with row locks so a
// concurrent commit against the same client blocks instead of double
// crediting.
func (t *txRepo) ListUnpaidForUpdate(ctx context.Context, clientID uuid.UUID) ([]crm.Installment, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, plan_id, client_id, installment_number, amount, paid_amount, due_date, status, paid_at
FROM installments
WHERE client_id = $1 AND status IN ('PENDING','PARTIAL','OVERDUE')
ORDER BY due_date, installment_number, id
FOR UPDATE`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var installments []crm.Installment
	for rows.Next() {
		var inst crm.Installment
		if err := rows.Scan(&inst.ID, &inst.CreditPlanID, &inst.ClientID, &inst.InstallmentNumber, &inst.Amount, &inst.PaidAmount, &inst.DueDate, &inst.Status, &inst.PaidAt); err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func (t *txRepo) UpdateInstallmentPayment(ctx context.Context, id uuid.UUID, paidAmount decimal.Decimal, status crm.InstallmentStatus, paidAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE installments SET paid_amount = $1, status = $2, paid_at = COALESCE($3, paid_at) WHERE id = $4`,
		paidAmount, status, paidAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return crm.ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, payment crm.Payment) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, `INSERT INTO payments (client_id, amount, payment_date, user_id, receipt_url, notes, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7) RETURNING id`,
		payment.ClientID, payment.Amount, payment.PaymentDate, payment.UserID, payment.ReceiptURL, payment.Notes, payment.CreatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) InsertAllocations(ctx context.Context, paymentID uuid.UUID, lines []AllocationLine) error {
	for _, line := range lines {
		if !line.AmountToApply.IsPositive() {
			continue
		}
		if _, err := t.tx.Exec(ctx, `INSERT INTO payment_allocations (payment_id, installment_id, amount_applied) VALUES ($1, $2, $3)`,
			paymentID, line.InstallmentID, line.AmountToApply); err != nil {
			return err
		}
	}
	return nil
}

// RecalculateCreditUsed derives creditUsed from the non-PAID installments
// and persists it, returning the new value. Deriving instead of
// decrementing keeps the figure from drifting.
func (t *txRepo) RecalculateCreditUsed(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	var creditUsed decimal.Decimal
	err := t.tx.QueryRow(ctx, `UPDATE clients SET credit_used = (
	SELECT COALESCE(SUM(amount - paid_amount), 0)
	FROM installments
	WHERE client_id = $1 AND status <> 'PAID'
) WHERE id = $1 RETURNING credit_used`, clientID).Scan(&creditUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, crm.ErrNotFound
	}
	return creditUsed, err
}
