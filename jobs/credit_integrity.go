package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cobranza-crm/cobranza/internal/platform/db"
)

// CreditIntegrityChecker re-derives credit_used for every client from the
// non-PAID installments. The payment path already recomputes the figure per
// commit; this pass catches drift from manual data fixes or missed writes.
type CreditIntegrityChecker struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewCreditIntegrityChecker constructs the checker.
func NewCreditIntegrityChecker(pool *pgxpool.Pool, logger *slog.Logger) *CreditIntegrityChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditIntegrityChecker{pool: pool, logger: logger}
}

// Handle processes TaskCreditIntegrity tasks.
func (c *CreditIntegrityChecker) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var zeroed, corrected int64
	err := db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE clients SET credit_used = 0
WHERE credit_used <> 0
AND id NOT IN (SELECT DISTINCT client_id FROM installments WHERE status <> 'PAID')`)
		if err != nil {
			return err
		}
		zeroed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `UPDATE clients c SET credit_used = sub.outstanding
FROM (
	SELECT client_id, COALESCE(SUM(amount - paid_amount), 0) AS outstanding
	FROM installments
	WHERE status <> 'PAID'
	GROUP BY client_id
) sub
WHERE c.id = sub.client_id AND c.credit_used <> sub.outstanding`)
		if err != nil {
			return err
		}
		corrected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("credit integrity: %w", err)
	}

	if zeroed+corrected > 0 {
		c.logger.Warn("credit integrity fixed drift",
			slog.String("job", TaskCreditIntegrity),
			slog.Int64("zeroed", zeroed),
			slog.Int64("corrected", corrected))
	} else {
		c.logger.Info("credit integrity clean", slog.String("job", TaskCreditIntegrity))
	}
	return nil
}
