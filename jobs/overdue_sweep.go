package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cobranza-crm/cobranza/internal/shared"
)

// OverdueSweeper flags past-due installments. Alert generation already treats
// past-due PENDING/PARTIAL rows as overdue on the fly; this nightly pass
// persists the status so listings and the dashboard agree with the alerts.
type OverdueSweeper struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewOverdueSweeper constructs the sweeper.
func NewOverdueSweeper(pool *pgxpool.Pool, logger *slog.Logger) *OverdueSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueSweeper{pool: pool, logger: logger, now: time.Now}
}

// Handle processes TaskOverdueSweep tasks.
func (s *OverdueSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	today := shared.Day(s.now())
	tag, err := s.pool.Exec(ctx, `UPDATE installments
SET status = 'OVERDUE'
WHERE status IN ('PENDING','PARTIAL') AND due_date < $1`, today)
	if err != nil {
		return fmt.Errorf("overdue sweep: %w", err)
	}

	s.logger.Info("overdue sweep finished",
		slog.String("job", TaskOverdueSweep),
		slog.Int64("flagged", tag.RowsAffected()),
		slog.Time("as_of", today))
	return nil
}
