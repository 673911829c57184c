package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/observability"
	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// maxCommitAttempts bounds whole-operation retries after serialization
// failures. Each retry re-reads, re-plans and re-applies from scratch.
const maxCommitAttempts = 3

// minRescheduleReasonLen is the mandatory audit reason length.
const minRescheduleReasonLen = 10

// ErrTxConflict marks a transaction aborted by a concurrent commit. The pgx
// store surfaces SQLSTATE 40001/40P01 instead; this sentinel exists so
// non-SQL stores can signal the same condition.
var ErrTxConflict = errors.New("payments: transaction conflict")

// Store defines data access for the payment paths.
type Store interface {
	GetClient(ctx context.Context, id uuid.UUID) (*crm.Client, error)
	ListUnpaid(ctx context.Context, clientID uuid.UUID) ([]crm.Installment, error)
	GetInstallment(ctx context.Context, id uuid.UUID) (*crm.Installment, error)
	Reschedule(ctx context.Context, id uuid.UUID, dueDate time.Time, log shared.AuditLog) error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}

// TxStore exposes the ledger mutations available inside one commit
// transaction. Everything applied through it is all-or-nothing.
type TxStore interface {
	ListUnpaidForUpdate(ctx context.Context, clientID uuid.UUID) ([]crm.Installment, error)
	UpdateInstallmentPayment(ctx context.Context, id uuid.UUID, paidAmount decimal.Decimal, status crm.InstallmentStatus, paidAt *time.Time) error
	InsertPayment(ctx context.Context, payment crm.Payment) (uuid.UUID, error)
	InsertAllocations(ctx context.Context, paymentID uuid.UUID, lines []AllocationLine) error
	RecalculateCreditUsed(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
}

// AuditRecorder persists audit entries for ledger mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles payment preview, commit and reschedule.
type Service struct {
	store   Store
	audit   AuditRecorder
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(store Store, audit AuditRecorder, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: audit, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Preview allocates without mutating anything. An empty unpaid list is not
// an error here: the plan simply reports the full amount as remaining and
// the caller decides what to do with it.
func (s *Service) Preview(ctx context.Context, clientID uuid.UUID, amount decimal.Decimal) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, mapStoreErr(err, "client")
	}
	installments, err := s.store.ListUnpaid(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	plan := Allocate(amount, installments)
	return &plan, nil
}

// Commit applies a payment inside one serializable transaction scoped to the
// client: re-read the unpaid installments, re-plan, apply the transitions,
// insert the payment and its allocation rows, recompute creditUsed. On a
// serialization failure the whole cycle reruns; nothing is ever partially
// persisted.
func (s *Service) Commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}
	if input.PaymentDate.IsZero() {
		return nil, fmt.Errorf("%w: payment_date is required", httpx.ErrValidation)
	}
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", httpx.ErrValidation)
	}
	if _, err := s.store.GetClient(ctx, input.ClientID); err != nil {
		return nil, mapStoreErr(err, "client")
	}

	var result *CommitResult
	for attempt := 1; ; attempt++ {
		var err error
		result, err = s.commitOnce(ctx, input)
		if err == nil {
			break
		}
		if !isSerializationFailure(err) {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.PaymentRetried()
		}
		if attempt >= maxCommitAttempts {
			return nil, fmt.Errorf("%w: payment commit aborted after %d attempts", httpx.ErrConflict, attempt)
		}
		s.logger.Warn("payment commit conflict, retrying",
			slog.String("client_id", input.ClientID.String()),
			slog.Int("attempt", attempt))
	}

	if s.metrics != nil {
		s.metrics.PaymentCommitted()
	}
	s.recordAudit(ctx, input, result)
	return result, nil
}

func (s *Service) commitOnce(ctx context.Context, input CommitInput) (*CommitResult, error) {
	var result CommitResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		installments, err := tx.ListUnpaidForUpdate(ctx, input.ClientID)
		if err != nil {
			return err
		}
		if len(installments) == 0 {
			return fmt.Errorf("%w: no unpaid installments for client", httpx.ErrValidation)
		}

		plan := Allocate(input.Amount, installments)
		if len(plan.Lines) == 0 {
			return fmt.Errorf("%w: payment could not be applied to any installment", httpx.ErrValidation)
		}

		byID := make(map[uuid.UUID]crm.Installment, len(installments))
		for _, inst := range installments {
			byID[inst.ID] = inst
		}

		now := s.now().UTC()
		for _, line := range plan.Lines {
			inst := byID[line.InstallmentID]
			newPaid := inst.PaidAmount.Add(line.AmountToApply)
			status := NextStatus(inst.Status, newPaid, inst.Amount)
			var paidAt *time.Time
			if status == crm.StatusPaid {
				paidAt = &now
			}
			if err := tx.UpdateInstallmentPayment(ctx, line.InstallmentID, newPaid, status, paidAt); err != nil {
				return err
			}
		}

		paymentID, err := tx.InsertPayment(ctx, crm.Payment{
			ClientID:    input.ClientID,
			Amount:      input.Amount,
			PaymentDate: shared.Day(input.PaymentDate),
			UserID:      input.UserID,
			ReceiptURL:  input.ReceiptURL,
			Notes:       input.Notes,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertAllocations(ctx, paymentID, plan.Lines); err != nil {
			return err
		}
		if _, err := tx.RecalculateCreditUsed(ctx, input.ClientID); err != nil {
			return err
		}

		result = CommitResult{
			PaymentID:           paymentID,
			AmountApplied:       plan.TotalApplied(),
			InstallmentsUpdated: len(plan.Lines),
			Remaining:           plan.Remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reschedule moves an installment's due date. Amounts and status are never
// touched; the next alert generation pass picks up the new window by itself.
// The reason is a mandatory part of the record, so the audit row commits in
// the same transaction as the date change: no audit, no reschedule.
func (s *Service) Reschedule(ctx context.Context, input RescheduleInput) error {
	if len(strings.TrimSpace(input.Reason)) < minRescheduleReasonLen {
		return fmt.Errorf("%w: reason must be at least %d characters", httpx.ErrValidation, minRescheduleReasonLen)
	}
	today := shared.Day(s.now())
	newDue := shared.Day(input.NewDueDate)
	if newDue.Before(today) {
		return fmt.Errorf("%w: new due date cannot be in the past", httpx.ErrValidation)
	}

	inst, err := s.store.GetInstallment(ctx, input.InstallmentID)
	if err != nil {
		return mapStoreErr(err, "installment")
	}

	log := shared.AuditLog{
		ActorID:  input.UserID,
		Action:   "RESCHEDULE",
		Entity:   "installments",
		EntityID: input.InstallmentID.String(),
		Meta: map[string]any{
			"reason":       strings.TrimSpace(input.Reason),
			"old_due_date": shared.Day(inst.DueDate).Format("2006-01-02"),
			"new_due_date": newDue.Format("2006-01-02"),
		},
		At: s.now().UTC(),
	}
	if err := s.store.Reschedule(ctx, input.InstallmentID, newDue, log); err != nil {
		return mapStoreErr(err, "installment")
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, input CommitInput, result *CommitResult) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  input.UserID,
		Action:   "INSERT",
		Entity:   "payments",
		EntityID: result.PaymentID.String(),
		Meta: map[string]any{
			"client_id":            input.ClientID.String(),
			"amount":               input.Amount.String(),
			"amount_applied":       result.AmountApplied.String(),
			"remaining_amount":     result.Remaining.String(),
			"installments_updated": result.InstallmentsUpdated,
		},
		At: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit payment", slog.Any("error", err))
	}
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return errors.Is(err, ErrTxConflict)
}

func mapStoreErr(err error, entity string) error {
	if errors.Is(err, crm.ErrNotFound) {
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, entity)
	}
	return fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
}
