package crm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// Service handles credit business logic.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreditSummary aggregates the client's credit position from the stored
// limit and the non-PAID installments.
func (s *Service) CreditSummary(ctx context.Context, clientID uuid.UUID) (*CreditSummary, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	installments, err := s.repo.ListUnpaidByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}

	today := shared.Day(s.now())
	summary := CreditSummary{
		CreditLimit:     client.CreditLimit,
		CreditUsed:      client.CreditUsed,
		CreditAvailable: client.CreditAvailable(),
		TotalDebt:       decimal.Zero,
		OverdueDebt:     decimal.Zero,
	}
	for _, inst := range installments {
		owed := inst.Outstanding()
		summary.TotalDebt = summary.TotalDebt.Add(owed)
		summary.PendingInstallments++
		if shared.Day(inst.DueDate).Before(today) {
			summary.OverdueDebt = summary.OverdueDebt.Add(owed)
			summary.OverdueInstallments++
		}
	}
	return &summary, nil
}

// ValidateCreditLimit checks whether a new credit purchase fits within the
// client's limit without mutating anything.
func (s *Service) ValidateCreditLimit(ctx context.Context, clientID uuid.UUID, purchaseAmount decimal.Decimal) (*CreditValidationResult, error) {
	if !purchaseAmount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	if !client.Active {
		return &CreditValidationResult{
			IsValid:         false,
			AvailableCredit: decimal.Zero,
			Message:         "Cliente inactivo no puede realizar compras a crédito",
		}, nil
	}

	available := client.CreditAvailable()
	if client.CreditUsed.Add(purchaseAmount).GreaterThan(client.CreditLimit) {
		return &CreditValidationResult{
			IsValid:         false,
			AvailableCredit: available,
			Message:         fmt.Sprintf("Crédito insuficiente. Crédito disponible: $%s", available.StringFixed(2)),
		}, nil
	}

	return &CreditValidationResult{IsValid: true, AvailableCredit: available}, nil
}

func mapRepoErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: client", httpx.ErrNotFound)
	}
	return fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
}
