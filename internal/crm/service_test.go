package crm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
)

type memoryRepo struct {
	clients      map[uuid.UUID]*Client
	installments map[uuid.UUID][]Installment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		clients:      map[uuid.UUID]*Client{},
		installments: map[uuid.UUID][]Installment{},
	}
}

func (m *memoryRepo) GetClient(_ context.Context, id uuid.UUID) (*Client, error) {
	client, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (m *memoryRepo) GetInstallment(_ context.Context, id uuid.UUID) (*Installment, error) {
	for _, list := range m.installments {
		for _, inst := range list {
			if inst.ID == id {
				return &inst, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) ListUnpaidByClient(_ context.Context, clientID uuid.UUID) ([]Installment, error) {
	var out []Installment
	for _, inst := range m.installments[clientID] {
		if inst.Status != StatusPaid {
			out = append(out, inst)
		}
	}
	return out, nil
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreditSummaryAggregatesDebt(t *testing.T) {
	repo := newMemoryRepo()
	clientID := uuid.New()
	repo.clients[clientID] = &Client{
		ID:          clientID,
		Name:        "Lucía Pérez",
		Active:      true,
		CreditLimit: money("1000.00"),
		CreditUsed:  money("400.00"),
	}
	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	repo.installments[clientID] = []Installment{
		{ID: uuid.New(), ClientID: clientID, Amount: money("200.00"), PaidAmount: money("50.00"),
			DueDate: today.AddDate(0, 0, -10), Status: StatusOverdue},
		{ID: uuid.New(), ClientID: clientID, Amount: money("200.00"),
			DueDate: today.AddDate(0, 0, 20), Status: StatusPending},
		{ID: uuid.New(), ClientID: clientID, Amount: money("100.00"), PaidAmount: money("100.00"),
			DueDate: today.AddDate(0, 0, -5), Status: StatusPaid},
	}

	service := NewService(repo).WithClock(func() time.Time { return today })

	summary, err := service.CreditSummary(context.Background(), clientID)
	require.NoError(t, err)
	require.True(t, summary.CreditAvailable.Equal(money("600.00")))
	require.True(t, summary.TotalDebt.Equal(money("350.00")))
	require.True(t, summary.OverdueDebt.Equal(money("150.00")))
	require.Equal(t, 2, summary.PendingInstallments)
	require.Equal(t, 1, summary.OverdueInstallments)
}

func TestCreditSummaryUnknownClient(t *testing.T) {
	service := NewService(newMemoryRepo())
	_, err := service.CreditSummary(context.Background(), uuid.New())
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestValidateCreditLimit(t *testing.T) {
	repo := newMemoryRepo()
	clientID := uuid.New()
	repo.clients[clientID] = &Client{
		ID:          clientID,
		Name:        "Jorge Ramos",
		Active:      true,
		CreditLimit: money("500.00"),
		CreditUsed:  money("350.00"),
	}
	service := NewService(repo)

	t.Run("fits within limit", func(t *testing.T) {
		result, err := service.ValidateCreditLimit(context.Background(), clientID, money("150.00"))
		require.NoError(t, err)
		require.True(t, result.IsValid)
		require.True(t, result.AvailableCredit.Equal(money("150.00")))
		require.Empty(t, result.Message)
	})

	t.Run("exceeds limit", func(t *testing.T) {
		result, err := service.ValidateCreditLimit(context.Background(), clientID, money("150.01"))
		require.NoError(t, err)
		require.False(t, result.IsValid)
		require.Equal(t, "Crédito insuficiente. Crédito disponible: $150.00", result.Message)
	})

	t.Run("non positive amount", func(t *testing.T) {
		_, err := service.ValidateCreditLimit(context.Background(), clientID, decimal.Zero)
		require.ErrorIs(t, err, httpx.ErrValidation)
	})
}

func TestValidateCreditLimitInactiveClient(t *testing.T) {
	repo := newMemoryRepo()
	clientID := uuid.New()
	repo.clients[clientID] = &Client{
		ID:          clientID,
		Name:        "Baja Cliente",
		Active:      false,
		CreditLimit: money("500.00"),
	}
	service := NewService(repo)

	result, err := service.ValidateCreditLimit(context.Background(), clientID, money("10.00"))
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.Equal(t, "Cliente inactivo no puede realizar compras a crédito", result.Message)
	require.True(t, result.AvailableCredit.IsZero())
}

func TestCreditAvailableNeverNegative(t *testing.T) {
	client := Client{CreditLimit: money("100.00"), CreditUsed: money("180.00")}
	require.True(t, client.CreditAvailable().IsZero())
}
