package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// memStore implements Store and TxStore in memory. Transactions clone the
// installment set and publish it back only when the callback succeeds, so a
// failed commit leaves nothing behind.
type memStore struct {
	clients      map[uuid.UUID]*crm.Client
	installments map[uuid.UUID]crm.Installment
	payments     []crm.Payment
	allocations  map[uuid.UUID][]AllocationLine
	audits       []shared.AuditLog
	auditErr     error
	conflicts    int
	txCalls      int
}

func newMemStore() *memStore {
	return &memStore{
		clients:      map[uuid.UUID]*crm.Client{},
		installments: map[uuid.UUID]crm.Installment{},
		allocations:  map[uuid.UUID][]AllocationLine{},
	}
}

func (m *memStore) GetClient(_ context.Context, id uuid.UUID) (*crm.Client, error) {
	client, ok := m.clients[id]
	if !ok {
		return nil, crm.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (m *memStore) unpaid(clientID uuid.UUID) []crm.Installment {
	var out []crm.Installment
	for _, inst := range m.installments {
		if inst.ClientID == clientID && inst.Status != crm.StatusPaid {
			out = append(out, inst)
		}
	}
	return SortInstallments(out)
}

func (m *memStore) ListUnpaid(_ context.Context, clientID uuid.UUID) ([]crm.Installment, error) {
	return m.unpaid(clientID), nil
}

func (m *memStore) GetInstallment(_ context.Context, id uuid.UUID) (*crm.Installment, error) {
	inst, ok := m.installments[id]
	if !ok {
		return nil, crm.ErrNotFound
	}
	return &inst, nil
}

// Reschedule mirrors the transactional SQL path: a failed audit write leaves
// the due date untouched.
func (m *memStore) Reschedule(_ context.Context, id uuid.UUID, dueDate time.Time, log shared.AuditLog) error {
	inst, ok := m.installments[id]
	if !ok {
		return crm.ErrNotFound
	}
	if m.auditErr != nil {
		return m.auditErr
	}
	inst.DueDate = dueDate
	m.installments[id] = inst
	m.audits = append(m.audits, log)
	return nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	m.txCalls++
	if m.conflicts > 0 {
		m.conflicts--
		return ErrTxConflict
	}
	tx := &memTx{store: m, staged: map[uuid.UUID]crm.Installment{}}
	for id, inst := range m.installments {
		tx.staged[id] = inst
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.installments = tx.staged
	m.payments = append(m.payments, tx.payments...)
	for id, lines := range tx.allocations {
		m.allocations[id] = lines
	}
	for id, used := range tx.creditUsed {
		m.clients[id].CreditUsed = used
	}
	return nil
}

type memTx struct {
	store       *memStore
	staged      map[uuid.UUID]crm.Installment
	payments    []crm.Payment
	allocations map[uuid.UUID][]AllocationLine
	creditUsed  map[uuid.UUID]decimal.Decimal
}

func (t *memTx) ListUnpaidForUpdate(_ context.Context, clientID uuid.UUID) ([]crm.Installment, error) {
	var out []crm.Installment
	for _, inst := range t.staged {
		if inst.ClientID == clientID && inst.Status != crm.StatusPaid {
			out = append(out, inst)
		}
	}
	return SortInstallments(out), nil
}

func (t *memTx) UpdateInstallmentPayment(_ context.Context, id uuid.UUID, paidAmount decimal.Decimal, status crm.InstallmentStatus, paidAt *time.Time) error {
	inst, ok := t.staged[id]
	if !ok {
		return crm.ErrNotFound
	}
	inst.PaidAmount = paidAmount
	inst.Status = status
	if paidAt != nil {
		inst.PaidAt = paidAt
	}
	t.staged[id] = inst
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, payment crm.Payment) (uuid.UUID, error) {
	payment.ID = uuid.New()
	t.payments = append(t.payments, payment)
	return payment.ID, nil
}

func (t *memTx) InsertAllocations(_ context.Context, paymentID uuid.UUID, lines []AllocationLine) error {
	if t.allocations == nil {
		t.allocations = map[uuid.UUID][]AllocationLine{}
	}
	t.allocations[paymentID] = lines
	return nil
}

func (t *memTx) RecalculateCreditUsed(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inst := range t.staged {
		if inst.ClientID == clientID && inst.Status != crm.StatusPaid {
			total = total.Add(inst.Amount.Sub(inst.PaidAmount))
		}
	}
	if t.creditUsed == nil {
		t.creditUsed = map[uuid.UUID]decimal.Decimal{}
	}
	t.creditUsed[clientID] = total
	return total, nil
}

type memAudit struct {
	entries []shared.AuditLog
}

func (m *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedClient(store *memStore) uuid.UUID {
	clientID := uuid.New()
	store.clients[clientID] = &crm.Client{
		ID:          clientID,
		Name:        "Carlos Díaz",
		Active:      true,
		CreditLimit: decimal.RequireFromString("1000.00"),
		CreditUsed:  decimal.RequireFromString("300.00"),
	}
	return clientID
}

func seedInstallment(store *memStore, clientID uuid.UUID, number int, due time.Time, amount, paid string, status crm.InstallmentStatus) uuid.UUID {
	id := uuid.New()
	store.installments[id] = crm.Installment{
		ID:                id,
		ClientID:          clientID,
		InstallmentNumber: number,
		Amount:            decimal.RequireFromString(amount),
		PaidAmount:        decimal.RequireFromString(paid),
		DueDate:           due,
		Status:            status,
	}
	return id
}

func TestCommitAppliesOldestFirstAndRecalculatesCredit(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	first := seedInstallment(store, clientID, 1, date(2024, 2, 1), "100.00", "0.00", crm.StatusOverdue)
	second := seedInstallment(store, clientID, 2, date(2024, 3, 1), "100.00", "0.00", crm.StatusPending)

	audit := &memAudit{}
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	service := NewService(store, audit, nil, testLogger()).WithClock(func() time.Time { return now })

	result, err := service.Commit(context.Background(), CommitInput{
		ClientID:    clientID,
		Amount:      decimal.RequireFromString("150.00"),
		PaymentDate: date(2024, 3, 5),
		UserID:      uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.InstallmentsUpdated)
	require.True(t, result.AmountApplied.Equal(decimal.RequireFromString("150.00")))
	require.True(t, result.Remaining.IsZero())

	settled := store.installments[first]
	require.Equal(t, crm.StatusPaid, settled.Status)
	require.NotNil(t, settled.PaidAt)

	partial := store.installments[second]
	require.Equal(t, crm.StatusPartial, partial.Status)
	require.True(t, partial.PaidAmount.Equal(decimal.RequireFromString("50.00")))
	require.Nil(t, partial.PaidAt)

	require.True(t, store.clients[clientID].CreditUsed.Equal(decimal.RequireFromString("50.00")))

	require.Len(t, store.payments, 1)
	require.Len(t, store.allocations[result.PaymentID], 2)

	require.Len(t, audit.entries, 1)
	require.Equal(t, "payments", audit.entries[0].Entity)
	require.Equal(t, "INSERT", audit.entries[0].Action)
}

func TestCommitPartialOnOverdueKeepsOverdue(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	overdueID := seedInstallment(store, clientID, 1, date(2024, 1, 10), "200.00", "0.00", crm.StatusOverdue)

	service := NewService(store, nil, nil, testLogger())

	_, err := service.Commit(context.Background(), CommitInput{
		ClientID:    clientID,
		Amount:      decimal.RequireFromString("80.00"),
		PaymentDate: date(2024, 3, 5),
		UserID:      uuid.New(),
	})
	require.NoError(t, err)

	inst := store.installments[overdueID]
	require.Equal(t, crm.StatusOverdue, inst.Status)
	require.True(t, inst.PaidAmount.Equal(decimal.RequireFromString("80.00")))
}

func TestCommitRetriesOnConflict(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	seedInstallment(store, clientID, 1, date(2024, 2, 1), "100.00", "0.00", crm.StatusPending)
	store.conflicts = 1

	service := NewService(store, nil, nil, testLogger())

	_, err := service.Commit(context.Background(), CommitInput{
		ClientID:    clientID,
		Amount:      decimal.RequireFromString("60.00"),
		PaymentDate: date(2024, 3, 5),
		UserID:      uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, store.txCalls)
}

func TestCommitGivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	seedInstallment(store, clientID, 1, date(2024, 2, 1), "100.00", "0.00", crm.StatusPending)
	store.conflicts = maxCommitAttempts

	service := NewService(store, nil, nil, testLogger())

	_, err := service.Commit(context.Background(), CommitInput{
		ClientID:    clientID,
		Amount:      decimal.RequireFromString("60.00"),
		PaymentDate: date(2024, 3, 5),
		UserID:      uuid.New(),
	})
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Empty(t, store.payments)
}

func TestCommitValidation(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	seedInstallment(store, clientID, 1, date(2024, 2, 1), "100.00", "0.00", crm.StatusPending)
	service := NewService(store, nil, nil, testLogger())

	valid := CommitInput{
		ClientID:    clientID,
		Amount:      decimal.RequireFromString("10.00"),
		PaymentDate: date(2024, 3, 5),
		UserID:      uuid.New(),
	}

	t.Run("non positive amount", func(t *testing.T) {
		input := valid
		input.Amount = decimal.Zero
		_, err := service.Commit(context.Background(), input)
		require.ErrorIs(t, err, httpx.ErrValidation)
	})
	t.Run("missing payment date", func(t *testing.T) {
		input := valid
		input.PaymentDate = time.Time{}
		_, err := service.Commit(context.Background(), input)
		require.ErrorIs(t, err, httpx.ErrValidation)
	})
	t.Run("missing user", func(t *testing.T) {
		input := valid
		input.UserID = uuid.Nil
		_, err := service.Commit(context.Background(), input)
		require.ErrorIs(t, err, httpx.ErrValidation)
	})
	t.Run("unknown client", func(t *testing.T) {
		input := valid
		input.ClientID = uuid.New()
		_, err := service.Commit(context.Background(), input)
		require.ErrorIs(t, err, httpx.ErrNotFound)
	})
}

func TestCommitWithoutUnpaidInstallments(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	service := NewService(store, nil, nil, testLogger())

	_, err := service.Commit(context.Background(), CommitInput{
		ClientID:    clientID,
		Amount:      decimal.RequireFromString("10.00"),
		PaymentDate: date(2024, 3, 5),
		UserID:      uuid.New(),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPreviewDoesNotMutate(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	instID := seedInstallment(store, clientID, 1, date(2024, 2, 1), "100.00", "0.00", crm.StatusPending)

	service := NewService(store, nil, nil, testLogger())

	plan, err := service.Preview(context.Background(), clientID, decimal.RequireFromString("40.00"))
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	require.True(t, plan.Remaining.IsZero())

	inst := store.installments[instID]
	require.True(t, inst.PaidAmount.IsZero())
	require.Equal(t, crm.StatusPending, inst.Status)
	require.Empty(t, store.payments)
}

func TestPreviewWithNoUnpaidInstallments(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	service := NewService(store, nil, nil, testLogger())

	amount := decimal.RequireFromString("25.00")
	plan, err := service.Preview(context.Background(), clientID, amount)
	require.NoError(t, err)
	require.Empty(t, plan.Lines)
	require.True(t, plan.Remaining.Equal(amount))
}

func TestRescheduleValidations(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	instID := seedInstallment(store, clientID, 1, date(2024, 4, 1), "100.00", "0.00", crm.StatusPending)

	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	service := NewService(store, nil, nil, testLogger()).WithClock(func() time.Time { return now })

	t.Run("short reason", func(t *testing.T) {
		err := service.Reschedule(context.Background(), RescheduleInput{
			InstallmentID: instID,
			NewDueDate:    date(2024, 4, 10),
			Reason:        "corto",
			UserID:        uuid.New(),
		})
		require.ErrorIs(t, err, httpx.ErrValidation)
	})

	t.Run("past due date", func(t *testing.T) {
		err := service.Reschedule(context.Background(), RescheduleInput{
			InstallmentID: instID,
			NewDueDate:    date(2024, 3, 19),
			Reason:        "cliente solicita más plazo",
			UserID:        uuid.New(),
		})
		require.ErrorIs(t, err, httpx.ErrValidation)
	})

	t.Run("unknown installment", func(t *testing.T) {
		err := service.Reschedule(context.Background(), RescheduleInput{
			InstallmentID: uuid.New(),
			NewDueDate:    date(2024, 4, 10),
			Reason:        "cliente solicita más plazo",
			UserID:        uuid.New(),
		})
		require.ErrorIs(t, err, httpx.ErrNotFound)
	})
}

func TestRescheduleMovesDueDateAndAudits(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	instID := seedInstallment(store, clientID, 1, date(2024, 4, 1), "100.00", "30.00", crm.StatusPartial)

	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	service := NewService(store, nil, nil, testLogger()).WithClock(func() time.Time { return now })

	err := service.Reschedule(context.Background(), RescheduleInput{
		InstallmentID: instID,
		NewDueDate:    date(2024, 4, 15),
		Reason:        "cliente solicita más plazo",
		UserID:        uuid.New(),
	})
	require.NoError(t, err)

	inst := store.installments[instID]
	require.Equal(t, date(2024, 4, 15), inst.DueDate)
	require.Equal(t, crm.StatusPartial, inst.Status)
	require.True(t, inst.PaidAmount.Equal(decimal.RequireFromString("30.00")))

	require.Len(t, store.audits, 1)
	require.Equal(t, "RESCHEDULE", store.audits[0].Action)
	require.Equal(t, "installments", store.audits[0].Entity)
	require.Equal(t, "cliente solicita más plazo", store.audits[0].Meta["reason"])
	require.Equal(t, "2024-04-01", store.audits[0].Meta["old_due_date"])
	require.Equal(t, "2024-04-15", store.audits[0].Meta["new_due_date"])
}

func TestRescheduleFailsWhenAuditCannotBeWritten(t *testing.T) {
	store := newMemStore()
	clientID := seedClient(store)
	instID := seedInstallment(store, clientID, 1, date(2024, 4, 1), "100.00", "0.00", crm.StatusPending)
	store.auditErr = errors.New("audit_logs insert failed")

	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	service := NewService(store, nil, nil, testLogger()).WithClock(func() time.Time { return now })

	err := service.Reschedule(context.Background(), RescheduleInput{
		InstallmentID: instID,
		NewDueDate:    date(2024, 4, 15),
		Reason:        "cliente solicita más plazo",
		UserID:        uuid.New(),
	})
	require.ErrorIs(t, err, httpx.ErrUpstream)

	inst := store.installments[instID]
	require.Equal(t, date(2024, 4, 1), inst.DueDate)
	require.Empty(t, store.audits)
}
