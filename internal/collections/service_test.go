package collections

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
)

type memoryRepo struct {
	clients map[uuid.UUID]string
	actions map[uuid.UUID]Action
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		clients: map[uuid.UUID]string{},
		actions: map[uuid.UUID]Action{},
	}
}

func (m *memoryRepo) ClientName(_ context.Context, clientID uuid.UUID) (string, error) {
	name, ok := m.clients[clientID]
	if !ok {
		return "", crm.ErrNotFound
	}
	return name, nil
}

func (m *memoryRepo) Insert(_ context.Context, action Action) (*Action, error) {
	action.ID = uuid.New()
	m.actions[action.ID] = action
	return &action, nil
}

func (m *memoryRepo) Complete(_ context.Context, actionID uuid.UUID, completedAt time.Time) (*Action, error) {
	action, ok := m.actions[actionID]
	if !ok {
		return nil, crm.ErrNotFound
	}
	action.Completed = true
	action.CompletedAt = &completedAt
	m.actions[actionID] = action
	return &action, nil
}

func (m *memoryRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]Action, error) {
	var actions []Action
	for _, action := range m.actions {
		if action.ClientID == clientID {
			actions = append(actions, action)
		}
	}
	return actions, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateActionStoresClientName(t *testing.T) {
	repo := newMemoryRepo()
	clientID := uuid.New()
	repo.clients[clientID] = "María Torres"

	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	service := NewService(repo).WithClock(fixedClock(now))

	action, err := service.Create(context.Background(), CreateInput{
		ClientID:     clientID,
		Type:         ActionCall,
		Description:  "Llamada para recordar pago vencido",
		FollowUpDate: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		UserID:       uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, "María Torres", action.ClientName)
	require.Equal(t, ActionCall, action.Type)
	require.False(t, action.Completed)
	require.Nil(t, action.CompletedAt)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), action.FollowUpDate)
	require.Equal(t, now, action.CreatedAt)
}

func TestCreateActionRejectsUnknownType(t *testing.T) {
	repo := newMemoryRepo()
	clientID := uuid.New()
	repo.clients[clientID] = "Cliente"

	service := NewService(repo)

	_, err := service.Create(context.Background(), CreateInput{
		ClientID:     clientID,
		Type:         ActionType("FAX"),
		Description:  "contacto",
		FollowUpDate: time.Now(),
		UserID:       uuid.New(),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateActionRequiresFields(t *testing.T) {
	repo := newMemoryRepo()
	clientID := uuid.New()
	repo.clients[clientID] = "Cliente"
	service := NewService(repo)

	cases := map[string]CreateInput{
		"missing client": {Type: ActionVisit, Description: "visita", FollowUpDate: time.Now(), UserID: uuid.New()},
		"missing description": {ClientID: clientID, Type: ActionVisit, FollowUpDate: time.Now(), UserID: uuid.New()},
		"blank description": {ClientID: clientID, Type: ActionVisit, Description: "   ", FollowUpDate: time.Now(), UserID: uuid.New()},
		"missing follow up": {ClientID: clientID, Type: ActionVisit, Description: "visita", UserID: uuid.New()},
		"missing user": {ClientID: clientID, Type: ActionVisit, Description: "visita", FollowUpDate: time.Now()},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.Create(context.Background(), input)
			require.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}

func TestCreateActionUnknownClient(t *testing.T) {
	service := NewService(newMemoryRepo())

	_, err := service.Create(context.Background(), CreateInput{
		ClientID:     uuid.New(),
		Type:         ActionWhatsApp,
		Description:  "mensaje",
		FollowUpDate: time.Now(),
		UserID:       uuid.New(),
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCompleteActionStampsTimestamp(t *testing.T) {
	repo := newMemoryRepo()
	clientID := uuid.New()
	repo.clients[clientID] = "Cliente"

	now := time.Date(2024, 4, 2, 11, 0, 0, 0, time.UTC)
	service := NewService(repo).WithClock(fixedClock(now))

	created, err := service.Create(context.Background(), CreateInput{
		ClientID:     clientID,
		Type:         ActionCourier,
		Description:  "envío de carta de cobranza",
		FollowUpDate: now.AddDate(0, 0, 3),
		UserID:       uuid.New(),
	})
	require.NoError(t, err)

	completed, err := service.Complete(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, completed.Completed)
	require.NotNil(t, completed.CompletedAt)
	require.Equal(t, now, *completed.CompletedAt)
}

func TestCompleteActionNotFound(t *testing.T) {
	service := NewService(newMemoryRepo())
	_, err := service.Complete(context.Background(), uuid.New())
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
