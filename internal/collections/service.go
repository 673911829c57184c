package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// RepositoryPort defines data access for collection actions.
type RepositoryPort interface {
	ClientName(ctx context.Context, clientID uuid.UUID) (string, error)
	Insert(ctx context.Context, action Action) (*Action, error)
	Complete(ctx context.Context, actionID uuid.UUID, completedAt time.Time) (*Action, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]Action, error)
}

// Service manages the collection action log.
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

// Create records a new collection action. The client name is denormalized
// into the row at insert time so listings never need a join.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Action, error) {
	if input.ClientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", httpx.ErrValidation)
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("%w: invalid action type: %s", httpx.ErrValidation, input.Type)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", httpx.ErrValidation)
	}
	if input.FollowUpDate.IsZero() {
		return nil, fmt.Errorf("%w: follow_up_date is required", httpx.ErrValidation)
	}
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user_id is required", httpx.ErrValidation)
	}

	clientName, err := s.repo.ClientName(ctx, input.ClientID)
	if err != nil {
		return nil, mapRepoErr(err, "client")
	}

	action, err := s.repo.Insert(ctx, Action{
		ClientID:     input.ClientID,
		ClientName:   clientName,
		Type:         input.Type,
		Description:  strings.TrimSpace(input.Description),
		FollowUpDate: shared.Day(input.FollowUpDate),
		Completed:    false,
		UserID:       input.UserID,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	return action, nil
}

// Complete marks an action done and stamps completedAt.
func (s *Service) Complete(ctx context.Context, actionID uuid.UUID) (*Action, error) {
	if actionID == uuid.Nil {
		return nil, fmt.Errorf("%w: action id is required", httpx.ErrValidation)
	}
	action, err := s.repo.Complete(ctx, actionID, s.now().UTC())
	if err != nil {
		return nil, mapRepoErr(err, "collection action")
	}
	return action, nil
}

// ListByClient returns the client's actions ordered by follow-up date,
// earliest first.
func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Action, error) {
	actions, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	return actions, nil
}

func mapRepoErr(err error, entity string) error {
	if errors.Is(err, crm.ErrNotFound) {
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, entity)
	}
	return fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
}
