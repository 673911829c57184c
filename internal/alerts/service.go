package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
	"github.com/cobranza-crm/cobranza/internal/shared"
)

// RepositoryPort defines data access for alert generation. Snapshot must be
// served from one consistent read so the upcoming and overdue sets do not
// tear between queries.
type RepositoryPort interface {
	Snapshot(ctx context.Context, today time.Time) (*Snapshot, error)
	InactivityThresholdDays(ctx context.Context) (int, error)
}

// Service generates the alert feed.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Generate runs the four rules over one snapshot and returns the merged,
// priority-sorted alert list. Generation is read-only and idempotent: the
// same snapshot and the same today yield an identical slice. Any failed
// read aborts the whole call; a partial feed would silently hide an entire
// risk class.
func (s *Service) Generate(ctx context.Context, today time.Time) ([]Alert, error) {
	today = shared.Day(today)

	threshold, err := s.repo.InactivityThresholdDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read inactivity threshold: %v", httpx.ErrUpstream, err)
	}

	snap, err := s.repo.Snapshot(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("%w: read alert snapshot: %v", httpx.ErrUpstream, err)
	}

	return Aggregate(
		OverdueAlerts(snap.Overdue, today),
		BirthdayAlerts(snap.BirthdayClients, today),
		InactivityAlerts(snap.ActiveClients, today, threshold),
		InstallmentDueAlerts(snap.Upcoming, today),
	), nil
}
