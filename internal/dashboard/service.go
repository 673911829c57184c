package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cobranza-crm/cobranza/internal/platform/httpx"
)

// RepositoryPort defines data access for the dashboard aggregation.
type RepositoryPort interface {
	InactivityThresholdDays(ctx context.Context) (int, error)
	Aggregate(ctx context.Context, today time.Time, inactivityDays int) (*Metrics, error)
}

// Service computes and caches the dashboard overview. Concurrent requests
// collapse into one aggregation via singleflight.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Metrics returns the overview, from cache when fresh. A cache read or write
// failure degrades to a direct aggregation; the overview must not depend on
// Redis being up.
func (s *Service) Metrics(ctx context.Context) (*Metrics, error) {
	var cached Metrics
	hit, err := s.cache.Get(ctx, &cached)
	if err != nil {
		s.logger.Warn("dashboard cache read", slog.Any("error", err))
	}
	if hit {
		return &cached, nil
	}

	resultChan := s.group.DoChan(metricsKey, func() (interface{}, error) {
		return s.compute(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %v", httpx.ErrUpstream, res.Err)
		}
		return res.Val.(*Metrics), nil
	}
}

func (s *Service) compute(ctx context.Context) (*Metrics, error) {
	threshold, err := s.repo.InactivityThresholdDays(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := s.repo.Aggregate(ctx, s.now(), threshold)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, metrics); err != nil {
		s.logger.Warn("dashboard cache write", slog.Any("error", err))
	}
	return metrics, nil
}
