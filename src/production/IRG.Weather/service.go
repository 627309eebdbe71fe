package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
)

// Snapshot is a weather series together with where it came from
type Snapshot struct {
	Series *irgmodels.WeatherSeries `json:"series"`
	Cached bool                     `json:"cached"`
	Stale  bool                     `json:"stale"`
}

// Service serves the current series, preferring a fresh cached snapshot
type Service struct {
	fetcher Fetcher
	repo    interfaces.WeatherRepository
	query   Query
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// NewService creates the service. repo may be nil, in which case every call fetches.
func NewService(fetcher Fetcher, repo interfaces.WeatherRepository, query Query, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		fetcher: fetcher,
		repo:    repo,
		query:   query,
		ttl:     ttl,
		now:     time.Now,
		log:     log.WithComponent("weather"),
	}
}

// Current returns the series for the configured location. Unless refresh is set,
// a snapshot younger than the TTL is served from the cache. When the fetch fails
// the newest cached snapshot is returned marked stale.
func (s *Service) Current(ctx context.Context, refresh bool) (*Snapshot, error) {
	var cached *irgmodels.WeatherSeries
	if s.repo != nil {
		latest, err := s.repo.LatestSnapshot(ctx, s.query.Latitude, s.query.Longitude)
		switch {
		case err == nil:
			cached = latest
		case errors.Is(err, interfaces.ErrSnapshotNotFound):
		default:
			s.log.WithError(err).Warn("Failed to read cached weather snapshot")
		}
	}

	if cached != nil && !refresh && s.now().Sub(cached.FetchedAt) < s.ttl {
		return &Snapshot{Series: cached, Cached: true}, nil
	}

	series, err := s.fetcher.Fetch(ctx, s.query)
	if err != nil {
		if cached != nil {
			s.log.WithError(err).Warn("Weather fetch failed, serving stale snapshot")
			return &Snapshot{Series: cached, Cached: true, Stale: true}, nil
		}
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.SaveSnapshot(ctx, *series); err != nil {
			s.log.WithError(err).Warn("Failed to cache weather snapshot")
		}
	}
	return &Snapshot{Series: series}, nil
}
