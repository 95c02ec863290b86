package services

import (
	"context"
	"log/slog"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type popularityService struct {
	provider ports.ConnectionProvider
	repo     ports.PopularityRepository
	cache    ports.PopularityCache
	logger   *slog.Logger
}

// NewPopularityService builds the public tally service. cache may be nil.
func NewPopularityService(provider ports.ConnectionProvider, repo ports.PopularityRepository, cache ports.PopularityCache, logger *slog.Logger) ports.PopularityService {
	return &popularityService{
		provider: provider,
		repo:     repo,
		cache:    cache,
		logger:   resolveLogger(logger),
	}
}

func (s *popularityService) Increment(ctx context.Context, choiceID int64) (domain.PopularityTally, error) {
	if choiceID <= 0 {
		return domain.PopularityTally{}, domain.NewValidationError("choiceId", "must be a positive id")
	}

	tally, err := withConnection(ctx, s.provider, func(ctx context.Context, conn ports.Conn) (domain.PopularityTally, error) {
		return s.repo.Increment(ctx, conn, choiceID)
	})
	if err != nil {
		return domain.PopularityTally{}, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, choiceID); err != nil {
			s.logger.Warn("popularity cache invalidate failed", "event", "popularity_cache_error", "choice_id", choiceID, "error", err)
		}
	}
	return tally, nil
}

func (s *popularityService) Get(ctx context.Context, choiceID int64) (domain.PopularityTally, error) {
	if choiceID <= 0 {
		return domain.PopularityTally{}, domain.NewValidationError("choiceId", "must be a positive id")
	}

	if s.cache != nil {
		count, found, err := s.cache.Get(ctx, choiceID)
		switch {
		case err != nil:
			s.logger.Warn("popularity cache read failed", "event", "popularity_cache_error", "choice_id", choiceID, "error", err)
		case found:
			return domain.PopularityTally{ChoiceID: choiceID, Count: count}, nil
		}
	}

	tally, err := withConnection(ctx, s.provider, func(ctx context.Context, conn ports.Conn) (domain.PopularityTally, error) {
		return s.repo.Get(ctx, conn, choiceID)
	})
	if err != nil {
		return domain.PopularityTally{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, choiceID, tally.Count); err != nil {
			s.logger.Warn("popularity cache write failed", "event", "popularity_cache_error", "choice_id", choiceID, "error", err)
		}
	}
	return tally, nil
}
