package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type resultsService struct {
	provider ports.ConnectionProvider
	repo     ports.StandingsRepository
}

func NewResultsService(provider ports.ConnectionProvider, repo ports.StandingsRepository) ports.ResultsService {
	return &resultsService{
		provider: provider,
		repo:     repo,
	}
}

// Standings computes the ranking of every category that received votes,
// ordered by category id.
func (s *resultsService) Standings(ctx context.Context) ([]domain.CategoryStandings, error) {
	return withConnection(ctx, s.provider, func(ctx context.Context, conn ports.Conn) ([]domain.CategoryStandings, error) {
		categories, err := s.repo.Categories(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch voted categories: %w", err)
		}

		standings := make([]domain.CategoryStandings, len(categories))
		var wg sync.WaitGroup
		errChan := make(chan error, len(categories))

		for i, categoryID := range categories {
			wg.Add(1)
			go func(i int, categoryID int64) {
				defer wg.Done()
				st, err := s.repo.Standings(ctx, conn, categoryID)
				if err != nil {
					errChan <- fmt.Errorf("failed to rank category %d: %w", categoryID, err)
					return
				}
				standings[i] = st
			}(i, categoryID)
		}

		wg.Wait()
		close(errChan)

		for err := range errChan {
			if err != nil {
				return nil, err
			}
		}

		return standings, nil
	})
}
