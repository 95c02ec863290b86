package ports

import (
	"context"

	"github.com/vncsmyrnk/awards/internal/core/domain"
)

type StandingsRepository interface {
	Categories(ctx context.Context, conn Conn) ([]int64, error)
	Standings(ctx context.Context, conn Conn, categoryID int64) (domain.CategoryStandings, error)
}

type ResultsService interface {
	Standings(ctx context.Context) ([]domain.CategoryStandings, error)
}

type SettingsService interface {
	VotingPageOpen() bool
	SetVotingPageOpen(open bool)
}
