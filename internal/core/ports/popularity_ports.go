package ports

import (
	"context"

	"github.com/vncsmyrnk/awards/internal/core/domain"
)

type PopularityRepository interface {
	Increment(ctx context.Context, conn Conn, choiceID int64) (domain.PopularityTally, error)
	Get(ctx context.Context, conn Conn, choiceID int64) (domain.PopularityTally, error)
}

// PopularityCache is an optional read path in front of the repository. A
// miss is reported as found == false with a nil error.
type PopularityCache interface {
	Get(ctx context.Context, choiceID int64) (count int64, found bool, err error)
	Set(ctx context.Context, choiceID int64, count int64) error
	Invalidate(ctx context.Context, choiceID int64) error
}

type PopularityService interface {
	Increment(ctx context.Context, choiceID int64) (domain.PopularityTally, error)
	Get(ctx context.Context, choiceID int64) (domain.PopularityTally, error)
}
