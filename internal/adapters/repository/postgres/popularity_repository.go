package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type popularityRepository struct{}

func NewPopularityRepository() ports.PopularityRepository {
	return &popularityRepository{}
}

// Increment relies on the row lock taken by the upsert, so concurrent
// increments on one choice never lose an update.
func (r *popularityRepository) Increment(ctx context.Context, conn ports.Conn, choiceID int64) (domain.PopularityTally, error) {
	query := `
		INSERT INTO popularity_tallies (choice_id, count, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (choice_id) DO UPDATE
		SET count = popularity_tallies.count + 1,
		    updated_at = NOW()
		RETURNING choice_id, count, updated_at
	`
	var tally domain.PopularityTally
	err := conn.QueryRowContext(ctx, query, choiceID).Scan(&tally.ChoiceID, &tally.Count, &tally.UpdatedAt)
	if err != nil {
		return domain.PopularityTally{}, fmt.Errorf("failed to increment popularity for choice %d: %w", choiceID, err)
	}
	return tally, nil
}

func (r *popularityRepository) Get(ctx context.Context, conn ports.Conn, choiceID int64) (domain.PopularityTally, error) {
	query := `
		SELECT choice_id, count, updated_at
		FROM popularity_tallies
		WHERE choice_id = $1
	`
	var tally domain.PopularityTally
	err := conn.QueryRowContext(ctx, query, choiceID).Scan(&tally.ChoiceID, &tally.Count, &tally.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PopularityTally{}, domain.ErrTallyNotFound
		}
		return domain.PopularityTally{}, fmt.Errorf("failed to get popularity for choice %d: %w", choiceID, err)
	}
	return tally, nil
}
