package postgres

import (
	"context"
	"fmt"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type standingsRepository struct{}

func NewStandingsRepository() ports.StandingsRepository {
	return &standingsRepository{}
}

func (r *standingsRepository) Categories(ctx context.Context, conn ports.Conn) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `SELECT DISTINCT category_id FROM votes ORDER BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list voted categories: %w", err)
	}
	defer rows.Close()

	var categories []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func (r *standingsRepository) Standings(ctx context.Context, conn ports.Conn, categoryID int64) (domain.CategoryStandings, error) {
	query := `
		SELECT choice_id, COUNT(*)
		FROM votes
		WHERE category_id = $1
		GROUP BY choice_id
		ORDER BY COUNT(*) DESC, choice_id
	`
	rows, err := conn.QueryContext(ctx, query, categoryID)
	if err != nil {
		return domain.CategoryStandings{}, fmt.Errorf("failed to fetch standings for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	standings := domain.CategoryStandings{CategoryID: categoryID}
	for rows.Next() {
		var score domain.ChoiceScore
		if err := rows.Scan(&score.ChoiceID, &score.Votes); err != nil {
			return domain.CategoryStandings{}, fmt.Errorf("failed to scan standings: %w", err)
		}
		standings.Choices = append(standings.Choices, score)
	}
	if err := rows.Err(); err != nil {
		return domain.CategoryStandings{}, fmt.Errorf("error iterating standings: %w", err)
	}
	return standings, nil
}
