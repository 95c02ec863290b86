package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type voteLedger struct {
	logger *slog.Logger
}

// NewVoteLedger returns the ledger that enforces one row per
// (voter, category, choice) and domain.MaxChoicesPerCategory rows per
// (voter, category).
//
// Attempt is a check-then-act sequence outside any transaction. Two
// concurrent attempts for the same voter and category can both pass the
// count check, so callers must serialize them. The unique constraint on
// votes backs the duplicate check.
func NewVoteLedger(logger *slog.Logger) ports.VoteLedger {
	return &voteLedger{logger: resolveLogger(logger)}
}

func (l *voteLedger) Attempt(ctx context.Context, conn ports.Conn, vote domain.Vote) domain.Outcome {
	exists, err := l.hasVoted(ctx, conn, vote)
	if err != nil {
		return l.failed("failed to check existing vote", err, vote)
	}
	if exists {
		return domain.AlreadyVoted()
	}

	count, err := l.countInCategory(ctx, conn, vote.VoterID, vote.CategoryID)
	if err != nil {
		return l.failed("failed to count votes in category", err, vote)
	}
	if count >= domain.MaxChoicesPerCategory {
		return domain.LimitReached()
	}

	if err := l.saveVote(ctx, conn, vote); err != nil {
		if isUniqueViolation(err) {
			return domain.AlreadyVoted()
		}
		return l.failed("failed to save vote", err, vote)
	}
	return domain.Recorded()
}

func (l *voteLedger) Retract(ctx context.Context, conn ports.Conn, vote domain.Vote) error {
	query := `
		DELETE FROM votes
		WHERE voter_id = $1 AND category_id = $2 AND choice_id = $3
	`
	res, err := conn.ExecContext(ctx, query, vote.VoterID, vote.CategoryID, vote.ChoiceID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deleted rows: %w", err)
	}
	if n == 0 {
		return domain.ErrVoteNotFound
	}
	return nil
}

func (l *voteLedger) ListByVoter(ctx context.Context, conn ports.Conn, voterID int64) (map[int64][]int64, error) {
	query := `
		SELECT category_id, choice_id
		FROM votes
		WHERE voter_id = $1
		ORDER BY category_id, choice_id
	`
	rows, err := conn.QueryContext(ctx, query, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	votes := make(map[int64][]int64)
	for rows.Next() {
		var categoryID, choiceID int64
		if err := rows.Scan(&categoryID, &choiceID); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes[categoryID] = append(votes[categoryID], choiceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

func (l *voteLedger) hasVoted(ctx context.Context, conn ports.Conn, vote domain.Vote) (bool, error) {
	query := `SELECT 1 FROM votes WHERE voter_id = $1 AND category_id = $2 AND choice_id = $3 LIMIT 1`
	var exists int
	err := conn.QueryRowContext(ctx, query, vote.VoterID, vote.CategoryID, vote.ChoiceID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existing vote: %w", err)
	}
	return true, nil
}

func (l *voteLedger) countInCategory(ctx context.Context, conn ports.Conn, voterID, categoryID int64) (int, error) {
	query := `SELECT COUNT(*) FROM votes WHERE voter_id = $1 AND category_id = $2`
	var count int
	if err := conn.QueryRowContext(ctx, query, voterID, categoryID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

func (l *voteLedger) saveVote(ctx context.Context, conn ports.Conn, vote domain.Vote) error {
	query := `
		INSERT INTO votes (voter_id, category_id, choice_id)
		VALUES ($1, $2, $3)
	`
	_, err := conn.ExecContext(ctx, query, vote.VoterID, vote.CategoryID, vote.ChoiceID)
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

func (l *voteLedger) failed(reason string, err error, vote domain.Vote) domain.Outcome {
	l.logger.Error(reason,
		"event", "vote_attempt_failed",
		"voter_id", vote.VoterID,
		"category_id", vote.CategoryID,
		"choice_id", vote.ChoiceID,
		"error", err,
	)
	return domain.Failed(reason, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
