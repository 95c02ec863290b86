package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

const defaultAttemptTimeout = 15 * time.Second

type categoryKey struct {
	voterID    int64
	categoryID int64
}

type voteService struct {
	provider       ports.ConnectionProvider
	voters         ports.VoterResolver
	ledger         ports.VoteLedger
	locks          *keyedMutex[categoryKey]
	attemptTimeout time.Duration
	logger         *slog.Logger
}

func NewVoteService(provider ports.ConnectionProvider, voters ports.VoterResolver, ledger ports.VoteLedger, attemptTimeout time.Duration, logger *slog.Logger) ports.VoteService {
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	return &voteService{
		provider:       provider,
		voters:         voters,
		ledger:         ledger,
		locks:          newKeyedMutex[categoryKey](),
		attemptTimeout: attemptTimeout,
		logger:         resolveLogger(logger),
	}
}

// CastVotes records choiceID in every requested category and reports the
// outcome of each one. Categories are attempted concurrently on one shared
// connection; attempts for the same voter and category never overlap.
//
// The only errors returned are validation, connection and token errors, or
// the request context's error when the caller went away before the join.
func (s *voteService) CastVotes(ctx context.Context, input ports.CastVotesInput) (domain.Summary, error) {
	categories, err := validateCast(input)
	if err != nil {
		return domain.Summary{}, err
	}

	logger := s.logger.With("cast_id", uuid.NewString())

	return withConnection(ctx, s.provider, func(ctx context.Context, conn ports.Conn) (domain.Summary, error) {
		voterID, err := s.voters.ResolveToken(ctx, conn, input.VoterToken)
		if err != nil {
			return domain.Summary{}, err
		}

		summary := s.castAll(ctx, conn, voterID, categories, input.ChoiceID)
		if err := ctx.Err(); err != nil {
			logger.Warn("vote request abandoned before completion",
				"event", "votes_cast_abandoned",
				"voter_id", voterID,
				"categories", len(categories),
			)
			return domain.Summary{}, err
		}

		logger.Info("votes cast",
			"event", "votes_cast",
			"voter_id", voterID,
			"choice_id", input.ChoiceID,
			"recorded", len(summary.Recorded),
			"already_voted", len(summary.AlreadyVoted),
			"limit_reached", len(summary.LimitReached),
			"failed", len(summary.Failed),
		)
		return summary, nil
	})
}

// castAll fans out one attempt per category and joins them. Attempts run
// detached from ctx so a disconnect never abandons a vote mid-write.
func (s *voteService) castAll(ctx context.Context, conn ports.Conn, voterID int64, categories []int64, choiceID int64) domain.Summary {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.attemptTimeout)
	defer cancel()

	type categoryOutcome struct {
		categoryID int64
		outcome    domain.Outcome
	}
	outcomes := make(chan categoryOutcome, len(categories))

	var wg sync.WaitGroup
	for _, categoryID := range categories {
		wg.Add(1)
		go func(categoryID int64) {
			defer wg.Done()
			vote := domain.Vote{VoterID: voterID, CategoryID: categoryID, ChoiceID: choiceID}
			outcomes <- categoryOutcome{categoryID: categoryID, outcome: s.attempt(attemptCtx, conn, vote)}
		}(categoryID)
	}
	wg.Wait()
	close(outcomes)

	summary := domain.NewSummary()
	for o := range outcomes {
		summary.Add(o.categoryID, o.outcome)
	}
	summary.Sort()
	return summary
}

func (s *voteService) attempt(ctx context.Context, conn ports.Conn, vote domain.Vote) (outcome domain.Outcome) {
	unlock := s.locks.Lock(categoryKey{voterID: vote.VoterID, categoryID: vote.CategoryID})
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("vote attempt panicked",
				"event", "vote_attempt_failed",
				"voter_id", vote.VoterID,
				"category_id", vote.CategoryID,
				"panic", r,
			)
			outcome = domain.Failed(domain.ErrInternal.Error(), fmt.Errorf("vote attempt panicked: %v", r))
		}
	}()

	return s.ledger.Attempt(ctx, conn, vote)
}

func (s *voteService) RetractVote(ctx context.Context, input ports.RetractVoteInput) error {
	if err := validateToken(input.VoterToken); err != nil {
		return err
	}
	if input.CategoryID <= 0 {
		return domain.NewValidationError("categoryId", "is required")
	}
	if input.ChoiceID <= 0 {
		return domain.NewValidationError("choiceId", "is required")
	}

	return s.provider.WithConnection(ctx, func(ctx context.Context, conn ports.Conn) error {
		voterID, err := s.voters.ResolveToken(ctx, conn, input.VoterToken)
		if err != nil {
			return err
		}

		unlock := s.locks.Lock(categoryKey{voterID: voterID, categoryID: input.CategoryID})
		defer unlock()

		vote := domain.Vote{VoterID: voterID, CategoryID: input.CategoryID, ChoiceID: input.ChoiceID}
		if err := s.ledger.Retract(ctx, conn, vote); err != nil {
			return err
		}
		s.logger.Info("vote retracted",
			"event", "vote_retracted",
			"voter_id", voterID,
			"category_id", input.CategoryID,
			"choice_id", input.ChoiceID,
		)
		return nil
	})
}

func (s *voteService) ListMyVotes(ctx context.Context, voterToken string) (map[int64][]int64, error) {
	if err := validateToken(voterToken); err != nil {
		return nil, err
	}

	return withConnection(ctx, s.provider, func(ctx context.Context, conn ports.Conn) (map[int64][]int64, error) {
		voterID, err := s.voters.ResolveToken(ctx, conn, voterToken)
		if err != nil {
			return nil, err
		}
		return s.ledger.ListByVoter(ctx, conn, voterID)
	})
}

// validateCast returns the requested categories without duplicates, in
// request order.
func validateCast(input ports.CastVotesInput) ([]int64, error) {
	if err := validateToken(input.VoterToken); err != nil {
		return nil, err
	}
	if len(input.CategoryIDs) == 0 {
		return nil, domain.NewValidationError("categoryIds", "must not be empty")
	}
	if input.ChoiceID <= 0 {
		return nil, domain.NewValidationError("choiceId", "is required")
	}

	seen := make(map[int64]struct{}, len(input.CategoryIDs))
	categories := make([]int64, 0, len(input.CategoryIDs))
	for _, id := range input.CategoryIDs {
		if id <= 0 {
			return nil, domain.NewValidationError("categoryIds", "must contain positive ids")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		categories = append(categories, id)
	}
	return categories, nil
}

func validateToken(token string) error {
	if token == "" {
		return domain.NewValidationError("voterToken", "is required")
	}
	return nil
}
