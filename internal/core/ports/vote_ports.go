package ports

import (
	"context"

	"github.com/vncsmyrnk/awards/internal/core/domain"
)

// VoteLedger enforces the duplicate and per-category limit rules against a given connection.
type VoteLedger interface {
	Attempt(ctx context.Context, conn Conn, vote domain.Vote) domain.Outcome
	Retract(ctx context.Context, conn Conn, vote domain.Vote) error
	ListByVoter(ctx context.Context, conn Conn, voterID int64) (map[int64][]int64, error)
}

type VoterResolver interface {
	ResolveToken(ctx context.Context, conn Conn, token string) (int64, error)
}

type CastVotesInput struct {
	VoterToken  string
	CategoryIDs []int64
	ChoiceID    int64
}

type RetractVoteInput struct {
	VoterToken string
	CategoryID int64
	ChoiceID   int64
}

type VoteService interface {
	CastVotes(ctx context.Context, input CastVotesInput) (domain.Summary, error)
	RetractVote(ctx context.Context, input RetractVoteInput) error
	ListMyVotes(ctx context.Context, voterToken string) (map[int64][]int64, error)
}
