package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

// fakeProvider counts connections handed out and returned.
type fakeProvider struct {
	err      error
	acquired atomic.Int32
	released atomic.Int32
}

func (p *fakeProvider) WithConnection(ctx context.Context, fn func(ctx context.Context, conn ports.Conn) error) error {
	if p.err != nil {
		return p.err
	}
	p.acquired.Add(1)
	defer p.released.Add(1)
	return fn(ctx, nil)
}

type fakeVoters map[string]int64

func (v fakeVoters) ResolveToken(ctx context.Context, conn ports.Conn, token string) (int64, error) {
	id, ok := v[token]
	if !ok {
		return 0, domain.ErrInvalidToken
	}
	return id, nil
}

// memoryLedger keeps votes in memory. Its Attempt checks and inserts in
// separate critical sections, so overlapping attempts for the same voter
// and category can exceed the cap unless the caller serializes them.
type memoryLedger struct {
	mu    sync.Mutex
	votes map[domain.Vote]struct{}

	failOn  map[int64]error
	panicOn map[int64]bool
	delay   time.Duration
	started chan int64

	attempts    atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		votes:   make(map[domain.Vote]struct{}),
		failOn:  make(map[int64]error),
		panicOn: make(map[int64]bool),
	}
}

func (l *memoryLedger) seed(voterID, categoryID int64, choiceIDs ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, choiceID := range choiceIDs {
		l.votes[domain.Vote{VoterID: voterID, CategoryID: categoryID, ChoiceID: choiceID}] = struct{}{}
	}
}

func (l *memoryLedger) count(voterID, categoryID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked(voterID, categoryID)
}

func (l *memoryLedger) countLocked(voterID, categoryID int64) int {
	n := 0
	for v := range l.votes {
		if v.VoterID == voterID && v.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (l *memoryLedger) Attempt(ctx context.Context, conn ports.Conn, vote domain.Vote) domain.Outcome {
	l.attempts.Add(1)
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		peak := l.maxInFlight.Load()
		if n <= peak || l.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if l.started != nil {
		l.started <- vote.CategoryID
	}
	if err := l.failOn[vote.CategoryID]; err != nil {
		return domain.Failed("failed to save vote", err)
	}
	if l.panicOn[vote.CategoryID] {
		panic("ledger exploded")
	}

	key := domain.Vote{VoterID: vote.VoterID, CategoryID: vote.CategoryID, ChoiceID: vote.ChoiceID}

	l.mu.Lock()
	_, exists := l.votes[key]
	count := l.countLocked(vote.VoterID, vote.CategoryID)
	l.mu.Unlock()

	if exists {
		return domain.AlreadyVoted()
	}
	if count >= domain.MaxChoicesPerCategory {
		return domain.LimitReached()
	}

	time.Sleep(l.delay)

	l.mu.Lock()
	l.votes[key] = struct{}{}
	l.mu.Unlock()
	return domain.Recorded()
}

func (l *memoryLedger) Retract(ctx context.Context, conn ports.Conn, vote domain.Vote) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := domain.Vote{VoterID: vote.VoterID, CategoryID: vote.CategoryID, ChoiceID: vote.ChoiceID}
	if _, ok := l.votes[key]; !ok {
		return domain.ErrVoteNotFound
	}
	delete(l.votes, key)
	return nil
}

func (l *memoryLedger) ListByVoter(ctx context.Context, conn ports.Conn, voterID int64) (map[int64][]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[int64][]int64)
	for v := range l.votes {
		if v.VoterID == voterID {
			out[v.CategoryID] = append(out[v.CategoryID], v.ChoiceID)
		}
	}
	return out, nil
}

type fakePopularityRepo struct {
	mu     sync.Mutex
	counts map[int64]int64
	reads  atomic.Int32
}

func newFakePopularityRepo() *fakePopularityRepo {
	return &fakePopularityRepo{counts: make(map[int64]int64)}
}

func (r *fakePopularityRepo) Increment(ctx context.Context, conn ports.Conn, choiceID int64) (domain.PopularityTally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[choiceID]++
	return domain.PopularityTally{ChoiceID: choiceID, Count: r.counts[choiceID]}, nil
}

func (r *fakePopularityRepo) Get(ctx context.Context, conn ports.Conn, choiceID int64) (domain.PopularityTally, error) {
	r.reads.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	count, ok := r.counts[choiceID]
	if !ok {
		return domain.PopularityTally{}, domain.ErrTallyNotFound
	}
	return domain.PopularityTally{ChoiceID: choiceID, Count: count}, nil
}

type fakePopularityCache struct {
	mu      sync.Mutex
	entries map[int64]int64
	err     error
}

func newFakePopularityCache() *fakePopularityCache {
	return &fakePopularityCache{entries: make(map[int64]int64)}
}

func (c *fakePopularityCache) Get(ctx context.Context, choiceID int64) (int64, bool, error) {
	if c.err != nil {
		return 0, false, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	count, ok := c.entries[choiceID]
	return count, ok, nil
}

func (c *fakePopularityCache) Set(ctx context.Context, choiceID int64, count int64) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[choiceID] = count
	return nil
}

func (c *fakePopularityCache) Invalidate(ctx context.Context, choiceID int64) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, choiceID)
	return nil
}

type fakeStandingsRepo struct {
	standings map[int64][]domain.ChoiceScore
	failOn    int64
}

func (r *fakeStandingsRepo) Categories(ctx context.Context, conn ports.Conn) ([]int64, error) {
	var ids []int64
	for id := int64(1); id <= int64(len(r.standings)); id++ {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeStandingsRepo) Standings(ctx context.Context, conn ports.Conn, categoryID int64) (domain.CategoryStandings, error) {
	if categoryID == r.failOn {
		return domain.CategoryStandings{}, errors.New("relation does not exist")
	}
	return domain.CategoryStandings{CategoryID: categoryID, Choices: r.standings[categoryID]}, nil
}
