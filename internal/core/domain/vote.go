package domain

import "sort"

// MaxChoicesPerCategory caps how many distinct choices a voter may hold in
// one award category.
const MaxChoicesPerCategory = 3

type Vote struct {
	VoterID    int64
	CategoryID int64
	ChoiceID   int64
}

type OutcomeKind string

const (
	OutcomeRecorded     OutcomeKind = "recorded"
	OutcomeAlreadyVoted OutcomeKind = "already_voted"
	OutcomeLimitReached OutcomeKind = "limit_reached"
	OutcomeFailed       OutcomeKind = "failed"
)

// Outcome is the classified result of one vote attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func Recorded() Outcome     { return Outcome{Kind: OutcomeRecorded} }
func AlreadyVoted() Outcome { return Outcome{Kind: OutcomeAlreadyVoted} }
func LimitReached() Outcome { return Outcome{Kind: OutcomeLimitReached} }

func Failed(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason, Err: err}
}

type FailedAttempt struct {
	CategoryID int64  `json:"id"`
	Reason     string `json:"reason"`
}

// Summary groups the categories of one cast request by outcome. The four
// lists are disjoint.
type Summary struct {
	Recorded     []int64         `json:"successful"`
	AlreadyVoted []int64         `json:"alreadyVoted"`
	LimitReached []int64         `json:"limitReached"`
	Failed       []FailedAttempt `json:"errors"`
}

func NewSummary() Summary {
	return Summary{
		Recorded:     []int64{},
		AlreadyVoted: []int64{},
		LimitReached: []int64{},
		Failed:       []FailedAttempt{},
	}
}

// Add classifies the outcome of categoryID into its bucket.
func (s *Summary) Add(categoryID int64, outcome Outcome) {
	switch outcome.Kind {
	case OutcomeRecorded:
		s.Recorded = append(s.Recorded, categoryID)
	case OutcomeAlreadyVoted:
		s.AlreadyVoted = append(s.AlreadyVoted, categoryID)
	case OutcomeLimitReached:
		s.LimitReached = append(s.LimitReached, categoryID)
	default:
		reason := outcome.Reason
		if reason == "" {
			reason = ErrInternal.Error()
		}
		s.Failed = append(s.Failed, FailedAttempt{CategoryID: categoryID, Reason: reason})
	}
}

// Len is the number of classified categories.
func (s Summary) Len() int {
	return len(s.Recorded) + len(s.AlreadyVoted) + len(s.LimitReached) + len(s.Failed)
}

// Sort orders every bucket by category id.
func (s *Summary) Sort() {
	for _, ids := range [][]int64{s.Recorded, s.AlreadyVoted, s.LimitReached} {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	sort.Slice(s.Failed, func(i, j int) bool { return s.Failed[i].CategoryID < s.Failed[j].CategoryID })
}
