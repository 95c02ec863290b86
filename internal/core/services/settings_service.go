package services

import (
	"log/slog"
	"sync/atomic"

	"github.com/vncsmyrnk/awards/internal/core/ports"
)

// settingsService holds process-wide switches that operators flip at
// runtime.
type settingsService struct {
	votingPageOpen atomic.Bool
	logger         *slog.Logger
}

func NewSettingsService(votingPageOpen bool, logger *slog.Logger) ports.SettingsService {
	s := &settingsService{logger: resolveLogger(logger)}
	s.votingPageOpen.Store(votingPageOpen)
	return s
}

func (s *settingsService) VotingPageOpen() bool {
	return s.votingPageOpen.Load()
}

func (s *settingsService) SetVotingPageOpen(open bool) {
	if s.votingPageOpen.Swap(open) != open {
		s.logger.Info("voting page toggled", "event", "voting_page_toggled", "open", open)
	}
}
