package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewHandler(voteHandler *VoteHandler, popularityHandler *PopularityHandler, settingsHandler *SettingsHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("welcome"))
		})

		r.Route("/votes", func(r chi.Router) {
			r.Use(RequireVoterToken)
			r.Post("/", voteHandler.CastVotes)
			r.Delete("/", voteHandler.RetractVote)
			r.Get("/me", voteHandler.MyVotes)
		})

		r.Route("/popularity/{choiceID}", func(r chi.Router) {
			r.Post("/", popularityHandler.Increment)
			r.Get("/", popularityHandler.Get)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/voting-page", settingsHandler.GetVotingPage)
			r.With(settingsHandler.RequireOperator).Put("/voting-page", settingsHandler.SetVotingPage)
		})
	})

	return r
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
