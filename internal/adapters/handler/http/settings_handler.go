package http

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

const operatorRealm = "awards"

type SettingsHandler struct {
	service   ports.SettingsService
	operators map[string]string
}

// NewSettingsHandler serves runtime settings. Reads are public; writes need
// HTTP basic credentials from operators. With no operators every write is
// refused.
func NewSettingsHandler(service ports.SettingsService, operators map[string]string) *SettingsHandler {
	return &SettingsHandler{
		service:   service,
		operators: operators,
	}
}

type votingPageSetting struct {
	Open *bool `json:"open"`
}

func (h *SettingsHandler) GetVotingPage(w http.ResponseWriter, r *http.Request) {
	open := h.service.VotingPageOpen()
	jsonResponse(w, http.StatusOK, votingPageSetting{Open: &open})
}

func (h *SettingsHandler) SetVotingPage(w http.ResponseWriter, r *http.Request) {
	var req votingPageSetting
	if err := parseJSONBody(r, &req); err != nil || req.Open == nil {
		errorJSON(w, http.StatusBadRequest, "open: is required")
		return
	}

	h.service.SetVotingPageOpen(*req.Open)
	open := h.service.VotingPageOpen()
	jsonResponse(w, http.StatusOK, votingPageSetting{Open: &open})
}

// RequireOperator guards setting writes.
func (h *SettingsHandler) RequireOperator(next http.Handler) http.Handler {
	if len(h.operators) == 0 {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			errorJSON(w, http.StatusForbidden, "settings are read-only")
		})
	}
	return middleware.BasicAuth(operatorRealm, h.operators)(next)
}
