package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type PopularityHandler struct {
	service ports.PopularityService
	logger  *slog.Logger
}

func NewPopularityHandler(service ports.PopularityService, logger *slog.Logger) *PopularityHandler {
	return &PopularityHandler{
		service: service,
		logger:  resolveLogger(logger),
	}
}

func (h *PopularityHandler) Increment(w http.ResponseWriter, r *http.Request) {
	choiceID, ok := choiceIDParam(w, r)
	if !ok {
		return
	}

	tally, err := h.service.Increment(r.Context(), choiceID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	jsonResponse(w, http.StatusOK, tally)
}

func (h *PopularityHandler) Get(w http.ResponseWriter, r *http.Request) {
	choiceID, ok := choiceIDParam(w, r)
	if !ok {
		return
	}

	tally, err := h.service.Get(r.Context(), choiceID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	jsonResponse(w, http.StatusOK, tally)
}

func choiceIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "choiceID"), 10, 64)
	if err != nil || id <= 0 {
		errorJSON(w, http.StatusBadRequest, "invalid choice id")
		return 0, false
	}
	return id, true
}
