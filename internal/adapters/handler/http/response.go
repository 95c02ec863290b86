package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/awards/internal/core/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func errorJSON(w http.ResponseWriter, statusCode int, message string) {
	jsonResponse(w, statusCode, errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

func parseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError maps a service error to its status. Nothing is written
// once the request has been cancelled or has timed out.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if r.Context().Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		logger.Info("request ended before the response", "path", r.URL.Path, "error", r.Context().Err())
		return
	}

	var validationErr *domain.ValidationError
	var connectErr *domain.ConnectError
	switch {
	case errors.As(err, &validationErr):
		errorJSON(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		errorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrVoteNotFound), errors.Is(err, domain.ErrTallyNotFound):
		errorJSON(w, http.StatusNotFound, err.Error())
	case errors.As(err, &connectErr):
		logger.Error("storage unreachable", "path", r.URL.Path, "stage", connectErr.Stage, "cause", connectErr.Cause, "error", err)
		errorJSON(w, http.StatusInternalServerError, "storage unavailable")
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		errorJSON(w, http.StatusInternalServerError, domain.ErrInternal.Error())
	}
}
