package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vncsmyrnk/awards/internal/core/ports"
)

type VoteHandler struct {
	service ports.VoteService
	logger  *slog.Logger
}

func NewVoteHandler(service ports.VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{
		service: service,
		logger:  resolveLogger(logger),
	}
}

type castVotesRequest struct {
	CategoryIDs []int64 `json:"categoryIds"`
	ChoiceID    int64   `json:"choiceId"`
}

type retractVoteRequest struct {
	CategoryID int64 `json:"categoryId"`
	ChoiceID   int64 `json:"choiceId"`
}

type myVotesResponse struct {
	Votes map[string][]int64 `json:"votes"`
}

// CastVotes godoc
// @Summary      Casts one choice in several award categories
// @Description  Every category is attempted independently. The response groups categories by outcome.
// @Tags         votes
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400
// @Failure      401
// @Failure      404
// @Failure      500
// @Router       /votes [post]
func (h *VoteHandler) CastVotes(w http.ResponseWriter, r *http.Request) {
	token, ok := voterToken(r)
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "missing voter token")
		return
	}

	var req castVotesRequest
	if err := parseJSONBody(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.service.CastVotes(r.Context(), ports.CastVotesInput{
		VoterToken:  token,
		CategoryIDs: req.CategoryIDs,
		ChoiceID:    req.ChoiceID,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	jsonResponse(w, http.StatusOK, summary)
}

// RetractVote godoc
// @Summary      Removes one vote
// @Tags         votes
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400
// @Failure      404
// @Router       /votes [delete]
func (h *VoteHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	token, ok := voterToken(r)
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "missing voter token")
		return
	}

	var req retractVoteRequest
	if err := parseJSONBody(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.RetractVote(r.Context(), ports.RetractVoteInput{
		VoterToken: token,
		CategoryID: req.CategoryID,
		ChoiceID:   req.ChoiceID,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *VoteHandler) MyVotes(w http.ResponseWriter, r *http.Request) {
	token, ok := voterToken(r)
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "missing voter token")
		return
	}

	votes, err := h.service.ListMyVotes(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := myVotesResponse{Votes: make(map[string][]int64, len(votes))}
	for categoryID, choices := range votes {
		resp.Votes[strconv.FormatInt(categoryID, 10)] = choices
	}
	jsonResponse(w, http.StatusOK, resp)
}
