package api

import (
	"context"
	"net/http"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/types"
)

// FeedbackDependencies defines the interface for feedback operations.
type FeedbackDependencies interface {
	ListFeedback(ctx context.Context, eventID uint) ([]model.Feedback, error)
	SubmitFeedback(ctx context.Context, eventID, userID uint, req types.FeedbackRequest) (*model.Feedback, error)
}

// FeedbackHandler handles feedback requests.
type FeedbackHandler struct {
	deps FeedbackDependencies
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(deps FeedbackDependencies) *FeedbackHandler {
	return &FeedbackHandler{deps: deps}
}

// HandleList handles GET /api/events/{id}/feedback requests, newest first.
func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_feedback"
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	items, err := h.deps.ListFeedback(r.Context(), id)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if items == nil {
		items = []model.Feedback{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleSubmit handles POST /api/events/{id}/feedback requests. The stored
// feedback is returned with its sentiment label.
func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_feedback"
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req types.FeedbackRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	p, _ := PrincipalFrom(r.Context())
	fb, err := h.deps.SubmitFeedback(r.Context(), id, p.UserID, req)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}
