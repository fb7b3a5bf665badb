package api

import (
	"context"
	"net/http"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/types"
)

// PredictDependencies defines the interface for success prediction.
type PredictDependencies interface {
	Predict(ctx context.Context, in scoring.Input) (scoring.Prediction, error)
}

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps PredictDependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps PredictDependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

// HandlePredict handles POST /api/predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	var req types.PredictRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	p, err := h.deps.Predict(r.Context(), req.Input())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}
