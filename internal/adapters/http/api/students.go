package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/similarity"
)

// SimilarityDependencies defines the interface for peer lookups.
type SimilarityDependencies interface {
	SimilarStudents(ctx context.Context, userID uint, topN int) ([]similarity.Peer, error)
}

// StudentsHandler handles student similarity requests.
type StudentsHandler struct {
	deps    SimilarityDependencies
	topN    int
	maxTopN int
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(deps SimilarityDependencies, topN, maxTopN int) *StudentsHandler {
	return &StudentsHandler{deps: deps, topN: topN, maxTopN: maxTopN}
}

// HandleSimilar handles GET /api/students/similar?top=N for the caller.
func (h *StudentsHandler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	const op = "api.similar_students"
	top := h.topN
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > h.maxTopN {
			writeError(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("top must be between 1 and %d", h.maxTopN)))
			return
		}
		top = n
	}
	p, _ := PrincipalFrom(r.Context())
	peers, err := h.deps.SimilarStudents(r.Context(), p.UserID, top)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if peers == nil {
		peers = []similarity.Peer{}
	}
	writeJSON(w, http.StatusOK, peers)
}
