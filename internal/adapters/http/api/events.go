package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/types"
)

// EventDependencies defines the interface for event and registration operations.
type EventDependencies interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, organizerID uint, req types.CreateEventRequest) (*model.Event, error)
	// EventDetail loads an event; viewerID 0 means an anonymous caller.
	EventDetail(ctx context.Context, id, viewerID uint) (types.EventDetail, error)
	// Register returns false when the student was already registered.
	Register(ctx context.Context, eventID, userID uint) (bool, error)
	Unregister(ctx context.Context, eventID, userID uint) error
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleList handles GET /api/events requests, newest date first.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.list_events", err))
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleCreate handles POST /api/events requests.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_event"
	p, _ := PrincipalFrom(r.Context())
	var req types.CreateEventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	ev, err := h.deps.CreateEvent(r.Context(), p.UserID, req)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// HandleGet handles GET /api/events/{id} requests.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_event"
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var viewer uint
	if p, ok := PrincipalFrom(r.Context()); ok {
		viewer = p.UserID
	}
	detail, err := h.deps.EventDetail(r.Context(), id, viewer)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleRegister handles POST /api/events/{id}/register requests. Registering
// twice succeeds without a second registration.
func (h *EventsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register"
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, _ := PrincipalFrom(r.Context())
	created, err := h.deps.Register(r.Context(), id, p.UserID)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	resp := types.RegistrationResponse{Detail: "Successfully registered for the event.", Registered: true, Created: created}
	status := http.StatusCreated
	if !created {
		resp.Detail = "Already registered for this event."
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// HandleUnregister handles POST /api/events/{id}/unregister requests.
func (h *EventsHandler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	const op = "api.unregister"
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, _ := PrincipalFrom(r.Context())
	if err := h.deps.Unregister(r.Context(), id, p.UserID); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.RegistrationResponse{Detail: "Successfully unregistered from the event."})
}

func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid event id %q", raw)
	}
	return uint(id), nil
}
