// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/http/swagger"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PredictDependencies
	EventDependencies
	FeedbackDependencies
	SimilarityDependencies
	JobDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	health   *HealthHandler
	stats    *StatsHandler
	predict  *PredictHandler
	events   *EventsHandler
	feedback *FeedbackHandler
	students *StudentsHandler
	jobs     *JobsHandler

	auth        *Authenticator
	corsOrigins []string
	ratePerMin  int
	topN        int
	maxTopN     int
	log         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		topN:    defaultTopN,
		maxTopN: defaultMaxTopN,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("http")
	}
	s.health = NewHealthHandler()
	s.stats = NewStatsHandler(statsProvider)
	s.predict = NewPredictHandler(deps)
	s.events = NewEventsHandler(deps)
	s.feedback = NewFeedbackHandler(deps)
	s.students = NewStudentsHandler(deps, s.topN, s.maxTopN)
	s.jobs = NewJobsHandler(deps)
	return s
}

// Routes builds the chi router serving every endpoint.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(RequestID)
	r.Use(Recoverer(s.log))
	r.Use(Metrics)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if s.ratePerMin > 0 {
		r.Use(httprate.Limit(s.ratePerMin, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Code: "rate_limited", Detail: "too many requests"})
			}),
		))
	}
	if s.auth != nil {
		r.Use(s.auth.Middleware)
	} else {
		s.log.Warn(ctx, "no jwt secret configured; authenticated routes will reject every request")
	}

	r.Get("/healthz", s.health.HandleHealth)
	r.Get("/stats", s.stats.HandleStats)
	swagger.Register(ctx, r)

	organizer := RequireRole(model.RoleOrganizer)
	student := RequireRole(model.RoleStudent)

	r.Route("/api", func(r chi.Router) {
		r.With(organizer).Post("/predict", s.predict.HandlePredict)

		r.Get("/events", s.events.HandleList)
		r.With(organizer).Post("/events", s.events.HandleCreate)
		r.Get("/events/{id}", s.events.HandleGet)
		r.With(student).Post("/events/{id}/register", s.events.HandleRegister)
		r.With(student).Post("/events/{id}/unregister", s.events.HandleUnregister)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/events/{id}/feedback", s.feedback.HandleList)
			r.Post("/events/{id}/feedback", s.feedback.HandleSubmit)
			r.Get("/students/similar", s.students.HandleSimilar)
		})

		r.Route("/ml", func(r chi.Router) {
			r.Use(organizer)
			r.Post("/retrain/predict", s.jobs.Handle(model.JobRetrainEvents))
			r.Post("/retrain/clustering", s.jobs.Handle(model.JobRetrainClusters))
			r.Post("/export/student-features", s.jobs.Handle(model.JobExportFeatures))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Detail: "no route for " + r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Code: "method_not_allowed", Detail: r.Method + " not allowed on " + r.URL.Path})
	})
	return r
}

type errorResponse struct {
	Code   string       `json:"code"`
	Detail string       `json:"detail"`
	Fields []FieldError `json:"fields,omitempty"`
	Output []string     `json:"output,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes the error body. Server side
// failures are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := errorResponse{Code: code, Detail: err.Error()}

	var verr *ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	var jerr *JobError
	if errors.As(err, &jerr) {
		body.Output = jerr.Output
	}
	if status >= http.StatusInternalServerError {
		logger.Get().Named("http").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, body)
}
