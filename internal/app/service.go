// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/mq/queue"
	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/mq/worker"
	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/repository"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/dedupe"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/sentiment"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/similarity"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/types"
	"github.com/kasakmasrani/CampusSync-AI/internal/jobs"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
)

// ErrNotStarted is returned by job calls before Start or after Stop.
var ErrNotStarted = errors.New("service not started")

// Store is the persistence the service needs.
type Store interface {
	jobs.Store
	CreateEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, id uint) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	RegistrationCount(ctx context.Context, eventID uint) (int, error)
	IsRegistered(ctx context.Context, eventID, userID uint) (bool, error)
	Register(ctx context.Context, eventID, userID uint) (bool, error)
	Unregister(ctx context.Context, eventID, userID uint) error
	AddFeedback(ctx context.Context, f *model.Feedback) error
	ListFeedback(ctx context.Context, eventID uint) ([]model.Feedback, error)
	Counts(ctx context.Context) (repository.Counts, error)
}

// Service implements the API dependencies for CampusSync.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     Store
	paths     jobs.Paths
	predictor scoring.Predictor
	finder    similarity.Finder
	runner    worker.Runner
	deduper   dedupe.Deduper
	jobQueue  queue.Queue
	pool      *worker.Pool

	// Configuration
	workerCount      int
	queueSize        int
	jobTimeout       time.Duration
	clusterFreshness time.Duration
	jobOpts          []jobs.Option

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service over store. Model artifacts and datasets live at paths.
func New(store Store, paths jobs.Paths, opts ...Option) *Service {
	s := &Service{
		store:       store,
		paths:       paths,
		workerCount: 1,
		queueSize:   16,
		jobTimeout:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.predictor == nil {
		s.predictor = scoring.NewArtifactPredictor(paths.EventModel)
	}
	if s.finder == nil {
		s.finder = similarity.NewEngine(paths.ClusterModel, paths.StudentFeatures,
			similarity.WithFreshness(s.clusterFreshness))
	}
	if s.runner == nil {
		s.runner = jobs.New(store, paths, append([]jobs.Option{jobs.WithLogger(s.logger.Named("jobs"))}, s.jobOpts...)...)
	}
	return s
}

// Start creates the job queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting campussync service...")

	s.deduper = dedupe.NewInMemoryDeduper()
	s.jobQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobQueue, releasingRunner{s: s},
		worker.WithJobTimeout(s.jobTimeout),
		worker.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "campussync service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("jobTimeout", s.jobTimeout),
	)
	return nil
}

// Stop closes the queue and waits for running jobs. Callers of jobs that were
// still queued get ErrNotStarted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping campussync service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "campussync service stopped")
	return err
}

// releasingRunner frees the job kind once its run ends, whether or not the
// caller is still waiting for the result.
type releasingRunner struct {
	s *Service
}

func (r releasingRunner) Run(ctx context.Context, kind model.JobKind) ([]string, error) {
	defer r.s.deduper.Unrecord(ctx, string(kind))
	return r.s.runner.Run(ctx, kind)
}

// RunJob queues kind and waits for the result. At most one job per kind is
// queued or running; a second request gets ErrJobInFlight. A full queue gives
// ErrBackpressure.
func (s *Service) RunJob(ctx context.Context, kind model.JobKind) (model.JobResult, error) {
	if _, err := jobs.Steps(kind); err != nil {
		return model.JobResult{}, err
	}
	s.mu.RLock()
	started, deduper, q := s.started, s.deduper, s.jobQueue
	s.mu.RUnlock()
	if !started {
		return model.JobResult{}, ErrNotStarted
	}

	key := string(kind)
	if deduper.SeenAndRecord(ctx, key) {
		metrics.RecordJobEnqueueError("in_flight")
		return model.JobResult{}, fmt.Errorf("%w: %s", jobs.ErrJobInFlight, kind)
	}
	job := model.Job{
		ID:       uuid.NewString(),
		Kind:     kind,
		Enqueued: time.Now(),
		Reply:    make(chan model.JobResult, 1),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		deduper.Unrecord(ctx, key)
		if errors.Is(err, queue.ErrFull) {
			return model.JobResult{}, fmt.Errorf("%w: %w", jobs.ErrBackpressure, err)
		}
		return model.JobResult{}, err
	}
	s.logger.Info(ctx, "job queued", logger.String("job_id", job.ID), logger.String("kind", key))

	select {
	case res := <-job.Reply:
		if errors.Is(res.Err, worker.ErrStopped) {
			deduper.Unrecord(ctx, key)
			return res, fmt.Errorf("%w: %w", ErrNotStarted, res.Err)
		}
		return res, nil
	case <-ctx.Done():
		return model.JobResult{JobID: job.ID, Kind: kind}, ctx.Err()
	}
}

// Predict runs the success predictor.
func (s *Service) Predict(ctx context.Context, in scoring.Input) (scoring.Prediction, error) {
	start := time.Now()
	p, err := s.predictor.Predict(ctx, in)
	if err != nil {
		reason := "internal"
		switch {
		case errors.Is(err, scoring.ErrInvalidInput):
			reason = "invalid_input"
		case errors.Is(err, scoring.ErrModelUnavailable):
			reason = "model_unavailable"
		}
		metrics.RecordPredictionError(reason)
		return p, err
	}
	metrics.RecordPrediction(p.Sentiment, metrics.SinceMs(start))
	return p, nil
}

// ListEvents returns every event, newest date first.
func (s *Service) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.store.ListEvents(ctx)
}

// CreateEvent stores a new event owned by organizerID with its predicted
// fields filled. When no model is available the event is still created and
// the prediction left empty.
func (s *Service) CreateEvent(ctx context.Context, organizerID uint, req types.CreateEventRequest) (*model.Event, error) {
	ev := req.Event(organizerID)
	p, err := s.Predict(ctx, req.PredictionInput())
	switch {
	case err == nil:
		rate := float64(p.SuccessRate)
		engagement := float64(p.Engagement)
		attendees := p.ExpectedAttendees
		ev.SuccessRate, ev.Engagement, ev.ExpectedAttendees = &rate, &engagement, &attendees
		ev.Sentiment = p.Sentiment
	case errors.Is(err, scoring.ErrModelUnavailable):
		s.logger.Warn(ctx, "creating event without prediction", logger.Error(err))
	default:
		return nil, err
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "event created",
		logger.Uint("event_id", ev.ID),
		logger.Uint("organizer_id", organizerID),
		logger.Bool("predicted", ev.SuccessRate != nil))
	return ev, nil
}

// EventDetail loads an event with its registration count and whether viewerID
// is registered.
func (s *Service) EventDetail(ctx context.Context, id, viewerID uint) (types.EventDetail, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return types.EventDetail{}, err
	}
	n, err := s.store.RegistrationCount(ctx, id)
	if err != nil {
		return types.EventDetail{}, err
	}
	detail := types.EventDetail{Event: *ev, RegisteredUsersCount: n}
	if viewerID != 0 {
		if detail.IsRegistered, err = s.store.IsRegistered(ctx, id, viewerID); err != nil {
			return types.EventDetail{}, err
		}
	}
	return detail, nil
}

// Register signs userID up for eventID and re-saves the event so a past event
// picks up its actuals.
func (s *Service) Register(ctx context.Context, eventID, userID uint) (bool, error) {
	created, err := s.store.Register(ctx, eventID, userID)
	if err != nil {
		return false, err
	}
	return created, s.touch(ctx, eventID)
}

// Unregister removes userID from eventID.
func (s *Service) Unregister(ctx context.Context, eventID, userID uint) error {
	if err := s.store.Unregister(ctx, eventID, userID); err != nil {
		return err
	}
	return s.touch(ctx, eventID)
}

// ListFeedback returns an event's feedback, newest first.
func (s *Service) ListFeedback(ctx context.Context, eventID uint) ([]model.Feedback, error) {
	return s.store.ListFeedback(ctx, eventID)
}

// SubmitFeedback tags the comment and stores the feedback.
func (s *Service) SubmitFeedback(ctx context.Context, eventID, userID uint, req types.FeedbackRequest) (*model.Feedback, error) {
	label := sentiment.Tag(req.Comment)
	fb := &model.Feedback{
		UserID:    userID,
		EventID:   eventID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Sentiment: string(label),
	}
	if err := s.store.AddFeedback(ctx, fb); err != nil {
		return nil, err
	}
	metrics.RecordSentiment(string(label))
	if err := s.touch(ctx, eventID); err != nil {
		return nil, err
	}
	return fb, nil
}

// touch re-saves an event so the backfill runs once it is due.
func (s *Service) touch(ctx context.Context, eventID uint) error {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.ActualsComplete() {
		return nil
	}
	_, err = s.store.SaveEvent(ctx, ev)
	return err
}

// SimilarStudents ranks the students closest to userID.
func (s *Service) SimilarStudents(ctx context.Context, userID uint, topN int) ([]similarity.Peer, error) {
	start := time.Now()
	peers, err := s.finder.Similar(ctx, userID, topN)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case len(peers) == 0:
		outcome = "empty"
	}
	metrics.RecordSimilarityQuery(outcome, metrics.SinceMs(start))
	return peers, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["queueLength"] = s.jobQueue.Len()
		stats["jobsRunning"] = s.pool.InFlight()
		stats["jobsInFlight"] = s.deduper.InFlight()
	}
	if c, err := s.store.Counts(ctx); err != nil {
		s.logger.Warn(ctx, "stats counts failed", logger.Error(err))
	} else {
		stats["users"] = c.Users
		stats["students"] = c.Students
		stats["events"] = c.Events
		stats["finalizedEvents"] = c.Finalized
		stats["registrations"] = c.Registrations
		stats["feedback"] = c.Feedback
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	stats["goroutines"] = runtime.NumGoroutine()
	return stats
}
