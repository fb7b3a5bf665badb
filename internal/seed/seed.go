// Package seed fills a store with a synthetic campus: organizers, students,
// events with schedules, registrations and rated feedback.
//
// Generation is deterministic for a given Config.Seed so test fixtures and
// demo databases can be reproduced.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/sentiment"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
)

// ErrInvalidConfig is returned for counts that cannot produce a campus.
var ErrInvalidConfig = errors.New("seed: invalid config")

// Store is the persistence the seeder writes to.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	CreateEvent(ctx context.Context, ev *model.Event) error
	Register(ctx context.Context, eventID, userID uint) (bool, error)
	AddFeedback(ctx context.Context, f *model.Feedback) error
}

// Config sizes the generated campus.
type Config struct {
	Organizers int
	Students   int
	Events     int
	// From is the first possible event day; events spread over SpanDays after it.
	From     time.Time
	SpanDays int
	// MaxRegistrations caps the events a single student signs up for.
	MaxRegistrations int
	// FeedbackRate is the share of registrations that leave feedback, 0..1.
	FeedbackRate float64
	Seed         uint64
	// Prefix is prepended to every username so repeated runs do not collide.
	Prefix string
}

// DefaultConfig mirrors the sizes of a small demo campus.
func DefaultConfig() Config {
	return Config{
		Organizers:       10,
		Students:         50,
		Events:           20,
		From:             time.Now().UTC().Truncate(24 * time.Hour),
		SpanDays:         30,
		MaxRegistrations: 5,
		FeedbackRate:     0.6,
		Seed:             42,
	}
}

func (c Config) validate() error {
	switch {
	case c.Organizers <= 0:
		return fmt.Errorf("%w: need at least one organizer", ErrInvalidConfig)
	case c.Students < 0 || c.Events < 0:
		return fmt.Errorf("%w: negative counts", ErrInvalidConfig)
	case c.SpanDays <= 0:
		return fmt.Errorf("%w: span_days must be positive", ErrInvalidConfig)
	case c.FeedbackRate < 0 || c.FeedbackRate > 1:
		return fmt.Errorf("%w: feedback rate %g outside [0, 1]", ErrInvalidConfig, c.FeedbackRate)
	}
	return nil
}

// Stats counts what a run wrote.
type Stats struct {
	Organizers    int
	Students      int
	Events        int
	ScheduleItems int
	Registrations int
	Feedback      int
	Predicted     int
	StartTime     time.Time
	Duration      time.Duration
}

// Seeder generates and stores a campus.
type Seeder struct {
	store     Store
	predictor scoring.Predictor
	log       logger.Logger
}

// New creates a Seeder writing to store.
func New(store Store, opts ...Option) *Seeder {
	s := &Seeder{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("seed")
	}
	return s
}

// Run generates the campus described by cfg. It stops at the first store error
// and returns the counts written so far.
func (s *Seeder) Run(ctx context.Context, cfg Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.validate(); err != nil {
		return stats, err
	}
	g := newGenerator(cfg)
	s.log.Info(ctx, "seeding campus",
		logger.Int("organizers", cfg.Organizers),
		logger.Int("students", cfg.Students),
		logger.Int("events", cfg.Events),
		logger.Any("seed", cfg.Seed))

	organizers, err := s.createUsers(ctx, g.organizers(), &stats.Organizers)
	if err != nil {
		return stats, err
	}
	students, err := s.createUsers(ctx, g.students(), &stats.Students)
	if err != nil {
		return stats, err
	}

	events := make([]*model.Event, 0, cfg.Events)
	for i := 0; i < cfg.Events; i++ {
		ev := g.event(i, organizers[g.rng.IntN(len(organizers))].ID)
		if s.predict(ctx, ev) {
			stats.Predicted++
		}
		if err := s.store.CreateEvent(ctx, ev); err != nil {
			return s.finish(stats), fmt.Errorf("create event %q: %w", ev.Title, err)
		}
		events = append(events, ev)
		stats.Events++
		stats.ScheduleItems += len(ev.Schedule)
	}

	for _, st := range students {
		for _, ev := range g.pickEvents(events) {
			if err := ctx.Err(); err != nil {
				return s.finish(stats), err
			}
			created, err := s.store.Register(ctx, ev.ID, st.ID)
			if err != nil {
				return s.finish(stats), fmt.Errorf("register %s for %d: %w", st.Username, ev.ID, err)
			}
			if created {
				stats.Registrations++
			}
			if g.rng.Float64() >= cfg.FeedbackRate {
				continue
			}
			fb := g.feedback(ev.ID, st.ID)
			if err := s.store.AddFeedback(ctx, fb); err != nil {
				return s.finish(stats), fmt.Errorf("feedback by %s on %d: %w", st.Username, ev.ID, err)
			}
			stats.Feedback++
		}
	}

	stats = s.finish(stats)
	s.log.Info(ctx, "campus seeded",
		logger.Int("events", stats.Events),
		logger.Int("registrations", stats.Registrations),
		logger.Int("feedback", stats.Feedback),
		logger.Duration("took", stats.Duration))
	return stats, nil
}

func (s *Seeder) createUsers(ctx context.Context, users []*model.User, count *int) ([]*model.User, error) {
	for _, u := range users {
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %q: %w", u.Username, err)
		}
		*count++
	}
	return users, nil
}

// predict fills the predicted fields when a predictor is configured and a
// model is available.
func (s *Seeder) predict(ctx context.Context, ev *model.Event) bool {
	if s.predictor == nil {
		return false
	}
	p, err := s.predictor.Predict(ctx, scoring.Input{
		Category:    ev.Category,
		Department:  ev.Department,
		TargetYear:  ev.TargetYear,
		MaxCapacity: ev.MaxCapacity,
		Tags:        ev.Tags,
	})
	if err != nil {
		s.log.Debug(ctx, "seeding event without prediction", logger.Error(err))
		return false
	}
	rate, engagement, attendees := float64(p.SuccessRate), float64(p.Engagement), p.ExpectedAttendees
	ev.SuccessRate, ev.Engagement, ev.ExpectedAttendees = &rate, &engagement, &attendees
	ev.Sentiment = p.Sentiment
	return true
}

func (s *Seeder) finish(stats Stats) Stats {
	stats.Duration = time.Since(stats.StartTime)
	return stats
}

// generator draws every random choice of one run from a single seeded source.
type generator struct {
	cfg Config
	rng *rand.Rand
}

func newGenerator(cfg Config) *generator {
	return &generator{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^seedStream))}
}

func (g *generator) organizers() []*model.User {
	out := make([]*model.User, g.cfg.Organizers)
	for i := range out {
		name := fmt.Sprintf("%sorganizer%d", g.cfg.Prefix, i+1)
		out[i] = &model.User{
			Username:   name,
			Email:      name + emailDomain,
			Role:       model.RoleOrganizer,
			Department: pick(g.rng, departments),
		}
	}
	return out
}

func (g *generator) students() []*model.User {
	out := make([]*model.User, g.cfg.Students)
	for i := range out {
		name := fmt.Sprintf("%sstudent%d", g.cfg.Prefix, i+1)
		out[i] = &model.User{
			Username:   name,
			Email:      name + emailDomain,
			Role:       model.RoleStudent,
			StudentID:  fmt.Sprintf("CS%03d", g.rng.IntN(1000)),
			Department: pick(g.rng, departments),
			Year:       pick(g.rng, years),
		}
	}
	return out
}

func (g *generator) event(i int, organizerID uint) *model.Event {
	day := g.cfg.From.AddDate(0, 0, g.rng.IntN(g.cfg.SpanDays))
	category := pick(g.rng, categories)
	title := fmt.Sprintf("%s %s %d", pick(g.rng, titleWords), category, i+1)
	ev := &model.Event{
		OrganizerID: organizerID,
		Title:       title,
		Description: fmt.Sprintf("A %s event about %s.", category, pick(g.rng, topics)),
		Date:        day.Format(model.DateLayout),
		Time:        g.clock(),
		Location:    pick(g.rng, locations),
		Category:    category,
		Department:  pick(g.rng, departments),
		TargetYear:  pick(g.rng, years),
		MaxCapacity: minCapacity + g.rng.IntN(maxCapacity-minCapacity+1),
	}
	for range tagsPerEvent {
		ev.Tags = append(ev.Tags, pick(g.rng, topics))
	}
	for n := minScheduleItems + g.rng.IntN(maxScheduleItems-minScheduleItems+1); n > 0; n-- {
		ev.Schedule = append(ev.Schedule, model.EventScheduleItem{Time: g.clock(), Activity: pick(g.rng, activities)})
	}
	return ev
}

func (g *generator) clock() string {
	return fmt.Sprintf("%02d:%02d", firstHour+g.rng.IntN(lastHour-firstHour+1), 15*g.rng.IntN(4))
}

// pickEvents samples between 1 and MaxRegistrations distinct events.
func (g *generator) pickEvents(events []*model.Event) []*model.Event {
	if len(events) == 0 || g.cfg.MaxRegistrations <= 0 {
		return nil
	}
	n := min(len(events), 1+g.rng.IntN(g.cfg.MaxRegistrations))
	out := make([]*model.Event, 0, n)
	for _, idx := range g.rng.Perm(len(events))[:n] {
		out = append(out, events[idx])
	}
	return out
}

// feedback writes a comment whose tagged sentiment agrees with its rating.
func (g *generator) feedback(eventID, userID uint) *model.Feedback {
	rating := 1 + g.rng.IntN(5)
	var comment string
	switch {
	case rating >= 4:
		comment = pick(g.rng, positiveComments)
	case rating <= 2:
		comment = pick(g.rng, negativeComments)
	default:
		comment = pick(g.rng, neutralComments)
	}
	return &model.Feedback{
		UserID:    userID,
		EventID:   eventID,
		Rating:    rating,
		Comment:   comment,
		Sentiment: string(sentiment.Tag(comment)),
	}
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}
