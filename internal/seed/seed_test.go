package seed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/seed"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type memStore struct {
	users    []*model.User
	events   []*model.Event
	regs     map[[2]uint]bool
	feedback []*model.Feedback
	failOn   string
}

func newMemStore() *memStore {
	return &memStore{regs: make(map[[2]uint]bool)}
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	if m.failOn == u.Username {
		return errors.New("duplicate username")
	}
	u.ID = uint(len(m.users) + 1)
	m.users = append(m.users, u)
	return nil
}

func (m *memStore) CreateEvent(_ context.Context, ev *model.Event) error {
	ev.ID = uint(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) Register(_ context.Context, eventID, userID uint) (bool, error) {
	key := [2]uint{eventID, userID}
	if m.regs[key] {
		return false, nil
	}
	m.regs[key] = true
	return true, nil
}

func (m *memStore) AddFeedback(_ context.Context, f *model.Feedback) error {
	m.feedback = append(m.feedback, f)
	return nil
}

type constPredictor struct{}

func (constPredictor) Predict(_ context.Context, in scoring.Input) (scoring.Prediction, error) {
	return scoring.Derive(60, in.MaxCapacity), nil
}

func smallConfig() seed.Config {
	cfg := seed.DefaultConfig()
	cfg.Organizers, cfg.Students, cfg.Events = 2, 12, 6
	cfg.From = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cfg.SpanDays = 10
	cfg.Seed = 7
	return cfg
}

func TestSeeder(t *testing.T) {
	Convey("Given a seeder over an empty store", t, func() {
		store := newMemStore()
		s := seed.New(store, seed.WithLogger(logger.Nop()))
		cfg := smallConfig()

		Convey("When a campus is generated", func() {
			stats, err := s.Run(context.Background(), cfg)
			So(err, ShouldBeNil)

			Convey("Then the requested population exists", func() {
				So(stats.Organizers, ShouldEqual, 2)
				So(stats.Students, ShouldEqual, 12)
				So(stats.Events, ShouldEqual, 6)
				So(len(store.users), ShouldEqual, 14)
				So(stats.Registrations, ShouldEqual, len(store.regs))
				So(stats.Feedback, ShouldEqual, len(store.feedback))
				So(stats.Predicted, ShouldEqual, 0)
			})

			Convey("Then events fall inside the window and carry schedules", func() {
				last := cfg.From.AddDate(0, 0, cfg.SpanDays)
				for _, ev := range store.events {
					day, err := time.Parse(model.DateLayout, ev.Date)
					So(err, ShouldBeNil)
					So(day.Before(cfg.From), ShouldBeFalse)
					So(day.Before(last), ShouldBeTrue)
					So(ev.MaxCapacity, ShouldBeBetweenOrEqual, 30, 200)
					So(len(ev.Schedule), ShouldBeBetweenOrEqual, 2, 5)
					So(ev.Tags, ShouldHaveLength, 3)
					So(ev.SuccessRate, ShouldBeNil)
				}
			})

			Convey("Then every student registers for between one and five events", func() {
				perStudent := map[uint]int{}
				for key := range store.regs {
					perStudent[key[1]]++
				}
				So(perStudent, ShouldHaveLength, 12)
				for _, n := range perStudent {
					So(n, ShouldBeBetweenOrEqual, 1, 5)
				}
			})

			Convey("Then feedback sentiment agrees with the rating", func() {
				for _, fb := range store.feedback {
					switch {
					case fb.Rating >= 4:
						So(fb.Sentiment, ShouldEqual, "positive")
					case fb.Rating <= 2:
						So(fb.Sentiment, ShouldEqual, "negative")
					default:
						So(fb.Sentiment, ShouldEqual, "neutral")
					}
				}
			})

			Convey("Then the same seed reproduces the same campus", func() {
				again := newMemStore()
				_, err := seed.New(again, seed.WithLogger(logger.Nop())).Run(context.Background(), cfg)
				So(err, ShouldBeNil)
				So(len(again.events), ShouldEqual, len(store.events))
				for i := range again.events {
					So(again.events[i].Title, ShouldEqual, store.events[i].Title)
					So(again.events[i].Date, ShouldEqual, store.events[i].Date)
				}
				So(len(again.regs), ShouldEqual, len(store.regs))
			})
		})

		Convey("When a predictor is configured", func() {
			s := seed.New(store, seed.WithLogger(logger.Nop()), seed.WithPredictor(constPredictor{}))
			stats, err := s.Run(context.Background(), cfg)

			Convey("Then events carry predictions", func() {
				So(err, ShouldBeNil)
				So(stats.Predicted, ShouldEqual, 6)
				So(*store.events[0].SuccessRate, ShouldEqual, 60)
				So(store.events[0].Sentiment, ShouldEqual, "Neutral")
			})
		})

		Convey("When a prefix is set", func() {
			cfg.Prefix = "demo_"
			_, err := s.Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(store.users[0].Username, ShouldEqual, "demo_organizer1")
		})

		Convey("When the store rejects a user", func() {
			store.failOn = "student3"
			stats, err := s.Run(context.Background(), cfg)

			Convey("Then the run stops with the counts so far", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "student3")
				So(stats.Students, ShouldEqual, 2)
				So(stats.Events, ShouldEqual, 0)
			})
		})

		Convey("When the config has no organizers", func() {
			cfg.Organizers = 0
			_, err := s.Run(context.Background(), cfg)
			So(errors.Is(err, seed.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
