// Package backfill fills an event's actual results once it has taken place.
//
// An event is PENDING while any actual field is null and FINALIZED once all four
// are set. Every save of a past PENDING event computes the missing fields from
// registrations and feedback; fields that are already set are left alone, so a
// FINALIZED event never changes again.
package backfill

import (
	"context"
	"math"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/sentiment"
)

// Field names reported by Apply.
const (
	FieldAttendees   = "actual_attendees"
	FieldEngagement  = "actual_engagement"
	FieldSentiment   = "actual_sentiment"
	FieldSuccessRate = "actual_success_rate"
)

// Stats are the observed facts of one event. Ratings and Sentiments hold one entry
// per feedback in creation order; a rating of 0 means the feedback had none.
type Stats struct {
	Registrations int
	Ratings       []int
	Sentiments    []string
}

// Source loads Stats for an event.
type Source interface {
	EventStats(ctx context.Context, eventID uint) (Stats, error)
}

// Backfiller decides when an event is due and fills it.
type Backfiller struct {
	now func() time.Time
	loc *time.Location
}

// New creates a Backfiller that reads the wall clock and interprets schedules in UTC
// unless options say otherwise.
func New(opts ...Option) *Backfiller {
	b := &Backfiller{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Due reports whether ev has already taken place and still misses an actual field.
func (b *Backfiller) Due(ev *model.Event) (bool, error) {
	if ev.ActualsComplete() {
		return false, nil
	}
	at, err := ev.ScheduledAt(b.loc)
	if err != nil {
		return false, err
	}
	return at.Before(b.now()), nil
}

// Run fills ev when it is due and returns the names of the fields it wrote.
func (b *Backfiller) Run(ctx context.Context, ev *model.Event, src Source) ([]string, error) {
	due, err := b.Due(ev)
	if err != nil || !due {
		return nil, err
	}
	st, err := src.EventStats(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	return Apply(ev, st), nil
}

// Apply writes every null actual field of ev from st and returns the written names.
func Apply(ev *model.Event, st Stats) []string {
	var written []string
	if ev.ActualAttendees == nil {
		n := st.Registrations
		ev.ActualAttendees = &n
		written = append(written, FieldAttendees)
	}
	if ev.ActualEngagement == nil {
		v := Engagement(st.Ratings)
		ev.ActualEngagement = &v
		written = append(written, FieldEngagement)
	}
	if ev.ActualSentiment == nil {
		s := sentiment.Mode(st.Sentiments)
		ev.ActualSentiment = &s
		written = append(written, FieldSentiment)
	}
	if ev.ActualSuccessRate == nil {
		v := SuccessRate(st.Registrations, ev.MaxCapacity)
		ev.ActualSuccessRate = &v
		written = append(written, FieldSuccessRate)
	}
	return written
}

// Engagement is the sum of given ratings over the number of feedback entries, or 0.
func Engagement(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		if r > 0 {
			sum += r
		}
	}
	return float64(sum) / float64(len(ratings))
}

// SuccessRate is attendees as a percentage of capacity rounded to 2 decimals, or 0
// without capacity.
func SuccessRate(attendees, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return math.Round(float64(attendees)/float64(capacity)*100*100) / 100
}
