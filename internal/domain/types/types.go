// Package types contains the request and response shapes shared by the HTTP
// layer and the application service.
package types

import (
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
)

// PredictRequest is the body of POST /api/predict.
type PredictRequest struct {
	Category    string   `json:"category" validate:"required"`
	Department  string   `json:"department" validate:"required"`
	TargetYear  string   `json:"target_year" validate:"required"`
	MaxCapacity int      `json:"max_capacity" validate:"gte=1"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
}

// Input converts the request into the feature builder input.
func (r PredictRequest) Input() scoring.Input {
	return scoring.Input{
		Category:    r.Category,
		Department:  r.Department,
		TargetYear:  r.TargetYear,
		MaxCapacity: r.MaxCapacity,
		Tags:        r.Tags,
	}
}

// ScheduleItem is one agenda line of CreateEventRequest.
type ScheduleItem struct {
	Time     string `json:"time" validate:"required"`
	Activity string `json:"activity" validate:"required"`
}

// CreateEventRequest is the body of POST /api/events.
type CreateEventRequest struct {
	Title       string         `json:"title" validate:"required,max=255"`
	Description string         `json:"description"`
	Date        string         `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string         `json:"time" validate:"omitempty,datetime=15:04"`
	Location    string         `json:"location" validate:"max=255"`
	Category    string         `json:"category" validate:"required"`
	Department  string         `json:"department" validate:"required"`
	TargetYear  string         `json:"target_year" validate:"required"`
	MaxCapacity int            `json:"max_capacity" validate:"gte=1"`
	Tags        []string       `json:"tags" validate:"omitempty,dive,required"`
	Schedule    []ScheduleItem `json:"schedule" validate:"omitempty,dive"`
}

// Event builds the unsaved event owned by organizerID.
func (r CreateEventRequest) Event(organizerID uint) *model.Event {
	ev := &model.Event{
		OrganizerID: organizerID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		Time:        r.Time,
		Location:    r.Location,
		Category:    r.Category,
		Department:  r.Department,
		TargetYear:  r.TargetYear,
		MaxCapacity: r.MaxCapacity,
		Tags:        append([]string{}, r.Tags...),
	}
	for _, item := range r.Schedule {
		ev.Schedule = append(ev.Schedule, model.EventScheduleItem{Time: item.Time, Activity: item.Activity})
	}
	return ev
}

// PredictionInput is the feature builder input of an event request.
func (r CreateEventRequest) PredictionInput() scoring.Input {
	return scoring.Input{
		Category:    r.Category,
		Department:  r.Department,
		TargetYear:  r.TargetYear,
		MaxCapacity: r.MaxCapacity,
		Tags:        r.Tags,
	}
}

// EventDetail is an event with its registration summary.
type EventDetail struct {
	model.Event
	RegisteredUsersCount int  `json:"registered_users_count"`
	IsRegistered         bool `json:"is_registered"`
}

// FeedbackRequest is the body of POST /api/events/{id}/feedback.
type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// RegistrationResponse acknowledges a register or unregister call.
type RegistrationResponse struct {
	Detail     string `json:"detail"`
	Registered bool   `json:"registered"`
	Created    bool   `json:"created,omitempty"`
}

// JobResponse reports the outcome of a batch job triggered over HTTP.
type JobResponse struct {
	JobID      string   `json:"job_id"`
	Kind       string   `json:"kind"`
	Detail     string   `json:"detail"`
	Output     []string `json:"output"`
	DurationMs int64    `json:"duration_ms"`
}
