package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	// DateLayout is the storage and wire format of Event.Date.
	DateLayout = "2006-01-02"
	// TimeLayout is the storage and wire format of Event.Time.
	TimeLayout = "15:04"
)

// Event is a scheduled campus event.
//
// The predicted group is written once when the event is created. The actual group
// starts out null and is filled by the backfill once the scheduled time has passed;
// a non-null actual field is never overwritten.
type Event struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	OrganizerID uint                        `gorm:"index;not null" json:"organizer_id"`
	Title       string                      `gorm:"size:255;not null" json:"title"`
	Description string                      `json:"description"`
	Date        string                      `gorm:"size:10;not null;index" json:"date"`
	Time        string                      `gorm:"size:8" json:"time,omitempty"`
	Location    string                      `gorm:"size:255" json:"location"`
	Category    string                      `gorm:"size:100;not null" json:"category"`
	Department  string                      `gorm:"size:100" json:"department"`
	TargetYear  string                      `gorm:"size:50" json:"target_year"`
	MaxCapacity int                         `gorm:"not null" json:"max_capacity"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`

	SuccessRate       *float64 `json:"success_rate"`
	ExpectedAttendees *int     `json:"expected_attendees"`
	Engagement        *float64 `json:"engagement"`
	Sentiment         string   `gorm:"size:50" json:"sentiment"`

	ActualSuccessRate *float64 `json:"actual_success_rate"`
	ActualAttendees   *int     `json:"actual_attendees"`
	ActualEngagement  *float64 `json:"actual_engagement"`
	ActualSentiment   *string  `gorm:"size:50" json:"actual_sentiment"`

	CreatedAt time.Time `json:"created_at"`

	Schedule []EventScheduleItem `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"schedule,omitempty"`
}

// EventScheduleItem is one line of an event's agenda.
type EventScheduleItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   uint      `gorm:"index;not null" json:"-"`
	Time      string    `gorm:"size:50;not null" json:"time"`
	Activity  string    `gorm:"size:255;not null" json:"activity"`
	CreatedAt time.Time `json:"-"`
}

// ScheduledAt combines Date and Time in loc. An empty Time means midnight.
func (e *Event) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock := strings.TrimSpace(e.Time)
	if clock == "" {
		clock = "00:00"
	}
	layout := DateLayout + " " + TimeLayout
	if strings.Count(clock, ":") == 2 {
		layout = DateLayout + " 15:04:05"
	}
	at, err := time.ParseInLocation(layout, strings.TrimSpace(e.Date)+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %d schedule %q %q: %w", e.ID, e.Date, e.Time, err)
	}
	return at, nil
}

// ActualsComplete reports whether all four actual fields are set.
func (e *Event) ActualsComplete() bool {
	return e.ActualAttendees != nil && e.ActualEngagement != nil &&
		e.ActualSentiment != nil && e.ActualSuccessRate != nil
}

// Registration links a student to an event. (EventID, UserID) is unique.
type Registration struct {
	ID        uint      `gorm:"primaryKey"`
	EventID   uint      `gorm:"uniqueIndex:idx_registration_event_user;not null"`
	UserID    uint      `gorm:"uniqueIndex:idx_registration_event_user;not null;index"`
	CreatedAt time.Time
}

// Feedback is a rated comment left by a user on an event.
type Feedback struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	EventID   uint      `gorm:"index;not null" json:"event_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Sentiment string    `gorm:"size:50" json:"sentiment"`
	CreatedAt time.Time `json:"created_at"`

	Username string `gorm:"-" json:"username,omitempty"`
}
