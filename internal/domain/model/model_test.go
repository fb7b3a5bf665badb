package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEventScheduledAt(t *testing.T) {
	Convey("Given an event with a date", t, func() {
		ev := &model.Event{ID: 7, Date: "2025-03-14"}

		Convey("When it has no time", func() {
			at, err := ev.ScheduledAt(time.UTC)

			Convey("Then it is scheduled at midnight", func() {
				So(err, ShouldBeNil)
				So(at, ShouldEqual, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
			})
		})

		Convey("When it has a time in a zone", func() {
			loc := time.FixedZone("IST", 5*3600+1800)
			ev.Time = "18:30"
			at, err := ev.ScheduledAt(loc)

			Convey("Then the time is interpreted in that zone", func() {
				So(err, ShouldBeNil)
				So(at.UTC(), ShouldEqual, time.Date(2025, 3, 14, 13, 0, 0, 0, time.UTC))
			})
		})

		Convey("When the time carries seconds", func() {
			ev.Time = "09:15:30"
			at, err := ev.ScheduledAt(nil)
			So(err, ShouldBeNil)
			So(at.Second(), ShouldEqual, 30)
		})

		Convey("When the date is malformed", func() {
			ev.Date = "14/03/2025"
			_, err := ev.ScheduledAt(time.UTC)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEventActualsComplete(t *testing.T) {
	Convey("Given an event with partial actual results", t, func() {
		attendees, engagement, rate := 3, 4.5, 60.0
		sentiment := "positive"
		ev := &model.Event{ActualAttendees: &attendees, ActualEngagement: &engagement}

		So(ev.ActualsComplete(), ShouldBeFalse)

		Convey("When the remaining fields are set", func() {
			ev.ActualSentiment = &sentiment
			ev.ActualSuccessRate = &rate
			So(ev.ActualsComplete(), ShouldBeTrue)
		})
	})
}

func TestRoleAndJobResult(t *testing.T) {
	Convey("Roles and job results", t, func() {
		So(model.RoleStudent.Valid(), ShouldBeTrue)
		So(model.Role("admin").Valid(), ShouldBeFalse)
		So(model.JobResult{}.OK(), ShouldBeTrue)
		So(model.JobResult{Err: errors.New("boom")}.OK(), ShouldBeFalse)
	})
}
