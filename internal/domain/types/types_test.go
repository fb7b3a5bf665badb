package types_test

import (
	"testing"

	types "github.com/kasakmasrani/CampusSync-AI/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCreateEventRequest(t *testing.T) {
	Convey("Given an event request", t, func() {
		req := types.CreateEventRequest{
			Title:       "Go Workshop",
			Date:        "2025-05-10",
			Time:        "14:30",
			Location:    "Lab 2",
			Category:    "technology",
			Department:  "Computer",
			TargetYear:  "3",
			MaxCapacity: 80,
			Tags:        []string{"go", "backend"},
			Schedule: []types.ScheduleItem{
				{Time: "14:30", Activity: "Intro"},
				{Time: "15:00", Activity: "Hands-on"},
			},
		}

		Convey("When building the event", func() {
			ev := req.Event(7)

			Convey("Then ownership and fields are copied", func() {
				So(ev.OrganizerID, ShouldEqual, 7)
				So(ev.Title, ShouldEqual, "Go Workshop")
				So(ev.MaxCapacity, ShouldEqual, 80)
				So([]string(ev.Tags), ShouldResemble, []string{"go", "backend"})
				So(ev.Schedule, ShouldHaveLength, 2)
				So(ev.Schedule[1].Activity, ShouldEqual, "Hands-on")
			})

			Convey("And the prediction fields are left for the predictor", func() {
				So(ev.SuccessRate, ShouldBeNil)
				So(ev.ActualAttendees, ShouldBeNil)
			})

			Convey("And the tag slice is not shared with the request", func() {
				ev.Tags[0] = "rust"
				So(req.Tags[0], ShouldEqual, "go")
			})
		})

		Convey("When building the prediction input", func() {
			in := req.PredictionInput()

			Convey("Then it carries the model attributes", func() {
				So(in.Category, ShouldEqual, "technology")
				So(in.MaxCapacity, ShouldEqual, 80)
				So(in.Tags, ShouldHaveLength, 2)
			})
		})
	})
}

func TestPredictRequest(t *testing.T) {
	Convey("Given a predict request without tags", t, func() {
		req := types.PredictRequest{Category: "Sports", Department: "Civil", TargetYear: "1", MaxCapacity: 50}

		Convey("Then the input has no tags", func() {
			in := req.Input()
			So(in.Tags, ShouldBeEmpty)
			So(in.TargetYear, ShouldEqual, "1")
		})
	})
}
