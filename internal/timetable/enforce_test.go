package timetable_test

import (
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Enforce", func() {
	var (
		plan   *timetable.Plan
		report *model.GenerationReport
	)

	BeforeEach(func() {
		req := baseRequest()
		req.Events = []model.FixedEvent{{
			Title:     "Dentist",
			StartTime: utc("2025-03-03T12:00:00Z"),
			EndTime:   utc("2025-03-03T13:00:00Z"),
		}}
		req.TestDates = []model.TestDate{{SubjectID: "bio", Date: "2025-03-07"}}
		req.Homeworks = []model.Homework{
			{ID: "h1", Title: "Lab report", SubjectName: "Biology", DueDate: utc("2025-03-04T17:00:00Z"), DurationMinutes: 30},
		}

		var err error
		plan, err = timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		report = &model.GenerationReport{}
	})

	study := func(t string, d int, subject, topic string) model.Session {
		return model.Session{Time: t, Duration: d, Subject: subject, Topic: topic, Type: model.SessionStudy}
	}

	It("keeps valid sessions and drops everything that breaks a constraint", func() {
		out := timetable.Enforce(plan, model.Schedule{
			"2025-03-03": {
				study("13:15", 45, "Biology", "Photosynthesis"),
				study("09:00", 45, "Mathematics", "Quadratic Equations"),
				{Time: "09:45", Duration: 10, Type: model.SessionBreak},
				study("09:30", 30, "Mathematics", "Trigonometry"),
				study("09:55", 45, "Biology", "Cell Structure"),
				study("11:30", 30, "Mathematics", "Trigonometry"),
				study("13:00", 30, "Biology", "Photosynthesis"),
				{Time: "20:00", Duration: 10, Type: model.SessionBreak},
			},
			"2025-03-04": {
				study("25:00", 45, "Biology", "Cell Structure"),
				study("10:00", 300, "Biology", "Cell Structure"),
				study("10:00", 0, "Biology", "Cell Structure"),
			},
			"2025-04-01": {
				study("10:00", 45, "Biology", "Cell Structure"),
			},
		}, report)

		Expect(out).To(HaveLen(1))
		day := out["2025-03-03"]
		Expect(day).To(HaveLen(3))
		Expect(day[0].Time).To(Equal("09:00"))
		Expect(day[1].Type).To(Equal(model.SessionBreak))
		Expect(day[2].Topic).To(Equal("Cell Structure"))

		// 11:30 ends inside the buffer, 13:00 starts inside it, three bad
		// sessions on 03-04 and one outside the range.
		Expect(report.DroppedOutsideWindow).To(Equal(6))
		// 09:30 overlaps, 13:15 exceeds the daily cap.
		Expect(report.DroppedConflict).To(Equal(2))
		Expect(report.SessionsAccepted).To(Equal(2))
	})

	It("annotates sessions with the upcoming test date", func() {
		out := timetable.Enforce(plan, model.Schedule{
			"2025-03-05": {study("10:00", 45, "Biology", "Cell Structure")},
			"2025-03-08": {study("10:00", 45, "Biology", "Cell Structure")},
		}, report)

		Expect(out["2025-03-05"][0].TestDate).To(Equal("2025-03-07"))
		Expect(out["2025-03-08"][0].TestDate).To(BeEmpty())
	})

	It("drops homework scheduled after its due date", func() {
		hw := model.Session{Time: "10:00", Duration: 30, Topic: "Lab report", Type: model.SessionHomework, HomeworkID: "h1"}
		out := timetable.Enforce(plan, model.Schedule{
			"2025-03-04": {hw},
			"2025-03-05": {hw},
		}, report)

		Expect(out).To(HaveKey("2025-03-04"))
		Expect(out).NotTo(HaveKey("2025-03-05"))
		Expect(report.DroppedOutsideWindow).To(Equal(1))
	})

	It("drops homework that ends after its due time on the due date", func() {
		hw := func(t string) model.Session {
			return model.Session{Time: t, Duration: 30, Topic: "Lab report", Type: model.SessionHomework, HomeworkID: "h1"}
		}
		out := timetable.Enforce(plan, model.Schedule{
			"2025-03-04": {hw("16:30"), hw("17:00"), hw("20:00")},
		}, report)

		Expect(out["2025-03-04"]).To(HaveLen(1))
		Expect(out["2025-03-04"][0].Time).To(Equal("16:30"))
		Expect(report.DroppedOutsideWindow).To(Equal(2))
	})

	It("drops days with no free time", func() {
		req := baseRequest()
		req.Preferences.DayTimeSlots = []model.DayTimeSlot{
			{Day: "monday", Enabled: true, StartTime: "16:00", EndTime: "18:00"},
		}
		p, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		out := timetable.Enforce(p, model.Schedule{
			"2025-03-03": {study("16:00", 45, "Biology", "Cell Structure")},
			"2025-03-04": {study("16:00", 45, "Biology", "Cell Structure")},
		}, report)
		Expect(out).To(HaveLen(1))
		Expect(report.DroppedOutsideWindow).To(Equal(1))
	})
})
