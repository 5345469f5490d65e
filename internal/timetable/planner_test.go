package timetable_test

import (
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// expectWellFormed checks that no two sessions overlap, every session sits in
// a free window and the daily cap holds.
func expectWellFormed(plan *timetable.Plan, sched model.Schedule) {
	for date, sessions := range sched {
		day, ok := plan.Day(date)
		Expect(ok).To(BeTrue(), date)

		study := 0
		prevEnd := -1
		for _, s := range sessions {
			start := clock(s.Time)
			w := timetable.Window{Start: start, End: start + s.Duration}
			Expect(start).To(BeNumerically(">=", prevEnd), date+" "+s.Time)
			_, inside := day.FreeWindowFor(w)
			Expect(inside).To(BeTrue(), date+" "+s.Time)
			if s.Type != model.SessionBreak {
				study += s.Duration
			}
			prevEnd = w.End
		}
		Expect(study).To(BeNumerically("<=", day.CapMinutes), date)
	}
}

var _ = Describe("Planner", func() {
	var req *model.GenerateTimetableRequest

	BeforeEach(func() {
		req = baseRequest()
	})

	generate := func() (*timetable.Plan, model.Schedule, *model.GenerationReport) {
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		report := &model.GenerationReport{}
		return plan, timetable.NewPlanner(plan).Generate(report), report
	}

	It("fills the first day by priority, rotating subjects with breaks", func() {
		_, sched, _ := generate()

		Expect(sched["2025-03-03"]).To(Equal([]model.Session{
			{Time: "09:00", Duration: 45, Subject: "Biology", Topic: "Photosynthesis", Type: model.SessionStudy, Notes: "Session 1 of 3"},
			{Time: "09:45", Duration: 10, Type: model.SessionBreak},
			{Time: "09:55", Duration: 45, Subject: "Mathematics", Topic: "Quadratic Equations", Type: model.SessionStudy, Notes: "Session 1 of 2"},
			{Time: "10:40", Duration: 10, Type: model.SessionBreak},
			{Time: "10:50", Duration: 30, Subject: "Biology", Topic: "Photosynthesis", Type: model.SessionStudy, Notes: "Session 2 of 3"},
		}))
	})

	It("covers every topic and schedules spaced revisions", func() {
		plan, sched, report := generate()
		expectWellFormed(plan, sched)

		studied := map[string]bool{}
		revisions := 0
		for _, sessions := range sched {
			for _, s := range sessions {
				switch s.Type {
				case model.SessionStudy:
					studied[s.Topic] = true
				case model.SessionRevision:
					revisions++
					Expect(s.Duration).To(Equal(30))
				}
			}
		}
		Expect(studied).To(HaveLen(4))
		Expect(revisions).To(BeNumerically(">", 0))
		Expect(report.SessionsAccepted).To(BeNumerically(">", 0))
		Expect(report.Warnings).To(BeEmpty())
	})

	It("stops scheduling a subject after its test", func() {
		req.TestDates = []model.TestDate{{SubjectID: "bio", Date: "2025-03-05"}}
		plan, sched, _ := generate()
		expectWellFormed(plan, sched)

		for date, sessions := range sched {
			for _, s := range sessions {
				if s.Subject == "Biology" {
					Expect(date <= "2025-03-05").To(BeTrue(), date)
					Expect(s.TestDate).To(Equal("2025-03-05"))
				}
			}
		}
	})

	It("schedules homework before its due date", func() {
		req.Homeworks = []model.Homework{
			{ID: "h1", Title: "Lab report", SubjectName: "Biology", DueDate: utc("2025-03-04T12:00:00Z"), DurationMinutes: 60},
		}
		plan, sched, _ := generate()
		expectWellFormed(plan, sched)

		Expect(sched["2025-03-03"][0].Type).To(Equal(model.SessionHomework))
		total := 0
		for date, sessions := range sched {
			for _, s := range sessions {
				if s.Type == model.SessionHomework {
					Expect(date <= "2025-03-04").To(BeTrue())
					Expect(s.HomeworkID).To(Equal("h1"))
					total += s.Duration
				}
			}
		}
		Expect(total).To(Equal(60))
	})

	It("finishes homework before its due time", func() {
		req.Homeworks = []model.Homework{
			{ID: "h1", Title: "Lab report", SubjectName: "Biology", DueDate: utc("2025-03-04T09:00:00Z"), DurationMinutes: 60},
		}
		plan, sched, report := generate()
		expectWellFormed(plan, sched)

		total := 0
		for date, sessions := range sched {
			for _, s := range sessions {
				if s.Type == model.SessionHomework {
					Expect(date).To(Equal("2025-03-03"))
					total += s.Duration
				}
			}
		}
		Expect(total).To(Equal(45))
		Expect(report.Warnings).To(ContainElement(ContainSubstring(`"Lab report" could not be fully scheduled before 2025-03-04 09:00`)))
	})

	It("warns when topics cannot fit", func() {
		req.EndDate = req.StartDate
		req.Preferences.DailyStudyHours = 0.5
		req.Preferences.SessionDuration = 30
		_, sched, report := generate()

		Expect(sched["2025-03-03"]).To(HaveLen(1))
		Expect(report.Warnings).To(HaveLen(3))
	})
})

var _ = Describe("Backfill", func() {
	It("adds sessions for topics the schedule missed", func() {
		plan, err := timetable.Assemble(baseRequest(), timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		report := &model.GenerationReport{}
		sched := model.Schedule{
			"2025-03-03": {
				{Time: "09:00", Duration: 45, Subject: "Mathematics", Topic: "Quadratic Equations", Type: model.SessionStudy},
				{Time: "09:45", Duration: 10, Type: model.SessionBreak},
				{Time: "09:55", Duration: 45, Subject: "Biology", Topic: "Cell Structure", Type: model.SessionStudy},
			},
		}
		out := timetable.Backfill(plan, sched, report)
		expectWellFormed(plan, out)

		Expect(report.BackfilledSessions).To(Equal(2))
		topics := map[string]bool{}
		for _, sessions := range out {
			for _, s := range sessions {
				topics[s.Topic] = true
			}
		}
		Expect(topics).To(HaveKey("Trigonometry"))
		Expect(topics).To(HaveKey("Photosynthesis"))
		Expect(report.SessionsAccepted).To(Equal(4))
	})

	It("leaves complete schedules alone", func() {
		plan, err := timetable.Assemble(baseRequest(), timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		report := &model.GenerationReport{}
		full := timetable.NewPlanner(plan).Generate(&model.GenerationReport{})
		timetable.Backfill(plan, full, report)
		Expect(report.BackfilledSessions).To(BeZero())
	})
})
