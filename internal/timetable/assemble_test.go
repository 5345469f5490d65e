package timetable_test

import (
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Assemble", func() {
	var req *model.GenerateTimetableRequest

	BeforeEach(func() {
		req = baseRequest()
	})

	It("defaults every day to 09:00-21:00 when no slot is enabled", func() {
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Days).To(HaveLen(7))

		for _, d := range plan.Days {
			Expect(d.Free).To(Equal([]timetable.Window{{Start: clock("09:00"), End: clock("21:00")}}))
			Expect(d.CapMinutes).To(Equal(120))
		}
		Expect(plan.Days[0].Key).To(Equal("2025-03-03"))
		Expect(plan.Days[0].Weekday).To(Equal("monday"))
	})

	It("applies confidence and difficulty defaults", func() {
		req.Topics[0].Confidence = 0
		req.Topics[0].Difficulty = 0
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Topics[0].Confidence).To(Equal(3))
		Expect(plan.Topics[0].Difficulty).To(Equal(3))
	})

	DescribeTable("rejects invalid input",
		func(mutate func(*model.GenerateTimetableRequest), opts timetable.Options, expected error) {
			mutate(req)
			_, err := timetable.Assemble(req, opts)
			Expect(err).To(MatchError(expected))
		},
		Entry("unknown timezone",
			func(r *model.GenerateTimetableRequest) { r.Timezone = "Mars/Olympus" },
			timetable.DefaultOptions(), timetable.ErrInvalidTimezone),
		Entry("end before start",
			func(r *model.GenerateTimetableRequest) { r.EndDate = "2025-03-01" },
			timetable.DefaultOptions(), timetable.ErrInvalidRange),
		Entry("range too long",
			func(r *model.GenerateTimetableRequest) {},
			timetable.Options{BufferMinutes: 15, MaxDays: 5}, timetable.ErrRangeTooLong),
		Entry("no topic with a known subject",
			func(r *model.GenerateTimetableRequest) {
				for i := range r.Topics {
					r.Topics[i].SubjectID = "chemistry"
				}
			},
			timetable.DefaultOptions(), timetable.ErrNoTopics),
		Entry("no free time",
			func(r *model.GenerateTimetableRequest) {
				r.EndDate = r.StartDate
				r.Preferences.DayTimeSlots = []model.DayTimeSlot{
					{Day: "monday", Enabled: true, StartTime: "16:00", EndTime: "18:00"},
				}
				r.Events = []model.FixedEvent{{
					Title:     "Football",
					StartTime: utc("2025-03-03T15:00:00Z"),
					EndTime:   utc("2025-03-03T19:00:00Z"),
				}}
			},
			timetable.DefaultOptions(), timetable.ErrNoAvailability),
	)

	It("drops topics of unknown subjects with a warning", func() {
		req.Topics = append(req.Topics, model.Topic{ID: "t9", SubjectID: "chem", Name: "Moles"})
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Topics).To(HaveLen(4))
		Expect(plan.Warnings).To(ContainElement(ContainSubstring("Moles")))
	})

	It("collapses duplicate topic names within a subject", func() {
		req.Topics = append(req.Topics, model.Topic{ID: "t5", SubjectID: "bio", Name: " cell structure "})
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Topics).To(HaveLen(4))
	})

	It("blocks fixed events widened by the buffer", func() {
		req.Events = []model.FixedEvent{{
			Title:     "Dentist",
			StartTime: utc("2025-03-03T12:00:00Z"),
			EndTime:   utc("2025-03-03T13:00:00Z"),
		}}
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		day, ok := plan.Day("2025-03-03")
		Expect(ok).To(BeTrue())
		Expect(day.Blocked).To(HaveLen(1))
		Expect(day.Blocked[0].Window).To(Equal(timetable.Window{Start: clock("11:45"), End: clock("13:15")}))
		Expect(day.Blocked[0].Title).To(Equal("Dentist"))
		Expect(day.Free).To(Equal([]timetable.Window{
			{Start: clock("09:00"), End: clock("11:45")},
			{Start: clock("13:15"), End: clock("21:00")},
		}))

		next, _ := plan.Day("2025-03-04")
		Expect(next.Blocked).To(BeEmpty())
	})

	It("honours a custom buffer", func() {
		req.Events = []model.FixedEvent{{
			Title:     "Dentist",
			StartTime: utc("2025-03-03T12:00:00Z"),
			EndTime:   utc("2025-03-03T13:00:00Z"),
		}}
		plan, err := timetable.Assemble(req, timetable.Options{BufferMinutes: 30, MaxDays: 90})
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Days[0].Blocked[0].Window).To(Equal(timetable.Window{Start: clock("11:30"), End: clock("13:30")}))
	})

	It("splits events that cross midnight across both days", func() {
		req.Events = []model.FixedEvent{{
			Title:     "Night shift",
			StartTime: utc("2025-03-03T23:30:00Z"),
			EndTime:   utc("2025-03-04T01:00:00Z"),
		}}
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		Expect(plan.Days[0].Blocked[0].Window).To(Equal(timetable.Window{Start: clock("23:15"), End: 24 * 60}))
		Expect(plan.Days[1].Blocked[0].Window).To(Equal(timetable.Window{Start: 0, End: clock("01:15")}))
	})

	It("interprets events in the plan timezone", func() {
		req.Timezone = "America/New_York"
		req.Events = []model.FixedEvent{{
			Title:     "Piano",
			StartTime: utc("2025-03-03T17:00:00Z"),
			EndTime:   utc("2025-03-03T18:00:00Z"),
		}}
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Days[0].Blocked[0].Window).To(Equal(timetable.Window{Start: clock("11:45"), End: clock("13:15")}))
	})

	DescribeTable("keeps buffered events on the wall clock across DST changes",
		func(date, start, end string) {
			req.Timezone = "Europe/London"
			req.StartDate, req.EndDate = date, date
			req.Events = []model.FixedEvent{{Title: "Orchestra", StartTime: utc(start), EndTime: utc(end)}}

			plan, err := timetable.Assemble(req, timetable.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.Days[0].Blocked[0].Window).To(Equal(timetable.Window{Start: clock("09:45"), End: clock("11:15")}))

			report := &model.GenerationReport{}
			out := timetable.Enforce(plan, model.Schedule{date: {
				{Time: "10:15", Duration: 30, Subject: "Biology", Topic: "Cell Structure", Type: model.SessionStudy},
				{Time: "11:15", Duration: 30, Subject: "Biology", Topic: "Cell Structure", Type: model.SessionStudy},
			}}, report)
			Expect(out[date]).To(HaveLen(1))
			Expect(out[date][0].Time).To(Equal("11:15"))
			Expect(report.DroppedOutsideWindow).To(Equal(1))
		},
		Entry("spring forward", "2025-03-30", "2025-03-30T09:00:00Z", "2025-03-30T10:00:00Z"),
		Entry("fall back", "2025-10-26", "2025-10-26T10:00:00Z", "2025-10-26T11:00:00Z"),
	)

	It("uses enabled day slots and leaves other days empty", func() {
		req.Preferences.DayTimeSlots = []model.DayTimeSlot{
			{Day: "monday", Enabled: true, StartTime: "16:00", EndTime: "18:00"},
			{Day: "tuesday", Enabled: false, StartTime: "16:00", EndTime: "18:00"},
		}
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		Expect(plan.Days[0].Free).To(Equal([]timetable.Window{{Start: clock("16:00"), End: clock("18:00")}}))
		Expect(plan.Days[1].Free).To(BeEmpty())
		Expect(plan.TotalFreeMinutes()).To(Equal(120))
	})

	It("keeps the earliest upcoming test date per subject", func() {
		req.TestDates = []model.TestDate{
			{SubjectID: "bio", Date: "2025-03-01"},
			{SubjectID: "bio", Date: "2025-03-08"},
			{SubjectID: "bio", Date: "2025-03-06"},
		}
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		td, ok := plan.TestDateFor("bio")
		Expect(ok).To(BeTrue())
		Expect(td.Format("2006-01-02")).To(Equal("2025-03-06"))
		_, ok = plan.TestDateFor("math")
		Expect(ok).To(BeFalse())
	})

	It("keeps only open homework", func() {
		req.Homeworks = []model.Homework{
			{ID: "h1", Title: "Essay", DueDate: utc("2025-03-05T09:00:00Z")},
			{ID: "h2", Title: "Worksheet", DueDate: utc("2025-03-04T09:00:00Z"), Completed: true},
			{ID: "h3", Title: "Old", DueDate: utc("2025-02-20T09:00:00Z")},
			{ID: "h4", Title: "Lab report", DueDate: utc("2025-03-04T09:00:00Z")},
		}
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Homeworks).To(HaveLen(2))
		Expect(plan.Homeworks[0].ID).To(Equal("h4"))
		Expect(plan.Homeworks[1].ID).To(Equal("h1"))
	})
})
