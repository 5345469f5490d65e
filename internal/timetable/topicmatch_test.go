package timetable_test

import (
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Matcher", func() {
	var m *timetable.Matcher

	BeforeEach(func() {
		req := baseRequest()
		homeworks := []model.Homework{
			{ID: "h1", Title: "Lab report on enzymes", SubjectName: "biology", DueDate: utc("2025-03-05T09:00:00Z")},
		}
		m = timetable.NewMatcher(req.Subjects, req.Topics, homeworks, timetable.DefaultMatchThreshold)
	})

	DescribeTable("matches topic names inside a subject",
		func(subjectID, name, expected string) {
			match, ok := m.MatchTopic(subjectID, name)
			Expect(ok).To(BeTrue())
			Expect(match.Topic.Name).To(Equal(expected))
		},
		Entry("exact", "bio", "Cell Structure", "Cell Structure"),
		Entry("case and punctuation", "bio", "cell-structure!", "Cell Structure"),
		Entry("decoration prefix", "bio", "Revision: Photosynthesis", "Photosynthesis"),
		Entry("review of prefix", "bio", "Review of cell structure", "Cell Structure"),
		Entry("parenthetical suffix", "bio", "Photosynthesis (revision #2)", "Photosynthesis"),
		Entry("typo", "math", "Quadratics Equations", "Quadratic Equations"),
		Entry("containment", "math", "Trigonometry basics", "Trigonometry"),
	)

	DescribeTable("rejects unrelated names",
		func(name string) {
			_, ok := m.MatchAny(name)
			Expect(ok).To(BeFalse())
		},
		Entry("different topic", "Quantum Physics"),
		Entry("empty", ""),
		Entry("only decorations", "revision practice"),
	)

	It("does not match across subjects with MatchTopic", func() {
		_, ok := m.MatchTopic("math", "Photosynthesis")
		Expect(ok).To(BeFalse())

		match, ok := m.MatchAny("Photosynthesis")
		Expect(ok).To(BeTrue())
		Expect(match.Subject.ID).To(Equal("bio"))
		Expect(match.Score).To(BeNumerically("==", 1))
	})

	DescribeTable("keeps the first declared topic on a tie",
		func(firstSubject, secondSubject string) {
			subjects := []model.Subject{{ID: "math", Name: "Mathematics"}, {ID: "bio", Name: "Biology"}}
			topics := []model.Topic{
				{ID: "a", SubjectID: firstSubject, Name: "Statistics"},
				{ID: "b", SubjectID: secondSubject, Name: "Statistics"},
			}
			tied := timetable.NewMatcher(subjects, topics, nil, timetable.DefaultMatchThreshold)

			match, ok := tied.MatchAny("statistics revision")
			Expect(ok).To(BeTrue())
			Expect(match.Topic.ID).To(Equal("a"))
			Expect(match.Subject.ID).To(Equal(firstSubject))
		},
		Entry("maths first", "math", "bio"),
		Entry("biology first", "bio", "math"),
	)

	It("matches subjects by name or id", func() {
		s, _, ok := m.MatchSubject("biology")
		Expect(ok).To(BeTrue())
		Expect(s.ID).To(Equal("bio"))

		s, _, ok = m.MatchSubject("math")
		Expect(ok).To(BeTrue())
		Expect(s.Name).To(Equal("Mathematics"))

		_, _, ok = m.MatchSubject("History")
		Expect(ok).To(BeFalse())
	})

	It("matches homework by title", func() {
		h, _, ok := m.MatchHomework("Homework: lab report on enzymes")
		Expect(ok).To(BeTrue())
		Expect(h.ID).To(Equal("h1"))
	})

	Describe("Validate", func() {
		It("rewrites names, retries other subjects and drops unknown topics", func() {
			report := &model.GenerationReport{}
			out := m.Validate(model.Schedule{
				"2025-03-03": {
					{Time: "09:00", Duration: 45, Subject: "Biology", Topic: "Cell Structure", Type: model.SessionStudy},
					{Time: "09:45", Duration: 10, Subject: "Biology", Topic: "x", Type: model.SessionBreak},
					{Time: "09:55", Duration: 45, Subject: "Mathematics", Topic: "photosynthesis", Type: model.SessionRevision},
					{Time: "11:00", Duration: 45, Subject: "Physics", Topic: "Quantum Physics", Type: model.SessionStudy},
					{Time: "12:00", Duration: 30, Topic: "Lab report", Type: model.SessionHomework, HomeworkID: "h1"},
					{Time: "13:00", Duration: 30, Topic: "Poem analysis", Type: model.SessionHomework},
				},
			}, report)

			sessions := out["2025-03-03"]
			Expect(sessions).To(HaveLen(4))
			Expect(sessions[1].Topic).To(BeEmpty())
			Expect(sessions[2].Subject).To(Equal("Biology"))
			Expect(sessions[2].Topic).To(Equal("Photosynthesis"))
			Expect(sessions[3].Topic).To(Equal("Lab report on enzymes"))
			Expect(sessions[3].Subject).To(Equal("Biology"))

			Expect(report.TopicsRemapped).To(Equal(1))
			Expect(report.DroppedUnknownTopic).To(Equal(2))
		})
	})
})
