package timetable_test

import (
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DecodeSchedule", func() {
	It("decodes the requested array shape", func() {
		res, err := timetable.DecodeSchedule([]byte(`{"schedule":[
			{"date":"2025-03-03","sessions":[
				{"time":"09:00","duration":45,"subject":"Biology","topic":"Cell Structure","type":"study","notes":"diagrams"},
				{"time":"09:45","duration":10,"type":"break"}
			]},
			{"date":"2025-03-04","sessions":[]}
		]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Proposed).To(Equal(2))
		Expect(res.Schedule["2025-03-03"]).To(Equal([]model.Session{
			{Time: "09:00", Duration: 45, Subject: "Biology", Topic: "Cell Structure", Type: model.SessionStudy, Notes: "diagrams"},
			{Time: "09:45", Duration: 10, Type: model.SessionBreak},
		}))
	})

	It("decodes a date keyed object with or without a wrapper", func() {
		for _, doc := range []string{
			`{"2025-03-03":[{"time":"10:00","duration":30,"subject":"Biology","topic":"Photosynthesis","type":"revision"}]}`,
			`{"schedule":{"2025-03-03":[{"time":"10:00","duration":30,"subject":"Biology","topic":"Photosynthesis","type":"revision"}]}}`,
		} {
			res, err := timetable.DecodeSchedule([]byte(doc))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Proposed).To(Equal(1))
			Expect(res.Schedule["2025-03-03"][0].Type).To(Equal(model.SessionRevision))
		}
	})

	It("decodes a bare array of days", func() {
		res, err := timetable.DecodeSchedule([]byte(`[{"day":"2025-3-5","sessions":[{"time":"14:00","duration":45,"topic":"Trigonometry"}]}]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Schedule).To(HaveKey("2025-03-05"))
	})

	It("tolerates drifting field types", func() {
		res, err := timetable.DecodeSchedule([]byte(`{"schedule":[{"date":"2025-03-03","sessions":[
			{"time":"9:00","duration":"45 min","subject":"Biology","topic":"Cell Structure"},
			{"start_time":"13:30:00","duration":30.0,"subject":"Biology","topic":"Photosynthesis","type":"Lesson"},
			{"time":"16:00","duration":null,"subject":null,"topic":101,"type":"HOMEWORK"}
		]}]}`))
		Expect(err).NotTo(HaveOccurred())

		sessions := res.Schedule["2025-03-03"]
		Expect(sessions).To(HaveLen(3))
		Expect(sessions[0].Time).To(Equal("09:00"))
		Expect(sessions[0].Duration).To(Equal(45))
		Expect(sessions[0].Type).To(Equal(model.SessionStudy))
		Expect(sessions[1].Time).To(Equal("13:30"))
		Expect(sessions[1].Duration).To(Equal(30))
		Expect(sessions[1].Type).To(Equal(model.SessionStudy))
		Expect(sessions[2].Duration).To(Equal(0))
		Expect(sessions[2].Topic).To(Equal("101"))
		Expect(sessions[2].Type).To(Equal(model.SessionHomework))
	})

	It("counts malformed sessions and undated days", func() {
		res, err := timetable.DecodeSchedule([]byte(`{"schedule":{
			"2025-03-03":[{"time":"09:00","duration":45,"topic":"Trigonometry"},"not a session",{"duration":"soon"}],
			"someday":[{"time":"10:00","duration":30,"topic":"Trigonometry"}],
			"comment":"enjoy"
		}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Proposed).To(Equal(1))
		Expect(res.Malformed).To(Equal(3))
	})

	DescribeTable("rejects documents without a schedule",
		func(doc string) {
			_, err := timetable.DecodeSchedule([]byte(doc))
			Expect(err).To(HaveOccurred())
		},
		Entry("empty", ``),
		Entry("scalar", `"schedule"`),
		Entry("no sessions", `{"schedule":[]}`),
	)
})
