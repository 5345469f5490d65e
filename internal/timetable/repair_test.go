package timetable_test

import (
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Repair", func() {
	DescribeTable("recovers JSON from model output",
		func(raw, expected string, steps []string) {
			res, err := timetable.Repair(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(res.JSON)).To(MatchJSON(expected))
			for _, s := range steps {
				Expect(res.Steps).To(ContainElement(s))
			}
		},
		Entry("valid JSON untouched",
			`{"schedule":[]}`, `{"schedule":[]}`, nil),
		Entry("fenced JSON",
			"```json\n{\"a\":1}\n```", `{"a":1}`, []string{timetable.StepStripFence}),
		Entry("bare fence",
			"```\n[1,2]\n```", `[1,2]`, []string{timetable.StepStripFence}),
		Entry("unterminated fence",
			"```json\n{\"a\":1}", `{"a":1}`, []string{timetable.StepStripFence}),
		Entry("leading prose",
			"Here is your timetable:\n{\"a\":1}", `{"a":1}`, []string{timetable.StepTrimLeading}),
		Entry("trailing commas",
			`{"a":[1,2,],}`, `{"a":[1,2]}`, []string{timetable.StepTrailingCommas}),
		Entry("line comments",
			"{\"a\":1, // first\n\"b\":\"http://x\"}", `{"a":1,"b":"http://x"}`, []string{timetable.StepStripComments}),
		Entry("smart quotes as delimiters",
			`{“a”: “b”}`, `{"a":"b"}`, []string{timetable.StepSmartQuotes}),
		Entry("trailing text",
			`{"a":1} Hope this helps! {`, `{"a":1}`, []string{timetable.StepDropTrailing}),
		Entry("truncated inside a string",
			`{"schedule":[{"date":"2025-03-03","sessions":[{"time":"09:00","topic":"Cell Str`,
			`{"schedule":[{"date":"2025-03-03","sessions":[{"time":"09:00","topic":"Cell Str"}]}]}`,
			[]string{timetable.StepCloseString, timetable.StepCloseContainers}),
		Entry("truncated after a key",
			`{"a":1,"b":`, `{"a":1}`, []string{timetable.StepDropDangling}),
		Entry("truncated on a bare key",
			`{"a":1,"b"`, `{"a":1}`, []string{timetable.StepDropDangling}),
		Entry("truncated after a comma",
			`[1,2,`, `[1,2]`, []string{timetable.StepDropDangling}),
		Entry("truncated inside a literal",
			`{"a":[1,2,tru`, `{"a":[1,2]}`, []string{timetable.StepRollback}),
		Entry("truncated in a nested object",
			`{"schedule":[{"date":"2025-03-03","sessions":[{"time":"09:00","duration":45},{"time":"10:`,
			`{"schedule":[{"date":"2025-03-03","sessions":[{"time":"09:00","duration":45},{"time":"10:"}]}]}`,
			[]string{timetable.StepCloseString}),
	)

	DescribeTable("keeps code fences quoted inside string values",
		func(raw, expected string, steps []string) {
			res, err := timetable.Repair(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(res.JSON)).To(MatchJSON(expected))
			Expect(res.Steps).To(Equal(steps))
		},
		Entry("valid document",
			`{"schedule":[{"date":"2025-03-03","sessions":[{"time":"09:00","notes":"write a `+"```"+` block"}]}]}`,
			`{"schedule":[{"date":"2025-03-03","sessions":[{"time":"09:00","notes":"write a `+"```"+` block"}]}]}`,
			nil),
		Entry("fenced document",
			"```json\n{\"notes\":\"use ```python``` here\"}\n```",
			"{\"notes\":\"use ```python``` here\"}",
			[]string{timetable.StepStripFence}),
		Entry("truncated document",
			`{"sessions":[{"notes":"a `+"```"+` b"},{"time":"10:`,
			`{"sessions":[{"notes":"a `+"```"+` b"},{"time":"10:"}]}`,
			[]string{timetable.StepCloseString, timetable.StepCloseContainers}),
	)

	It("reports no steps for clean input", func() {
		res, err := timetable.Repair(`{"a":1}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Repaired()).To(BeFalse())
	})

	DescribeTable("gives up on hopeless input",
		func(raw string) {
			_, err := timetable.Repair(raw)
			Expect(err).To(MatchError(timetable.ErrUnrepairable))
		},
		Entry("plain prose", "Sorry, I cannot help with that."),
		Entry("empty", ""),
		Entry("broken in the middle", `{"a": nope}`),
	)
})
