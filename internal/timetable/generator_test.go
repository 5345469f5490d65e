package timetable_test

import (
	"context"
	"errors"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/llm"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

type stubLLM struct {
	content   string
	truncated bool
	err       error
	requests  []llm.Request
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{
		Content:          s.content,
		FinishReason:     "stop",
		Truncated:        s.truncated,
		PromptTokens:     1200,
		CompletionTokens: 300,
	}, nil
}

func (s *stubLLM) Model() string { return "stub-1" }

const aiOutput = "Sure! Here is the plan.\n```json\n" + `{"schedule":[{"date":"2025-03-03","sessions":[
	{"time":"9:00","duration":45,"subject":"Maths","topic":"Quadratics Equations","type":"study"},
	{"time":"09:45","duration":"10","type":"break"},
	{"time":"09:55","duration":45,"subject":"Biology","topic":"Revision: Cell Structure","type":"revision"},
	{"time":"11:00","duration":45,"subject":"Biology","topic":"Quantum Physics","type":"study"},
]}]}` + "\n```"

var _ = Describe("Generator", func() {
	var (
		req    *model.GenerateTimetableRequest
		stub   *stubLLM
		cfg    timetable.GeneratorConfig
		stages []string
	)

	progress := func(stage, _ string) { stages = append(stages, stage) }

	BeforeEach(func() {
		req = baseRequest()
		stub = &stubLLM{content: aiOutput}
		cfg = timetable.GeneratorConfig{
			Options:        timetable.DefaultOptions(),
			MatchThreshold: timetable.DefaultMatchThreshold,
			Fallback:       true,
			MaxTokens:      4000,
		}
		stages = nil
	})

	It("repairs, validates and backfills the model output", func() {
		g := timetable.NewGenerator(stub, cfg, zerolog.Nop())
		res, err := g.Generate(context.Background(), req, progress)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Source).To(Equal(model.SourceAI))
		Expect(stub.requests).To(HaveLen(1))
		Expect(stub.requests[0].SchemaName).To(Equal("study_timetable"))
		Expect(stub.requests[0].Schema).NotTo(BeNil())
		Expect(stub.requests[0].UserPrompt).To(ContainSubstring("Quadratic Equations"))

		r := res.Report
		Expect(r.Model).To(Equal("stub-1"))
		Expect(r.PromptTokens).To(Equal(1200))
		Expect(r.Repaired).To(BeTrue())
		Expect(r.RepairSteps).To(ContainElements(timetable.StepStripFence, timetable.StepTrailingCommas))
		Expect(r.SessionsProposed).To(Equal(4))
		Expect(r.TopicsRemapped).To(Equal(2))
		Expect(r.DroppedUnknownTopic).To(Equal(1))
		Expect(r.BackfilledSessions).To(Equal(2))
		Expect(r.SessionsAccepted).To(Equal(4))

		day := res.Schedule["2025-03-03"]
		Expect(day[0].Subject).To(Equal("Mathematics"))
		Expect(day[0].Topic).To(Equal("Quadratic Equations"))
		Expect(day[2].Topic).To(Equal("Cell Structure"))

		Expect(stages).To(ContainElements(
			timetable.StageAssemble, timetable.StagePrompt, timetable.StageModel,
			timetable.StageRepair, timetable.StageValidate, timetable.StageEnforce, timetable.StageBackfill,
		))
	})

	It("warns about truncated output", func() {
		stub.content = `{"schedule":[{"date":"2025-03-03","sessions":[{"time":"09:00","duration":45,"subject":"Biology","topic":"Photosynthesis","type":"study"},{"time":"10:0`
		stub.truncated = true

		res, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Source).To(Equal(model.SourceAI))
		Expect(res.Report.Warnings).To(ContainElement(ContainSubstring("token limit")))
	})

	It("never calls the model in deterministic mode", func() {
		req.Mode = model.ModeDeterministic
		res, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Source).To(Equal(model.SourceDeterministic))
		Expect(stub.requests).To(BeEmpty())
		Expect(res.Schedule).NotTo(BeEmpty())
	})

	It("falls back to the planner when the model fails", func() {
		stub.err = errors.New("connection refused")
		res, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(context.Background(), req, progress)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Source).To(Equal(model.SourceFallback))
		Expect(res.Report.Warnings).To(ContainElement(ContainSubstring("AI planner failed")))
		Expect(stages).To(ContainElement(timetable.StageFallback))
	})

	It("stops without falling back when the caller goes away", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		stub.err = context.Canceled

		res, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(ctx, req, progress)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res).To(BeNil())
		Expect(stages).NotTo(ContainElement(timetable.StageFallback))
	})

	It("falls back when no model is configured", func() {
		res, err := timetable.NewGenerator(nil, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Source).To(Equal(model.SourceFallback))
	})

	Context("with fallback disabled", func() {
		BeforeEach(func() {
			cfg.Fallback = false
		})

		It("returns ErrAIUnavailable when the model fails", func() {
			stub.err = errors.New("503")
			_, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
			Expect(err).To(MatchError(timetable.ErrAIUnavailable))
		})

		It("returns ErrAIUnavailable without a model", func() {
			_, err := timetable.NewGenerator(nil, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
			Expect(err).To(MatchError(timetable.ErrAIUnavailable))
		})

		It("returns ErrAIOutputInvalid for unusable output", func() {
			stub.content = "I could not build a plan, sorry."
			_, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
			Expect(err).To(MatchError(timetable.ErrAIOutputInvalid))
		})

		It("returns ErrAIOutputInvalid when nothing survives validation", func() {
			stub.content = `{"schedule":[{"date":"2025-03-03","sessions":[{"time":"03:00","duration":45,"subject":"Biology","topic":"Photosynthesis"}]}]}`
			_, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
			Expect(err).To(MatchError(timetable.ErrAIOutputInvalid))
		})
	})

	It("returns input errors before calling the model", func() {
		req.Timezone = "Nowhere/Land"
		_, err := timetable.NewGenerator(stub, cfg, zerolog.Nop()).Generate(context.Background(), req, nil)
		Expect(err).To(MatchError(timetable.ErrInvalidTimezone))
		Expect(stub.requests).To(BeEmpty())
	})
})

var _ = Describe("BuildPrompt", func() {
	It("lists free windows, blocked events, topics and preferences", func() {
		req := baseRequest()
		req.Events = []model.FixedEvent{{
			Title:     "Dentist",
			StartTime: utc("2025-03-03T12:00:00Z"),
			EndTime:   utc("2025-03-03T13:00:00Z"),
		}}
		req.TestDates = []model.TestDate{{SubjectID: "bio", Date: "2025-03-07"}}
		req.Notes = "I prefer mornings"
		plan, err := timetable.Assemble(req, timetable.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())

		p, err := timetable.BuildPrompt(plan)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.System).To(ContainSubstring(`"schedule"`))
		Expect(p.System).To(ContainSubstring("120 minutes"))
		Expect(p.User).To(ContainSubstring("2025-03-03 (monday): FREE 09:00-11:45, 13:15-21:00; BLOCKED 11:45-13:15 (Dentist)"))
		Expect(p.User).To(ContainSubstring("Biology (test on 2025-03-07)"))
		Expect(p.User).To(ContainSubstring("Photosynthesis (confidence 1, difficulty 5)"))
		Expect(p.User).To(ContainSubstring("STUDENT NOTES: I prefer mornings"))
	})
})
