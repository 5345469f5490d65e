package timetable

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/llm"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Progress stages reported while generating.
const (
	StageAssemble = "assemble"
	StagePrompt   = "prompt"
	StageModel    = "model"
	StageRepair   = "repair"
	StageValidate = "validate"
	StageEnforce  = "enforce"
	StageFallback = "fallback"
	StageBackfill = "backfill"
)

const schemaName = "study_timetable"

// ProgressFunc receives stage updates. It may be nil.
type ProgressFunc func(stage, message string)

// GeneratorConfig tunes the pipeline.
type GeneratorConfig struct {
	Options        Options
	MatchThreshold float64
	Fallback       bool
	MaxTokens      int
	Temperature    *float64
}

// Generator turns a request into a validated schedule.
type Generator struct {
	client llm.Client
	cfg    GeneratorConfig
	log    zerolog.Logger
	tracer trace.Tracer
}

// Result is the output of one generation.
type Result struct {
	Schedule model.Schedule
	Report   model.GenerationReport
	Source   model.Source
	Plan     *Plan
}

// NewGenerator creates a Generator. client may be nil, in which case only the
// deterministic planner is available.
func NewGenerator(client llm.Client, cfg GeneratorConfig, log zerolog.Logger) *Generator {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	return &Generator{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "timetable_generator").Logger(),
		tracer: otel.Tracer("github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"),
	}
}

// Generate runs the full pipeline for req.
func (g *Generator) Generate(ctx context.Context, req *model.GenerateTimetableRequest, progress ProgressFunc) (*Result, error) {
	ctx, span := g.tracer.Start(ctx, "timetable.generate",
		trace.WithAttributes(attribute.String("timetable.mode", string(req.EffectiveMode()))))
	defer span.End()

	if progress == nil {
		progress = func(string, string) {}
	}

	progress(StageAssemble, "Preparing your availability")
	plan, err := g.assemble(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assemble")
		return nil, err
	}

	res := &Result{Plan: plan}
	for _, w := range plan.Warnings {
		res.Report.Warn(w)
	}

	switch {
	case req.EffectiveMode() == model.ModeDeterministic:
		res.Source = model.SourceDeterministic
		res.Schedule = g.runPlanner(ctx, plan, &res.Report)

	case g.client == nil:
		if !g.cfg.Fallback {
			return nil, fmt.Errorf("%w: no model configured", ErrAIUnavailable)
		}
		res.Report.Warn("AI planner is not configured; used the built-in planner")
		progress(StageFallback, "Using the built-in planner")
		res.Source = model.SourceFallback
		res.Schedule = g.runPlanner(ctx, plan, &res.Report)

	default:
		sched, aiErr := g.runAI(ctx, plan, &res.Report, progress)
		if aiErr == nil {
			res.Source = model.SourceAI
			res.Schedule = sched
			break
		}
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "canceled")
			return nil, ctx.Err()
		}
		if !g.cfg.Fallback {
			span.RecordError(aiErr)
			span.SetStatus(codes.Error, "ai")
			return nil, aiErr
		}

		g.log.Warn().Err(aiErr).Msg("AI generation failed, using deterministic planner")
		progress(StageFallback, "AI planner failed, using the built-in planner")
		res.Report.Warn("AI planner failed: " + aiErr.Error())
		res.Report.SessionsAccepted = 0
		res.Source = model.SourceFallback
		res.Schedule = g.runPlanner(ctx, plan, &res.Report)
	}

	if res.Source == model.SourceAI {
		progress(StageBackfill, "Filling gaps for uncovered topics")
		_, bspan := g.tracer.Start(ctx, "timetable.backfill")
		res.Schedule = Backfill(plan, res.Schedule, &res.Report)
		bspan.SetAttributes(attribute.Int("timetable.backfilled", res.Report.BackfilledSessions))
		bspan.End()
	}

	span.SetAttributes(
		attribute.String("timetable.source", string(res.Source)),
		attribute.Int("timetable.sessions", res.Report.SessionsAccepted),
	)
	g.log.Info().
		Str("source", string(res.Source)).
		Int("days", len(res.Schedule)).
		Int("sessions", res.Report.SessionsAccepted).
		Int("backfilled", res.Report.BackfilledSessions).
		Msg("Timetable generated")
	return res, nil
}

func (g *Generator) assemble(ctx context.Context, req *model.GenerateTimetableRequest) (*Plan, error) {
	_, span := g.tracer.Start(ctx, "timetable.assemble")
	defer span.End()

	plan, err := Assemble(req, g.cfg.Options)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("timetable.days", len(plan.Days)),
		attribute.Int("timetable.topics", len(plan.Topics)),
		attribute.Int("timetable.free_minutes", plan.TotalFreeMinutes()),
	)
	return plan, nil
}

func (g *Generator) runPlanner(ctx context.Context, plan *Plan, report *model.GenerationReport) model.Schedule {
	_, span := g.tracer.Start(ctx, "timetable.planner")
	defer span.End()
	return NewPlanner(plan).Generate(report)
}

func (g *Generator) runAI(ctx context.Context, plan *Plan, report *model.GenerationReport, progress ProgressFunc) (model.Schedule, error) {
	progress(StagePrompt, "Building the planning prompt")
	prompt, err := BuildPrompt(plan)
	if err != nil {
		return nil, err
	}

	progress(StageModel, "Asking the AI planner")
	mctx, mspan := g.tracer.Start(ctx, "timetable.model",
		trace.WithAttributes(attribute.String("llm.model", g.client.Model())))
	resp, err := g.client.Complete(mctx, llm.Request{
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
		SchemaName:   schemaName,
		Schema:       llm.GenerateSchema[ScheduleEnvelope](),
		MaxTokens:    g.cfg.MaxTokens,
		Temperature:  g.cfg.Temperature,
	})
	if err != nil {
		mspan.RecordError(err)
		mspan.SetStatus(codes.Error, "completion")
		mspan.End()
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	mspan.SetAttributes(
		attribute.Int("llm.prompt_tokens", resp.PromptTokens),
		attribute.Int("llm.completion_tokens", resp.CompletionTokens),
		attribute.String("llm.finish_reason", resp.FinishReason),
	)
	mspan.End()

	report.Model = g.client.Model()
	report.PromptTokens = resp.PromptTokens
	report.CompletionTokens = resp.CompletionTokens
	if resp.Truncated {
		report.Warn("AI output hit the token limit and was truncated")
	}

	progress(StageRepair, "Checking the AI output")
	repaired, err := Repair(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIOutputInvalid, err)
	}
	report.Repaired = repaired.Repaired()
	report.RepairSteps = repaired.Steps
	if report.Repaired {
		g.log.Debug().Strs("steps", repaired.Steps).Msg("Repaired AI output")
	}

	decoded, err := DecodeSchedule(repaired.JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIOutputInvalid, err)
	}
	report.SessionsProposed = decoded.Proposed
	if decoded.Malformed > 0 {
		report.Warn(fmt.Sprintf("%d malformed sessions ignored", decoded.Malformed))
	}

	progress(StageValidate, "Matching topics")
	matcher := NewMatcher(plan.Subjects, plan.Topics, plan.Homeworks, g.cfg.MatchThreshold)
	sched := matcher.Validate(decoded.Schedule, report)

	progress(StageEnforce, "Applying your availability")
	sched = Enforce(plan, sched, report)
	if countNonBreakSchedule(sched) == 0 {
		return nil, fmt.Errorf("%w: no session survived validation", ErrAIOutputInvalid)
	}
	return sched, nil
}
