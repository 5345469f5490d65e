package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/config"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/logger"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/service"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	GenerationPollTimeout = 1 * time.Second
	GenerationJobTimeout  = 5 * time.Minute
)

// JobStore is the part of service.JobService the worker needs.
type JobStore interface {
	Payload(ctx context.Context, id uuid.UUID) (*service.JobPayload, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.JobStatus, timetableID *uuid.UUID, errMsg string) error
	Publish(ctx context.Context, event model.JobEvent) error
}

// TimetableGenerator is the part of service.TimetableService the worker needs.
type TimetableGenerator interface {
	Generate(ctx context.Context, userID string, req *model.GenerateTimetableRequest, progress timetable.ProgressFunc) (*service.GenerateResult, error)
}

// GenerationWorker consumes queued generation jobs.
type GenerationWorker struct {
	rdb         *redis.Client
	jobs        JobStore
	timetables  TimetableGenerator
	concurrency int
	log         zerolog.Logger
}

func NewGenerationWorker(rdb *redis.Client, jobs JobStore, timetables TimetableGenerator, concurrency int, log zerolog.Logger) *GenerationWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &GenerationWorker{
		rdb:         rdb,
		jobs:        jobs,
		timetables:  timetables,
		concurrency: concurrency,
		log:         log.With().Str("component", "generation_worker").Logger(),
	}
}

// Start runs the consumers and blocks until ctx is cancelled and in-flight
// jobs have finished.
func (w *GenerationWorker) Start(ctx context.Context) {
	w.log.Info().Int("concurrency", w.concurrency).Msg("GenerationWorker started")

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.consume(ctx, n)
		}(i)
	}
	wg.Wait()

	w.log.Info().Msg("GenerationWorker stopped")
}

func (w *GenerationWorker) consume(ctx context.Context, n int) {
	log := w.log.With().Int("consumer", n).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := w.rdb.BLPop(ctx, GenerationPollTimeout, config.WorkerKey.GenerationQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Error().Err(err).Msg("BLPop error")
				time.Sleep(GenerationPollTimeout)
			}
			continue
		}
		if len(item) < 2 {
			continue
		}

		id, err := uuid.Parse(item[1])
		if err != nil {
			log.Error().Str("raw", item[1]).Msg("Invalid job id on queue")
			continue
		}

		// Shutdown waits for the current job instead of abandoning it.
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), GenerationJobTimeout)
		w.Process(logger.WithContext(jobCtx, log.With().Str("job_id", id.String()).Logger()), id)
		cancel()
	}
}

// Process runs one job to completion, recording its outcome.
func (w *GenerationWorker) Process(ctx context.Context, id uuid.UUID) {
	log := logger.FromContext(ctx, w.log)

	payload, err := w.jobs.Payload(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load job payload")
		w.fail(ctx, id, err)
		return
	}

	if err := w.jobs.SetStatus(ctx, id, model.JobRunning, nil, ""); err != nil {
		log.Warn().Err(err).Msg("Failed to mark job running")
	}

	progress := func(stage, message string) {
		err := w.jobs.Publish(ctx, model.JobEvent{
			JobID:   id,
			Status:  model.JobRunning,
			Stage:   stage,
			Message: message,
		})
		if err != nil {
			log.Debug().Err(err).Str("stage", stage).Msg("Progress publish failed")
		}
	}

	res, err := w.timetables.Generate(ctx, payload.UserID, &payload.Request, progress)
	if err != nil {
		log.Warn().Err(err).Msg("Generation job failed")
		w.fail(ctx, id, err)
		return
	}

	tid := res.Timetable.ID
	if err := w.jobs.SetStatus(ctx, id, model.JobCompleted, &tid, ""); err != nil {
		log.Error().Err(err).Msg("Failed to mark job completed")
		return
	}
	log.Info().Str("timetable_id", tid.String()).Bool("cached", res.Cached).Msg("Generation job completed")
}

func (w *GenerationWorker) fail(ctx context.Context, id uuid.UUID, cause error) {
	if err := w.jobs.SetStatus(ctx, id, model.JobFailed, nil, cause.Error()); err != nil {
		w.log.Error().Err(err).Str("job_id", id.String()).Msg("Failed to mark job failed")
	}
}
