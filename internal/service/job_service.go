package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/config"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrJobNotFound is returned for unknown, expired or foreign jobs.
var ErrJobNotFound = errors.New("job not found")

// JobPayload is the work item stored alongside a queued job.
type JobPayload struct {
	UserID  string                         `json:"user_id"`
	Request model.GenerateTimetableRequest `json:"request"`
}

// JobService tracks asynchronous generation jobs in Redis.
type JobService struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewJobService creates a new JobService.
func NewJobService(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *JobService {
	return &JobService{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "job_service").Logger(),
	}
}

// Enqueue stores a PENDING job with its payload and pushes it onto the
// generation queue.
func (s *JobService) Enqueue(ctx context.Context, userID string, req *model.GenerateTimetableRequest) (*model.GenerationJob, error) {
	now := time.Now().UTC()
	job := &model.GenerationJob{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := json.Marshal(JobPayload{UserID: userID, Request: *req})
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}

	id := job.ID.String()
	jobKey := config.CacheKey.JobKey(id)

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, jobKey,
			"id", id,
			"user_id", userID,
			"status", string(job.Status),
			"created_at", now.Format(time.RFC3339Nano),
			"updated_at", now.Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, jobKey, s.ttl)
		pipe.Set(ctx, config.CacheKey.JobPayloadKey(id), payload, s.ttl)
		pipe.RPush(ctx, config.WorkerKey.GenerationQueue, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.log.Info().Str("job_id", id).Str("user_id", userID).Msg("Generation job enqueued")
	return job, nil
}

// Get returns the job if it belongs to userID.
func (s *JobService) Get(ctx context.Context, id uuid.UUID, userID string) (*model.GenerationJob, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Payload loads the stored work item for a job.
func (s *JobService) Payload(ctx context.Context, id uuid.UUID) (*JobPayload, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.JobPayloadKey(id.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load job payload: %w", err)
	}
	var p JobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return &p, nil
}

// SetStatus updates the job state and publishes the transition.
func (s *JobService) SetStatus(ctx context.Context, id uuid.UUID, status model.JobStatus, timetableID *uuid.UUID, errMsg string) error {
	key := config.CacheKey.JobKey(id.String())
	fields := []any{
		"status", string(status),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
		"error", errMsg,
	}
	if timetableID != nil {
		fields = append(fields, "timetable_id", timetableID.String())
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields...)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	return s.Publish(ctx, model.JobEvent{
		JobID:       id,
		Status:      status,
		Message:     errMsg,
		TimetableID: timetableID,
	})
}

// Publish sends a job event to the job's channel.
func (s *JobService) Publish(ctx context.Context, event model.JobEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode job event: %w", err)
	}
	return s.rdb.Publish(ctx, config.CacheKey.JobEventsChannel(event.JobID.String()), b).Err()
}

// Subscribe opens a Pub/Sub subscription to a job's events. Callers must Close it.
func (s *JobService) Subscribe(ctx context.Context, id uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.JobEventsChannel(id.String()))
}

func (s *JobService) load(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error) {
	vals, err := s.rdb.HGetAll(ctx, config.CacheKey.JobKey(id.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromHash(id, vals), nil
}

func jobFromHash(id uuid.UUID, vals map[string]string) *model.GenerationJob {
	job := &model.GenerationJob{
		ID:     id,
		UserID: vals["user_id"],
		Status: model.JobStatus(vals["status"]),
		Error:  vals["error"],
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, vals["created_at"])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, vals["updated_at"])
	if raw := vals["timetable_id"]; raw != "" {
		if tid, err := uuid.Parse(raw); err == nil {
			job.TimetableID = &tid
		}
	}
	return job
}
