package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates the lifecycle of an asynchronous generation.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == JobCompleted || s == JobFailed
}

// GenerationJob tracks an asynchronous timetable generation.
type GenerationJob struct {
	ID          uuid.UUID  `json:"id"`
	UserID      string     `json:"user_id"`
	Status      JobStatus  `json:"status"`
	TimetableID *uuid.UUID `json:"timetable_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JobEvent is published while a job progresses.
type JobEvent struct {
	JobID       uuid.UUID  `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	Message     string     `json:"message,omitempty"`
	TimetableID *uuid.UUID `json:"timetable_id,omitempty"`
}
