package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SessionType enumerates the kinds of scheduled blocks.
type SessionType string

const (
	SessionStudy    SessionType = "study"
	SessionRevision SessionType = "revision"
	SessionHomework SessionType = "homework"
	SessionBreak    SessionType = "break"
)

// Source records which path produced a timetable.
type Source string

const (
	SourceAI            Source = "ai"
	SourceDeterministic Source = "deterministic"
	SourceFallback      Source = "fallback"
)

// Session is one block on a given day. Time is local "HH:MM", Duration is minutes.
type Session struct {
	Time       string      `json:"time"`
	Duration   int         `json:"duration"`
	Subject    string      `json:"subject,omitempty"`
	Topic      string      `json:"topic,omitempty"`
	Type       SessionType `json:"type"`
	Notes      string      `json:"notes,omitempty"`
	TestDate   string      `json:"test_date,omitempty"`
	HomeworkID string      `json:"homework_id,omitempty"`
}

// Schedule maps a date (YYYY-MM-DD) to the sessions on that day.
type Schedule map[string][]Session

// Dates returns the schedule's dates in ascending order.
func (s Schedule) Dates() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// SessionCount returns the number of sessions across all days.
func (s Schedule) SessionCount() int {
	n := 0
	for _, day := range s {
		n += len(day)
	}
	return n
}

// GenerationReport describes what the pipeline did to the model output.
type GenerationReport struct {
	Model            string   `json:"model,omitempty"`
	PromptTokens     int      `json:"prompt_tokens,omitempty"`
	CompletionTokens int      `json:"completion_tokens,omitempty"`
	Repaired         bool     `json:"repaired"`
	RepairSteps      []string `json:"repair_steps,omitempty"`

	SessionsProposed     int `json:"sessions_proposed"`
	SessionsAccepted     int `json:"sessions_accepted"`
	TopicsRemapped       int `json:"topics_remapped"`
	DroppedUnknownTopic  int `json:"dropped_unknown_topic"`
	DroppedConflict      int `json:"dropped_conflict"`
	DroppedOutsideWindow int `json:"dropped_outside_window"`
	BackfilledSessions   int `json:"backfilled_sessions"`

	Warnings []string `json:"warnings,omitempty"`
}

// Warn appends a warning message.
func (r *GenerationReport) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Timetable is a persisted, generated study schedule.
type Timetable struct {
	ID          uuid.UUID        `json:"id"`
	UserID      string           `json:"user_id"`
	Name        string           `json:"name"`
	StartDate   string           `json:"start_date"`
	EndDate     string           `json:"end_date"`
	Source      Source           `json:"source"`
	Schedule    Schedule         `json:"schedule"`
	Subjects    []Subject        `json:"subjects"`
	Topics      []Topic          `json:"topics"`
	TestDates   []TestDate       `json:"test_dates"`
	Preferences StudyPreferences `json:"preferences"`
	Report      GenerationReport `json:"report"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TimetableSummary is the list view of a timetable.
type TimetableSummary struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	Source       Source    `json:"source"`
	SessionCount int       `json:"session_count"`
	CreatedAt    time.Time `json:"created_at"`
}
