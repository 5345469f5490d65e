package model

import "time"

// GenerationMode selects how a timetable is produced.
type GenerationMode string

const (
	ModeAI            GenerationMode = "ai"
	ModeDeterministic GenerationMode = "deterministic"
)

// Subject is a course the student is preparing for.
type Subject struct {
	ID        string `json:"id" binding:"required,max=64"`
	Name      string `json:"name" binding:"required,min=1,max=100"`
	ExamBoard string `json:"exam_board,omitempty" binding:"omitempty,max=50"`
}

// Topic is a unit of study inside a subject.
// Confidence and Difficulty are 1..5; zero means "not rated" and is treated as 3.
type Topic struct {
	ID         string `json:"id" binding:"required,max=64"`
	SubjectID  string `json:"subject_id" binding:"required,max=64"`
	Name       string `json:"name" binding:"required,min=1,max=200"`
	Confidence int    `json:"confidence,omitempty" binding:"omitempty,min=1,max=5"`
	Difficulty int    `json:"difficulty,omitempty" binding:"omitempty,min=1,max=5"`
}

// TestDate is an upcoming assessment for a subject.
type TestDate struct {
	SubjectID string `json:"subject_id" binding:"required"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	Type      string `json:"type,omitempty" binding:"omitempty,max=50"`
}

// DayTimeSlot is the study window for one weekday.
type DayTimeSlot struct {
	Day       string `json:"day" binding:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time" binding:"required_if=Enabled true,omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" binding:"required_if=Enabled true,omitempty,datetime=15:04"`
}

// StudyPreferences are the student's pacing rules.
type StudyPreferences struct {
	DailyStudyHours float64       `json:"daily_study_hours" binding:"required,gt=0,lte=16"`
	SessionDuration int           `json:"session_duration" binding:"required,min=15,max=180"`
	BreakDuration   int           `json:"break_duration" binding:"min=0,max=60"`
	DayTimeSlots    []DayTimeSlot `json:"day_time_slots" binding:"omitempty,max=7,dive"`
}

// FixedEvent is a commitment the timetable must work around.
type FixedEvent struct {
	ID        string    `json:"id" binding:"omitempty,max=64"`
	Title     string    `json:"title" binding:"required,max=200"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

// Homework is a piece of set work with a deadline.
type Homework struct {
	ID              string    `json:"id" binding:"required,max=64"`
	Title           string    `json:"title" binding:"required,max=200"`
	SubjectName     string    `json:"subject_name" binding:"omitempty,max=100"`
	DueDate         time.Time `json:"due_date" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,min=5,max=480"`
	Completed       bool      `json:"completed"`
}

// GenerateTimetableRequest is the payload for generating a timetable.
type GenerateTimetableRequest struct {
	Name        string           `json:"name" binding:"omitempty,max=120"`
	StartDate   string           `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate     string           `json:"end_date" binding:"required,datetime=2006-01-02"`
	Timezone    string           `json:"timezone" binding:"omitempty,timezone"`
	Mode        GenerationMode   `json:"mode" binding:"omitempty,oneof=ai deterministic"`
	Subjects    []Subject        `json:"subjects" binding:"required,min=1,max=30,dive"`
	Topics      []Topic          `json:"topics" binding:"required,min=1,max=500,dive"`
	TestDates   []TestDate       `json:"test_dates" binding:"omitempty,max=100,dive"`
	Preferences StudyPreferences `json:"preferences" binding:"required"`
	Events      []FixedEvent     `json:"events" binding:"omitempty,max=500,dive"`
	Homeworks   []Homework       `json:"homeworks" binding:"omitempty,max=200,dive"`
	Notes       string           `json:"notes" binding:"omitempty,max=2000"`
}

// EffectiveMode returns Mode with the default applied.
func (r *GenerateTimetableRequest) EffectiveMode() GenerationMode {
	if r.Mode == "" {
		return ModeAI
	}
	return r.Mode
}
