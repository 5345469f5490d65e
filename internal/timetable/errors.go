package timetable

import "errors"

// Input errors. Handlers map these to 4xx responses.
var (
	ErrInvalidTimezone = errors.New("unknown timezone")
	ErrInvalidRange    = errors.New("end date is before start date")
	ErrRangeTooLong    = errors.New("date range exceeds the maximum plan length")
	ErrNoTopics        = errors.New("no topics belong to a declared subject")
	ErrNoAvailability  = errors.New("no free study time in the requested range")
)

// Model errors. Handlers map these to 502 when fallback is disabled.
var (
	ErrAIUnavailable   = errors.New("timetable model unavailable")
	ErrAIOutputInvalid = errors.New("timetable model returned no usable schedule")
	ErrUnrepairable    = errors.New("model output is not repairable JSON")
)
