package timetable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
)

// ScheduleEnvelope is the output shape requested from the model.
type ScheduleEnvelope struct {
	Schedule []ScheduleDay `json:"schedule" jsonschema:"description=One entry per calendar day that has sessions"`
}

// ScheduleDay lists the sessions proposed for one date.
type ScheduleDay struct {
	Date     string            `json:"date" jsonschema:"description=Date in YYYY-MM-DD"`
	Sessions []ProposedSession `json:"sessions"`
}

// ProposedSession is a session exactly as the model is asked to emit it.
type ProposedSession struct {
	Time     string `json:"time" jsonschema:"description=Start time in 24h HH:MM"`
	Duration int    `json:"duration" jsonschema:"description=Length in minutes"`
	Subject  string `json:"subject"`
	Topic    string `json:"topic"`
	Type     string `json:"type" jsonschema:"enum=study,enum=revision,enum=homework,enum=break"`
	Notes    string `json:"notes,omitempty"`
}

// DecodeResult is a schedule decoded from repaired model output.
type DecodeResult struct {
	Schedule  model.Schedule
	Proposed  int
	Malformed int
}

// DecodeSchedule accepts the requested {"schedule":[{date,sessions}]} shape,
// a bare array of days, or an object keyed by date (optionally wrapped in
// "schedule"). Field decoding is tolerant.
func DecodeSchedule(data []byte) (*DecodeResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}

	body := json.RawMessage(data)
	if data[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		if inner, ok := lookupKey(obj, "schedule", "timetable", "days"); ok {
			body = inner
		}
	}

	res := &DecodeResult{Schedule: make(model.Schedule)}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty schedule")
	}

	switch trimmed[0] {
	case '[':
		var days []json.RawMessage
		if err := json.Unmarshal(trimmed, &days); err != nil {
			return nil, fmt.Errorf("decode schedule days: %w", err)
		}
		for _, raw := range days {
			var d struct {
				Date     string          `json:"date"`
				Day      string          `json:"day"`
				Sessions json.RawMessage `json:"sessions"`
			}
			if err := json.Unmarshal(raw, &d); err != nil {
				res.Malformed++
				continue
			}
			date := d.Date
			if date == "" {
				date = d.Day
			}
			res.add(date, d.Sessions)
		}
	case '{':
		var byDate map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &byDate); err != nil {
			return nil, fmt.Errorf("decode schedule map: %w", err)
		}
		for date, raw := range byDate {
			res.add(date, raw)
		}
	default:
		return nil, errors.New("schedule is neither an array nor an object")
	}

	if res.Proposed == 0 && res.Malformed == 0 {
		return nil, errors.New("schedule contains no sessions")
	}
	return res, nil
}

func (r *DecodeResult) add(rawDate string, sessions json.RawMessage) {
	date, ok := normaliseDate(rawDate)
	var items []json.RawMessage
	if len(bytes.TrimSpace(sessions)) == 0 || json.Unmarshal(sessions, &items) != nil {
		if ok {
			r.Malformed++
		}
		return
	}
	if !ok {
		r.Malformed += len(items)
		return
	}
	for _, item := range items {
		var ts tolerantSession
		if err := json.Unmarshal(item, &ts); err != nil {
			r.Malformed++
			continue
		}
		r.Proposed++
		r.Schedule[date] = append(r.Schedule[date], ts.session())
	}
}

func lookupKey(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		for actual, v := range obj {
			if strings.EqualFold(actual, k) {
				return v, true
			}
		}
	}
	return nil, false
}

func normaliseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "2006-1-2", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), true
		}
	}
	return "", false
}

// tolerantSession decodes model output that drifts from the requested types.
type tolerantSession struct {
	Time       flexString `json:"time"`
	StartTime  flexString `json:"start_time"`
	Duration   flexInt    `json:"duration"`
	Subject    flexString `json:"subject"`
	Topic      flexString `json:"topic"`
	Type       flexString `json:"type"`
	Notes      flexString `json:"notes"`
	HomeworkID flexString `json:"homework_id"`
}

func (t tolerantSession) session() model.Session {
	clock := string(t.Time)
	if clock == "" {
		clock = string(t.StartTime)
	}
	return model.Session{
		Time:       normaliseClock(clock),
		Duration:   int(t.Duration),
		Subject:    strings.TrimSpace(string(t.Subject)),
		Topic:      strings.TrimSpace(string(t.Topic)),
		Type:       parseSessionType(string(t.Type)),
		Notes:      strings.TrimSpace(string(t.Notes)),
		HomeworkID: strings.TrimSpace(string(t.HomeworkID)),
	}
}

func parseSessionType(s string) model.SessionType {
	switch model.SessionType(strings.ToLower(strings.TrimSpace(s))) {
	case model.SessionRevision:
		return model.SessionRevision
	case model.SessionHomework:
		return model.SessionHomework
	case model.SessionBreak:
		return model.SessionBreak
	default:
		return model.SessionStudy
	}
}

// normaliseClock turns "9:00" or "09:00:00" into "09:00". Unparsable input is
// returned unchanged and rejected later.
func normaliseClock(s string) string {
	m, err := parseClock(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return formatClock(m)
}

// flexInt accepts a number or a numeric string such as "45" or "45 min".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(math.Round(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*f = flexInt(v)
	return nil
}

// flexString accepts a string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
