package timetable

import (
	"fmt"
	"sort"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
)

// MaxSessionMinutes is the longest single session accepted from the model.
const MaxSessionMinutes = 240

type placed struct {
	Window
	session model.Session
}

// Enforce drops every session that breaks a hard constraint of the plan and
// returns the surviving schedule with each day sorted by start time.
func Enforce(plan *Plan, schedule model.Schedule, report *model.GenerationReport) model.Schedule {
	homeworkDue := make(map[string]time.Time, len(plan.Homeworks))
	for _, h := range plan.Homeworks {
		homeworkDue[h.ID] = h.DueDate
	}
	subjectByName := make(map[string]model.Subject, len(plan.Subjects))
	for _, s := range plan.Subjects {
		subjectByName[s.Name] = s
	}

	out := make(model.Schedule)
	for _, date := range schedule.Dates() {
		day, ok := plan.Day(date)
		if !ok || len(day.Free) == 0 {
			report.DroppedOutsideWindow += countNonBreak(schedule[date])
			continue
		}

		var candidates, breaks []placed
		for _, s := range schedule[date] {
			start, err := parseClock(s.Time)
			if err != nil || s.Duration <= 0 || s.Duration > MaxSessionMinutes {
				if s.Type != model.SessionBreak {
					report.DroppedOutsideWindow++
				}
				continue
			}
			p := placed{Window: Window{Start: start, End: start + s.Duration}, session: s}
			if s.Type == model.SessionBreak {
				breaks = append(breaks, p)
			} else {
				candidates = append(candidates, p)
			}
		}
		sortPlaced(candidates)

		var accepted []placed
		studyMinutes := 0
		for _, c := range candidates {
			if _, ok := day.FreeWindowFor(c.Window); !ok {
				report.DroppedOutsideWindow++
				continue
			}
			if c.session.Type == model.SessionHomework {
				if due, ok := homeworkDue[c.session.HomeworkID]; ok && c.End > dueMinute(day.Date, due, plan.Location) {
					report.DroppedOutsideWindow++
					continue
				}
			}
			if overlapsAny(c.Window, accepted) {
				report.DroppedConflict++
				continue
			}
			if day.CapMinutes > 0 && studyMinutes+c.Len() > day.CapMinutes {
				report.DroppedConflict++
				continue
			}
			studyMinutes += c.Len()
			c.session = annotateTestDate(plan, subjectByName, day, c.session)
			accepted = append(accepted, c)
		}

		sortPlaced(breaks)
		var keptBreaks []placed
		for _, b := range breaks {
			if _, ok := day.FreeWindowFor(b.Window); !ok {
				continue
			}
			if overlapsAny(b.Window, accepted) || overlapsAny(b.Window, keptBreaks) {
				continue
			}
			if !adjacent(b.Window, accepted) {
				continue
			}
			keptBreaks = append(keptBreaks, b)
		}

		all := append(accepted, keptBreaks...)
		if len(all) == 0 {
			continue
		}
		sortPlaced(all)
		sessions := make([]model.Session, len(all))
		for i, p := range all {
			sessions[i] = p.session
		}
		out[date] = sessions
	}

	report.SessionsAccepted = countNonBreakSchedule(out)
	return out
}

// dueMinute is the latest wall-clock minute of day by which work due at due
// must be finished: the whole day before the due date, the due time on it,
// and nothing afterwards.
func dueMinute(day, due time.Time, loc *time.Location) int {
	d := due.In(loc)
	dueDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	switch {
	case day.Before(dueDay):
		return minutesPerDay
	case day.Equal(dueDay):
		return d.Hour()*60 + d.Minute()
	default:
		return -1
	}
}

func annotateTestDate(plan *Plan, subjects map[string]model.Subject, day Day, s model.Session) model.Session {
	if s.Type != model.SessionStudy && s.Type != model.SessionRevision {
		return s
	}
	subj, ok := subjects[s.Subject]
	if !ok {
		return s
	}
	if td, ok := plan.TestDateFor(subj.ID); ok && !day.Date.After(td) {
		s.TestDate = td.Format(dateLayout)
	}
	return s
}

func overlapsAny(w Window, others []placed) bool {
	for _, o := range others {
		if w.Overlaps(o.Window) {
			return true
		}
	}
	return false
}

func adjacent(w Window, others []placed) bool {
	for _, o := range others {
		if w.Start == o.End || w.End == o.Start {
			return true
		}
	}
	return false
}

func sortPlaced(ps []placed) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Start < ps[j].Start })
}

func countNonBreak(sessions []model.Session) int {
	n := 0
	for _, s := range sessions {
		if s.Type != model.SessionBreak {
			n++
		}
	}
	return n
}

func countNonBreakSchedule(s model.Schedule) int {
	n := 0
	for _, day := range s {
		n += countNonBreak(day)
	}
	return n
}

// sessionWindows converts a day's sessions back to windows.
func sessionWindows(sessions []model.Session) ([]Window, int, error) {
	ws := make([]Window, 0, len(sessions))
	study := 0
	for _, s := range sessions {
		start, err := parseClock(s.Time)
		if err != nil {
			return nil, 0, fmt.Errorf("session %q: %w", s.Topic, err)
		}
		ws = append(ws, Window{Start: start, End: start + s.Duration})
		if s.Type != model.SessionBreak {
			study += s.Duration
		}
	}
	return ws, study, nil
}
