package timetable

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
)

const (
	revisionMinutes = 30
	testBoostDays   = 14
	testBoost       = 2.0
	maxRevisions    = 3
)

// revisionIntervals are the days after the last study before each revision.
var revisionIntervals = [maxRevisions]int{3, 7, 14}

type topicState struct {
	topic   model.Topic
	subject model.Subject
	order   int

	needed int
	done   int

	revisions    int
	nextRevision time.Time
	lastStudied  time.Time
}

func (t *topicState) complete() bool { return t.done >= t.needed }

type homeworkState struct {
	hw        model.Homework
	remaining int
}

// basePriority favours low confidence and high difficulty.
func basePriority(t model.Topic) float64 {
	return float64(6-t.Confidence)*0.6 + float64(t.Difficulty)*0.4
}

// sessionsNeeded is how many study sessions complete a topic.
func sessionsNeeded(t model.Topic) int {
	return int(math.Ceil(float64(t.Difficulty) / 2))
}

// dayCursor hands out consecutive slots from a day's free windows.
type dayCursor struct {
	free     []Window
	idx      int
	pos      int
	budget   int
	breakLen int

	placedAny bool
	lastEnd   int
}

func newDayCursor(free []Window, budget, breakLen int) *dayCursor {
	c := &dayCursor{free: free, budget: budget, breakLen: breakLen}
	if len(free) > 0 {
		c.pos = free[0].Start
	}
	return c
}

// next reserves up to length minutes (at least minLength). When the slot
// directly follows the previous one, a break window is returned too.
func (c *dayCursor) next(length, minLength int) (slot Window, brk *Window, ok bool) {
	if c.budget < minLength {
		return Window{}, nil, false
	}
	if length > c.budget {
		length = c.budget
	}
	for c.idx < len(c.free) {
		w := c.free[c.idx]
		if c.pos < w.Start {
			c.pos = w.Start
		}
		start := c.pos
		var b *Window
		if c.placedAny && c.breakLen > 0 && start == c.lastEnd {
			b = &Window{Start: start, End: start + c.breakLen}
			start += c.breakLen
		}
		if avail := w.End - start; avail >= minLength {
			got := length
			if got > avail {
				got = avail
			}
			slot = Window{Start: start, End: start + got}
			c.pos = slot.End
			c.lastEnd = slot.End
			c.placedAny = true
			c.budget -= got
			return slot, b, true
		}
		c.idx++
	}
	return Window{}, nil, false
}

// Planner builds schedules without a model.
type Planner struct {
	plan      *Plan
	topics    []*topicState
	homeworks []*homeworkState
}

// NewPlanner prepares topic and homework state for plan.
func NewPlanner(plan *Plan) *Planner {
	p := &Planner{plan: plan}
	for i, t := range plan.Topics {
		subj, _ := plan.Subject(t.SubjectID)
		p.topics = append(p.topics, &topicState{
			topic:   t,
			subject: subj,
			order:   i,
			needed:  sessionsNeeded(t),
		})
	}
	for _, h := range plan.Homeworks {
		minutes := h.DurationMinutes
		if minutes <= 0 {
			minutes = plan.Prefs.SessionDuration
		}
		p.homeworks = append(p.homeworks, &homeworkState{hw: h, remaining: minutes})
	}
	return p
}

// Generate produces a complete schedule for the plan.
func (p *Planner) Generate(report *model.GenerationReport) model.Schedule {
	out := make(model.Schedule)
	for _, day := range p.plan.Days {
		if len(day.Free) == 0 {
			continue
		}
		cur := newDayCursor(day.Free, day.CapMinutes, p.plan.Prefs.BreakDuration)
		if sessions := p.fillDay(day, cur); len(sessions) > 0 {
			out[day.Key] = sessions
		}
	}
	for _, t := range p.topics {
		if t.done == 0 {
			report.Warn(fmt.Sprintf("no time left for topic %q", t.topic.Name))
		}
	}
	for _, h := range p.homeworks {
		if h.remaining > 0 {
			report.Warn(fmt.Sprintf("homework %q could not be fully scheduled before %s",
				h.hw.Title, h.hw.DueDate.In(p.plan.Location).Format(dueLayout)))
		}
	}
	report.SessionsAccepted = countNonBreakSchedule(out)
	return out
}

func (p *Planner) fillDay(day Day, cur *dayCursor) []model.Session {
	var sessions []model.Session
	emit := func(slot Window, brk *Window, s model.Session) {
		if brk != nil {
			sessions = append(sessions, model.Session{
				Time:     formatClock(brk.Start),
				Duration: brk.Len(),
				Type:     model.SessionBreak,
			})
		}
		s.Time = formatClock(slot.Start)
		s.Duration = slot.Len()
		sessions = append(sessions, s)
	}

	sessionLen := p.plan.Prefs.SessionDuration
	revLen := revisionMinutes
	if sessionLen < revLen {
		revLen = sessionLen
	}

	// Spaced revisions first.
	for _, t := range p.dueRevisions(day.Date) {
		slot, brk, ok := cur.next(revLen, revLen)
		if !ok {
			break
		}
		emit(slot, brk, model.Session{
			Subject:  t.subject.Name,
			Topic:    t.topic.Name,
			Type:     model.SessionRevision,
			Notes:    fmt.Sprintf("Revision %d of %d", t.revisions+1, maxRevisions),
			TestDate: p.testDateString(t.subject.ID, day.Date),
		})
		t.revisions++
		if t.revisions < maxRevisions {
			t.nextRevision = t.lastStudied.AddDate(0, 0, revisionIntervals[t.revisions])
		} else {
			t.nextRevision = time.Time{}
		}
	}

	// Homework with the nearest due date, one block per homework per day.
	for _, h := range p.homeworks {
		if h.remaining <= 0 {
			continue
		}
		deadline := dueMinute(day.Date, h.hw.DueDate, p.plan.Location)
		if deadline < 0 {
			continue
		}
		want := h.remaining
		if want > sessionLen {
			want = sessionLen
		}
		floor := minFreeWindow
		if want < floor {
			floor = want
		}
		trial := *cur
		slot, brk, ok := trial.next(want, floor)
		if !ok {
			break
		}
		if slot.End > deadline {
			continue
		}
		*cur = trial
		emit(slot, brk, model.Session{
			Subject:    h.hw.SubjectName,
			Topic:      h.hw.Title,
			Type:       model.SessionHomework,
			HomeworkID: h.hw.ID,
			Notes:      "Due " + h.hw.DueDate.In(p.plan.Location).Format(dueLayout),
		})
		h.remaining -= slot.Len()
	}

	// Study sessions, rotating subjects.
	lastSubject := ""
	minStudy := sessionLen / 2
	if minStudy < minFreeWindow {
		minStudy = minFreeWindow
	}
	if minStudy > sessionLen {
		minStudy = sessionLen
	}
	for {
		t := p.pickStudy(day.Date, lastSubject)
		if t == nil {
			break
		}
		slot, brk, ok := cur.next(sessionLen, minStudy)
		if !ok {
			break
		}
		t.done++
		emit(slot, brk, model.Session{
			Subject:  t.subject.Name,
			Topic:    t.topic.Name,
			Type:     model.SessionStudy,
			Notes:    fmt.Sprintf("Session %d of %d", t.done, t.needed),
			TestDate: p.testDateString(t.subject.ID, day.Date),
		})
		t.lastStudied = day.Date
		if t.complete() && t.revisions == 0 {
			t.nextRevision = day.Date.AddDate(0, 0, revisionIntervals[0])
		}
		lastSubject = t.subject.ID
	}
	return sessions
}

func (p *Planner) priority(t *topicState, date time.Time) float64 {
	score := basePriority(t.topic)
	if td, ok := p.plan.TestDateFor(t.subject.ID); ok {
		if days := int(td.Sub(date).Hours() / 24); days >= 0 && days <= testBoostDays {
			score += testBoost
		}
	}
	return score
}

// testPassed reports whether the subject's test is already behind date.
func (p *Planner) testPassed(subjectID string, date time.Time) bool {
	td, ok := p.plan.TestDateFor(subjectID)
	return ok && date.After(td)
}

func (p *Planner) testDateString(subjectID string, date time.Time) string {
	if td, ok := p.plan.TestDateFor(subjectID); ok && !date.After(td) {
		return td.Format(dateLayout)
	}
	return ""
}

func (p *Planner) dueRevisions(date time.Time) []*topicState {
	var due []*topicState
	for _, t := range p.topics {
		if t.nextRevision.IsZero() || t.nextRevision.After(date) || p.testPassed(t.subject.ID, date) {
			continue
		}
		due = append(due, t)
	}
	p.sortByPriority(due, date)
	return due
}

func (p *Planner) pickStudy(date time.Time, lastSubject string) *topicState {
	var open []*topicState
	for _, t := range p.topics {
		if t.complete() || p.testPassed(t.subject.ID, date) {
			continue
		}
		open = append(open, t)
	}
	if len(open) == 0 {
		return nil
	}
	p.sortByPriority(open, date)
	for _, t := range open {
		if t.subject.ID != lastSubject {
			return t
		}
	}
	return open[0]
}

func (p *Planner) sortByPriority(ts []*topicState, date time.Time) {
	sort.SliceStable(ts, func(i, j int) bool {
		pi, pj := p.priority(ts[i], date), p.priority(ts[j], date)
		if pi != pj {
			return pi > pj
		}
		return ts[i].order < ts[j].order
	})
}

// Backfill schedules one study session for every topic missing from the
// schedule, using free time the schedule leaves unused.
func Backfill(plan *Plan, schedule model.Schedule, report *model.GenerationReport) model.Schedule {
	present := make(map[string]struct{})
	for _, sessions := range schedule {
		for _, s := range sessions {
			if s.Type == model.SessionStudy || s.Type == model.SessionRevision {
				present[s.Subject+"\x00"+s.Topic] = struct{}{}
			}
		}
	}

	var missing []model.Topic
	for _, t := range plan.Topics {
		subj, _ := plan.Subject(t.SubjectID)
		if _, ok := present[subj.Name+"\x00"+t.Name]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return schedule
	}
	sort.SliceStable(missing, func(i, j int) bool {
		return basePriority(missing[i]) > basePriority(missing[j])
	})

	days := plan.Days
	cursors := make([]*dayCursor, len(days))
	for i, day := range days {
		cursors[i] = backfillCursor(plan, day, schedule[day.Key])
	}

	sessionLen := plan.Prefs.SessionDuration
	minLen := sessionLen / 2
	if minLen < minFreeWindow {
		minLen = minFreeWindow
	}
	if minLen > sessionLen {
		minLen = sessionLen
	}

	for i, t := range missing {
		subj, _ := plan.Subject(t.SubjectID)
		offset := i * len(days) / len(missing)
		placedOK := false
		for k := 0; k < len(days) && !placedOK; k++ {
			d := (offset + k) % len(days)
			day := days[d]
			if td, ok := plan.TestDateFor(subj.ID); ok && day.Date.After(td) {
				continue
			}
			slot, _, ok := cursors[d].next(sessionLen, minLen)
			if !ok {
				continue
			}
			s := model.Session{
				Time:     formatClock(slot.Start),
				Duration: slot.Len(),
				Subject:  subj.Name,
				Topic:    t.Name,
				Type:     model.SessionStudy,
				Notes:    "Added to cover a topic the plan missed",
			}
			if td, ok := plan.TestDateFor(subj.ID); ok {
				s.TestDate = td.Format(dateLayout)
			}
			schedule[day.Key] = insertSorted(schedule[day.Key], s)
			report.BackfilledSessions++
			placedOK = true
		}
		if !placedOK {
			report.Warn(fmt.Sprintf("no free time to cover topic %q", t.Name))
		}
	}
	report.SessionsAccepted = countNonBreakSchedule(schedule)
	return schedule
}

// backfillCursor offers the free time left around existing sessions, keeping
// a break-length gap on either side of them.
func backfillCursor(plan *Plan, day Day, existing []model.Session) *dayCursor {
	gap := plan.Prefs.BreakDuration
	occupied, study, err := sessionWindows(existing)
	if err != nil {
		return newDayCursor(nil, 0, 0)
	}
	padded := make([]Window, len(occupied))
	for i, w := range occupied {
		padded[i] = Window{Start: w.Start - gap, End: w.End + gap}
	}
	free := subtractWindows(day.Free, padded, minFreeWindow)
	budget := day.CapMinutes - study
	if budget < 0 {
		budget = 0
	}
	return newDayCursor(free, budget, gap)
}

func insertSorted(sessions []model.Session, s model.Session) []model.Session {
	sessions = append(sessions, s)
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Time < sessions[j].Time })
	return sessions
}
