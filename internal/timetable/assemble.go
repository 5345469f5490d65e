package timetable

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
)

const (
	dateLayout = "2006-01-02"
	dueLayout  = "2006-01-02 15:04"

	defaultDayStart = 9 * 60
	defaultDayEnd   = 21 * 60

	// minFreeWindow is the shortest window worth offering for study.
	minFreeWindow = 15

	defaultRating = 3
)

// Options tunes input assembly.
type Options struct {
	BufferMinutes int
	MaxDays       int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{BufferMinutes: 15, MaxDays: 90}
}

// Blocked is a fixed event (buffer included) clipped to one day.
type Blocked struct {
	Window
	Title string `json:"title"`
}

// Day is one calendar date of the plan.
type Day struct {
	Date       time.Time `json:"-"`
	Key        string    `json:"date"`
	Weekday    string    `json:"weekday"`
	Available  []Window  `json:"available"`
	Blocked    []Blocked `json:"blocked"`
	Free       []Window  `json:"free"`
	CapMinutes int       `json:"cap_minutes"`
}

// FreeMinutes is the total free time of the day.
func (d Day) FreeMinutes() int { return totalMinutes(d.Free) }

// FreeWindowFor returns the free window fully containing w.
func (d Day) FreeWindowFor(w Window) (Window, bool) {
	for _, f := range d.Free {
		if f.Contains(w) {
			return f, true
		}
	}
	return Window{}, false
}

// Plan is the normalised generation input.
type Plan struct {
	Name     string
	Location *time.Location
	Start    time.Time
	End      time.Time
	Days     []Day

	Subjects  []model.Subject
	Topics    []model.Topic
	TestDates map[string]time.Time
	Homeworks []model.Homework
	Prefs     model.StudyPreferences
	Notes     string

	Warnings []string

	dayIndex     map[string]int
	subjectIndex map[string]model.Subject
}

// Day returns the plan day for a YYYY-MM-DD key.
func (p *Plan) Day(key string) (Day, bool) {
	i, ok := p.dayIndex[key]
	if !ok {
		return Day{}, false
	}
	return p.Days[i], true
}

// Subject returns a declared subject by id.
func (p *Plan) Subject(id string) (model.Subject, bool) {
	s, ok := p.subjectIndex[id]
	return s, ok
}

// TestDateFor returns the earliest upcoming test date for a subject.
func (p *Plan) TestDateFor(subjectID string) (time.Time, bool) {
	t, ok := p.TestDates[subjectID]
	return t, ok
}

// TotalFreeMinutes sums free time over the plan.
func (p *Plan) TotalFreeMinutes() int {
	n := 0
	for _, d := range p.Days {
		n += d.FreeMinutes()
	}
	return n
}

func (p *Plan) warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Assemble validates and normalises a generation request into a Plan.
func Assemble(req *model.GenerateTimetableRequest, opts Options) (*Plan, error) {
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, tz)
	}

	start, err := time.ParseInLocation(dateLayout, req.StartDate, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", ErrInvalidRange, req.StartDate)
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q", ErrInvalidRange, req.EndDate)
	}
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	span := dayCount(start, end)
	if opts.MaxDays > 0 && span > opts.MaxDays {
		return nil, fmt.Errorf("%w: %d days (max %d)", ErrRangeTooLong, span, opts.MaxDays)
	}

	p := &Plan{
		Name:         strings.TrimSpace(req.Name),
		Location:     loc,
		Start:        start,
		End:          end,
		Prefs:        req.Preferences,
		Notes:        strings.TrimSpace(req.Notes),
		TestDates:    make(map[string]time.Time),
		dayIndex:     make(map[string]int),
		subjectIndex: make(map[string]model.Subject),
	}

	for _, s := range req.Subjects {
		if _, dup := p.subjectIndex[s.ID]; dup {
			p.warn("duplicate subject id %q ignored", s.ID)
			continue
		}
		p.subjectIndex[s.ID] = s
		p.Subjects = append(p.Subjects, s)
	}

	p.Topics = normaliseTopics(p, req.Topics)
	if len(p.Topics) == 0 {
		return nil, ErrNoTopics
	}

	indexTestDates(p, req.TestDates)
	p.Homeworks = openHomeworks(req.Homeworks, start)

	slots, anyEnabled := slotsByWeekday(p, req.Preferences.DayTimeSlots)
	capMinutes := int(math.Round(req.Preferences.DailyStudyHours * 60))

	for i := 0; i < span; i++ {
		date := start.AddDate(0, 0, i)
		weekday := strings.ToLower(date.Weekday().String())

		day := Day{
			Date:       date,
			Key:        date.Format(dateLayout),
			Weekday:    weekday,
			CapMinutes: capMinutes,
		}
		if !anyEnabled {
			day.Available = []Window{{Start: defaultDayStart, End: defaultDayEnd}}
		} else if w, ok := slots[weekday]; ok {
			day.Available = []Window{w}
		}

		day.Blocked = blockedFor(date, req.Events, opts.BufferMinutes)
		blocked := make([]Window, len(day.Blocked))
		for j, b := range day.Blocked {
			blocked[j] = b.Window
		}
		day.Free = subtractWindows(day.Available, blocked, minFreeWindow)

		p.dayIndex[day.Key] = len(p.Days)
		p.Days = append(p.Days, day)
	}

	if p.TotalFreeMinutes() == 0 {
		return nil, ErrNoAvailability
	}
	return p, nil
}

// dayCount is the inclusive number of calendar days between start and end.
func dayCount(start, end time.Time) int {
	n := 1
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		n++
		if n > 10000 {
			break
		}
	}
	return n
}

func normaliseTopics(p *Plan, topics []model.Topic) []model.Topic {
	seen := make(map[string]struct{})
	out := make([]model.Topic, 0, len(topics))
	for _, t := range topics {
		if _, ok := p.subjectIndex[t.SubjectID]; !ok {
			p.warn("topic %q dropped: unknown subject %q", t.Name, t.SubjectID)
			continue
		}
		key := t.SubjectID + "\x00" + normalize(t.Name)
		if _, dup := seen[key]; dup {
			p.warn("duplicate topic %q collapsed", t.Name)
			continue
		}
		seen[key] = struct{}{}

		t.Name = strings.TrimSpace(t.Name)
		if t.Confidence == 0 {
			t.Confidence = defaultRating
		}
		if t.Difficulty == 0 {
			t.Difficulty = defaultRating
		}
		out = append(out, t)
	}
	return out
}

func indexTestDates(p *Plan, dates []model.TestDate) {
	for _, td := range dates {
		if _, ok := p.subjectIndex[td.SubjectID]; !ok {
			p.warn("test date %s dropped: unknown subject %q", td.Date, td.SubjectID)
			continue
		}
		d, err := time.ParseInLocation(dateLayout, td.Date, p.Location)
		if err != nil {
			p.warn("test date %q dropped: %v", td.Date, err)
			continue
		}
		if d.Before(p.Start) {
			continue
		}
		if cur, ok := p.TestDates[td.SubjectID]; !ok || d.Before(cur) {
			p.TestDates[td.SubjectID] = d
		}
	}
}

func openHomeworks(hws []model.Homework, start time.Time) []model.Homework {
	var out []model.Homework
	for _, h := range hws {
		if h.Completed || h.DueDate.Before(start) {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

func slotsByWeekday(p *Plan, slots []model.DayTimeSlot) (map[string]Window, bool) {
	out := make(map[string]Window)
	for _, s := range slots {
		if !s.Enabled {
			continue
		}
		start, err := parseClock(s.StartTime)
		if err != nil {
			p.warn("%s slot ignored: %v", s.Day, err)
			continue
		}
		end, err := parseClock(s.EndTime)
		if err != nil {
			p.warn("%s slot ignored: %v", s.Day, err)
			continue
		}
		if end <= start {
			p.warn("%s slot ignored: end %s is not after start %s", s.Day, s.EndTime, s.StartTime)
			continue
		}
		out[strings.ToLower(s.Day)] = Window{Start: start, End: end}
	}
	return out, len(out) > 0
}

// blockedFor clips every buffered event touching date to that day. Windows
// are wall-clock minutes, so a DST change inside the day does not shift them.
func blockedFor(date time.Time, events []model.FixedEvent, bufferMinutes int) []Blocked {
	dayStart := date
	dayEnd := date.AddDate(0, 0, 1)
	buffer := time.Duration(bufferMinutes) * time.Minute

	var out []Blocked
	for _, ev := range events {
		s := ev.StartTime.In(date.Location()).Add(-buffer)
		e := ev.EndTime.In(date.Location()).Add(buffer)
		if !e.After(dayStart) || !s.Before(dayEnd) {
			continue
		}

		w := Window{Start: 0, End: minutesPerDay}
		if s.After(dayStart) {
			w.Start = s.Hour()*60 + s.Minute()
		}
		if e.Before(dayEnd) {
			w.End = e.Hour()*60 + e.Minute()
			if e.Second() > 0 || e.Nanosecond() > 0 {
				w.End++
			}
		}
		// Across a fall-back the end clock can read earlier than the start;
		// block every hour the event touches.
		if w.End < w.Start {
			w.Start, w.End = e.Hour()*60, (s.Hour()+1)*60
		}
		if w.Len() <= 0 {
			continue
		}
		out = append(out, Blocked{Window: w, Title: ev.Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
