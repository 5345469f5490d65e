package timetable

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/agnivade/levenshtein"
)

// DefaultMatchThreshold is the minimum similarity for a fuzzy match.
const DefaultMatchThreshold = 0.75

// decorations are words the model adds around a topic name.
var decorations = map[string]struct{}{
	"revision": {}, "revise": {}, "revising": {}, "review": {}, "reviewing": {},
	"recap": {}, "practice": {}, "practise": {}, "study": {}, "studying": {},
	"homework": {}, "of": {}, "on": {}, "session": {}, "questions": {},
}

// TopicMatch is a canonical topic with its similarity score.
type TopicMatch struct {
	Topic   model.Topic
	Subject model.Subject
	Score   float64
}

// Matcher maps free-form names from model output onto declared entities.
type Matcher struct {
	subjects  []model.Subject
	topics    []model.Topic
	homeworks []model.Homework
	threshold float64

	subjectByID map[string]model.Subject
	topicNorm   []string
}

// NewMatcher indexes the declared subjects, topics and open homeworks.
func NewMatcher(subjects []model.Subject, topics []model.Topic, homeworks []model.Homework, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	m := &Matcher{
		subjects:    subjects,
		topics:      topics,
		homeworks:   homeworks,
		threshold:   threshold,
		subjectByID: make(map[string]model.Subject, len(subjects)),
		topicNorm:   make([]string, len(topics)),
	}
	for _, s := range subjects {
		m.subjectByID[s.ID] = s
	}
	for i, t := range topics {
		m.topicNorm[i] = normalize(t.Name)
	}
	return m
}

// MatchSubject finds the declared subject closest to name.
func (m *Matcher) MatchSubject(name string) (model.Subject, float64, bool) {
	var best model.Subject
	bestScore := 0.0
	for _, s := range m.subjects {
		score := nameScore(name, s.Name)
		if strings.EqualFold(strings.TrimSpace(name), s.ID) {
			score = 1
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	return best, bestScore, bestScore >= m.threshold
}

// MatchTopic finds the closest topic within one subject.
func (m *Matcher) MatchTopic(subjectID, name string) (TopicMatch, bool) {
	return m.bestTopic(name, func(t model.Topic) bool { return t.SubjectID == subjectID })
}

// MatchAny finds the closest topic across every subject.
func (m *Matcher) MatchAny(name string) (TopicMatch, bool) {
	return m.bestTopic(name, func(model.Topic) bool { return true })
}

func (m *Matcher) bestTopic(name string, keep func(model.Topic) bool) (TopicMatch, bool) {
	var best TopicMatch
	found := false
	for i, t := range m.topics {
		if !keep(t) {
			continue
		}
		score := similarityVariants(name, m.topicNorm[i])
		if !found || score > best.Score {
			best = TopicMatch{Topic: t, Subject: m.subjectByID[t.SubjectID], Score: score}
			found = true
		}
	}
	return best, found && best.Score >= m.threshold
}

// MatchHomework finds the open homework closest to title.
func (m *Matcher) MatchHomework(title string) (model.Homework, float64, bool) {
	var best model.Homework
	bestScore := 0.0
	for _, h := range m.homeworks {
		score := nameScore(title, h.Title)
		if strings.TrimSpace(title) == h.ID {
			score = 1
		}
		if score > bestScore {
			best, bestScore = h, score
		}
	}
	return best, bestScore, bestScore >= m.threshold
}

// homeworkByID returns an open homework with the given id.
func (m *Matcher) homeworkByID(id string) (model.Homework, bool) {
	for _, h := range m.homeworks {
		if h.ID == id {
			return h, true
		}
	}
	return model.Homework{}, false
}

// Validate rewrites every session onto canonical names and drops sessions
// that reference nothing declared.
func (m *Matcher) Validate(schedule model.Schedule, report *model.GenerationReport) model.Schedule {
	out := make(model.Schedule, len(schedule))
	for date, sessions := range schedule {
		for _, s := range sessions {
			fixed, ok := m.validateSession(s, report)
			if !ok {
				report.DroppedUnknownTopic++
				continue
			}
			out[date] = append(out[date], fixed)
		}
	}
	return out
}

func (m *Matcher) validateSession(s model.Session, report *model.GenerationReport) (model.Session, bool) {
	switch s.Type {
	case model.SessionBreak:
		s.Subject, s.Topic, s.HomeworkID = "", "", ""
		return s, true

	case model.SessionHomework:
		hw, ok := m.homeworkByID(s.HomeworkID)
		if !ok {
			hw, _, ok = m.MatchHomework(s.Topic)
		}
		if !ok {
			hw, _, ok = m.MatchHomework(s.Notes)
		}
		if !ok {
			return s, false
		}
		s.HomeworkID = hw.ID
		s.Topic = hw.Title
		if hw.SubjectName != "" {
			if subj, _, found := m.MatchSubject(hw.SubjectName); found {
				s.Subject = subj.Name
			} else {
				s.Subject = hw.SubjectName
			}
		}
		return s, true
	}

	var match TopicMatch
	var ok bool
	if subj, _, found := m.MatchSubject(s.Subject); found {
		match, ok = m.MatchTopic(subj.ID, s.Topic)
	}
	if !ok {
		match, ok = m.MatchAny(s.Topic)
	}
	if !ok {
		return s, false
	}
	if match.Topic.Name != s.Topic || match.Subject.Name != s.Subject {
		report.TopicsRemapped++
		if match.Score < 1 {
			report.Warn(fmt.Sprintf("topic %q mapped to %q (score %.2f)", s.Topic, match.Topic.Name, match.Score))
		}
	}
	s.Subject = match.Subject.Name
	s.Topic = match.Topic.Name
	s.HomeworkID = ""
	return s, true
}

// normalize lower-cases s, turns punctuation into spaces and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// stripParenthetical removes "(...)" and "[...]" groups.
func stripParenthetical(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// stripDecorations drops leading and trailing decoration words and a
// trailing ordinal such as "2".
func stripDecorations(norm string) string {
	tokens := strings.Fields(norm)
	for len(tokens) > 0 {
		if _, ok := decorations[tokens[0]]; ok {
			tokens = tokens[1:]
			continue
		}
		break
	}
	for len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if _, ok := decorations[last]; ok || isNumber(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	return strings.Join(tokens, " ")
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// variants yields the normalised forms of a model-supplied name.
func variants(name string) []string {
	base := normalize(name)
	out := []string{base}
	if p := normalize(stripParenthetical(name)); p != base && p != "" {
		out = append(out, p)
	}
	for _, v := range append([]string(nil), out...) {
		if d := stripDecorations(v); d != v && d != "" {
			out = append(out, d)
		}
	}
	return out
}

func nameScore(candidate, canonical string) float64 {
	return similarityVariants(candidate, normalize(canonical))
}

func similarityVariants(candidate, canonicalNorm string) float64 {
	best := 0.0
	for _, v := range variants(candidate) {
		if s := similarity(v, canonicalNorm); s > best {
			best = s
		}
	}
	return best
}

// similarity scores two normalised strings in [0, 1].
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}

	best := 0.0
	if strings.Contains(a, b) || strings.Contains(b, a) {
		ratio := float64(shorter) / float64(longer)
		if ratio >= 0.5 {
			best = 0.8 + 0.2*ratio
		}
	}
	if j := jaccard(a, b); j > best {
		best = j
	}
	dist := levenshtein.ComputeDistance(a, b)
	if lev := 1 - float64(dist)/float64(longer); lev > best {
		best = lev
	}
	return best
}

func jaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		out[t] = struct{}{}
	}
	return out
}
