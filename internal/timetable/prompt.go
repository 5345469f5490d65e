package timetable

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
)

// Prompt is the system and user message pair sent to the model.
type Prompt struct {
	System string
	User   string
}

const systemTemplate = `You are an expert study planner for secondary school students.
Respond with a single JSON object and nothing else: no markdown, no code fences, no commentary.

The JSON must have exactly this shape:
{"schedule":[{"date":"YYYY-MM-DD","sessions":[{"time":"HH:MM","duration":{{.SessionDuration}},"subject":"...","topic":"...","type":"study","notes":""}]}]}

Hard rules:
1. Use ONLY the subject and topic names listed by the user, copied verbatim. Never invent topics.
2. Every session must start and end inside one of that day's FREE windows. Never place anything during a BLOCKED time.
3. Session "type" is one of: study, revision, homework, break.
4. Study and revision sessions last at most {{.SessionDuration}} minutes. Put a break of {{.BreakDuration}} minutes between back-to-back sessions.
5. Do not exceed {{.DailyMinutes}} minutes of study, revision and homework per day.
6. Homework sessions use the homework title as "topic" and must finish before the due date and time.
7. Schedule more revision in the days before a subject's test date. Prioritise low-confidence and high-difficulty topics.
8. Cover every listed topic at least once when time allows.
9. Times are 24-hour local times in the {{.Timezone}} timezone.`

const userTemplate = `Plan{{if .Name}} "{{.Name}}"{{end}} from {{.Start}} to {{.End}} ({{.Timezone}}).

DAYS:
{{- range .Days}}
{{.Key}} ({{.Weekday}}): {{if .Free}}FREE {{join .Free ", "}}{{else}}no free time{{end}}{{if .Blocked}}; BLOCKED {{blocked .Blocked}}{{end}}
{{- end}}

SUBJECTS AND TOPICS (confidence 1-5, difficulty 1-5):
{{- range .Subjects}}
- {{.Name}}{{if .ExamBoard}} [{{.ExamBoard}}]{{end}}{{if .TestDate}} (test on {{.TestDate}}){{end}}
{{- range .Topics}}
  * {{.Name}} (confidence {{.Confidence}}, difficulty {{.Difficulty}})
{{- end}}
{{- end}}
{{if .Homeworks}}
HOMEWORK:
{{- range .Homeworks}}
- "{{.Title}}"{{if .SubjectName}} for {{.SubjectName}}{{end}}, due {{.Due}}, about {{.Minutes}} minutes
{{- end}}
{{end}}
PREFERENCES: {{.DailyMinutes}} minutes of study per day, sessions of {{.SessionDuration}} minutes, breaks of {{.BreakDuration}} minutes.
{{- if .Notes}}

STUDENT NOTES: {{.Notes}}
{{- end}}`

var (
	systemTmpl = template.Must(template.New("system").Parse(systemTemplate))
	userTmpl   = template.Must(template.New("user").Funcs(template.FuncMap{
		"join":    joinWindows,
		"blocked": formatBlocked,
	}).Parse(userTemplate))
)

type promptSubject struct {
	Name      string
	ExamBoard string
	TestDate  string
	Topics    []model.Topic
}

type promptHomework struct {
	Title       string
	SubjectName string
	Due         string
	Minutes     int
}

type promptData struct {
	Name            string
	Start, End      string
	Timezone        string
	Days            []Day
	Subjects        []promptSubject
	Homeworks       []promptHomework
	DailyMinutes    int
	SessionDuration int
	BreakDuration   int
	Notes           string
}

// BuildPrompt renders the system and user prompts for plan.
func BuildPrompt(plan *Plan) (Prompt, error) {
	data := promptData{
		Name:            plan.Name,
		Start:           plan.Start.Format(dateLayout),
		End:             plan.End.Format(dateLayout),
		Timezone:        plan.Location.String(),
		Days:            plan.Days,
		SessionDuration: plan.Prefs.SessionDuration,
		BreakDuration:   plan.Prefs.BreakDuration,
		Notes:           plan.Notes,
	}
	if len(plan.Days) > 0 {
		data.DailyMinutes = plan.Days[0].CapMinutes
	}

	for _, s := range plan.Subjects {
		ps := promptSubject{Name: s.Name, ExamBoard: s.ExamBoard}
		if td, ok := plan.TestDateFor(s.ID); ok {
			ps.TestDate = td.Format(dateLayout)
		}
		for _, t := range plan.Topics {
			if t.SubjectID == s.ID {
				ps.Topics = append(ps.Topics, t)
			}
		}
		if len(ps.Topics) > 0 {
			data.Subjects = append(data.Subjects, ps)
		}
	}

	for _, h := range plan.Homeworks {
		minutes := h.DurationMinutes
		if minutes <= 0 {
			minutes = plan.Prefs.SessionDuration
		}
		data.Homeworks = append(data.Homeworks, promptHomework{
			Title:       h.Title,
			SubjectName: h.SubjectName,
			Due:         h.DueDate.In(plan.Location).Format(dueLayout),
			Minutes:     minutes,
		})
	}

	var sys, user bytes.Buffer
	if err := systemTmpl.Execute(&sys, data); err != nil {
		return Prompt{}, fmt.Errorf("render system prompt: %w", err)
	}
	if err := userTmpl.Execute(&user, data); err != nil {
		return Prompt{}, fmt.Errorf("render user prompt: %w", err)
	}
	return Prompt{System: sys.String(), User: user.String()}, nil
}

func joinWindows(ws []Window, sep string) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.String()
	}
	return strings.Join(parts, sep)
}

func formatBlocked(bs []Blocked) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = fmt.Sprintf("%s (%s)", b.Window.String(), b.Title)
	}
	return strings.Join(parts, ", ")
}
