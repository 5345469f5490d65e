package timetable

import (
	"encoding/json"
	"strings"
)

// Repair step names reported in GenerationReport.RepairSteps.
const (
	StepStripFence      = "strip_code_fence"
	StepTrimLeading     = "trim_leading_text"
	StepSmartQuotes     = "normalize_quotes"
	StepStripComments   = "strip_comments"
	StepTrailingCommas  = "remove_trailing_commas"
	StepDropTrailing    = "drop_trailing_text"
	StepCloseString     = "close_string"
	StepDropDangling    = "drop_dangling_token"
	StepRollback        = "rollback_incomplete_element"
	StepCloseContainers = "close_containers"
)

// RepairResult is valid JSON recovered from model output.
type RepairResult struct {
	JSON  []byte
	Steps []string
}

// Repaired reports whether any step changed the input.
func (r RepairResult) Repaired() bool { return len(r.Steps) > 0 }

// Repair recovers a JSON document from raw model output. It handles code
// fences, leading prose, comments, trailing commas, trailing text and
// truncation.
func Repair(raw string) (RepairResult, error) {
	var steps []string
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) {
		return RepairResult{JSON: []byte(s)}, nil
	}

	if inner, ok := stripFence(s); ok {
		s = strings.TrimSpace(inner)
		steps = append(steps, StepStripFence)
	}

	first := strings.IndexAny(s, "{[")
	if first < 0 {
		return RepairResult{}, ErrUnrepairable
	}
	if first > 0 {
		s = s[first:]
		steps = append(steps, StepTrimLeading)
	}
	if json.Valid([]byte(s)) {
		return RepairResult{JSON: []byte(s), Steps: steps}, nil
	}

	// Smart quotes are only treated as delimiters when no ASCII quote is present.
	if t := smartQuotes.Replace(s); t != s && !strings.Contains(s, `"`) {
		s = t
		steps = append(steps, StepSmartQuotes)
	}
	if t := stripLineComments(s); t != s {
		s = t
		steps = append(steps, StepStripComments)
	}
	if t := removeTrailingCommas(s); t != s {
		s = t
		steps = append(steps, StepTrailingCommas)
	}
	if json.Valid([]byte(s)) {
		return RepairResult{JSON: []byte(s), Steps: steps}, nil
	}

	sc := scan(s)
	if sc.closedAt > 0 {
		s = s[:sc.closedAt]
		steps = append(steps, StepDropTrailing)
		if json.Valid([]byte(s)) {
			return RepairResult{JSON: []byte(s), Steps: steps}, nil
		}
		return RepairResult{}, ErrUnrepairable
	}
	if len(sc.stack) == 0 {
		return RepairResult{}, ErrUnrepairable
	}

	// Truncated: first try to finish the tail in place.
	tail := s
	tailSteps := append([]string(nil), steps...)
	if sc.inString {
		tail += `"`
		tailSteps = append(tailSteps, StepCloseString)
	}
	if t := dropDangling(tail); t != tail {
		tail = t
		tailSteps = append(tailSteps, StepDropDangling)
	}
	candidate := tail + closers(sc.stack)
	if json.Valid([]byte(candidate)) {
		return RepairResult{JSON: []byte(candidate), Steps: append(tailSteps, StepCloseContainers)}, nil
	}

	// Roll back to the last point where an element was complete.
	for i := len(sc.cuts) - 1; i >= 0; i-- {
		c := sc.cuts[i]
		candidate := strings.TrimRight(s[:c.pos], " \t\r\n") + closers(c.stack)
		if json.Valid([]byte(candidate)) {
			return RepairResult{
				JSON:  []byte(candidate),
				Steps: append(steps, StepRollback, StepCloseContainers),
			}, nil
		}
	}
	return RepairResult{}, ErrUnrepairable
}

var smartQuotes = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`)

// stripFence returns the body of the first markdown code fence that starts a
// line. JSON strings cannot hold raw newlines, so a fence quoted inside a
// value never qualifies. The body runs to the last fence; an unterminated
// fence yields everything after the opening line.
func stripFence(s string) (string, bool) {
	open := -1
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], "```")
		if j < 0 {
			break
		}
		if at := i + j; at == 0 || s[at-1] == '\n' {
			open = at
			break
		}
		i += j + 3
	}
	if open < 0 {
		return s, false
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		lang := strings.TrimSpace(body[:nl])
		if !strings.ContainsAny(lang, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body, true
}

// stripLineComments removes // comments that sit outside strings.
func stripLineComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// removeTrailingCommas drops commas followed only by whitespace and a closer.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

type cutPoint struct {
	pos   int
	stack []byte
}

type scanState struct {
	stack    []byte
	inString bool
	// closedAt is the offset just after the top-level value when text follows it.
	closedAt int
	cuts     []cutPoint
}

// scan walks s with a bracket stack and records positions where the
// document could be cut and closed.
func scan(s string) scanState {
	var st scanState
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if st.inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				st.inString = false
			}
			continue
		}
		switch ch {
		case '"':
			st.inString = true
		case '{', '[':
			st.stack = append(st.stack, ch)
			st.cuts = append(st.cuts, cutPoint{pos: i + 1, stack: cloneStack(st.stack)})
		case '}', ']':
			if len(st.stack) == 0 {
				return st
			}
			st.stack = st.stack[:len(st.stack)-1]
			if len(st.stack) == 0 {
				if strings.TrimSpace(s[i+1:]) != "" {
					st.closedAt = i + 1
				}
				return st
			}
			st.cuts = append(st.cuts, cutPoint{pos: i + 1, stack: cloneStack(st.stack)})
		case ',':
			if len(st.stack) > 0 {
				st.cuts = append(st.cuts, cutPoint{pos: i, stack: cloneStack(st.stack)})
			}
		}
	}
	return st
}

func cloneStack(s []byte) []byte {
	return append([]byte(nil), s...)
}

func closers(stack []byte) string {
	b := make([]byte, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b = append(b, '}')
		} else {
			b = append(b, ']')
		}
	}
	return string(b)
}

// dropDangling removes a trailing comma, colon or object key left by truncation.
func dropDangling(s string) string {
	t := strings.TrimRight(s, " \t\r\n")
	switch {
	case strings.HasSuffix(t, ","):
		return t[:len(t)-1]
	case strings.HasSuffix(t, ":"):
		t = strings.TrimRight(t[:len(t)-1], " \t\r\n")
		return dropKey(t)
	case strings.HasSuffix(t, `"`):
		// A string directly after '{' or ',' inside an object is a key without a value.
		start := openingQuote(t)
		if start < 0 {
			return t
		}
		before := strings.TrimRight(t[:start], " \t\r\n")
		if strings.HasSuffix(before, "{") || (strings.HasSuffix(before, ",") && insideObject(before)) {
			return strings.TrimSuffix(before, ",")
		}
	}
	return t
}

func dropKey(t string) string {
	start := openingQuote(t)
	if start < 0 {
		return t
	}
	before := strings.TrimRight(t[:start], " \t\r\n")
	return strings.TrimSuffix(before, ",")
}

// openingQuote finds the quote that opens the string ending at the last byte of t.
func openingQuote(t string) int {
	for i := len(t) - 2; i >= 0; i-- {
		if t[i] != '"' {
			continue
		}
		bs := 0
		for j := i - 1; j >= 0 && t[j] == '\\'; j-- {
			bs++
		}
		if bs%2 == 0 {
			return i
		}
	}
	return -1
}

func insideObject(s string) bool {
	st := scan(s)
	return len(st.stack) > 0 && st.stack[len(st.stack)-1] == '{'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
