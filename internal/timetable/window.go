package timetable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// Window is a half-open interval [Start, End) in minutes after local midnight.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the window length in minutes.
func (w Window) Len() int { return w.End - w.Start }

// Overlaps reports whether w and o share at least one minute.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && o.Start < w.End
}

// Contains reports whether o lies entirely inside w.
func (w Window) Contains(o Window) bool {
	return o.Start >= w.Start && o.End <= w.End
}

func (w Window) String() string {
	return formatClock(w.Start) + "-" + formatClock(w.End)
}

// parseClock parses "H:MM", "HH:MM" or "HH:MM:SS" into minutes after midnight.
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// formatClock renders minutes after midnight as "HH:MM".
func formatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// mergeWindows sorts and coalesces overlapping or touching windows.
func mergeWindows(ws []Window) []Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := append([]Window(nil), ws...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &out[len(out)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		out = append(out, w)
	}
	return out
}

// subtractWindows removes every blocked window from base. Results shorter than
// minLen are discarded.
func subtractWindows(base, blocked []Window, minLen int) []Window {
	blocked = mergeWindows(blocked)
	var out []Window
	for _, b := range mergeWindows(base) {
		cur := b.Start
		for _, x := range blocked {
			if x.End <= cur || x.Start >= b.End {
				continue
			}
			if x.Start > cur {
				out = append(out, Window{Start: cur, End: x.Start})
			}
			if x.End > cur {
				cur = x.End
			}
		}
		if cur < b.End {
			out = append(out, Window{Start: cur, End: b.End})
		}
	}

	filtered := out[:0]
	for _, w := range out {
		if w.Len() >= minLen {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

// totalMinutes sums window lengths.
func totalMinutes(ws []Window) int {
	n := 0
	for _, w := range ws {
		n += w.Len()
	}
	return n
}
