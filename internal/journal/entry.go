// internal/journal/entry.go
package journal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jpfieber/sleepsync/internal/event"
)

// Kind words tag entry lines so a wake entry can never be mistaken for a
// sleep entry with the same time. The default entry templates contain
// them; custom templates fall back to the verbatim-line guard.
const (
	asleepWord = "Asleep"
	awakeWord  = "Awake"
)

// timePattern matches an HH:mm clock time inside an entry line.
var timePattern = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

// linePrefix returns the task-marker prefix for the category,
// e.g. "- [s] ".
func linePrefix(cat Category) string {
	return "- [" + cat.Prefix + "] "
}

// RenderEntry renders the document line for an event: the prefix marker
// followed by the category's entry template with <time>, <mtime>, and
// <duration> substituted. <mtime> is the full date-time form for inline
// metadata fields.
func RenderEntry(cat Category, e event.Event) string {
	tmpl := cat.AsleepTemplate
	if e.Kind == event.KindWake {
		tmpl = cat.AwakeTemplate
	}

	text := strings.ReplaceAll(tmpl, "<time>", e.Time)
	text = strings.ReplaceAll(text, "<mtime>", e.Date+"T"+e.Time)
	duration := ""
	if e.DurationHours != nil {
		duration = fmt.Sprintf("%.1f", *e.DurationHours)
	}
	text = strings.ReplaceAll(text, "<duration>", duration)

	return linePrefix(cat) + text
}

// kindWord returns the tag word for the event's kind.
func kindWord(k event.Kind) string {
	if k == event.KindSleep {
		return asleepWord
	}
	return awakeWord
}

// EntryExists is the idempotence guard: it reports whether the content
// already holds a line for the same event, either by the
// prefix+kind+time match or because the exact rendered line is present
// verbatim. Repeated sync runs over overlapping windows hit this and
// append nothing.
func EntryExists(content string, cat Category, e event.Event) bool {
	rendered := RenderEntry(cat, e)
	prefix := linePrefix(cat)
	word := kindWord(e.Kind)

	for _, line := range strings.Split(content, "\n") {
		if line == rendered {
			return true
		}
		if strings.HasPrefix(line, prefix) &&
			strings.Contains(line, word) &&
			strings.Contains(line, e.Time) {
			return true
		}
	}
	return false
}

// FindLastSleepTime scans content for the most recent line tagged as a
// sleep entry and returns its HH:mm time, or "" when none is present.
func FindLastSleepTime(content string, cat Category) string {
	prefix := linePrefix(cat)
	last := ""
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, prefix) || !strings.Contains(line, asleepWord) {
			continue
		}
		if m := timePattern.FindString(line); m != "" {
			last = m
		}
	}
	return last
}

// DurationBetween computes the hours from a sleep time to a wake time,
// both HH:mm, adding a day to the sleep moment when the naive same-day
// subtraction would be negative (the session crossed midnight). The
// result is clamped at zero and rounded to one decimal.
func DurationBetween(sleepTime, wakeTime string) (float64, error) {
	sleepMin, err := clockMinutes(sleepTime)
	if err != nil {
		return 0, err
	}
	wakeMin, err := clockMinutes(wakeTime)
	if err != nil {
		return 0, err
	}
	diff := wakeMin - sleepMin
	if diff < 0 {
		diff += 24 * 60
	}
	return event.RoundHours(float64(diff) / 60), nil
}

func clockMinutes(s string) (int, error) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	var h, min int
	fmt.Sscanf(m[1], "%d", &h)
	fmt.Sscanf(m[2], "%d", &min)
	return h*60 + min, nil
}
