// internal/source/calendar/parse.go
package calendar

import (
	"strconv"
	"strings"
)

// Labeled fields recognized in an event description. Field labels are
// matched case-insensitively at the start of a line.
var metricLabels = []string{
	"Duration",
	"Deep sleep",
	"Cycles",
	"Noise",
	"Snoring",
	"Comment",
}

// graphRunes are the sparkline characters some feeds embed as a one-line
// hypnogram.
const graphRunes = "▁▂▃▄▅▆▇█"

// ParseDescription extracts the labeled metric fields and the sparkline
// graph token from an event's free-text description. Missing or malformed
// fields are simply omitted; the description never fails to parse. The
// returned duration is in hours, nil when absent.
func ParseDescription(desc string) (*float64, map[string]string) {
	metrics := make(map[string]string)
	var duration *float64

	// Feed text arrives with ICS escape sequences still in place.
	desc = strings.ReplaceAll(desc, `\n`, "\n")
	desc = strings.ReplaceAll(desc, `\,`, ",")

	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if token := graphToken(line); token != "" {
			metrics["graph"] = token
			continue
		}

		for _, label := range metricLabels {
			prefix := label + ":"
			if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
				continue
			}
			value := strings.TrimSpace(line[len(prefix):])
			if value == "" {
				break
			}
			key := strings.ToLower(strings.ReplaceAll(label, " ", "_"))
			metrics[key] = value
			if label == "Duration" {
				if h, ok := parseHours(value); ok {
					duration = &h
				}
			}
			break
		}
	}

	if len(metrics) == 0 {
		metrics = nil
	}
	return duration, metrics
}

// graphToken returns the sparkline run if the line consists solely of
// graph characters, otherwise "".
func graphToken(line string) string {
	if line == "" {
		return ""
	}
	for _, r := range line {
		if !strings.ContainsRune(graphRunes, r) {
			return ""
		}
	}
	return line
}

// parseHours parses a duration value in either "H:MM" clock form or
// decimal hours ("7.5").
func parseHours(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		h, err1 := strconv.Atoi(s[:i])
		m, err2 := strconv.Atoi(s[i+1:])
		if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 {
			return 0, false
		}
		return float64(h) + float64(m)/60, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
