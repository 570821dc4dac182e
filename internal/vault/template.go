// internal/vault/template.go
package vault

import (
	"strings"
	"time"
)

// Date-token table, moment-style. Order matters: longer tokens are tried
// before their prefixes so "MMMM" never matches as two "MM"s.
var dateTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"dddd", "Monday"},
	{"MMM", "Jan"},
	{"ddd", "Mon"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"M", "1"},
	{"D", "2"},
	{"A", "PM"},
	{"a", "pm"},
}

// FormatDate renders a moment-style date format string against t.
// Characters inside [brackets] are emitted literally.
func FormatDate(format string, t time.Time) string {
	var b strings.Builder
	i := 0
	for i < len(format) {
		if format[i] == '[' {
			end := strings.IndexByte(format[i:], ']')
			if end >= 0 {
				b.WriteString(format[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, dt := range dateTokens {
			if strings.HasPrefix(format[i:], dt.token) {
				b.WriteString(t.Format(dt.layout))
				i += len(dt.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

// HasUnresolvedPlaceholders reports whether the content still contains
// template placeholder markers. The writer polls on this after creating a
// document whose template is expanded asynchronously by an external tool.
func HasUnresolvedPlaceholders(content string) bool {
	open := strings.Index(content, "{{")
	if open < 0 {
		return false
	}
	return strings.Contains(content[open:], "}}")
}

// Expand substitutes {{date}}, {{date:FMT}}, {{time}}, {{time:FMT}} and
// {{title}} placeholders in raw template text against the target date.
// Unknown placeholders are left untouched for downstream tooling.
func Expand(raw string, date time.Time, title string) string {
	var b strings.Builder
	i := 0
	for i < len(raw) {
		open := strings.Index(raw[i:], "{{")
		if open < 0 {
			b.WriteString(raw[i:])
			break
		}
		b.WriteString(raw[i : i+open])
		i += open
		close := strings.Index(raw[i:], "}}")
		if close < 0 {
			b.WriteString(raw[i:])
			break
		}
		inner := raw[i+2 : i+close]
		switch {
		case inner == "title":
			b.WriteString(title)
		case inner == "date":
			b.WriteString(date.Format("2006-01-02"))
		case inner == "time":
			b.WriteString(date.Format("15:04"))
		case strings.HasPrefix(inner, "date:"):
			b.WriteString(FormatDate(strings.TrimPrefix(inner, "date:"), date))
		case strings.HasPrefix(inner, "time:"):
			b.WriteString(FormatDate(strings.TrimPrefix(inner, "time:"), date))
		default:
			// Not ours; keep the placeholder verbatim.
			b.WriteString(raw[i : i+close+2])
		}
		i += close + 2
	}
	return b.String()
}
