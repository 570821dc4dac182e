// internal/source/calendar/calendar.go
package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/jpfieber/sleepsync/internal/source"
)

// Adapter fetches sleep sessions from an ICS calendar feed. Each VEVENT is
// one sleep session: DTSTART is falling asleep, DTEND is waking up, and
// the description carries labeled metric fields. Calendar data is the
// authoritative source when both adapters are configured.
type Adapter struct {
	url    string
	client *http.Client
	loc    *time.Location
}

// New creates a calendar Adapter for the given ICS feed URL. Event times
// are interpreted in loc.
func New(url string, loc *time.Location) *Adapter {
	return &Adapter{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		loc: loc,
	}
}

func (a *Adapter) Name() string { return "calendar" }

// FetchEvents downloads and parses the feed, returning raw records for
// sessions with at least one endpoint inside the window. Individual
// malformed events are logged and skipped, never fatal.
func (a *Adapter) FetchEvents(ctx context.Context, window source.Window) ([]source.RawSleepRecord, error) {
	if a.url == "" {
		return nil, errors.New("calendar feed URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build calendar request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch calendar feed: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read calendar feed: %w", err)
	}

	return a.parseFeed(body, window)
}

func (a *Adapter) parseFeed(body []byte, window source.Window) ([]source.RawSleepRecord, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar feed: %w", err)
	}

	var records []source.RawSleepRecord
	for _, ve := range cal.Events() {
		rec, err := a.parseVEvent(ve)
		if err != nil {
			slog.Debug("skipping calendar event", "error", err)
			continue
		}
		start := time.Unix(rec.StartTime, 0).In(a.loc)
		end := time.Unix(rec.EndTime, 0).In(a.loc)
		if !window.ContainsDay(start) && !window.ContainsDay(end) {
			continue
		}
		records = append(records, rec)
	}

	slog.Debug("calendar feed parsed", "events", len(cal.Events()), "records", len(records))
	return records, nil
}

func (a *Adapter) parseVEvent(ve *ical.VEvent) (source.RawSleepRecord, error) {
	var rec source.RawSleepRecord

	start, err := ve.GetStartAt()
	if err != nil {
		return rec, fmt.Errorf("event start: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return rec, fmt.Errorf("event end: %w", err)
	}
	if !end.After(start) {
		return rec, errors.New("event end does not follow start")
	}

	rec.StartTime = start.Unix()
	rec.EndTime = end.Unix()

	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		rec.Description = p.Value
		rec.DurationHours, rec.Metrics = ParseDescription(p.Value)
	}

	return rec, nil
}
