// internal/source/googlefit/adapter.go
package googlefit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jpfieber/sleepsync/internal/source"
)

const (
	defaultBaseURL = "https://www.googleapis.com/fitness/v1"

	// Google Fit activity type for sleep sessions.
	sleepActivityType = 72

	// Merged sleep-segment data source for per-stage breakdowns.
	sleepSegmentSource = "derived:com.google.sleep.segment:com.google.android.gms:merged"
)

// Sleep stage codes from the segment data stream. Codes not listed
// (awake, out-of-bed) do not count toward any stage total.
var stageNames = map[int]string{
	4: "light",
	5: "deep",
	6: "rem",
}

// Adapter fetches sleep sessions from the Google Fit REST API. It is the
// fallback source when no calendar feed is configured. Every outbound
// request goes through the token client's shared rate-limit watermark.
type Adapter struct {
	tokens  *TokenClient
	client  *http.Client
	baseURL string
	loc     *time.Location
}

// New creates a fitness Adapter on top of the given token client.
func New(tokens *TokenClient, loc *time.Location) *Adapter {
	return &Adapter{
		tokens:  tokens,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: defaultBaseURL,
		loc:     loc,
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (a *Adapter) SetBaseURL(u string) { a.baseURL = u }

func (a *Adapter) Name() string { return "googlefit" }

type sessionList struct {
	Session []struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		StartTimeMillis string `json:"startTimeMillis"`
		EndTimeMillis   string `json:"endTimeMillis"`
	} `json:"session"`
}

type dataset struct {
	Point []struct {
		StartTimeNanos string `json:"startTimeNanos"`
		EndTimeNanos   string `json:"endTimeNanos"`
		Value          []struct {
			IntVal int `json:"intVal"`
		} `json:"value"`
	} `json:"point"`
}

// FetchEvents lists sleep sessions overlapping the window and sums their
// per-stage segment hours. Stage data is optional: a failed segment fetch
// degrades to a record without stage totals.
func (a *Adapter) FetchEvents(ctx context.Context, window source.Window) ([]source.RawSleepRecord, error) {
	start := time.Date(window.Start.Year(), window.Start.Month(), window.Start.Day(), 0, 0, 0, 0, a.loc)
	end := time.Date(window.End.Year(), window.End.Month(), window.End.Day(), 0, 0, 0, 0, a.loc).AddDate(0, 0, 1)

	q := url.Values{
		"startTime":    {start.Format(time.RFC3339)},
		"endTime":      {end.Format(time.RFC3339)},
		"activityType": {strconv.Itoa(sleepActivityType)},
	}
	body, err := a.get(ctx, "/users/me/sessions?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list sleep sessions: %w", err)
	}

	var list sessionList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode session list: %w", err)
	}

	var records []source.RawSleepRecord
	for _, s := range list.Session {
		startMs, err1 := strconv.ParseInt(s.StartTimeMillis, 10, 64)
		endMs, err2 := strconv.ParseInt(s.EndTimeMillis, 10, 64)
		if err1 != nil || err2 != nil || endMs <= startMs {
			slog.Debug("skipping malformed fitness session", "session_id", s.ID)
			continue
		}

		rec := source.RawSleepRecord{
			StartTime:   startMs / 1000,
			EndTime:     endMs / 1000,
			Description: s.Name,
		}
		hours := float64(endMs-startMs) / 1000 / 3600
		rec.DurationHours = &hours

		stages, err := a.fetchStages(ctx, startMs, endMs)
		if err != nil {
			slog.Debug("stage fetch failed, keeping session without stages",
				"session_id", s.ID, "error", err)
		} else if len(stages) > 0 {
			rec.StageHours = stages
		}

		records = append(records, rec)
	}

	return records, nil
}

// fetchStages sums the sleep-segment dataset covering the session into
// per-stage hour totals.
func (a *Adapter) fetchStages(ctx context.Context, startMs, endMs int64) (map[string]float64, error) {
	datasetID := fmt.Sprintf("%d-%d", startMs*1e6, endMs*1e6)
	path := fmt.Sprintf("/users/me/dataSources/%s/datasets/%s", url.PathEscape(sleepSegmentSource), datasetID)

	body, err := a.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var ds dataset
	if err := json.Unmarshal(body, &ds); err != nil {
		return nil, fmt.Errorf("decode segment dataset: %w", err)
	}

	stages := make(map[string]float64)
	for _, p := range ds.Point {
		if len(p.Value) == 0 {
			continue
		}
		name, ok := stageNames[p.Value[0].IntVal]
		if !ok {
			continue
		}
		startNs, err1 := strconv.ParseInt(p.StartTimeNanos, 10, 64)
		endNs, err2 := strconv.ParseInt(p.EndTimeNanos, 10, 64)
		if err1 != nil || err2 != nil || endNs <= startNs {
			continue
		}
		stages[name] += float64(endNs-startNs) / float64(time.Hour)
	}
	return stages, nil
}

// get performs one authenticated API request, honoring the shared rate
// limit and refreshing the token first when needed.
func (a *Adapter) get(ctx context.Context, path string) ([]byte, error) {
	if err := a.tokens.Wait(ctx); err != nil {
		return nil, err
	}
	access, err := a.tokens.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: API returned %s", ErrAuthFailed, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fitness API returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
