package journal

import (
	"testing"

	"github.com/jpfieber/sleepsync/internal/event"
)

func TestRenderEntry_Sleep(t *testing.T) {
	e := event.Event{Kind: event.KindSleep, Date: "2024-03-07", Time: "23:15", UserID: "u1"}
	got := RenderEntry(testCategory(), e)
	want := "- [s] (time:: 2024-03-07T23:15) Asleep at 23:15"
	if got != want {
		t.Errorf("RenderEntry() = %q, want %q", got, want)
	}
}

func TestRenderEntry_WakeWithDuration(t *testing.T) {
	d := 7.5
	e := event.Event{Kind: event.KindWake, Date: "2024-03-08", Time: "06:45", DurationHours: &d, UserID: "u1"}
	got := RenderEntry(testCategory(), e)
	want := "- [s] (time:: 2024-03-08T06:45) Awake at 06:45 after 7.5 hours of sleep"
	if got != want {
		t.Errorf("RenderEntry() = %q, want %q", got, want)
	}
}

func TestEntryExists(t *testing.T) {
	cat := testCategory()
	content := "# 2024-03-07 Thu\n" +
		"- [s] (time:: 2024-03-07T23:15) Asleep at 23:15\n" +
		"- [x] unrelated task at 23:15\n"

	sleep := event.Event{Kind: event.KindSleep, Date: "2024-03-07", Time: "23:15"}
	if !EntryExists(content, cat, sleep) {
		t.Error("EntryExists() = false for present sleep entry")
	}

	wake := event.Event{Kind: event.KindWake, Date: "2024-03-07", Time: "23:15"}
	if EntryExists(content, cat, wake) {
		t.Error("EntryExists() = true for wake with same time as sleep entry")
	}

	otherTime := event.Event{Kind: event.KindSleep, Date: "2024-03-07", Time: "22:00"}
	if EntryExists(content, cat, otherTime) {
		t.Error("EntryExists() = true for absent time")
	}
}

func TestEntryExists_MatchesDespiteDurationDifference(t *testing.T) {
	// A wake entry already on disk with one duration must block a second
	// wake entry at the same time with a recomputed duration.
	cat := testCategory()
	content := "- [s] (time:: 2024-03-08T06:45) Awake at 06:45 after 7.5 hours of sleep\n"

	d := 8.0
	wake := event.Event{Kind: event.KindWake, Date: "2024-03-08", Time: "06:45", DurationHours: &d}
	if !EntryExists(content, cat, wake) {
		t.Error("EntryExists() = false for same wake time with different duration")
	}
}

func TestFindLastSleepTime(t *testing.T) {
	cat := testCategory()
	content := "# day\n" +
		"- [s] (time:: 2024-03-07T13:00) Asleep at 13:00\n" +
		"- [s] (time:: 2024-03-07T13:45) Awake at 13:45 after 0.8 hours of sleep\n" +
		"- [s] (time:: 2024-03-07T23:15) Asleep at 23:15\n"

	if got := FindLastSleepTime(content, cat); got != "23:15" {
		t.Errorf("FindLastSleepTime() = %q, want %q", got, "23:15")
	}

	if got := FindLastSleepTime("# empty\n", cat); got != "" {
		t.Errorf("FindLastSleepTime() on empty doc = %q, want \"\"", got)
	}
}

func TestDurationBetween(t *testing.T) {
	tests := []struct {
		sleep, wake string
		want        float64
	}{
		{"23:30", "07:00", 7.5}, // crossed midnight
		{"13:00", "13:45", 0.8}, // same-day nap
		{"22:00", "06:00", 8.0},
		{"23:00", "23:00", 0.0},
	}
	for _, tt := range tests {
		got, err := DurationBetween(tt.sleep, tt.wake)
		if err != nil {
			t.Fatalf("DurationBetween(%s, %s) error = %v", tt.sleep, tt.wake, err)
		}
		if got != tt.want {
			t.Errorf("DurationBetween(%s, %s) = %v, want %v", tt.sleep, tt.wake, got, tt.want)
		}
	}
}

func TestDurationBetween_Invalid(t *testing.T) {
	if _, err := DurationBetween("not a time", "07:00"); err == nil {
		t.Fatal("DurationBetween() with malformed time succeeded, want error")
	}
}
