// internal/scheduler/scheduler_test.go
package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStartInvalidSchedule(t *testing.T) {
	s := New("not a schedule", func() {})
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartAcceptsStandardAndSecondsSchedules(t *testing.T) {
	for _, schedule := range []string{"0 9 * * *", "30 0 9 * * *", "@daily"} {
		s := New(schedule, func() {})
		if err := s.Start(); err != nil {
			t.Errorf("Start(%q) error = %v", schedule, err)
		}
		s.Stop()
	}
}

func TestSchedulerFiresHandler(t *testing.T) {
	var fires atomic.Int32
	s := New("* * * * * *", func() {
		fires.Add(1)
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("handler did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}
