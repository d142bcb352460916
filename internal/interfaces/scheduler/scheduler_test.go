package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		input   string
		want    ScheduleTime
		wantErr bool
	}{
		{"03:00", ScheduleTime{Hour: 3, Minute: 0}, false},
		{"23:59", ScheduleTime{Hour: 23, Minute: 59}, false},
		{"0:5", ScheduleTime{Hour: 0, Minute: 5}, false},
		{"24:00", ScheduleTime{}, true},
		{"12:60", ScheduleTime{}, true},
		{"noon", ScheduleTime{}, true},
		{"", ScheduleTime{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScheduleTime(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestScheduleTimeString(t *testing.T) {
	st := ScheduleTime{Hour: 3, Minute: 5}
	if st.String() != "03:05" {
		t.Errorf("Expected 03:05, got %s", st.String())
	}
}

func TestNew_RequiresScheduleTimes(t *testing.T) {
	_, err := New(Config{WorkerCount: 1, QueueSize: 1})
	if err == nil {
		t.Fatal("Expected error for empty schedule")
	}
}

func TestNew_RejectsInvalidScheduleTime(t *testing.T) {
	_, err := New(Config{ScheduleTimes: []string{"25:00"}, WorkerCount: 1, QueueSize: 1})
	if err == nil {
		t.Fatal("Expected error for out-of-range hour")
	}
}

func TestShouldRun_MatchesScheduleOncePerMinute(t *testing.T) {
	s, err := New(Config{
		ScheduleTimes: []string{"03:00"},
		WorkerCount:   1,
		QueueSize:     1,
		JobProvider: func(ctx context.Context) ([]Job, error) {
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	at := time.Date(2026, 1, 15, 3, 0, 10, 0, time.UTC)
	if !s.shouldRun(at) {
		t.Fatal("Expected first check at 03:00 to trigger")
	}
	// A second tick in the same minute must not trigger again.
	if s.shouldRun(at.Add(20 * time.Second)) {
		t.Error("Expected second check in the same minute to be suppressed")
	}

	nextDay := at.AddDate(0, 0, 1)
	if !s.shouldRun(nextDay) {
		t.Error("Expected the same time on the next day to trigger")
	}
}

func TestShouldRun_IgnoresUnscheduledMinutes(t *testing.T) {
	s, err := New(Config{
		ScheduleTimes: []string{"03:00"},
		WorkerCount:   1,
		QueueSize:     1,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	at := time.Date(2026, 1, 15, 3, 1, 0, 0, time.UTC)
	if s.shouldRun(at) {
		t.Error("Expected 03:01 not to trigger a 03:00 schedule")
	}
}
