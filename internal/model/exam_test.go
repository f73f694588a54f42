package model

import (
	"testing"
	"time"
)

func TestExamWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	cases := []struct {
		name     string
		exam     Exam
		wantOpen bool
		wantEnd  bool
	}{
		{"no window", Exam{}, true, false},
		{"inside window", Exam{StartTime: &before, EndTime: &after}, true, false},
		{"before start", Exam{StartTime: &after}, false, false},
		{"after end", Exam{EndTime: &before}, false, true},
		{"open ended start passed", Exam{StartTime: &before}, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.exam.WindowOpen(now); got != tc.wantOpen {
				t.Fatalf("WindowOpen = %v, want %v", got, tc.wantOpen)
			}
			if got := tc.exam.Ended(now); got != tc.wantEnd {
				t.Fatalf("Ended = %v, want %v", got, tc.wantEnd)
			}
		})
	}
}
