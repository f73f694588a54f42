package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/examdesk/examdesk-backend/internal/model"
)

func TestNewPersistJobTimerOnlySave(t *testing.T) {
	// A save carrying only the countdown has no answer map. The queue
	// payload must still hold an empty object, never null, or the worker's
	// jsonb merge fails on every retry.
	job := newPersistJob(resolverExamID, resolverStudentID, nil, 1200)
	if job.Answers == nil {
		t.Fatal("nil answer map survived into the persist job")
	}

	payload, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"answers":{}`) {
		t.Fatalf("payload = %s, want an empty answers object", payload)
	}

	var restored PersistJob
	if err := json.Unmarshal(payload, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.RemainingSeconds != 1200 {
		t.Fatalf("remaining = %d, want 1200", restored.RemainingSeconds)
	}
}

func TestNewPersistJobKeepsAnswers(t *testing.T) {
	answers := map[string]model.AnswerValue{"q1": model.TextAnswer("4")}
	job := newPersistJob(resolverExamID, resolverStudentID, answers, 900)

	if got, _ := job.Answers["q1"].Text(); got != "4" {
		t.Fatalf("q1 = %q, want %q", got, "4")
	}
}

func TestClampRemaining(t *testing.T) {
	intp := func(v int) *int { return &v }

	cases := []struct {
		name     string
		current  int
		reported *int
		want     int
	}{
		{"no report keeps server value", 600, nil, 600},
		{"smaller report shrinks", 600, intp(500), 500},
		{"larger report ignored", 600, intp(1700), 600},
		{"negative report floors at zero", 600, intp(-5), 0},
		{"zero accepted", 600, intp(0), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampRemaining(tc.current, tc.reported); got != tc.want {
				t.Fatalf("clampRemaining(%d, %v) = %d, want %d", tc.current, tc.reported, got, tc.want)
			}
		})
	}
}

func TestLobbyStatusForOverdueAttempt(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(45*time.Minute, now)
	sess.RemainingSeconds = 0

	// The expiry worker has not swept yet, but the student is out of time;
	// the lobby must not invite them back in.
	state := ResolveAttempt(exam, sess, nil, resolverStudentID, now)
	if got := lobbyStatusFor(exam, state, now); got != LobbyStatusExpired {
		t.Fatalf("lobby status = %s, want %s for a run-out timer", got, LobbyStatusExpired)
	}
}

func TestLobbyStatusForStates(t *testing.T) {
	now := time.Now()

	t.Run("active attempt", func(t *testing.T) {
		exam, sess := thirtyMinuteExam(5*time.Minute, now)
		state := ResolveAttempt(exam, sess, nil, resolverStudentID, now)
		if got := lobbyStatusFor(exam, state, now); got != LobbyStatusInProgress {
			t.Fatalf("lobby status = %s, want %s", got, LobbyStatusInProgress)
		}
	})

	t.Run("submitted attempt", func(t *testing.T) {
		exam, sess := thirtyMinuteExam(10*time.Minute, now)
		sess.Status = model.SessionStatusSubmitted
		state := ResolveAttempt(exam, sess, nil, resolverStudentID, now)
		if got := lobbyStatusFor(exam, state, now); got != LobbyStatusSubmitted {
			t.Fatalf("lobby status = %s, want %s", got, LobbyStatusSubmitted)
		}
	})

	t.Run("not started, window open", func(t *testing.T) {
		exam, _ := thirtyMinuteExam(0, now)
		state := ResolveAttempt(exam, nil, nil, resolverStudentID, now)
		if got := lobbyStatusFor(exam, state, now); got != LobbyStatusAvailable {
			t.Fatalf("lobby status = %s, want %s", got, LobbyStatusAvailable)
		}
	})

	t.Run("not started, window closed", func(t *testing.T) {
		exam, _ := thirtyMinuteExam(0, now)
		end := now.Add(-time.Minute)
		exam.EndTime = &end
		state := ResolveAttempt(exam, nil, nil, resolverStudentID, now)
		if got := lobbyStatusFor(exam, state, now); got != LobbyStatusExpired {
			t.Fatalf("lobby status = %s, want %s", got, LobbyStatusExpired)
		}
	})

	t.Run("not started, window not yet open", func(t *testing.T) {
		exam, _ := thirtyMinuteExam(0, now)
		start := now.Add(time.Hour)
		exam.StartTime = &start
		state := ResolveAttempt(exam, nil, nil, resolverStudentID, now)
		if got := lobbyStatusFor(exam, state, now); got != LobbyStatusUpcoming {
			t.Fatalf("lobby status = %s, want %s", got, LobbyStatusUpcoming)
		}
	})
}
