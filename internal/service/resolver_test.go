package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/examdesk/examdesk-backend/internal/model"
)

var (
	resolverExamID    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	resolverStudentID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	otherExamID       = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	otherStudentID    = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

func thirtyMinuteExam(startedAgo time.Duration, now time.Time) (*model.Exam, *model.ExamSession) {
	exam := &model.Exam{
		ID:              resolverExamID,
		Title:           "Algebra Midterm",
		DurationMinutes: 30,
		IsPublished:     true,
	}
	sess := &model.ExamSession{
		ID:               uuid.New(),
		ExamID:           resolverExamID,
		StudentID:        resolverStudentID,
		StartedAt:        now.Add(-startedAgo),
		Status:           model.SessionStatusInProgress,
		Answers:          map[string]model.AnswerValue{},
		RemainingSeconds: 1800 - int(startedAgo.Seconds()),
	}
	return exam, sess
}

func TestResolveAttemptNoSession(t *testing.T) {
	now := time.Now()
	exam, _ := thirtyMinuteExam(0, now)

	state := ResolveAttempt(exam, nil, nil, resolverStudentID, now)
	if state.Status != AttemptNotStarted {
		t.Fatalf("status = %s, want %s", state.Status, AttemptNotStarted)
	}
}

func TestResolveAttemptSnapshotAloneNeverCreatesAttempt(t *testing.T) {
	now := time.Now()
	exam, _ := thirtyMinuteExam(0, now)

	// A leftover snapshot with no database record must not resurrect an
	// attempt the database never saw.
	snap := &model.SessionSnapshot{
		ExamID:           resolverExamID,
		StudentID:        resolverStudentID,
		Status:           model.SessionStatusInProgress,
		Answers:          map[string]model.AnswerValue{"q1": model.TextAnswer("A")},
		RemainingSeconds: 900,
	}

	state := ResolveAttempt(exam, nil, snap, resolverStudentID, now)
	if state.Status != AttemptNotStarted {
		t.Fatalf("status = %s, want %s", state.Status, AttemptNotStarted)
	}
}

func TestResolveAttemptSubmittedIsTerminal(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(10*time.Minute, now)
	sess.Status = model.SessionStatusSubmitted
	score := 7.5
	sess.Score = &score

	// Even a fresh-looking in-progress snapshot cannot reopen it.
	snap := &model.SessionSnapshot{
		ExamID:           resolverExamID,
		StudentID:        resolverStudentID,
		Status:           model.SessionStatusInProgress,
		Answers:          map[string]model.AnswerValue{"q9": model.TextAnswer("late")},
		RemainingSeconds: 500,
	}

	state := ResolveAttempt(exam, sess, snap, resolverStudentID, now)
	if state.Status != AttemptSubmitted {
		t.Fatalf("status = %s, want %s", state.Status, AttemptSubmitted)
	}
	if _, ok := state.Answers["q9"]; ok {
		t.Fatal("snapshot answers leaked into a submitted attempt")
	}
}

func TestResolveAttemptFreshSessionTimer(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(0, now)

	state := ResolveAttempt(exam, sess, nil, resolverStudentID, now)
	if state.Status != AttemptResumable {
		t.Fatalf("status = %s, want %s", state.Status, AttemptResumable)
	}
	if state.RemainingSeconds != 1800 {
		t.Fatalf("remaining = %d, want 1800 for a 30 minute exam", state.RemainingSeconds)
	}
}

func TestResolveAttemptSnapshotMergesFresherAnswers(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(5*time.Minute, now)
	sess.Answers = map[string]model.AnswerValue{
		"q1": model.TextAnswer("old"),
	}

	snap := &model.SessionSnapshot{
		ExamID:    resolverExamID,
		StudentID: resolverStudentID,
		Status:    model.SessionStatusInProgress,
		Answers: map[string]model.AnswerValue{
			"q1": model.TextAnswer("new"),
			"q2": model.ChoicesAnswer([]string{"a", "c"}),
		},
		RemainingSeconds: sess.RemainingSeconds,
	}

	state := ResolveAttempt(exam, sess, snap, resolverStudentID, now)

	if got, _ := state.Answers["q1"].Text(); got != "new" {
		t.Fatalf("q1 = %q, want snapshot value %q", got, "new")
	}
	if _, ok := state.Answers["q2"]; !ok {
		t.Fatal("q2 from snapshot missing after merge")
	}
}

func TestResolveAttemptSnapshotCannotExtendTimer(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(20*time.Minute, now)
	sess.RemainingSeconds = 600

	snap := &model.SessionSnapshot{
		ExamID:           resolverExamID,
		StudentID:        resolverStudentID,
		Status:           model.SessionStatusInProgress,
		RemainingSeconds: 1700,
	}

	state := ResolveAttempt(exam, sess, snap, resolverStudentID, now)
	if state.RemainingSeconds > 600 {
		t.Fatalf("remaining = %d, snapshot extended the timer past 600", state.RemainingSeconds)
	}
}

func TestResolveAttemptMismatchedSnapshotIgnored(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(5*time.Minute, now)

	cases := []struct {
		name string
		snap *model.SessionSnapshot
	}{
		{"wrong exam", &model.SessionSnapshot{
			ExamID: otherExamID, StudentID: resolverStudentID,
			Status:  model.SessionStatusInProgress,
			Answers: map[string]model.AnswerValue{"qX": model.TextAnswer("stray")},
		}},
		{"wrong student", &model.SessionSnapshot{
			ExamID: resolverExamID, StudentID: otherStudentID,
			Status:  model.SessionStatusInProgress,
			Answers: map[string]model.AnswerValue{"qX": model.TextAnswer("stray")},
		}},
		{"zero ids", &model.SessionSnapshot{
			Status:  model.SessionStatusInProgress,
			Answers: map[string]model.AnswerValue{"qX": model.TextAnswer("stray")},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := ResolveAttempt(exam, sess, tc.snap, resolverStudentID, now)
			if state.Status != AttemptResumable {
				t.Fatalf("status = %s, want %s", state.Status, AttemptResumable)
			}
			if _, ok := state.Answers["qX"]; ok {
				t.Fatal("answers from a mismatched snapshot were merged")
			}
		})
	}
}

func TestResolveAttemptWallClockClampsTimer(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(25*time.Minute, now)
	// Database value is stale: it claims more time than the wall clock
	// permits.
	sess.RemainingSeconds = 1500

	state := ResolveAttempt(exam, sess, nil, resolverStudentID, now)
	if state.RemainingSeconds > 300 {
		t.Fatalf("remaining = %d, want at most 300 with 25 of 30 minutes elapsed", state.RemainingSeconds)
	}
}

func TestResolveAttemptTimerNeverNegative(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(45*time.Minute, now)
	sess.RemainingSeconds = 0

	state := ResolveAttempt(exam, sess, nil, resolverStudentID, now)
	if state.RemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want 0 for an overdue attempt", state.RemainingSeconds)
	}
	if state.Status != AttemptResumable {
		// Overdue but unsubmitted stays resumable; the expiry worker is
		// the one that closes it.
		t.Fatalf("status = %s, want %s", state.Status, AttemptResumable)
	}
}

func TestResolveAttemptExamEndTimeClampsTimer(t *testing.T) {
	now := time.Now()
	exam, sess := thirtyMinuteExam(5*time.Minute, now)
	end := now.Add(2 * time.Minute)
	exam.EndTime = &end

	state := ResolveAttempt(exam, sess, nil, resolverStudentID, now)
	if state.RemainingSeconds > 120 {
		t.Fatalf("remaining = %d, want at most 120 with the window closing in 2 minutes", state.RemainingSeconds)
	}
}
