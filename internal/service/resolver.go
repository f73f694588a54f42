package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/examdesk/examdesk-backend/internal/model"
)

// AttemptStatus is the reconciled state of a student's exam attempt.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptResumable  AttemptStatus = "RESUMABLE"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
)

// AttemptState is the result of reconciling the database record with the
// Redis snapshot for one (exam, student) pair.
type AttemptState struct {
	Status           AttemptStatus
	Session          *model.ExamSession
	Answers          map[string]model.AnswerValue
	RemainingSeconds int
}

// ResolveAttempt reconciles a student's attempt from the authoritative
// database record and a best-effort snapshot.
//
// The database record alone decides whether an attempt exists and whether
// it is terminal. The snapshot can only enrich a resumable attempt with
// fresher autosaved answers and a tighter timer; it can never create an
// attempt, resurrect a submitted one, or extend the clock. A snapshot
// whose ids do not match the pair being resolved is ignored entirely.
//
// Pure function of its inputs so the reconciliation rules are testable
// without a database or Redis.
func ResolveAttempt(exam *model.Exam, sess *model.ExamSession, snap *model.SessionSnapshot, studentID uuid.UUID, now time.Time) AttemptState {
	if sess == nil {
		return AttemptState{Status: AttemptNotStarted}
	}

	if sess.Status == model.SessionStatusSubmitted {
		return AttemptState{
			Status:  AttemptSubmitted,
			Session: sess,
			Answers: sess.Answers,
		}
	}

	answers := sess.Answers
	if answers == nil {
		answers = map[string]model.AnswerValue{}
	}
	remaining := sess.RemainingSeconds

	if snapshotUsable(snap, sess, studentID) {
		// The worker persists asynchronously, so the snapshot may hold
		// saves the database has not seen yet.
		merged := make(map[string]model.AnswerValue, len(answers)+len(snap.Answers))
		for k, v := range answers {
			merged[k] = v
		}
		for k, v := range snap.Answers {
			merged[k] = v
		}
		answers = merged

		if snap.RemainingSeconds < remaining {
			remaining = snap.RemainingSeconds
		}
	}

	// Never report more time than the wall clock allows.
	if exam != nil {
		deadline := sess.StartedAt.Add(time.Duration(exam.DurationMinutes) * time.Minute)
		if exam.EndTime != nil && exam.EndTime.Before(deadline) {
			deadline = *exam.EndTime
		}
		if wall := int(deadline.Sub(now).Seconds()); wall < remaining {
			remaining = wall
		}
	}
	if remaining < 0 {
		remaining = 0
	}

	return AttemptState{
		Status:           AttemptResumable,
		Session:          sess,
		Answers:          answers,
		RemainingSeconds: remaining,
	}
}

func snapshotUsable(snap *model.SessionSnapshot, sess *model.ExamSession, studentID uuid.UUID) bool {
	if snap == nil {
		return false
	}
	if snap.ExamID != sess.ExamID || snap.StudentID != studentID || snap.StudentID != sess.StudentID {
		return false
	}
	// A terminal snapshot for an in-progress record means the submit's
	// snapshot cleanup raced; the record still wins, so ignore it.
	return snap.Status == model.SessionStatusInProgress
}
