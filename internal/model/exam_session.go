package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam attempt states. The only transition is
// in_progress -> submitted; there is no way back.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusSubmitted  SessionStatus = "submitted"
)

// ExamSession is a student's attempt at one exam. At most one session
// exists per (exam, student) pair. QuestionScores carries nil entries for
// manually graded questions until an admin sets them; Score is the sum of
// the known entries.
type ExamSession struct {
	ID               uuid.UUID              `json:"id"`
	ExamID           uuid.UUID              `json:"exam_id"`
	StudentID        uuid.UUID              `json:"student_id"`
	StartedAt        time.Time              `json:"start_time"`
	Status           SessionStatus          `json:"status"`
	Answers          map[string]AnswerValue `json:"answers"`
	QuestionScores   map[string]*float64    `json:"question_scores,omitempty"`
	RemainingSeconds int                    `json:"remaining_seconds"`
	Score            *float64               `json:"score,omitempty"`
	SubmittedAt      *time.Time             `json:"submitted_at,omitempty"`
	UpdatedAt        time.Time              `json:"-"`
}

// SessionSnapshot is the best-effort Redis mirror of an in-progress
// session, written synchronously on every autosave. It is a resilience
// cache, never a source of truth: consumers must verify that both ids are
// present and match before trusting it.
type SessionSnapshot struct {
	ExamID           uuid.UUID              `json:"exam_id"`
	StudentID        uuid.UUID              `json:"student_id"`
	Status           SessionStatus          `json:"status"`
	Answers          map[string]AnswerValue `json:"answers"`
	RemainingSeconds int                    `json:"remaining_seconds"`
	StartedAtUnix    int64                  `json:"started_at"`
}

// AutosaveRequest is the payload for the periodic session save. Both
// fields are optional; a missing field leaves the stored value untouched.
type AutosaveRequest struct {
	Answers          map[string]AnswerValue `json:"answers" binding:"omitempty"`
	RemainingSeconds *int                   `json:"remaining_seconds" binding:"omitempty,min=0"`
}

// SubmitRequest carries the final answer map. It is merged over the
// autosaved answers, so a partial map is fine.
type SubmitRequest struct {
	Answers map[string]AnswerValue `json:"answers" binding:"omitempty"`
}

// ResultsQuery filters submitted sessions. Students are always restricted
// to their own results regardless of StudentID.
type ResultsQuery struct {
	ExamID    *uuid.UUID `json:"exam_id" binding:"omitempty"`
	StudentID *uuid.UUID `json:"student_id" binding:"omitempty"`
}

// GradeRequest is the admin payload for scoring one manually graded
// question of a submitted session.
type GradeRequest struct {
	ExamID     uuid.UUID `json:"exam_id" binding:"required"`
	StudentID  uuid.UUID `json:"student_id" binding:"required"`
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	NewScore   *float64  `json:"new_score" binding:"required,min=0"`
}
