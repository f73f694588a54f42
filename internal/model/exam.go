package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam represents an exam assembled from question-bank entries. Questions
// holds ordered question ids; the questions themselves stay in the bank.
type Exam struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	StartTime       *time.Time  `json:"start_time,omitempty"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	IsPublished     bool        `json:"is_published"`
	Questions       []uuid.UUID `json:"questions"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// WindowOpen reports whether now falls inside the exam's scheduled window.
// A missing bound is treated as unbounded on that side.
func (e *Exam) WindowOpen(now time.Time) bool {
	if e.StartTime != nil && now.Before(*e.StartTime) {
		return false
	}
	if e.EndTime != nil && now.After(*e.EndTime) {
		return false
	}
	return true
}

// Ended reports whether the exam window has closed.
func (e *Exam) Ended(now time.Time) bool {
	return e.EndTime != nil && now.After(*e.EndTime)
}

// CreateExamRequest is the payload for creating an exam.
type CreateExamRequest struct {
	Title           string      `json:"title" binding:"required,min=3,max=255"`
	Description     string      `json:"description" binding:"omitempty,max=10000"`
	StartTime       *time.Time  `json:"start_time" binding:"omitempty"`
	EndTime         *time.Time  `json:"end_time" binding:"omitempty,gtfield=StartTime"`
	DurationMinutes int         `json:"duration_minutes" binding:"required,min=1,max=480"`
	Questions       []uuid.UUID `json:"questions" binding:"omitempty"`
	IsPublished     bool        `json:"is_published"`
}

// UpdateExamRequest is the payload for updating an exam. Only fields that
// are present are applied; Questions replaces the whole ordered list.
type UpdateExamRequest struct {
	Title           *string      `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string      `json:"description" binding:"omitempty,max=10000"`
	StartTime       *time.Time   `json:"start_time" binding:"omitempty"`
	EndTime         *time.Time   `json:"end_time" binding:"omitempty"`
	DurationMinutes *int         `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Questions       *[]uuid.UUID `json:"questions" binding:"omitempty"`
	IsPublished     *bool        `json:"is_published" binding:"omitempty"`
}

// ExamPaper is the student-facing exam payload: metadata plus sanitized
// questions, cached in Redis while the exam is published.
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}
