package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multi_choice"
	QuestionTypeText         QuestionType = "text"
	QuestionTypeImageUpload  QuestionType = "image_upload"
)

// AutoGradable reports whether answers of this type can be scored by
// comparing against the stored correct answer.
func (t QuestionType) AutoGradable() bool {
	return t == QuestionTypeSingleChoice || t == QuestionTypeMultiChoice
}

// Question is a question-bank entry. CorrectAnswers is a string for
// single_choice and a string array for multi_choice; it is never sent to
// students.
type Question struct {
	ID             uuid.UUID    `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Complexity     string       `json:"complexity"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options,omitempty"`
	CorrectAnswers AnswerValue  `json:"correct_answers,omitempty"`
	MaxScore       float64      `json:"max_score"`
	Tags           []string     `json:"tags,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// QuestionForStudent is a question stripped of its correct answer, as
// embedded in exam papers.
type QuestionForStudent struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Complexity  string       `json:"complexity"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options,omitempty"`
	MaxScore    float64      `json:"max_score"`
	Tags        []string     `json:"tags,omitempty"`
}

// Sanitize converts a bank question into its student-facing form.
func (q *Question) Sanitize() QuestionForStudent {
	return QuestionForStudent{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Complexity:  q.Complexity,
		Type:        q.Type,
		Options:     q.Options,
		MaxScore:    q.MaxScore,
		Tags:        q.Tags,
	}
}

// CreateQuestionRequest is the payload for adding a bank question.
type CreateQuestionRequest struct {
	Title          string       `json:"title" binding:"required,min=1,max=500"`
	Description    string       `json:"description" binding:"omitempty,max=10000"`
	Complexity     string       `json:"complexity" binding:"omitempty,max=50"`
	Type           QuestionType `json:"type" binding:"required,oneof=single_choice multi_choice text image_upload"`
	Options        []string     `json:"options" binding:"omitempty,dive,max=2000"`
	CorrectAnswers AnswerValue  `json:"correct_answers"`
	MaxScore       float64      `json:"max_score" binding:"required,gt=0"`
	Tags           []string     `json:"tags" binding:"omitempty,dive,max=100"`
}

// UpdateQuestionRequest is the payload for editing a bank question. Only
// fields that are present are applied.
type UpdateQuestionRequest struct {
	Title          *string       `json:"title" binding:"omitempty,min=1,max=500"`
	Description    *string       `json:"description" binding:"omitempty,max=10000"`
	Complexity     *string       `json:"complexity" binding:"omitempty,max=50"`
	Type           *QuestionType `json:"type" binding:"omitempty,oneof=single_choice multi_choice text image_upload"`
	Options        *[]string     `json:"options" binding:"omitempty,dive,max=2000"`
	CorrectAnswers *AnswerValue  `json:"correct_answers" binding:"omitempty"`
	MaxScore       *float64      `json:"max_score" binding:"omitempty,gt=0"`
	Tags           *[]string     `json:"tags" binding:"omitempty,dive,max=100"`
}

// ConfirmImportRequest carries parsed rows the admin accepted from an
// upload preview.
type ConfirmImportRequest struct {
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
