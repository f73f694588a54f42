package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/repository"
)

// Question bank errors.
var (
	ErrQuestionNotFound  = errors.New("question not found")
	ErrBadAnswerShape    = errors.New("correct_answers shape does not match question type")
	ErrOptionsRequired   = errors.New("choice questions need at least two options")
	ErrAnswerNotInOption = errors.New("correct answer is not among the options")
)

// QuestionService handles question bank management.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

// List retrieves questions with optional search, tag, complexity and type
// filters.
func (s *QuestionService) List(ctx context.Context, page, perPage int, search, tag, complexity, questionType string) ([]model.Question, int64, error) {
	return s.questionRepo.List(ctx, page, perPage, search, tag, complexity, questionType)
}

// GetByID retrieves a single question.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// Create validates and stores a new question.
func (s *QuestionService) Create(ctx context.Context, req *model.CreateQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		Title:          req.Title,
		Description:    req.Description,
		Complexity:     req.Complexity,
		Type:           req.Type,
		Options:        req.Options,
		CorrectAnswers: req.CorrectAnswers,
		MaxScore:       req.MaxScore,
		Tags:           req.Tags,
	}
	if err := validateAnswerShape(q); err != nil {
		return nil, err
	}

	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// Update applies a partial update to a question.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateQuestionRequest) (*model.Question, error) {
	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		q.Title = *req.Title
	}
	if req.Description != nil {
		q.Description = *req.Description
	}
	if req.Complexity != nil {
		q.Complexity = *req.Complexity
	}
	if req.Type != nil {
		q.Type = *req.Type
	}
	if req.Options != nil {
		q.Options = *req.Options
	}
	if req.CorrectAnswers != nil {
		q.CorrectAnswers = *req.CorrectAnswers
	}
	if req.MaxScore != nil {
		q.MaxScore = *req.MaxScore
	}
	if req.Tags != nil {
		q.Tags = *req.Tags
	}

	if err := validateAnswerShape(q); err != nil {
		return nil, err
	}

	if err := s.questionRepo.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return q, nil
}

// Delete removes a question from the bank. Exams referencing it keep
// working; the dangling id is filtered out when papers are built.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.questionRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrQuestionNotFound
	}
	return nil
}

// validateAnswerShape enforces that the stored answer key matches the
// question type: a string for single_choice, a string list for
// multi_choice, and nothing for manually graded types.
func validateAnswerShape(q *model.Question) error {
	switch q.Type {
	case model.QuestionTypeSingleChoice:
		if len(q.Options) < 2 {
			return ErrOptionsRequired
		}
		answer, ok := q.CorrectAnswers.Text()
		if !ok {
			return ErrBadAnswerShape
		}
		if !contains(q.Options, answer) {
			return ErrAnswerNotInOption
		}

	case model.QuestionTypeMultiChoice:
		if len(q.Options) < 2 {
			return ErrOptionsRequired
		}
		answers, ok := q.CorrectAnswers.Choices()
		if !ok || len(answers) == 0 {
			return ErrBadAnswerShape
		}
		for _, a := range answers {
			if !contains(q.Options, a) {
				return ErrAnswerNotInOption
			}
		}

	case model.QuestionTypeText, model.QuestionTypeImageUpload:
		if !q.CorrectAnswers.IsNull() {
			return ErrBadAnswerShape
		}
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
