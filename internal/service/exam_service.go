package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-backend/internal/config"
	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/repository"
)

// Exam management errors.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrInvalidQuestionIDs = errors.New("one or more question ids do not exist")
	ErrDuplicateQuestions = errors.New("duplicate question ids in exam")
	ErrPublishNoQuestions = errors.New("cannot publish an exam without questions")
)

// ExamService handles exam management and the published paper cache.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// List retrieves exams, paginated. Students only ever see published exams.
func (s *ExamService) List(ctx context.Context, page, perPage int, publishedOnly bool) ([]model.Exam, int64, error) {
	return s.examRepo.List(ctx, page, perPage, publishedOnly)
}

// GetByID retrieves a single exam.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return exam, nil
}

// Create validates and stores a new exam.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	if err := s.validateQuestions(ctx, req.Questions); err != nil {
		return nil, err
	}
	if req.IsPublished && len(req.Questions) == 0 {
		return nil, ErrPublishNoQuestions
	}

	exam := &model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		IsPublished:     req.IsPublished,
		Questions:       req.Questions,
	}
	if exam.Questions == nil {
		exam.Questions = []uuid.UUID{}
	}

	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	if exam.IsPublished {
		s.warmPaperCache(ctx, exam)
	}
	return exam, nil
}

// Update applies a partial update to an exam.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.StartTime != nil {
		exam.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = req.EndTime
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.Questions != nil {
		if err := s.validateQuestions(ctx, *req.Questions); err != nil {
			return nil, err
		}
		exam.Questions = *req.Questions
	}
	if req.IsPublished != nil {
		exam.IsPublished = *req.IsPublished
	}

	if exam.StartTime != nil && exam.EndTime != nil && !exam.EndTime.After(*exam.StartTime) {
		return nil, errors.New("end_time must be after start_time")
	}
	if exam.IsPublished && len(exam.Questions) == 0 {
		return nil, ErrPublishNoQuestions
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}

	// The stored paper changed shape; rebuild or drop the cache.
	if exam.IsPublished {
		s.warmPaperCache(ctx, exam)
	} else {
		s.dropPaperCache(ctx, exam.ID)
	}
	return exam, nil
}

// Delete removes an exam. Exams with student sessions cannot be deleted.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.examRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrExamNotFound
	}
	s.dropPaperCache(ctx, id)
	return nil
}

// Publish makes an exam visible to students and warms its paper cache.
func (s *ExamService) Publish(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(exam.Questions) == 0 {
		return nil, ErrPublishNoQuestions
	}

	if _, err := s.examRepo.SetPublished(ctx, id, true); err != nil {
		return nil, fmt.Errorf("publish exam: %w", err)
	}
	exam.IsPublished = true

	s.warmPaperCache(ctx, exam)
	return exam, nil
}

// Unpublish hides an exam from students and drops its paper cache.
func (s *ExamService) Unpublish(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.examRepo.SetPublished(ctx, id, false); err != nil {
		return nil, fmt.Errorf("unpublish exam: %w", err)
	}
	exam.IsPublished = false

	s.dropPaperCache(ctx, id)
	return exam, nil
}

// GetPaper returns the student-facing view of a published exam: sanitized
// questions in exam order, correct answers stripped. Served from Redis
// when warm, rebuilt from PostgreSQL on a miss with a self-heal write.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	key := config.CacheKey.ExamPaperKey(examID.String())

	payload, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var paper model.ExamPaper
		if jsonErr := json.Unmarshal(payload, &paper); jsonErr == nil {
			return &paper, nil
		}
		// Corrupt entry; fall through to a rebuild.
		_ = s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", key).Msg("paper cache read failed")
	}

	exam, err := s.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsPublished {
		return nil, ErrExamNotFound
	}

	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(paper); err == nil {
		_ = s.rdb.Set(ctx, key, data, 0).Err()
	}
	return paper, nil
}

// PrewarmPaperCaches rebuilds the paper cache for every published exam.
// Called at startup so the first student of the day hits Redis, not
// PostgreSQL.
func (s *ExamService) PrewarmPaperCaches(ctx context.Context) error {
	exams, _, err := s.examRepo.List(ctx, 1, 500, true)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	for i := range exams {
		s.warmPaperCache(ctx, &exams[i])
	}
	s.log.Info().Int("count", len(exams)).Msg("paper caches prewarmed")
	return nil
}

func (s *ExamService) buildPaper(ctx context.Context, exam *model.Exam) (*model.ExamPaper, error) {
	questions, err := s.questionRepo.ListByIDs(ctx, exam.Questions)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	// Preserve exam order; skip ids whose question was deleted since.
	sanitized := make([]model.QuestionForStudent, 0, len(exam.Questions))
	for _, qid := range exam.Questions {
		if q, ok := byID[qid]; ok {
			sanitized = append(sanitized, q.Sanitize())
		}
	}

	return &model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		Questions:       sanitized,
	}, nil
}

func (s *ExamService) warmPaperCache(ctx context.Context, exam *model.Exam) {
	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("build paper failed")
		return
	}
	data, err := json.Marshal(paper)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal paper")
		return
	}
	key := config.CacheKey.ExamPaperKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("warm paper cache failed")
	}
}

func (s *ExamService) dropPaperCache(ctx context.Context, examID uuid.UUID) {
	key := config.CacheKey.ExamPaperKey(examID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("drop paper cache failed")
	}
}

func (s *ExamService) validateQuestions(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ErrDuplicateQuestions
		}
		seen[id] = struct{}{}
	}

	count, err := s.questionRepo.CountExisting(ctx, ids)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count != len(ids) {
		return ErrInvalidQuestionIDs
	}
	return nil
}
