package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-backend/internal/config"
	"github.com/examdesk/examdesk-backend/internal/grading"
	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/repository"
)

// Session lifecycle errors, mapped to API error codes by the handlers.
var (
	ErrExamNotAvailable  = errors.New("exam is not available")
	ErrExamNotStartedYet = errors.New("exam has not started yet")
	ErrExamEnded         = errors.New("exam has already ended")
	ErrNoQuestions       = errors.New("exam has no questions")
	ErrSessionNotFound   = errors.New("no session for this exam")
	ErrSessionSubmitted  = errors.New("session is already submitted")
	ErrQuestionNotInExam = errors.New("question is not part of the exam")
)

// PersistJob is the payload pushed onto the persistence queue for the
// autosave worker.
type PersistJob struct {
	ExamID           uuid.UUID                    `json:"exam_id"`
	StudentID        uuid.UUID                    `json:"student_id"`
	Answers          map[string]model.AnswerValue `json:"answers"`
	RemainingSeconds int                          `json:"remaining_seconds"`
}

// newPersistJob builds a queue payload. A nil answer map (timer-only save)
// becomes an empty object so the worker's jsonb merge stays well-formed.
func newPersistJob(examID, studentID uuid.UUID, answers map[string]model.AnswerValue, remainingSeconds int) PersistJob {
	if answers == nil {
		answers = map[string]model.AnswerValue{}
	}
	return PersistJob{
		ExamID:           examID,
		StudentID:        studentID,
		Answers:          answers,
		RemainingSeconds: remainingSeconds,
	}
}

// clampRemaining applies a client-reported countdown to the resolved one.
// The timer only shrinks, and never below zero; WebSocket clients bypass
// request binding, so the floor is enforced here.
func clampRemaining(current int, reported *int) int {
	if reported == nil {
		return current
	}
	r := *reported
	if r < 0 {
		r = 0
	}
	if r < current {
		return r
	}
	return current
}

// ExamSessionService handles the student attempt lifecycle: start, resume,
// autosave, submit, and grading.
type ExamSessionService struct {
	sessionRepo  *repository.ExamSessionRepository
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessionRepo *repository.ExamSessionRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		sessionRepo:  sessionRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_session_service").Logger(),
	}
}

// LobbyStatus represents the concrete state of an exam in the student lobby.
type LobbyStatus string

const (
	LobbyStatusUpcoming   LobbyStatus = "UPCOMING"
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusExpired    LobbyStatus = "EXPIRED"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusSubmitted  LobbyStatus = "SUBMITTED"
)

// LobbyExam represents an exam as displayed in the student lobby.
type LobbyExam struct {
	model.Exam
	LobbyStatus LobbyStatus `json:"lobby_status"`
	Score       *float64    `json:"score,omitempty"`
}

// lobbyStatusFor maps a resolved attempt onto its lobby label. An attempt
// whose timer already ran out shows EXPIRED even before the expiry worker
// closes the row; only attempts with time left are IN_PROGRESS.
func lobbyStatusFor(exam *model.Exam, state AttemptState, now time.Time) LobbyStatus {
	switch state.Status {
	case AttemptSubmitted:
		return LobbyStatusSubmitted
	case AttemptResumable:
		if state.RemainingSeconds == 0 {
			return LobbyStatusExpired
		}
		return LobbyStatusInProgress
	default:
		switch {
		case exam.Ended(now):
			return LobbyStatusExpired
		case exam.WindowOpen(now):
			return LobbyStatusAvailable
		default:
			return LobbyStatusUpcoming
		}
	}
}

// GetLobby returns all published exams with the student's attempt state
// overlaid on each.
func (s *ExamSessionService) GetLobby(ctx context.Context, studentID uuid.UUID) ([]LobbyExam, error) {
	exams, _, err := s.examRepo.List(ctx, 1, 500, true)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	sessions, err := s.sessionRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessionMap := make(map[uuid.UUID]*model.ExamSession, len(sessions))
	for i := range sessions {
		sessionMap[sessions[i].ExamID] = &sessions[i]
	}

	now := time.Now()
	lobby := []LobbyExam{}

	for _, exam := range exams {
		entry := LobbyExam{Exam: exam}

		state := ResolveAttempt(&exam, sessionMap[exam.ID], nil, studentID, now)
		entry.LobbyStatus = lobbyStatusFor(&exam, state, now)
		if state.Status == AttemptSubmitted {
			entry.Score = state.Session.Score
		}

		lobby = append(lobby, entry)
	}

	return lobby, nil
}

// Start begins or resumes an attempt. Starting twice resumes the existing
// session instead of creating a second one, including under concurrent
// starts from two tabs.
func (s *ExamSessionService) Start(ctx context.Context, examID, studentID uuid.UUID) (*AttemptState, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.IsPublished {
		return nil, ErrExamNotAvailable
	}

	now := time.Now()

	// An existing in-progress attempt resolves even after the window
	// closed; the expiry worker closes it rather than start erasing it.
	// A submitted attempt cannot be started again, the caller belongs on
	// the result view.
	existing, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		if existing.Status == model.SessionStatusSubmitted {
			return nil, ErrSessionSubmitted
		}
		state := ResolveAttempt(exam, existing, s.readSnapshot(ctx, examID, studentID), studentID, now)
		return &state, nil
	}

	if exam.StartTime != nil && now.Before(*exam.StartTime) {
		return nil, ErrExamNotStartedYet
	}
	if exam.Ended(now) {
		return nil, ErrExamEnded
	}
	if len(exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	session := &model.ExamSession{
		ExamID:           examID,
		StudentID:        studentID,
		Status:           model.SessionStatusInProgress,
		Answers:          map[string]model.AnswerValue{},
		RemainingSeconds: exam.DurationMinutes * 60,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start from another tab won the insert.
			existing, fetchErr := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			state := ResolveAttempt(exam, existing, s.readSnapshot(ctx, examID, studentID), studentID, now)
			return &state, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.writeSnapshot(ctx, exam, session)

	state := ResolveAttempt(exam, session, nil, studentID, now)
	return &state, nil
}

// Resume resolves the current attempt state without creating anything.
func (s *ExamSessionService) Resume(ctx context.Context, examID, studentID uuid.UUID) (*AttemptState, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	state := ResolveAttempt(exam, sess, s.readSnapshot(ctx, examID, studentID), studentID, time.Now())
	return &state, nil
}

// Autosave records in-flight progress. The snapshot write is synchronous so
// a crashed server never loses more than the last call; the database write
// goes through the persistence queue.
func (s *ExamSessionService) Autosave(ctx context.Context, examID, studentID uuid.UUID, req *model.AutosaveRequest) (*AttemptState, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusSubmitted {
		return nil, ErrSessionSubmitted
	}

	state := ResolveAttempt(exam, sess, s.readSnapshot(ctx, examID, studentID), studentID, time.Now())

	for k, v := range req.Answers {
		state.Answers[k] = v
	}
	// A client reporting more time than the server computed is stale or
	// lying; a negative report is a lie in the other direction.
	state.RemainingSeconds = clampRemaining(state.RemainingSeconds, req.RemainingSeconds)

	sess.Answers = state.Answers
	sess.RemainingSeconds = state.RemainingSeconds
	s.writeSnapshot(ctx, exam, sess)

	job := newPersistJob(examID, studentID, req.Answers, state.RemainingSeconds)
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal persist job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSessionsQueue, payload).Err(); err != nil {
		// The snapshot already holds the save; the next successful push
		// or the submit path will catch the database up.
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("enqueue persist job failed")
	}

	return &state, nil
}

// Submit finalizes an attempt and grades the auto-gradable answers.
// Submitting an already-submitted attempt returns the terminal state
// unchanged, so retries and the expiry worker cannot double-grade.
func (s *ExamSessionService) Submit(ctx context.Context, examID, studentID uuid.UUID, answers map[string]model.AnswerValue) (*model.ExamSession, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusSubmitted {
		return sess, nil
	}

	state := ResolveAttempt(exam, sess, s.readSnapshot(ctx, examID, studentID), studentID, time.Now())
	for k, v := range answers {
		state.Answers[k] = v
	}

	questions, err := s.questionRepo.ListByIDs(ctx, exam.Questions)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	scores, total := grading.Grade(state.Answers, questions)
	sess.Answers = state.Answers
	sess.QuestionScores = scores
	sess.Score = &total

	updated, err := s.sessionRepo.Submit(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("submit session: %w", err)
	}
	if !updated {
		// Lost the race against another submit. The stored row is the
		// terminal truth.
		return s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	}

	s.deleteSnapshot(ctx, examID, studentID)

	return s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
}

// ExpireOverdue auto-submits every in-progress session whose timer or exam
// window has run out. Returns the number of sessions closed.
func (s *ExamSessionService) ExpireOverdue(ctx context.Context) (int, error) {
	expired, err := s.sessionRepo.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	closed := 0
	for _, sess := range expired {
		if _, err := s.Submit(ctx, sess.ExamID, sess.StudentID, nil); err != nil {
			s.log.Error().Err(err).
				Str("exam_id", sess.ExamID.String()).
				Str("student_id", sess.StudentID.String()).
				Msg("auto-submit failed")
			continue
		}
		closed++
	}
	return closed, nil
}

// GetResults retrieves paginated submitted results with optional filters.
func (s *ExamSessionService) GetResults(ctx context.Context, page, perPage int, examID, studentID *uuid.UUID) ([]repository.SessionResult, int64, error) {
	return s.sessionRepo.ListResults(ctx, page, perPage, examID, studentID)
}

// GetSessionDetail retrieves one session with full answers and scores,
// plus the maximum attainable score so callers can show score/max.
func (s *ExamSessionService) GetSessionDetail(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, float64, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrSessionNotFound
		}
		return nil, 0, err
	}

	exam, err := s.examRepo.GetByID(ctx, sess.ExamID)
	if err != nil {
		return nil, 0, fmt.Errorf("get exam: %w", err)
	}
	questions, err := s.questionRepo.ListByIDs(ctx, exam.Questions)
	if err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}

	return sess, grading.MaxTotal(questions), nil
}

// GradeQuestion records a manual score for one question of a submitted
// attempt and recomputes the total over all graded questions.
func (s *ExamSessionService) GradeQuestion(ctx context.Context, req *model.GradeRequest) (*model.ExamSession, error) {
	exam, err := s.examRepo.GetByID(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	inExam := false
	for _, qid := range exam.Questions {
		if qid == req.QuestionID {
			inExam = true
			break
		}
	}
	if !inExam {
		return nil, ErrQuestionNotInExam
	}

	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, req.ExamID, req.StudentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status != model.SessionStatusSubmitted {
		return nil, ErrSessionNotFound
	}

	question, err := s.questionRepo.GetByID(ctx, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if err := grading.ValidateManualScore(question, *req.NewScore); err != nil {
		return nil, err
	}

	if sess.QuestionScores == nil {
		sess.QuestionScores = map[string]*float64{}
	}
	sess.QuestionScores[req.QuestionID.String()] = req.NewScore

	total := grading.Total(sess.QuestionScores)
	sess.Score = &total

	if err := s.sessionRepo.UpdateQuestionScores(ctx, sess.ID, sess.QuestionScores, total); err != nil {
		return nil, fmt.Errorf("update scores: %w", err)
	}
	return sess, nil
}

// ─── Snapshot helpers ───────────────────────────────────────────────────

func (s *ExamSessionService) writeSnapshot(ctx context.Context, exam *model.Exam, sess *model.ExamSession) {
	snap := model.SessionSnapshot{
		ExamID:           sess.ExamID,
		StudentID:        sess.StudentID,
		Status:           sess.Status,
		Answers:          sess.Answers,
		RemainingSeconds: sess.RemainingSeconds,
		StartedAtUnix:    sess.StartedAt.Unix(),
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal snapshot")
		return
	}

	// Keep the snapshot around past the deadline so a late resume can
	// still recover unsaved answers before the expiry worker closes it.
	ttl := time.Duration(exam.DurationMinutes)*time.Minute + time.Hour

	key := config.CacheKey.SessionSnapshotKey(sess.ExamID.String(), sess.StudentID.String())
	if err := s.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		// Snapshot loss is survivable; the database still has the last
		// persisted state.
		s.log.Warn().Err(err).Str("key", key).Msg("write snapshot failed")
	}
}

func (s *ExamSessionService) readSnapshot(ctx context.Context, examID, studentID uuid.UUID) *model.SessionSnapshot {
	key := config.CacheKey.SessionSnapshotKey(examID.String(), studentID.String())
	payload, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("read snapshot failed")
		}
		return nil
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("corrupt snapshot dropped")
		_ = s.rdb.Del(ctx, key)
		return nil
	}
	return &snap
}

func (s *ExamSessionService) deleteSnapshot(ctx context.Context, examID, studentID uuid.UUID) {
	key := config.CacheKey.SessionSnapshotKey(examID.String(), studentID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("delete snapshot failed")
	}
}
