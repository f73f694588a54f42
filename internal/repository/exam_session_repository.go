package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examdesk/examdesk-backend/internal/model"
)

// SessionResult combines session grading state with student identity for
// the results listing.
type SessionResult struct {
	SessionID   uuid.UUID           `json:"session_id"`
	ExamID      uuid.UUID           `json:"exam_id"`
	ExamTitle   string              `json:"exam_title"`
	StudentID   uuid.UUID           `json:"student_id"`
	StudentName string              `json:"student_name"`
	Email       string              `json:"email"`
	Status      model.SessionStatus `json:"status"`
	Score       *float64            `json:"score"`
	SubmittedAt *time.Time          `json:"submitted_at"`
}

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, student_id, started_at, status, answers, question_scores, remaining_seconds, score, submitted_at, updated_at`

func scanSession(row interface{ Scan(...any) error }, s *model.ExamSession) error {
	return row.Scan(
		&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.Status,
		&s.Answers, &s.QuestionScores, &s.RemainingSeconds,
		&s.Score, &s.SubmittedAt, &s.UpdatedAt,
	)
}

// GetByExamAndStudent retrieves the session for an exam-student pair, or
// pgx.ErrNoRows when the student never started.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	row := r.pool.QueryRow(ctx,
		"SELECT "+sessionColumns+` FROM exam_sessions WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID)
	if err := scanSession(row, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session by id.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	row := r.pool.QueryRow(ctx,
		"SELECT "+sessionColumns+` FROM exam_sessions WHERE id = $1`, id)
	if err := scanSession(row, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new in-progress session with a full timer. The unique
// (exam_id, student_id) constraint makes a double start a no-op; callers
// detect the conflict via pgx.ErrNoRows and re-fetch the existing row.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status, answers, remaining_seconds)
		 VALUES ($1, $2, $3, '{}', $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at, updated_at`,
		s.ExamID, s.StudentID, model.SessionStatusInProgress, s.RemainingSeconds,
	).Scan(&s.ID, &s.StartedAt, &s.UpdatedAt)
}

// PersistAutosave merges autosaved progress into an in-progress session.
// The timer only ever shrinks: LEAST keeps a stale write from extending it.
// Submitted sessions are never touched, so a save racing a submit loses.
// COALESCE covers timer-only payloads whose answer map arrives as null;
// without it the jsonb concatenation errors and the job would retry forever.
func (r *ExamSessionRepository) PersistAutosave(ctx context.Context, examID, studentID uuid.UUID, answers map[string]model.AnswerValue, remainingSeconds int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET answers = answers || COALESCE($1, '{}'::jsonb),
		     remaining_seconds = LEAST(remaining_seconds, $2),
		     updated_at = NOW()
		 WHERE exam_id = $3 AND student_id = $4 AND status = $5`,
		answers, remainingSeconds, examID, studentID, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Submit finalizes a session with its graded scores. The in_progress guard
// makes submission idempotent: a second call affects zero rows.
func (r *ExamSessionRepository) Submit(ctx context.Context, s *model.ExamSession) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, answers = $2, question_scores = $3, score = $4,
		     remaining_seconds = 0, submitted_at = NOW(), updated_at = NOW()
		 WHERE id = $5 AND status = $6`,
		model.SessionStatusSubmitted, s.Answers, s.QuestionScores, s.Score,
		s.ID, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateQuestionScores replaces a submitted session's per-question scores
// and recomputed total after manual grading.
func (r *ExamSessionRepository) UpdateQuestionScores(ctx context.Context, id uuid.UUID, scores map[string]*float64, total float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET question_scores = $1, score = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		scores, total, id, model.SessionStatusSubmitted)
	return err
}

// ListByStudent retrieves all sessions for a student, newest first.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+sessionColumns+` FROM exam_sessions WHERE student_id = $1 ORDER BY started_at DESC`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListResults retrieves submitted session results with optional exam and
// student filters, paginated.
func (r *ExamSessionRepository) ListResults(ctx context.Context, page, perPage int, examID, studentID *uuid.UUID) ([]SessionResult, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM exam_sessions es
		JOIN users u ON es.student_id = u.id
		JOIN exams e ON es.exam_id = e.id
		WHERE es.status = $1
	`
	args := []any{model.SessionStatusSubmitted}

	if examID != nil {
		args = append(args, *examID)
		baseQuery += fmt.Sprintf(" AND es.exam_id = $%d", len(args))
	}
	if studentID != nil {
		args = append(args, *studentID)
		baseQuery += fmt.Sprintf(" AND es.student_id = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT es.id, es.exam_id, e.title, es.student_id, u.full_name, u.email,
		       es.status, es.score, es.submitted_at
		` + baseQuery + fmt.Sprintf(`
		ORDER BY es.submitted_at DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var sr SessionResult
		if err := rows.Scan(
			&sr.SessionID, &sr.ExamID, &sr.ExamTitle, &sr.StudentID,
			&sr.StudentName, &sr.Email, &sr.Status, &sr.Score, &sr.SubmittedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, sr)
	}
	return results, total, rows.Err()
}

// ListExpired retrieves in-progress sessions whose timer has run out or
// whose exam window has closed. The expiry worker auto-submits these.
func (r *ExamSessionRepository) ListExpired(ctx context.Context, now time.Time) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT es.id, es.exam_id, es.student_id, es.started_at, es.status,
		       es.answers, es.question_scores, es.remaining_seconds,
		       es.score, es.submitted_at, es.updated_at
		FROM exam_sessions es
		JOIN exams e ON es.exam_id = e.id
		WHERE es.status = $1
		  AND (es.started_at + make_interval(mins => e.duration_minutes) <= $2
		       OR (e.end_time IS NOT NULL AND e.end_time <= $2))`,
		model.SessionStatusInProgress, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
