package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examdesk/examdesk-backend/internal/model"
)

// ErrExamHasSessions is returned when deleting an exam that students have
// already started. The sessions FK is ON DELETE RESTRICT.
var ErrExamHasSessions = errors.New("exam has existing sessions")

// ExamRepository handles exam data access, including the ordered
// exam_questions junction.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, description, start_time, end_time, duration_minutes, is_published, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }, e *model.Exam) error {
	return row.Scan(
		&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime,
		&e.DurationMinutes, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt,
	)
}

// List retrieves exams, optionally restricted to published ones, paginated.
func (r *ExamRepository) List(ctx context.Context, page, perPage int, publishedOnly bool) ([]model.Exam, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := ` FROM exams`
	if publishedOnly {
		baseQuery += ` WHERE is_published = TRUE`
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		"SELECT "+examColumns+baseQuery+" ORDER BY start_time ASC NULLS LAST, created_at DESC LIMIT $1 OFFSET $2",
		perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range exams {
		ids, err := r.listQuestionIDs(ctx, exams[i].ID)
		if err != nil {
			return nil, 0, err
		}
		exams[i].Questions = ids
	}
	return exams, total, nil
}

// GetByID retrieves an exam and its ordered question ids.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	row := r.pool.QueryRow(ctx, "SELECT "+examColumns+" FROM exams WHERE id = $1", id)
	if err := scanExam(row, e); err != nil {
		return nil, err
	}
	ids, err := r.listQuestionIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Questions = ids
	return e, nil
}

func (r *ExamRepository) listQuestionIDs(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM exam_questions WHERE exam_id = $1 ORDER BY order_num`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a new exam and its question list in one transaction.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, description, start_time, end_time, duration_minutes, is_published)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.StartTime, e.EndTime, e.DurationMinutes, e.IsPublished,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}

	if err := replaceQuestions(ctx, tx, e.ID, e.Questions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update replaces an exam's fields and question list in one transaction.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, start_time = $3, end_time = $4,
		     duration_minutes = $5, is_published = $6, updated_at = NOW()
		 WHERE id = $7`,
		e.Title, e.Description, e.StartTime, e.EndTime, e.DurationMinutes, e.IsPublished, e.ID)
	if err != nil {
		return err
	}

	if err := replaceQuestions(ctx, tx, e.ID, e.Questions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func replaceQuestions(ctx context.Context, tx pgx.Tx, examID uuid.UUID, questionIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, examID); err != nil {
		return err
	}
	for i, qid := range questionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO exam_questions (exam_id, question_id, order_num) VALUES ($1, $2, $3)`,
			examID, qid, i); err != nil {
			return err
		}
	}
	return nil
}

// SetPublished flips an exam's published flag.
func (r *ExamRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET is_published = $1, updated_at = NOW() WHERE id = $2`,
		published, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an exam. Fails with ErrExamHasSessions when any student
// session references it.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrExamHasSessions
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
