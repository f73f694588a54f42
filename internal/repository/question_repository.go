package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examdesk/examdesk-backend/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, title, description, complexity, question_type, options, correct_answers, max_score, tags, created_at, updated_at`

func scanQuestion(row interface{ Scan(...any) error }, q *model.Question) error {
	return row.Scan(
		&q.ID, &q.Title, &q.Description, &q.Complexity, &q.Type,
		&q.Options, &q.CorrectAnswers, &q.MaxScore, &q.Tags,
		&q.CreatedAt, &q.UpdatedAt,
	)
}

// List retrieves questions with optional search, tag, complexity and type
// filters, paginated. Search matches the title case-insensitively.
func (r *QuestionRepository) List(ctx context.Context, page, perPage int, search, tag, complexity, questionType string) ([]model.Question, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := ` FROM questions WHERE 1=1`
	args := []any{}

	if search != "" {
		args = append(args, "%"+search+"%")
		baseQuery += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}
	if tag != "" {
		args = append(args, tag)
		baseQuery += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
	}
	if complexity != "" {
		args = append(args, complexity)
		baseQuery += fmt.Sprintf(" AND complexity = $%d", len(args))
	}
	if questionType != "" {
		args = append(args, questionType)
		baseQuery += fmt.Sprintf(" AND question_type = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + questionColumns + baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

// GetByID retrieves a single question by id.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	row := r.pool.QueryRow(ctx,
		"SELECT "+questionColumns+" FROM questions WHERE id = $1", id)
	if err := scanQuestion(row, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListByIDs retrieves all questions whose ids appear in the given set.
// Questions are returned in database order; callers reorder as needed.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+questionColumns+" FROM questions WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question and fills in its generated id and timestamps.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (title, description, complexity, question_type, options, correct_answers, max_score, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		q.Title, q.Description, q.Complexity, q.Type, q.Options, q.CorrectAnswers, q.MaxScore, q.Tags,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Update replaces a question's fields. Returns pgx.ErrNoRows via the caller's
// GetByID check when the question does not exist.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET title = $1, description = $2, complexity = $3, question_type = $4,
		     options = $5, correct_answers = $6, max_score = $7, tags = $8,
		     updated_at = NOW()
		 WHERE id = $9`,
		q.Title, q.Description, q.Complexity, q.Type, q.Options, q.CorrectAnswers, q.MaxScore, q.Tags, q.ID)
	return err
}

// Delete removes a question. The exam_questions junction rows cascade.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TitleExists reports whether a question with the given title already exists.
// Used by the import flow to skip duplicates.
func (r *QuestionRepository) TitleExists(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM questions WHERE title = $1)`, title,
	).Scan(&exists)
	return exists, err
}

// CountExisting returns how many of the given ids exist in the question bank.
func (r *QuestionRepository) CountExisting(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE id = ANY($1)`, ids,
	).Scan(&count)
	return count, err
}
