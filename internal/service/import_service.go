package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/repository"
)

// ErrEmptySheet is returned when the uploaded workbook has no data rows.
var ErrEmptySheet = errors.New("spreadsheet has no data rows")

// Expected header columns of an import sheet, in order.
var importHeader = []string{"title", "description", "complexity", "type", "options", "correct_answers", "max_score", "tags"}

// RowError describes why one spreadsheet row was rejected.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportPreview is the parse result returned to the admin for review
// before anything is written to the question bank.
type ImportPreview struct {
	Questions []model.CreateQuestionRequest `json:"questions"`
	Errors    []RowError                    `json:"errors"`
}

// ImportSummary reports what a confirmed import actually wrote.
type ImportSummary struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Titles  []string `json:"skipped_titles,omitempty"`
}

// ImportService parses question bank spreadsheets. Import is two-phase:
// Parse returns a preview, ConfirmImport writes the reviewed rows.
type ImportService struct {
	questionSvc  *QuestionService
	questionRepo *repository.QuestionRepository
	log          zerolog.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(questionSvc *QuestionService, questionRepo *repository.QuestionRepository, log zerolog.Logger) *ImportService {
	return &ImportService{
		questionSvc:  questionSvc,
		questionRepo: questionRepo,
		log:          log.With().Str("component", "import_service").Logger(),
	}
}

// Parse reads an .xlsx workbook and converts its first sheet into question
// drafts. Invalid rows are reported per-row instead of failing the batch.
func (s *ImportService) Parse(r io.Reader) (*ImportPreview, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}

	preview := &ImportPreview{Questions: []model.CreateQuestionRequest{}, Errors: []RowError{}}

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header

		q, err := parseRow(row)
		if err != nil {
			preview.Errors = append(preview.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		preview.Questions = append(preview.Questions, *q)
	}

	return preview, nil
}

// ConfirmImport writes reviewed question drafts to the bank. Rows whose
// title already exists are skipped rather than duplicated, so re-uploading
// the same sheet is harmless.
func (s *ImportService) ConfirmImport(ctx context.Context, req *model.ConfirmImportRequest) (*ImportSummary, error) {
	summary := &ImportSummary{}

	for i := range req.Questions {
		draft := &req.Questions[i]

		exists, err := s.questionRepo.TitleExists(ctx, draft.Title)
		if err != nil {
			return nil, fmt.Errorf("check title: %w", err)
		}
		if exists {
			summary.Skipped++
			summary.Titles = append(summary.Titles, draft.Title)
			continue
		}

		if _, err := s.questionSvc.Create(ctx, draft); err != nil {
			return nil, fmt.Errorf("create question %q: %w", draft.Title, err)
		}
		summary.Created++
	}

	s.log.Info().
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Msg("question import confirmed")
	return summary, nil
}

func parseRow(row []string) (*model.CreateQuestionRequest, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	title := cell(0)
	if title == "" {
		return nil, errors.New("title is required")
	}

	qType := model.QuestionType(cell(3))
	switch qType {
	case model.QuestionTypeSingleChoice, model.QuestionTypeMultiChoice,
		model.QuestionTypeText, model.QuestionTypeImageUpload:
	default:
		return nil, fmt.Errorf("unknown question type %q", cell(3))
	}

	var options []string
	if raw := cell(4); raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return nil, fmt.Errorf("options must be a JSON string array: %v", err)
		}
	}

	var correct model.AnswerValue
	if raw := cell(5); raw != "" {
		if err := json.Unmarshal([]byte(raw), &correct); err != nil {
			return nil, fmt.Errorf("correct_answers is not valid JSON: %v", err)
		}
	}

	maxScore, err := strconv.ParseFloat(cell(6), 64)
	if err != nil {
		return nil, fmt.Errorf("max_score is not a number: %q", cell(6))
	}
	if maxScore <= 0 {
		return nil, errors.New("max_score must be positive")
	}

	var tags []string
	if raw := cell(7); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
	}

	req := &model.CreateQuestionRequest{
		Title:          title,
		Description:    cell(1),
		Complexity:     cell(2),
		Type:           qType,
		Options:        options,
		CorrectAnswers: correct,
		MaxScore:       maxScore,
		Tags:           tags,
	}

	// Fail early with row context instead of at confirm time.
	if err := validateAnswerShape(&model.Question{
		Type:           req.Type,
		Options:        req.Options,
		CorrectAnswers: req.CorrectAnswers,
	}); err != nil {
		return nil, err
	}

	return req, nil
}

// TemplateHeader returns the header row for the downloadable import
// template.
func TemplateHeader() []string {
	header := make([]string, len(importHeader))
	copy(header, importHeader)
	return header
}

// BuildTemplate produces an empty import workbook with the expected
// header and one example row.
func BuildTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, col := range importHeader {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cellName, col); err != nil {
			return nil, err
		}
	}

	example := []interface{}{
		"What is 2 + 2?", "Basic arithmetic", "easy", "single_choice",
		`["3","4","5"]`, `"4"`, 1, "math,basics",
	}
	for i, v := range example {
		cellName, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cellName, v); err != nil {
			return nil, err
		}
	}

	return f, nil
}
