package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/response"
	"github.com/examdesk/examdesk-backend/internal/service"
	"github.com/examdesk/examdesk-backend/internal/validator"
)

// QuestionBankHandler handles admin question bank endpoints.
type QuestionBankHandler struct {
	questionService *service.QuestionService
	importService   *service.ImportService
	log             zerolog.Logger
}

// NewQuestionBankHandler creates a new QuestionBankHandler.
func NewQuestionBankHandler(questionService *service.QuestionService, importService *service.ImportService, log zerolog.Logger) *QuestionBankHandler {
	return &QuestionBankHandler{
		questionService: questionService,
		importService:   importService,
		log:             log.With().Str("component", "question_bank_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/questions?page=&per_page=&search=&tag=&complexity=&type=
func (h *QuestionBankHandler) List(c *gin.Context) {
	page, perPage := paginationParams(c)

	questions, total, err := h.questionService.List(c.Request.Context(), page, perPage,
		c.Query("search"), c.Query("tag"), c.Query("complexity"), c.Query("type"))
	if err != nil {
		h.log.Error().Err(err).Msg("list questions")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions},
		response.NewPagination(page, perPage, total))
}

// Get godoc
// GET /api/v1/questions/:question_id
func (h *QuestionBankHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	question, err := h.questionService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// Create godoc
// POST /api/v1/questions
func (h *QuestionBankHandler) Create(c *gin.Context) {
	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), &req)
	if err != nil {
		if isShapeError(err) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"correct_answers": err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("create question")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// Update godoc
// PUT /api/v1/questions/:question_id
func (h *QuestionBankHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case isShapeError(err):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"correct_answers": err.Error()})
		default:
			h.log.Error().Err(err).Msg("update question")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// Delete godoc
// DELETE /api/v1/questions/:question_id
func (h *QuestionBankHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("delete question")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Upload godoc
// POST /api/v1/questions/upload
// Parses an .xlsx workbook into question drafts for review. Nothing is
// written until confirm-import.
func (h *QuestionBankHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	preview, err := h.importService.Parse(file)
	if err != nil {
		if errors.Is(err, service.ErrEmptySheet) {
			response.Fail(c, http.StatusBadRequest, response.ErrImportFailed)
			return
		}
		h.log.Warn().Err(err).Str("filename", fileHeader.Filename).Msg("parse workbook")
		response.Fail(c, http.StatusBadRequest, response.ErrImportFailed)
		return
	}

	response.Success(c, http.StatusOK, preview)
}

// ConfirmImport godoc
// POST /api/v1/questions/confirm-import
// Writes reviewed question drafts to the bank, skipping duplicate titles.
func (h *QuestionBankHandler) ConfirmImport(c *gin.Context) {
	var req model.ConfirmImportRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	summary, err := h.importService.ConfirmImport(c.Request.Context(), &req)
	if err != nil {
		if isShapeError(err) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"questions": err.Error()})
			return
		}
		h.log.Error().Err(err).Msg("confirm import")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, summary)
}

// Template godoc
// GET /api/v1/questions/import-template
// Streams an empty import workbook with the expected header.
func (h *QuestionBankHandler) Template(c *gin.Context) {
	f, err := service.BuildTemplate()
	if err != nil {
		h.log.Error().Err(err).Msg("build template")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="question_import_template.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		h.log.Error().Err(err).Msg("stream template")
	}
}

func isShapeError(err error) bool {
	return errors.Is(err, service.ErrBadAnswerShape) ||
		errors.Is(err, service.ErrOptionsRequired) ||
		errors.Is(err, service.ErrAnswerNotInOption)
}

func paginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if err != nil || perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
