package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-backend/internal/grading"
	"github.com/examdesk/examdesk-backend/internal/middleware"
	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/response"
	"github.com/examdesk/examdesk-backend/internal/service"
	"github.com/examdesk/examdesk-backend/internal/validator"
)

// ResultHandler handles result listing and manual grading endpoints.
type ResultHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "result_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/results?page=&per_page=&exam_id=&student_id=
// Admins see everything; students only their own results.
func (h *ResultHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, perPage := paginationParams(c)

	var examID, studentID *uuid.UUID
	if raw := c.Query("exam_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		examID = &id
	}
	if raw := c.Query("student_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		studentID = &id
	}

	// Students can only query their own results, whatever they ask for.
	if claims.Role == model.RoleStudent {
		studentID = &claims.UserID
	}

	results, total, err := h.sessionService.GetResults(c.Request.Context(), page, perPage, examID, studentID)
	if err != nil {
		h.log.Error().Err(err).Msg("list results")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results},
		response.NewPagination(page, perPage, total))
}

// GetSession godoc
// GET /api/v1/results/sessions/:session_id
// Full session detail with answers and per-question scores.
func (h *ResultHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, maxScore, err := h.sessionService.GetSessionDetail(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if claims.Role == model.RoleStudent && sess.StudentID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":   sess,
		"max_score": maxScore,
	})
}

// GradeQuestion godoc
// POST /api/v1/results/grade
// Records a manual score for one question of a submitted attempt.
func (h *ResultHandler) GradeQuestion(c *gin.Context) {
	var req model.GradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.GradeQuestion(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		case errors.Is(err, service.ErrQuestionNotInExam):
			response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInExam)
		case errors.Is(err, grading.ErrScoreOutOfRange):
			response.Fail(c, http.StatusBadRequest, response.ErrScoreOutOfRange)
		default:
			h.log.Error().Err(err).Msg("grade question")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}
