package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/examdesk/examdesk-backend/internal/middleware"
	"github.com/examdesk/examdesk-backend/internal/model"
	"github.com/examdesk/examdesk-backend/internal/response"
	"github.com/examdesk/examdesk-backend/internal/service"
	"github.com/examdesk/examdesk-backend/internal/validator"
)

// StudentPortalHandler handles the student exam-taking endpoints.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	examService    *service.ExamService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessionService *service.ExamSessionService, examService *service.ExamService, log zerolog.Logger) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		examService:    examService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetLobby godoc
// GET /api/v1/student/exams
// Lists published exams with the student's attempt state overlaid.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.sessionService.GetLobby(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("get lobby")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": lobby})
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Begins an attempt, or resumes the existing one. Never creates a second
// session for the same (exam, student) pair.
func (h *StudentPortalHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	h.respondAttempt(c, examID, state)
}

// GetSession godoc
// GET /api/v1/student/exams/:exam_id/session
// Resolves the current attempt without creating anything.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.Resume(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	h.respondAttempt(c, examID, state)
}

// Autosave godoc
// PATCH /api/v1/student/exams/:exam_id/session
// Records in-flight answers and the countdown. Safe to call repeatedly.
func (h *StudentPortalHandler) Autosave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessionService.Autosave(c.Request.Context(), examID, claims.UserID, &req)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":            "saved",
		"remaining_seconds": state.RemainingSeconds,
	})
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam_id/submit
// Finalizes the attempt and grades it. Repeat submits return the terminal
// state unchanged.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Submit(c.Request.Context(), examID, claims.UserID, req.Answers)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

func (h *StudentPortalHandler) respondAttempt(c *gin.Context, examID uuid.UUID, state *service.AttemptState) {
	body := gin.H{
		"attempt_status":    state.Status,
		"session":           state.Session,
		"answers":           state.Answers,
		"remaining_seconds": state.RemainingSeconds,
	}

	// Submitted attempts get their result, active ones get the paper.
	if state.Status != service.AttemptSubmitted {
		paper, err := h.examService.GetPaper(c.Request.Context(), examID)
		if err != nil {
			h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("get paper")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		body["exam"] = paper
	}

	response.Success(c, http.StatusOK, body)
}

func (h *StudentPortalHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrExamNotStartedYet):
		response.Fail(c, http.StatusBadRequest, response.ErrExamNotStarted)
	case errors.Is(err, service.ErrExamEnded):
		response.Fail(c, http.StatusBadRequest, response.ErrExamEnded)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrSessionSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	default:
		h.log.Error().Err(err).Msg("session operation")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
