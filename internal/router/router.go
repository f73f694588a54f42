package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/examdesk/examdesk-backend/internal/config"
	"github.com/examdesk/examdesk-backend/internal/handler"
	"github.com/examdesk/examdesk-backend/internal/middleware"
	"github.com/examdesk/examdesk-backend/internal/response"
	"github.com/examdesk/examdesk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	QuestionBank  *handler.QuestionBankHandler
	Exam          *handler.ExamHandler
	StudentPortal *handler.StudentPortalHandler
	Result        *handler.ResultHandler
	Media         *handler.MediaHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Serve uploaded media files statically with aggressive caching (1 year).
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── Auth Group (Public, Rate Limited) ─────────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	// ─── Users Group (Any Role) ────────────────────────────────────────
	users := router.Group("/api/v1/users")
	users.Use(middleware.RequireJWT(authService))
	{
		users.GET("/me", handlers.Auth.GetProfile)
	}

	// ─── Student Group (Student JWT) ───────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.GET("/exams", handlers.StudentPortal.GetLobby)
		studentAPI.POST("/exams/:exam_id/start", handlers.StudentPortal.StartExam)
		studentAPI.GET("/exams/:exam_id/session", handlers.StudentPortal.GetSession)
		studentAPI.PATCH("/exams/:exam_id/session", handlers.StudentPortal.Autosave)
		studentAPI.POST("/exams/:exam_id/submit", handlers.StudentPortal.SubmitExam)
		studentAPI.POST("/media/upload", handlers.Media.Upload)
	}

	// ─── WebSocket Group (Student WS Auth) ─────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/exams/:exam_id/stream", handlers.WS.ExamStream)
	}

	// ─── Results Group (Any Role, scoped inside the handler) ──────────
	results := router.Group("/api/v1/results")
	results.Use(middleware.RequireJWT(authService))
	{
		results.GET("", handlers.Result.List)
		results.GET("/sessions/:session_id", handlers.Result.GetSession)
	}

	// ─── Admin Group (Admin JWT) ───────────────────────────────────────
	adminAPI := router.Group("/api/v1")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Question bank
		adminAPI.GET("/questions", handlers.QuestionBank.List)
		adminAPI.POST("/questions", handlers.QuestionBank.Create)
		adminAPI.GET("/questions/import-template", handlers.QuestionBank.Template)
		adminAPI.POST("/questions/upload", handlers.QuestionBank.Upload)
		adminAPI.POST("/questions/confirm-import", handlers.QuestionBank.ConfirmImport)
		adminAPI.GET("/questions/:question_id", handlers.QuestionBank.Get)
		adminAPI.PUT("/questions/:question_id", handlers.QuestionBank.Update)
		adminAPI.DELETE("/questions/:question_id", handlers.QuestionBank.Delete)

		// Exam management
		adminAPI.GET("/exams", handlers.Exam.List)
		adminAPI.POST("/exams", handlers.Exam.Create)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.Get)
		adminAPI.PUT("/exams/:exam_id", handlers.Exam.Update)
		adminAPI.DELETE("/exams/:exam_id", handlers.Exam.Delete)
		adminAPI.POST("/exams/:exam_id/publish", handlers.Exam.Publish)
		adminAPI.POST("/exams/:exam_id/unpublish", handlers.Exam.Unpublish)

		// Manual grading
		adminAPI.POST("/results/grade", handlers.Result.GradeQuestion)
	}

	return router
}
