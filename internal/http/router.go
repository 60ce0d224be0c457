package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/courseloom/courseloom-backend/internal/http/handlers"
	httpMW "github.com/courseloom/courseloom-backend/internal/http/middleware"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	ContentHandler     *httpH.ContentHandler
	ProgressHandler    *httpH.ProgressHandler
	EnrollmentHandler  *httpH.EnrollmentHandler
	QuizHandler        *httpH.QuizHandler
	AnalyticsHandler   *httpH.AnalyticsHandler
	CertificateHandler *httpH.CertificateHandler
	UserHandler        *httpH.UserHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(otelgin.Middleware("courseloom-backend"))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Course content & ordering
		if cfg.ContentHandler != nil {
			protected.POST("/courses/:id/sections", cfg.ContentHandler.CreateSection)
			protected.GET("/courses/:id/outline", cfg.ContentHandler.GetCourseOutline)
			protected.PATCH("/sections/:id", cfg.ContentHandler.RenameSection)
			protected.POST("/sections/:id/lessons", cfg.ContentHandler.InsertLesson)
			protected.PUT("/sections/:id/order", cfg.ContentHandler.ReorderSection)
			protected.DELETE("/lessons/:id", cfg.ContentHandler.DeleteLesson)
			protected.POST("/lessons/:id/move", cfg.ContentHandler.MoveLesson)
		}

		// Progress & completion
		if cfg.ProgressHandler != nil {
			protected.POST("/lessons/:id/events", cfg.ProgressHandler.RecordLessonEvent)
			protected.GET("/lessons/:id/progress", cfg.ProgressHandler.GetLessonProgress)
			protected.GET("/courses/:id/progress", cfg.ProgressHandler.GetCourseProgress)
			protected.POST("/courses/:id/progress/recompute", cfg.ProgressHandler.RecomputeCourseProgress)
		}

		// Enrollment
		if cfg.EnrollmentHandler != nil {
			protected.POST("/courses/:id/enroll", cfg.EnrollmentHandler.Enroll)
			protected.GET("/enrollments", cfg.EnrollmentHandler.ListMyEnrollments)
			protected.GET("/enrollments/:id", cfg.EnrollmentHandler.GetEnrollment)
		}

		// Quiz attempts
		if cfg.QuizHandler != nil {
			protected.POST("/lessons/:id/attempts", cfg.QuizHandler.SubmitAttempt)
			protected.GET("/lessons/:id/attempts", cfg.QuizHandler.ListAttempts)
			protected.GET("/lessons/:id/can-retake", cfg.QuizHandler.CanRetake)
		}

		// Analytics
		if cfg.AnalyticsHandler != nil {
			protected.GET("/lessons/:id/analytics", cfg.AnalyticsHandler.QuizAnalytics)
		}

		// Certificates
		if cfg.CertificateHandler != nil {
			protected.GET("/certificates", cfg.CertificateHandler.ListMyCertificates)
			protected.GET("/certificates/verify/:serial", cfg.CertificateHandler.VerifyBySerial)
		}

		// User (me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
			protected.PATCH("/user/name", cfg.UserHandler.ChangeName)
		}
	}

	return r
}
