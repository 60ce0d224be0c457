package app

import (
	"github.com/gin-gonic/gin"

	"github.com/courseloom/courseloom-backend/internal/http"
	httpH "github.com/courseloom/courseloom-backend/internal/http/handlers"
	httpMW "github.com/courseloom/courseloom-backend/internal/http/middleware"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health      *httpH.HealthHandler
	Content     *httpH.ContentHandler
	Progress    *httpH.ProgressHandler
	Enrollment  *httpH.EnrollmentHandler
	Quiz        *httpH.QuizHandler
	Analytics   *httpH.AnalyticsHandler
	Certificate *httpH.CertificateHandler
	User        *httpH.UserHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(),
		Content:     httpH.NewContentHandler(services.Content),
		Progress:    httpH.NewProgressHandler(services.Progress),
		Enrollment:  httpH.NewEnrollmentHandler(services.Enrollment),
		Quiz:        httpH.NewQuizHandler(services.Quiz),
		Analytics:   httpH.NewAnalyticsHandler(services.Analytics),
		Certificate: httpH.NewCertificateHandler(services.Certificate),
		User:        httpH.NewUserHandler(services.User),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		AuthMiddleware:     middleware.Auth,
		HealthHandler:      handlers.Health,
		ContentHandler:     handlers.Content,
		ProgressHandler:    handlers.Progress,
		EnrollmentHandler:  handlers.Enrollment,
		QuizHandler:        handlers.Quiz,
		AnalyticsHandler:   handlers.Analytics,
		CertificateHandler: handlers.Certificate,
		UserHandler:        handlers.User,
	})
}
