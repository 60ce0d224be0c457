package app

import (
	"fmt"

	"gorm.io/gorm"

	dataagg "github.com/courseloom/courseloom-backend/internal/data/aggregates"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/events"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
	"github.com/courseloom/courseloom-backend/internal/services"
)

// Aggregates are the transactional write cores. Services compose them with
// authorization, read views, and post-commit side effects.
type Aggregates struct {
	Ordering    domainagg.OrderingAggregate
	Progress    domainagg.ProgressAggregate
	Attempts    domainagg.AttemptAggregate
	Certificate domainagg.CertificateAggregate
}

type Services struct {
	Auth        services.AuthService
	User        services.UserService
	Content     services.ContentService
	Progress    services.ProgressService
	Enrollment  services.EnrollmentService
	Quiz        services.QuizService
	Analytics   services.AnalyticsService
	Certificate services.CertificateService
	Issuance    services.CertificateIssuanceService
}

func wireAggregates(db *gorm.DB, log *logger.Logger, metrics *observability.Metrics, r Repos) Aggregates {
	log.Info("Wiring aggregates...")
	base := dataagg.BaseDeps{
		DB:       db,
		Log:      log,
		Runner:   dataagg.NewGormTxRunner(db),
		Hooks:    dataagg.NewObservabilityHooks(metrics),
		CASGuard: dataagg.NewCASGuard(db),
	}
	return Aggregates{
		Ordering: dataagg.NewOrderingAggregate(dataagg.OrderingAggregateDeps{
			Base:     base,
			Courses:  r.Course,
			Sections: r.Section,
			Lessons:  r.Lesson,
			Progress: r.LessonProgress,
			Attempts: r.QuizAttempt,
		}),
		Progress: dataagg.NewProgressAggregate(dataagg.ProgressAggregateDeps{
			Base:        base,
			Courses:     r.Course,
			Lessons:     r.Lesson,
			Progress:    r.LessonProgress,
			Enrollments: r.Enrollment,
		}),
		Attempts: dataagg.NewAttemptAggregate(dataagg.AttemptAggregateDeps{
			Base:        base,
			Lessons:     r.Lesson,
			Enrollments: r.Enrollment,
			Attempts:    r.QuizAttempt,
		}),
		Certificate: dataagg.NewCertificateAggregate(dataagg.CertificateAggregateDeps{
			Base:         base,
			Enrollments:  r.Enrollment,
			Courses:      r.Course,
			Users:        r.User,
			Certificates: r.Certificate,
		}),
	}
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	r Repos,
	aggs Aggregates,
	bus events.Publisher,
) (Services, error) {
	log.Info("Wiring services...")

	renderer, err := services.NewCertificateRenderer(log)
	if err != nil {
		return Services{}, fmt.Errorf("init certificate renderer: %w", err)
	}
	store, err := services.NewArtifactStoreFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("init artifact store: %w", err)
	}
	issuance := services.NewCertificateIssuanceService(log, aggs.Certificate, renderer, store, bus)

	return Services{
		Auth:        services.NewAuthService(log, cfg.JWTSecretKey),
		User:        services.NewUserService(db, log, r.User),
		Content:     services.NewContentService(db, log, aggs.Ordering, r.Course, r.Section, r.Lesson),
		Progress:    services.NewProgressService(log, aggs.Progress, issuance, bus, r.Lesson, r.Course, r.LessonProgress, r.Enrollment),
		Enrollment:  services.NewEnrollmentService(db, log, r.Course, r.Enrollment),
		Quiz:        services.NewQuizService(log, aggs.Attempts, r.Lesson, r.Course, r.QuizAttempt),
		Analytics:   services.NewAnalyticsService(log, r.Lesson, r.Course, r.QuizAttempt),
		Certificate: services.NewCertificateService(log, r.Certificate),
		Issuance:    issuance,
	}, nil
}
