package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// AnalyticsService recomputes instructor-facing quiz aggregates from the
// full attempt history. Nothing is cached or incrementally maintained;
// every call reflects the attempts table as-is.
type AnalyticsService interface {
	QuizAnalytics(ctx context.Context, lessonID uuid.UUID) (learning.QuizAnalytics, error)
}

type analyticsService struct {
	log      *logger.Logger
	lessons  repos.LessonRepo
	courses  repos.CourseRepo
	attempts repos.QuizAttemptRepo
}

func NewAnalyticsService(
	baseLog *logger.Logger,
	lessons repos.LessonRepo,
	courses repos.CourseRepo,
	attempts repos.QuizAttemptRepo,
) AnalyticsService {
	return &analyticsService{
		log:      baseLog.With("service", "AnalyticsService"),
		lessons:  lessons,
		courses:  courses,
		attempts: attempts,
	}
}

func (s *analyticsService) QuizAnalytics(ctx context.Context, lessonID uuid.UUID) (learning.QuizAnalytics, error) {
	const op = "Analytics.Service.QuizAnalytics"
	var out learning.QuizAnalytics
	if lessonID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing lesson_id", nil)
	}

	dbc := dbctx.Background(ctx)
	lesson, err := s.lessons.GetByID(dbc, lessonID)
	if err != nil {
		return out, mapServiceError(op, err)
	}
	if lesson == nil {
		return out, domainagg.NewError(domainagg.CodeNotFound, op, "lesson not found", nil)
	}
	if lesson.Type != learning.LessonTypeQuiz {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "lesson is not a quiz", nil)
	}
	if err := s.authorizeAnalyticsRead(ctx, op, lesson.CourseID); err != nil {
		return out, err
	}

	content, err := learning.DecodeLessonContent(lesson.Content)
	if err != nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "stored lesson content is malformed", err)
	}
	settings, err := learning.DecodeQuizSettings(lesson.QuizSettingsJSON)
	if err != nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "stored quiz settings are malformed", err)
	}

	rows, err := s.attempts.ListByLesson(dbc, lessonID)
	if err != nil {
		return out, mapServiceError(op, err)
	}
	attempts := make([]learning.QuizAttempt, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			attempts = append(attempts, *row)
		}
	}

	return learning.ComputeQuizAnalytics(lessonID, content.Quiz, settings.EffectivePassingScore(), attempts), nil
}

// authorizeAnalyticsRead admits the course owner and admins; attempt-level
// analytics expose the whole cohort, so students never see them.
func (s *analyticsService) authorizeAnalyticsRead(ctx context.Context, op string, courseID uuid.UUID) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	if rd.IsAdmin() {
		return nil
	}
	course, err := s.courses.GetByID(dbctx.Background(ctx), courseID)
	if err != nil {
		return mapServiceError(op, err)
	}
	if course != nil && course.InstructorID == rd.UserID {
		return nil
	}
	return domainagg.NewError(domainagg.CodeForbidden, op, "quiz analytics require course ownership", nil)
}
