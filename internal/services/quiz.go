package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// SubmitQuizInput is one incoming quiz submission from the enrolled student.
type SubmitQuizInput struct {
	LessonID         uuid.UUID                   `json:"lesson_id"`
	Answers          []learning.AnswerSubmission `json:"answers"`
	TimeSpentSeconds int                         `json:"time_spent_seconds"`
}

// QuizService fronts the attempt aggregate: submission with one conflict
// retry, plus the read-side retake check and attempt history. Both sides of
// the gate share learning.EvaluateAttemptPolicy, so they cannot disagree.
type QuizService interface {
	SubmitAttempt(ctx context.Context, in SubmitQuizInput) (domainagg.SubmitAttemptResult, error)
	CanRetake(ctx context.Context, studentID, lessonID uuid.UUID) (learning.AttemptPolicyDecision, error)
	ListAttempts(ctx context.Context, studentID, lessonID uuid.UUID) ([]learning.QuizAttempt, learning.AttemptSummary, error)
}

type quizService struct {
	log      *logger.Logger
	gate     domainagg.AttemptAggregate
	lessons  repos.LessonRepo
	courses  repos.CourseRepo
	attempts repos.QuizAttemptRepo
}

func NewQuizService(
	baseLog *logger.Logger,
	gate domainagg.AttemptAggregate,
	lessons repos.LessonRepo,
	courses repos.CourseRepo,
	attempts repos.QuizAttemptRepo,
) QuizService {
	return &quizService{
		log:      baseLog.With("service", "QuizService"),
		gate:     gate,
		lessons:  lessons,
		courses:  courses,
		attempts: attempts,
	}
}

func (s *quizService) SubmitAttempt(ctx context.Context, in SubmitQuizInput) (domainagg.SubmitAttemptResult, error) {
	const op = "Assessment.Service.SubmitAttempt"
	var out domainagg.SubmitAttemptResult

	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}

	aggIn := domainagg.SubmitAttemptInput{
		StudentID:        rd.UserID,
		LessonID:         in.LessonID,
		Answers:          in.Answers,
		TimeSpentSeconds: in.TimeSpentSeconds,
		SubmittedAt:      time.Now().UTC(),
	}

	res, err := s.gate.SubmitAttempt(ctx, aggIn)
	if err != nil && retryableSubmission(err) {
		// Two racing submissions can both compute the same attempt number;
		// the loser hits the unique index. One in-service retry picks the
		// next free number.
		s.log.Info("Retrying conflicted quiz submission",
			"lesson_id", in.LessonID,
			"student_id", rd.UserID,
		)
		res, err = s.gate.SubmitAttempt(ctx, aggIn)
	}

	m := observability.Current()
	if err != nil {
		if m != nil && domainagg.IsCode(err, domainagg.CodeBusinessRule) {
			m.IncQuizBlocked(blockedReason(err))
		}
		return out, err
	}
	if m != nil {
		m.ObserveQuizSubmission(res.Passed)
	}
	return res, nil
}

func retryableSubmission(err error) bool {
	return domainagg.IsCode(err, domainagg.CodeConflict) || domainagg.IsCode(err, domainagg.CodeRetryable)
}

func blockedReason(err error) string {
	if meta := domainagg.MetaOf(err); meta != nil {
		if reason, ok := meta["reason"].(string); ok && reason != "" {
			return reason
		}
	}
	return "policy"
}

func (s *quizService) CanRetake(ctx context.Context, studentID, lessonID uuid.UUID) (learning.AttemptPolicyDecision, error) {
	const op = "Assessment.Service.CanRetake"
	var out learning.AttemptPolicyDecision

	settings, attempts, err := s.loadGateState(ctx, op, studentID, lessonID)
	if err != nil {
		return out, err
	}

	var lastSubmitted *time.Time
	for i := range attempts {
		t := attempts[i].SubmittedAt
		if lastSubmitted == nil || t.After(*lastSubmitted) {
			lastSubmitted = &t
		}
	}
	return learning.EvaluateAttemptPolicy(settings, len(attempts), lastSubmitted, time.Now().UTC()), nil
}

func (s *quizService) ListAttempts(ctx context.Context, studentID, lessonID uuid.UUID) ([]learning.QuizAttempt, learning.AttemptSummary, error) {
	const op = "Assessment.Service.ListAttempts"

	settings, attempts, err := s.loadGateState(ctx, op, studentID, lessonID)
	if err != nil {
		return nil, learning.AttemptSummary{}, err
	}
	summary := learning.BuildAttemptSummary(lessonID, studentID, settings, attempts, time.Now().UTC())
	return attempts, summary, nil
}

// loadGateState resolves the quiz lesson, its settings, and the student's
// attempt history, enforcing the student/owner/admin read rule.
func (s *quizService) loadGateState(ctx context.Context, op string, studentID, lessonID uuid.UUID) (*learning.QuizSettings, []learning.QuizAttempt, error) {
	if studentID == uuid.Nil || lessonID == uuid.Nil {
		return nil, nil, domainagg.NewError(domainagg.CodeValidation, op, "missing student_id or lesson_id", nil)
	}

	dbc := dbctx.Background(ctx)
	lesson, err := s.lessons.GetByID(dbc, lessonID)
	if err != nil {
		return nil, nil, mapServiceError(op, err)
	}
	if lesson == nil {
		return nil, nil, domainagg.NewError(domainagg.CodeNotFound, op, "lesson not found", nil)
	}
	if lesson.Type != learning.LessonTypeQuiz {
		return nil, nil, domainagg.NewError(domainagg.CodeValidation, op, "lesson is not a quiz", nil)
	}
	if err := s.authorizeAttemptRead(ctx, op, studentID, lesson.CourseID); err != nil {
		return nil, nil, err
	}

	settings, err := learning.DecodeQuizSettings(lesson.QuizSettingsJSON)
	if err != nil {
		return nil, nil, domainagg.NewError(domainagg.CodeInternal, op, "stored quiz settings are malformed", err)
	}

	rows, err := s.attempts.ListByStudentLesson(dbc, studentID, lessonID)
	if err != nil {
		return nil, nil, mapServiceError(op, err)
	}
	attempts := make([]learning.QuizAttempt, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			attempts = append(attempts, *row)
		}
	}
	return settings, attempts, nil
}

func (s *quizService) authorizeAttemptRead(ctx context.Context, op string, studentID, courseID uuid.UUID) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	if rd.IsAdmin() || rd.UserID == studentID {
		return nil
	}
	course, err := s.courses.GetByID(dbctx.Background(ctx), courseID)
	if err != nil {
		return mapServiceError(op, err)
	}
	if course != nil && course.InstructorID == rd.UserID {
		return nil
	}
	return domainagg.NewError(domainagg.CodeForbidden, op, "caller is neither the student nor the course owner", nil)
}
