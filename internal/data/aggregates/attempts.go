package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	types "github.com/courseloom/courseloom-backend/internal/domain"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/google/uuid"
)

type AttemptAggregateDeps struct {
	Base BaseDeps

	Lessons     repos.LessonRepo
	Enrollments repos.EnrollmentRepo
	Attempts    repos.QuizAttemptRepo
}

type attemptAggregate struct {
	deps AttemptAggregateDeps
}

func NewAttemptAggregate(deps AttemptAggregateDeps) domainagg.AttemptAggregate {
	deps.Base = deps.Base.withDefaults()
	return &attemptAggregate{deps: deps}
}

func (a *attemptAggregate) Contract() domainagg.Contract {
	return domainagg.AttemptAggregateContract
}

func (a *attemptAggregate) SubmitAttempt(ctx context.Context, in domainagg.SubmitAttemptInput) (domainagg.SubmitAttemptResult, error) {
	const op = "Assessment.Attempts.Submit"
	var out domainagg.SubmitAttemptResult
	if in.StudentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing student_id", nil)
	}
	if in.LessonID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing lesson_id", nil)
	}
	if a.deps.Lessons == nil || a.deps.Enrollments == nil || a.deps.Attempts == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "attempt aggregate repos not configured", nil)
	}
	at := in.SubmittedAt.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	timeSpent := in.TimeSpentSeconds
	if timeSpent < 0 {
		timeSpent = 0
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		lesson, err := a.deps.Lessons.GetByID(dbc, in.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil || lesson.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("lesson not found: %s", in.LessonID.String()), nil)
		}
		if lesson.Type != learning.LessonTypeQuiz {
			return InvariantError("lesson is not a quiz")
		}
		enrollment, err := a.deps.Enrollments.GetByStudentCourse(dbc, in.StudentID, lesson.CourseID)
		if err != nil {
			return err
		}
		if enrollment == nil || enrollment.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op, "student is not enrolled in the lesson's course", nil)
		}

		content, err := learning.DecodeLessonContent(lesson.Content)
		if err != nil {
			return InvariantError(fmt.Sprintf("lesson content is unreadable: %v", err))
		}
		if content == nil || content.Quiz == nil || len(content.Quiz.Questions) == 0 {
			return InvariantError("quiz lesson has no questions")
		}
		settings, err := learning.DecodeQuizSettings(lesson.QuizSettingsJSON)
		if err != nil {
			return InvariantError(fmt.Sprintf("quiz settings are unreadable: %v", err))
		}

		history, err := a.deps.Attempts.ListByStudentLesson(dbc, in.StudentID, in.LessonID)
		if err != nil {
			return err
		}
		maxNumber := 0
		var lastSubmitted *time.Time
		for _, h := range history {
			if h == nil {
				continue
			}
			if h.AttemptNumber > maxNumber {
				maxNumber = h.AttemptNumber
			}
			if lastSubmitted == nil || h.SubmittedAt.After(*lastSubmitted) {
				ts := h.SubmittedAt
				lastSubmitted = &ts
			}
		}

		decision := learning.EvaluateAttemptPolicy(settings, len(history), lastSubmitted, at)
		if !decision.CanRetake {
			meta := map[string]any{
				"reason":        decision.Reason,
				"attempts_used": decision.AttemptsUsed,
			}
			if settings.MaxAttempts > 0 {
				meta["max_attempts"] = settings.MaxAttempts
			}
			if decision.RemainingAttempts != nil {
				meta["remaining_attempts"] = *decision.RemainingAttempts
			}
			msg := "no attempts remaining"
			if decision.Reason == learning.RetakeReasonCooldownActive {
				msg = "cooldown between attempts is still active"
				meta["cooldown_seconds"] = settings.CooldownSeconds
				if decision.NextAttemptAvailableAt != nil {
					meta["next_attempt_at"] = decision.NextAttemptAvailableAt.UTC().Format(time.RFC3339)
				}
			}
			return domainagg.NewErrorWithMeta(domainagg.CodeBusinessRule, op, msg, meta, nil)
		}

		grade := content.Quiz.Grade(learning.SelectionMap(in.Answers))
		answers, err := learning.EncodeAnswers(grade.Answers)
		if err != nil {
			return err
		}
		attempt := &types.QuizAttempt{
			ID:               uuid.New(),
			StudentID:        in.StudentID,
			LessonID:         lesson.ID,
			CourseID:         lesson.CourseID,
			AttemptNumber:    maxNumber + 1,
			Answers:          answers,
			Percentage:       grade.Percentage,
			CorrectCount:     grade.CorrectCount,
			IncorrectCount:   grade.IncorrectCount,
			UnansweredCount:  grade.UnansweredCount,
			TimeSpentSeconds: timeSpent,
			SubmittedAt:      at,
			CreatedAt:        at,
			UpdatedAt:        at,
		}
		// the unique (student, lesson, attempt_number) index resolves the
		// check-then-insert race; the loser maps to a conflict and retries
		if _, err := a.deps.Attempts.Create(dbc, []*types.QuizAttempt{attempt}); err != nil {
			return err
		}

		all := make([]learning.QuizAttempt, 0, len(history)+1)
		for _, h := range history {
			if h != nil {
				all = append(all, *h)
			}
		}
		all = append(all, *attempt)
		out = domainagg.SubmitAttemptResult{
			Attempt: *attempt,
			Passed:  grade.Percentage >= settings.EffectivePassingScore(),
			Summary: learning.BuildAttemptSummary(lesson.ID, in.StudentID, settings, all, at),
		}
		return nil
	})
	return out, err
}
