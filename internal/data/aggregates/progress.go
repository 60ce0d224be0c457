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

type ProgressAggregateDeps struct {
	Base BaseDeps

	Courses     repos.CourseRepo
	Lessons     repos.LessonRepo
	Progress    repos.LessonProgressRepo
	Enrollments repos.EnrollmentRepo
}

type progressAggregate struct {
	deps ProgressAggregateDeps
}

func NewProgressAggregate(deps ProgressAggregateDeps) domainagg.ProgressAggregate {
	deps.Base = deps.Base.withDefaults()
	return &progressAggregate{deps: deps}
}

func (a *progressAggregate) Contract() domainagg.Contract {
	return domainagg.ProgressAggregateContract
}

func (a *progressAggregate) RecordInteraction(ctx context.Context, in domainagg.RecordInteractionInput) (domainagg.RecordInteractionResult, error) {
	const op = "Progress.Tracker.RecordInteraction"
	var out domainagg.RecordInteractionResult
	if in.StudentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing student_id", nil)
	}
	if in.LessonID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing lesson_id", nil)
	}
	if a.deps.Courses == nil || a.deps.Lessons == nil || a.deps.Progress == nil || a.deps.Enrollments == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "progress aggregate repos not configured", nil)
	}
	at := in.EventAt.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		lesson, err := a.deps.Lessons.GetByID(dbc, in.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil || lesson.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("lesson not found: %s", in.LessonID.String()), nil)
		}
		enrollment, err := a.deps.Enrollments.GetByStudentCourse(dbc, in.StudentID, lesson.CourseID)
		if err != nil {
			return err
		}
		if enrollment == nil || enrollment.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodePreconditionFailed, op, "student is not enrolled in the lesson's course", nil)
		}

		delta := 0
		if in.SecondsDelta != nil && *in.SecondsDelta > 0 {
			delta = *in.SecondsDelta
		}
		wantComplete := in.Completed != nil && *in.Completed

		flipped := false
		row, err := a.deps.Progress.LockByStudentLesson(dbc, in.StudentID, in.LessonID)
		if err != nil {
			return err
		}
		if row == nil || row.ID == uuid.Nil {
			// first interaction creates the row; a concurrent first
			// interaction loses on the unique index and comes back as a
			// conflict the service retries
			row = &types.LessonProgress{
				ID:               uuid.New(),
				StudentID:        in.StudentID,
				LessonID:         lesson.ID,
				CourseID:         lesson.CourseID,
				SectionID:        lesson.SectionID,
				IsCompleted:      wantComplete,
				TimeSpentSeconds: delta,
				FirstAccessedAt:  at,
				LastAccessedAt:   at,
				CreatedAt:        at,
				UpdatedAt:        at,
			}
			if _, err := a.deps.Progress.Create(dbc, []*types.LessonProgress{row}); err != nil {
				return err
			}
			flipped = wantComplete
		} else {
			if delta > 0 {
				if err := a.deps.Progress.AccumulateTime(dbc, row.ID, delta, at); err != nil {
					return err
				}
			} else if err := a.deps.Progress.Touch(dbc, row.ID, at); err != nil {
				return err
			}
			if wantComplete && !row.IsCompleted {
				ok, err := a.deps.Base.CASGuard.UpdateByFlag(dbc, "lesson_progress", row.ID, "is_completed", false, map[string]any{
					"is_completed":     true,
					"last_accessed_at": at,
					"updated_at":       at,
				})
				if err != nil {
					return err
				}
				// losing the flip race is idempotent success, not an error
				flipped = ok
			}
			row, err = a.deps.Progress.GetByID(dbc, row.ID)
			if err != nil {
				return err
			}
			if row == nil {
				return domainagg.NewError(domainagg.CodeInternal, op, "lesson progress row vanished mid-transaction", nil)
			}
		}
		out.Progress = *row

		if flipped {
			gate, err := a.recomputeLocked(dbc, op, in.StudentID, lesson.CourseID, enrollment.ID, at)
			if err != nil {
				return err
			}
			out.Enrollment = gate.enrollment
			out.CourseCompleted = gate.transitioned
			out.CertificateDue = gate.certificateDue
		}
		return nil
	})
	return out, err
}

func (a *progressAggregate) RecomputeCompletion(ctx context.Context, in domainagg.RecomputeCompletionInput) (domainagg.RecomputeCompletionResult, error) {
	const op = "Progress.Gate.RecomputeCompletion"
	var out domainagg.RecomputeCompletionResult
	if in.StudentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing student_id", nil)
	}
	if in.CourseID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}
	if a.deps.Courses == nil || a.deps.Progress == nil || a.deps.Enrollments == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "progress aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		enrollment, err := a.deps.Enrollments.GetByStudentCourse(dbc, in.StudentID, in.CourseID)
		if err != nil {
			return err
		}
		if enrollment == nil || enrollment.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "enrollment not found", nil)
		}
		gate, err := a.recomputeLocked(dbc, op, in.StudentID, in.CourseID, enrollment.ID, time.Now().UTC())
		if err != nil {
			return err
		}
		out = domainagg.RecomputeCompletionResult{
			Enrollment:       *gate.enrollment,
			CompletedLessons: gate.completed,
			TotalLessons:     gate.total,
			Transitioned:     gate.transitioned,
			CertificateDue:   gate.certificateDue,
		}
		return nil
	})
	return out, err
}

type gateOutcome struct {
	enrollment     *types.Enrollment
	completed      int
	total          int
	transitioned   bool
	certificateDue bool
}

// recomputeLocked recounts completed lessons under the enrollment row lock
// and applies the one-time completion transition. Callers already hold a
// transaction.
func (a *progressAggregate) recomputeLocked(dbc dbctx.Context, op string, studentID, courseID, enrollmentID uuid.UUID, at time.Time) (gateOutcome, error) {
	var gate gateOutcome
	enrollment, err := a.deps.Enrollments.LockByID(dbc, enrollmentID)
	if err != nil {
		return gate, err
	}
	if enrollment == nil || enrollment.ID == uuid.Nil {
		return gate, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("enrollment not found: %s", enrollmentID.String()), nil)
	}
	course, err := a.deps.Courses.GetByID(dbc, courseID)
	if err != nil {
		return gate, err
	}
	if course == nil || course.ID == uuid.Nil {
		return gate, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("course not found: %s", courseID.String()), nil)
	}

	count, err := a.deps.Progress.CountCompleted(dbc, courseID, studentID)
	if err != nil {
		return gate, err
	}
	pct := learning.CompletionPercent(int(count), course.TotalLessons)
	gate.completed = int(count)
	gate.total = course.TotalLessons

	if pct >= 100 && !enrollment.IsCompleted {
		ok, err := a.deps.Base.CASGuard.UpdateByFlag(dbc, "enrollment", enrollment.ID, "is_completed", false, map[string]any{
			"is_completed": true,
			"completed_at": at,
			"progress":     pct,
			"updated_at":   at,
		})
		if err != nil {
			return gate, err
		}
		// the row lock above means a lost flip here is a programming error
		if err := RequireCASSuccess(ok, "enrollment completion raced"); err != nil {
			return gate, err
		}
		completedAt := at
		enrollment.IsCompleted = true
		enrollment.CompletedAt = &completedAt
		enrollment.Progress = pct
		enrollment.UpdatedAt = at
		gate.transitioned = true
		gate.certificateDue = course.CertificateEnabled
	} else if pct != enrollment.Progress {
		if err := a.deps.Enrollments.UpdateProgress(dbc, enrollment.ID, pct); err != nil {
			return gate, err
		}
		enrollment.Progress = pct
		enrollment.UpdatedAt = at
	}
	gate.enrollment = enrollment
	return gate, nil
}
