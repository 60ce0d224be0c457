package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	userdom "github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/courseloom/courseloom-backend/internal/events"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// LessonEventInput is one progress interaction from the player: a completion
// mark, a watched-time delta, or both.
type LessonEventInput struct {
	LessonID     uuid.UUID `json:"lesson_id"`
	Completed    *bool     `json:"completed,omitempty"`
	SecondsDelta *int      `json:"seconds_delta,omitempty"`
}

// LessonProgressView is the read shape for one student's lesson progress.
type LessonProgressView struct {
	LessonID     uuid.UUID  `json:"lesson_id"`
	StudentID    uuid.UUID  `json:"student_id"`
	IsCompleted  bool       `json:"is_completed"`
	TimeSpent    int        `json:"time_spent_seconds"`
	LastAccessed *time.Time `json:"last_accessed_at,omitempty"`
	Percentage   int        `json:"percentage"`
}

// RecordLessonEventResult carries what the interaction changed, including
// the enrollment state when the course-level recompute ran.
type RecordLessonEventResult struct {
	Progress        LessonProgressView   `json:"progress"`
	Enrollment      *learning.Enrollment `json:"enrollment,omitempty"`
	CourseCompleted bool                 `json:"course_completed"`
}

// ProgressService owns the learner-facing progress surface: interaction
// writes via the progress aggregate, plus the read views. Completion events
// fan out post-commit: metrics, bus events, and certificate issuance.
type ProgressService interface {
	RecordLessonEvent(ctx context.Context, in LessonEventInput) (RecordLessonEventResult, error)
	GetLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) (LessonProgressView, error)
	GetCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (*learning.Enrollment, error)
	RecomputeCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (domainagg.RecomputeCompletionResult, error)
}

type progressService struct {
	log         *logger.Logger
	tracker     domainagg.ProgressAggregate
	issuance    CertificateIssuanceService
	bus         events.Publisher
	lessons     repos.LessonRepo
	courses     repos.CourseRepo
	progress    repos.LessonProgressRepo
	enrollments repos.EnrollmentRepo
}

func NewProgressService(
	baseLog *logger.Logger,
	tracker domainagg.ProgressAggregate,
	issuance CertificateIssuanceService,
	bus events.Publisher,
	lessons repos.LessonRepo,
	courses repos.CourseRepo,
	progress repos.LessonProgressRepo,
	enrollments repos.EnrollmentRepo,
) ProgressService {
	if bus == nil {
		bus = events.NewNoopPublisher()
	}
	return &progressService{
		log:         baseLog.With("service", "ProgressService"),
		tracker:     tracker,
		issuance:    issuance,
		bus:         bus,
		lessons:     lessons,
		courses:     courses,
		progress:    progress,
		enrollments: enrollments,
	}
}

func (s *progressService) RecordLessonEvent(ctx context.Context, in LessonEventInput) (RecordLessonEventResult, error) {
	const op = "Progress.Service.RecordLessonEvent"
	var out RecordLessonEventResult

	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}

	res, err := s.tracker.RecordInteraction(ctx, domainagg.RecordInteractionInput{
		StudentID:    rd.UserID,
		LessonID:     in.LessonID,
		Completed:    in.Completed,
		SecondsDelta: in.SecondsDelta,
		EventAt:      time.Now().UTC(),
	})
	if err != nil {
		return out, err
	}

	out.Progress = progressView(&res.Progress)
	out.Enrollment = res.Enrollment
	out.CourseCompleted = res.CourseCompleted

	// res.Enrollment is only set when this call flipped the lesson to
	// completed; repeats and pure time deltas skip the fan-out entirely.
	if res.Enrollment != nil {
		s.fanOutCompletion(ctx, rd.UserID, in.LessonID, res)
		if res.CertificateDue {
			out.Enrollment = s.issueCertificate(ctx, res.Enrollment)
		}
	}
	return out, nil
}

func (s *progressService) fanOutCompletion(ctx context.Context, studentID, lessonID uuid.UUID, res domainagg.RecordInteractionResult) {
	m := observability.Current()
	if m != nil {
		m.IncLessonCompleted()
	}
	now := time.Now().UTC()
	if err := s.bus.Publish(ctx, events.Event{
		Topic:        events.TopicLessonCompleted,
		OccurredAt:   now,
		StudentID:    studentID,
		CourseID:     res.Enrollment.CourseID,
		EnrollmentID: res.Enrollment.ID,
		LessonID:     lessonID,
	}); err != nil {
		s.log.Warn("Lesson completion event publish failed", "lesson_id", lessonID, "error", err)
	}

	if res.CourseCompleted {
		if m != nil {
			m.IncCourseCompleted()
		}
		if err := s.bus.Publish(ctx, events.Event{
			Topic:        events.TopicCourseCompleted,
			OccurredAt:   now,
			StudentID:    studentID,
			CourseID:     res.Enrollment.CourseID,
			EnrollmentID: res.Enrollment.ID,
			Data:         map[string]any{"progress": res.Enrollment.Progress},
		}); err != nil {
			s.log.Warn("Course completion event publish failed", "course_id", res.Enrollment.CourseID, "error", err)
		}
	}
}

// issueCertificate runs issuance inline so the completing request sees its
// certificate, but a failure is only logged; the reconciliation job retries
// from the released claim. The completion itself is already committed.
func (s *progressService) issueCertificate(ctx context.Context, enrollment *learning.Enrollment) *learning.Enrollment {
	if s.issuance == nil {
		return enrollment
	}
	cert, err := s.issuance.IssueForEnrollment(ctx, enrollment.ID)
	if err != nil {
		s.log.Warn("Certificate issuance failed after completion; reconciler will retry",
			"enrollment_id", enrollment.ID,
			"error", err,
		)
		return enrollment
	}
	if cert != nil {
		updated := *enrollment
		updated.CertificateIssued = true
		updated.CertificateURL = cert.URL
		return &updated
	}
	return enrollment
}

func (s *progressService) GetLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) (LessonProgressView, error) {
	const op = "Progress.Service.GetLessonProgress"
	var out LessonProgressView
	if studentID == uuid.Nil || lessonID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing student_id or lesson_id", nil)
	}

	dbc := dbctx.Background(ctx)
	lesson, err := s.lessons.GetByID(dbc, lessonID)
	if err != nil {
		return out, mapServiceError(op, err)
	}
	if lesson == nil {
		return out, domainagg.NewError(domainagg.CodeNotFound, op, "lesson not found", nil)
	}
	if err := s.authorizeProgressRead(ctx, op, studentID, lesson.CourseID); err != nil {
		return out, err
	}

	row, err := s.progress.GetByStudentLesson(dbc, studentID, lessonID)
	if err != nil {
		return out, mapServiceError(op, err)
	}
	if row == nil {
		// untouched lesson reads as zero progress, not an error
		return LessonProgressView{LessonID: lessonID, StudentID: studentID}, nil
	}
	return progressView(row), nil
}

func (s *progressService) GetCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (*learning.Enrollment, error) {
	const op = "Progress.Service.GetCourseProgress"
	if studentID == uuid.Nil || courseID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing student_id or course_id", nil)
	}
	if err := s.authorizeProgressRead(ctx, op, studentID, courseID); err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.GetByStudentCourse(dbctx.Background(ctx), studentID, courseID)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	if enrollment == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "enrollment not found", nil)
	}
	return enrollment, nil
}

func (s *progressService) RecomputeCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (domainagg.RecomputeCompletionResult, error) {
	const op = "Progress.Service.RecomputeCourseProgress"
	var out domainagg.RecomputeCompletionResult
	if err := s.authorizeProgressRead(ctx, op, studentID, courseID); err != nil {
		return out, err
	}

	res, err := s.tracker.RecomputeCompletion(ctx, domainagg.RecomputeCompletionInput{
		StudentID: studentID,
		CourseID:  courseID,
	})
	if err != nil {
		return out, err
	}
	if res.Transitioned {
		if m := observability.Current(); m != nil {
			m.IncCourseCompleted()
		}
		if res.CertificateDue {
			if updated := s.issueCertificate(ctx, &res.Enrollment); updated != nil {
				res.Enrollment = *updated
			}
		}
	}
	return res, nil
}

// authorizeProgressRead admits the student themself, the course owner, and
// admins.
func (s *progressService) authorizeProgressRead(ctx context.Context, op string, studentID, courseID uuid.UUID) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	if rd.IsAdmin() || rd.UserID == studentID {
		return nil
	}
	if rd.Role == userdom.RoleInstructor {
		course, err := s.courses.GetByID(dbctx.Background(ctx), courseID)
		if err != nil {
			return mapServiceError(op, err)
		}
		if course != nil && course.InstructorID == rd.UserID {
			return nil
		}
	}
	return domainagg.NewError(domainagg.CodeForbidden, op, "caller is neither the student nor the course owner", nil)
}

func progressView(row *learning.LessonProgress) LessonProgressView {
	view := LessonProgressView{
		LessonID:    row.LessonID,
		StudentID:   row.StudentID,
		IsCompleted: row.IsCompleted,
		TimeSpent:   row.TimeSpentSeconds,
		Percentage:  row.Percentage(),
	}
	if !row.LastAccessedAt.IsZero() {
		t := row.LastAccessedAt
		view.LastAccessed = &t
	}
	return view
}
