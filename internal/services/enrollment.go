package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	userdom "github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// EnrollmentService creates enrollments and serves the enrollment reads
// that back the student dashboard. All completion math lives elsewhere;
// this service only reads the denormalized state off the enrollment row.
type EnrollmentService interface {
	Enroll(ctx context.Context, courseID uuid.UUID) (*learning.Enrollment, error)
	GetEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*learning.Enrollment, error)
	ListMyEnrollments(ctx context.Context) ([]*learning.Enrollment, error)
}

type enrollmentService struct {
	db          *gorm.DB
	log         *logger.Logger
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
}

func NewEnrollmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
) EnrollmentService {
	return &enrollmentService{
		db:          db,
		log:         baseLog.With("service", "EnrollmentService"),
		courses:     courses,
		enrollments: enrollments,
	}
}

// Enroll is idempotent for the calling student: a repeat call returns the
// existing row instead of erroring, so double-submits from the client are
// harmless.
func (s *enrollmentService) Enroll(ctx context.Context, courseID uuid.UUID) (*learning.Enrollment, error) {
	const op = "Enrollment.Service.Enroll"
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	if courseID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing course_id", nil)
	}

	var out *learning.Enrollment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		course, err := s.courses.GetByID(dbc, courseID)
		if err != nil {
			return err
		}
		if course == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "course not found", nil)
		}
		if course.Status != learning.CourseStatusPublished {
			return domainagg.NewErrorWithMeta(domainagg.CodeBusinessRule, op,
				"course is not open for enrollment",
				map[string]any{"reason": "course_not_published"}, nil)
		}
		existing, err := s.enrollments.GetByStudentCourse(dbc, rd.UserID, courseID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		created, err := s.enrollments.Create(dbc, []*learning.Enrollment{{
			StudentID:  rd.UserID,
			CourseID:   courseID,
			EnrolledAt: time.Now().UTC(),
		}})
		if err != nil {
			return err
		}
		out = created[0]
		return nil
	})
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	s.log.Info("student enrolled",
		"student_id", rd.UserID.String(),
		"course_id", courseID.String(),
		"enrollment_id", out.ID.String())
	return out, nil
}

func (s *enrollmentService) GetEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*learning.Enrollment, error) {
	const op = "Enrollment.Service.GetEnrollment"
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	if enrollmentID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing enrollment_id", nil)
	}

	dbc := dbctx.Background(ctx)
	enrollment, err := s.enrollments.GetByID(dbc, enrollmentID)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	if enrollment == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "enrollment not found", nil)
	}
	if enrollment.StudentID == rd.UserID || rd.IsAdmin() {
		return enrollment, nil
	}
	if rd.Role == userdom.RoleInstructor {
		course, err := s.courses.GetByID(dbc, enrollment.CourseID)
		if err != nil {
			return nil, mapServiceError(op, err)
		}
		if course != nil && course.InstructorID == rd.UserID {
			return enrollment, nil
		}
	}
	return nil, domainagg.NewError(domainagg.CodeForbidden, op, "enrollment belongs to another student", nil)
}

func (s *enrollmentService) ListMyEnrollments(ctx context.Context) ([]*learning.Enrollment, error) {
	const op = "Enrollment.Service.ListMyEnrollments"
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	rows, err := s.enrollments.ListByStudent(dbctx.Background(ctx), rd.UserID)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	return rows, nil
}
