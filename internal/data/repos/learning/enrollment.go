package learning

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/courseloom/courseloom-backend/internal/domain"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type EnrollmentRepo interface {
	Create(dbc dbctx.Context, enrollments []*types.Enrollment) ([]*types.Enrollment, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error)
	GetByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error)
	LockByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error)
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.Enrollment, error)
	UpdateProgress(dbc dbctx.Context, id uuid.UUID, progress int) error
	// ListCertificateBacklog returns completed, certifiable enrollments whose
	// certificate flag is still false, oldest completions first. Completion and
	// certificate flag transitions themselves belong to the aggregates.
	ListCertificateBacklog(dbc dbctx.Context, limit int) ([]*types.Enrollment, error)
	CountCertificateBacklog(dbc dbctx.Context) (int64, error)
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) Create(dbc dbctx.Context, enrollments []*types.Enrollment) ([]*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(enrollments) == 0 {
		return []*types.Enrollment{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (r *enrollmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var enrollment types.Enrollment
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&enrollment).Error
	if err != nil {
		return nil, err
	}
	if enrollment.ID == uuid.Nil {
		return nil, nil
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) GetByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var enrollment types.Enrollment
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Limit(1).
		Find(&enrollment).Error
	if err != nil {
		return nil, err
	}
	if enrollment.ID == uuid.Nil {
		return nil, nil
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var enrollment types.Enrollment
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) LockByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var enrollment types.Enrollment
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Enrollment
	if studentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("enrolled_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) UpdateProgress(dbc dbctx.Context, id uuid.UUID, progress int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":   progress,
			"updated_at": time.Now(),
		}).Error
}

func (r *enrollmentRepo) ListCertificateBacklog(dbc dbctx.Context, limit int) ([]*types.Enrollment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	// Snapshot inside a short self-owned transaction so SKIP LOCKED can pass
	// over rows the live completion path is claiming right now.
	var out []*types.Enrollment
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		return txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED", Table: clause.Table{Name: "enrollment"}}).
			Joins("JOIN course ON course.id = enrollment.course_id AND course.deleted_at IS NULL").
			Where("enrollment.is_completed = ? AND enrollment.certificate_issued = ? AND course.certificate = ?", true, false, true).
			Order("enrollment.completed_at ASC").
			Limit(limit).
			Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) CountCertificateBacklog(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Enrollment{}).
		Joins("JOIN course ON course.id = enrollment.course_id AND course.deleted_at IS NULL").
		Where("enrollment.is_completed = ? AND enrollment.certificate_issued = ? AND course.certificate = ?", true, false, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
