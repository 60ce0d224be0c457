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

type LessonProgressRepo interface {
	Create(dbc dbctx.Context, rows []*types.LessonProgress) ([]*types.LessonProgress, error)
	GetByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) (*types.LessonProgress, error)
	LockByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) (*types.LessonProgress, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LessonProgress, error)
	// AccumulateTime adds a clamped, non-negative delta as an atomic
	// increment; concurrent deltas never overwrite each other. The one-way
	// is_completed flip belongs to the progress aggregate's guard.
	AccumulateTime(dbc dbctx.Context, id uuid.UUID, secondsDelta int, at time.Time) error
	Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	CountCompleted(dbc dbctx.Context, courseID, studentID uuid.UUID) (int64, error)
	ListByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) ([]*types.LessonProgress, error)
	SoftDeleteByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) error
}

type lessonProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return &lessonProgressRepo{db: db, log: baseLog.With("repo", "LessonProgressRepo")}
}

func (r *lessonProgressRepo) Create(dbc dbctx.Context, rows []*types.LessonProgress) ([]*types.LessonProgress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.LessonProgress{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lessonProgressRepo) GetByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) (*types.LessonProgress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || lessonID == uuid.Nil {
		return nil, nil
	}
	var row types.LessonProgress
	err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *lessonProgressRepo) LockByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) (*types.LessonProgress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || lessonID == uuid.Nil {
		return nil, nil
	}
	var row types.LessonProgress
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *lessonProgressRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LessonProgress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.LessonProgress
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *lessonProgressRepo) AccumulateTime(dbc dbctx.Context, id uuid.UUID, secondsDelta int, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if secondsDelta < 0 {
		secondsDelta = 0
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LessonProgress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"time_spent_seconds": gorm.Expr("time_spent_seconds + ?", secondsDelta),
			"last_accessed_at":   at,
			"updated_at":         at,
		}).Error
}

func (r *lessonProgressRepo) Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LessonProgress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_accessed_at": at,
			"updated_at":       at,
		}).Error
}

func (r *lessonProgressRepo) CountCompleted(dbc dbctx.Context, courseID, studentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if courseID == uuid.Nil || studentID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.LessonProgress{}).
		Where("course_id = ? AND student_id = ? AND is_completed = ?", courseID, studentID, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *lessonProgressRepo) ListByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) ([]*types.LessonProgress, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LessonProgress
	if studentID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Order("last_accessed_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonProgressRepo) SoftDeleteByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(lessonIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("lesson_id IN ?", lessonIDs).
		Delete(&types.LessonProgress{}).Error
}
