package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/courseloom/courseloom-backend/internal/domain"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type QuizAttemptRepo interface {
	// Create inserts attempt rows; a duplicate (student, lesson,
	// attempt_number) surfaces the driver's unique-violation untouched so the
	// caller can map and retry it.
	Create(dbc dbctx.Context, attempts []*types.QuizAttempt) ([]*types.QuizAttempt, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.QuizAttempt, error)
	MaxAttemptNumber(dbc dbctx.Context, studentID, lessonID uuid.UUID) (int, error)
	ListByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) ([]*types.QuizAttempt, error)
	ListByLesson(dbc dbctx.Context, lessonID uuid.UUID) ([]*types.QuizAttempt, error)
	CountByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) (int64, error)
	SoftDeleteByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) error
}

type quizAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) QuizAttemptRepo {
	return &quizAttemptRepo{db: db, log: baseLog.With("repo", "QuizAttemptRepo")}
}

func (r *quizAttemptRepo) Create(dbc dbctx.Context, attempts []*types.QuizAttempt) ([]*types.QuizAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(attempts) == 0 {
		return []*types.QuizAttempt{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *quizAttemptRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.QuizAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var attempt types.QuizAttempt
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&attempt).Error
	if err != nil {
		return nil, err
	}
	if attempt.ID == uuid.Nil {
		return nil, nil
	}
	return &attempt, nil
}

func (r *quizAttemptRepo) MaxAttemptNumber(dbc dbctx.Context, studentID, lessonID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || lessonID == uuid.Nil {
		return 0, nil
	}
	var max int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.QuizAttempt{}).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *quizAttemptRepo) ListByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) ([]*types.QuizAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.QuizAttempt
	if studentID == uuid.Nil || lessonID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		Order("attempt_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *quizAttemptRepo) ListByLesson(dbc dbctx.Context, lessonID uuid.UUID) ([]*types.QuizAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.QuizAttempt
	if lessonID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("lesson_id = ?", lessonID).
		Order("submitted_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *quizAttemptRepo) CountByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil || lessonID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.QuizAttempt{}).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *quizAttemptRepo) SoftDeleteByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(lessonIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("lesson_id IN ?", lessonIDs).
		Delete(&types.QuizAttempt{}).Error
}
