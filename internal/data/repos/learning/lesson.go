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

type LessonRepo interface {
	Create(dbc dbctx.Context, lessons []*types.Lesson) ([]*types.Lesson, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error)
	ListBySection(dbc dbctx.Context, sectionID uuid.UUID) ([]*types.Lesson, error)
	CountBySection(dbc dbctx.Context, sectionID uuid.UUID) (int64, error)
	MaxPosition(dbc dbctx.Context, sectionID uuid.UUID) (int, error)
	// ShiftPositionsFrom applies position += delta to lessons with
	// position >= from, as a single statement.
	ShiftPositionsFrom(dbc dbctx.Context, sectionID uuid.UUID, from, delta int) error
	// ShiftPositionsAfter applies position += delta to lessons with
	// position > after; delta=-1 closes the gap a removed lesson leaves.
	ShiftPositionsAfter(dbc dbctx.Context, sectionID uuid.UUID, after, delta int) error
	UpdatePosition(dbc dbctx.Context, id uuid.UUID, position int) error
	// UpdatePositions applies an explicit assignment; the caller owns
	// validating that it is a dense permutation.
	UpdatePositions(dbc dbctx.Context, sectionID uuid.UUID, positions map[uuid.UUID]int) error
	MoveToSection(dbc dbctx.Context, id, sectionID uuid.UUID, position int) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return &lessonRepo{db: db, log: baseLog.With("repo", "LessonRepo")}
}

func (r *lessonRepo) Create(dbc dbctx.Context, lessons []*types.Lesson) ([]*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(lessons) == 0 {
		return []*types.Lesson{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *lessonRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var lesson types.Lesson
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&lesson).Error
	if err != nil {
		return nil, err
	}
	if lesson.ID == uuid.Nil {
		return nil, nil
	}
	return &lesson, nil
}

func (r *lessonRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var lesson types.Lesson
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) ListBySection(dbc dbctx.Context, sectionID uuid.UUID) ([]*types.Lesson, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Lesson
	if sectionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("section_id = ?", sectionID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonRepo) CountBySection(dbc dbctx.Context, sectionID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sectionID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("section_id = ?", sectionID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *lessonRepo) MaxPosition(dbc dbctx.Context, sectionID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sectionID == uuid.Nil {
		return 0, nil
	}
	var max int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("section_id = ?", sectionID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *lessonRepo) ShiftPositionsFrom(dbc dbctx.Context, sectionID uuid.UUID, from, delta int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sectionID == uuid.Nil || delta == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("section_id = ? AND position >= ?", sectionID, from).
		Updates(map[string]interface{}{
			"position":   gorm.Expr("position + ?", delta),
			"updated_at": time.Now(),
		}).Error
}

func (r *lessonRepo) ShiftPositionsAfter(dbc dbctx.Context, sectionID uuid.UUID, after, delta int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sectionID == uuid.Nil || delta == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("section_id = ? AND position > ?", sectionID, after).
		Updates(map[string]interface{}{
			"position":   gorm.Expr("position + ?", delta),
			"updated_at": time.Now(),
		}).Error
}

func (r *lessonRepo) UpdatePosition(dbc dbctx.Context, id uuid.UUID, position int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"position":   position,
			"updated_at": time.Now(),
		}).Error
}

func (r *lessonRepo) UpdatePositions(dbc dbctx.Context, sectionID uuid.UUID, positions map[uuid.UUID]int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sectionID == uuid.Nil || len(positions) == 0 {
		return nil
	}
	now := time.Now()
	for id, position := range positions {
		if err := transaction.WithContext(dbc.Ctx).
			Model(&types.Lesson{}).
			Where("id = ? AND section_id = ?", id, sectionID).
			Updates(map[string]interface{}{
				"position":   position,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *lessonRepo) MoveToSection(dbc dbctx.Context, id, sectionID uuid.UUID, position int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || sectionID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"section_id": sectionID,
			"position":   position,
			"updated_at": time.Now(),
		}).Error
}

func (r *lessonRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Lesson{}).Error
}

func (r *lessonRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Lesson{}).
		Where("id = ?", id).
		Updates(updates).Error
}
