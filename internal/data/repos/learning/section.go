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

type SectionRepo interface {
	Create(dbc dbctx.Context, sections []*types.Section) ([]*types.Section, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Section, error)
	// LockByID serializes every position mutation inside one section.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Section, error)
	ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Section, error)
	MaxPosition(dbc dbctx.Context, courseID uuid.UUID) (int, error)
	// ShiftPositionsFrom opens a slot: position += delta for every section of
	// the course with position >= from. One statement, atomic.
	ShiftPositionsFrom(dbc dbctx.Context, courseID uuid.UUID, from, delta int) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type sectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	return &sectionRepo{db: db, log: baseLog.With("repo", "SectionRepo")}
}

func (r *sectionRepo) Create(dbc dbctx.Context, sections []*types.Section) ([]*types.Section, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sections) == 0 {
		return []*types.Section{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&sections).Error; err != nil {
		return nil, err
	}
	return sections, nil
}

func (r *sectionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Section, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var section types.Section
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&section).Error
	if err != nil {
		return nil, err
	}
	if section.ID == uuid.Nil {
		return nil, nil
	}
	return &section, nil
}

func (r *sectionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Section, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var section types.Section
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&section).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *sectionRepo) ListByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]*types.Section, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Section
	if courseID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sectionRepo) MaxPosition(dbc dbctx.Context, courseID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if courseID == uuid.Nil {
		return 0, nil
	}
	var max int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Section{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (r *sectionRepo) ShiftPositionsFrom(dbc dbctx.Context, courseID uuid.UUID, from, delta int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if courseID == uuid.Nil || delta == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Section{}).
		Where("course_id = ? AND position >= ?", courseID, from).
		Updates(map[string]interface{}{
			"position":   gorm.Expr("position + ?", delta),
			"updated_at": time.Now(),
		}).Error
}

func (r *sectionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Section{}).
		Where("id = ?", id).
		Updates(updates).Error
}
