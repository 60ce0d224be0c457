package learning

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/courseloom/courseloom-backend/internal/domain"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type CertificateRepo interface {
	Create(dbc dbctx.Context, certificates []*types.Certificate) ([]*types.Certificate, error)
	GetByEnrollmentID(dbc dbctx.Context, enrollmentID uuid.UUID) (*types.Certificate, error)
	GetBySerial(dbc dbctx.Context, serial string) (*types.Certificate, error)
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.Certificate, error)
}

type certificateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	return &certificateRepo{db: db, log: baseLog.With("repo", "CertificateRepo")}
}

func (r *certificateRepo) Create(dbc dbctx.Context, certificates []*types.Certificate) ([]*types.Certificate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(certificates) == 0 {
		return []*types.Certificate{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&certificates).Error; err != nil {
		return nil, err
	}
	return certificates, nil
}

func (r *certificateRepo) GetByEnrollmentID(dbc dbctx.Context, enrollmentID uuid.UUID) (*types.Certificate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if enrollmentID == uuid.Nil {
		return nil, nil
	}
	var cert types.Certificate
	err := transaction.WithContext(dbc.Ctx).
		Where("enrollment_id = ?", enrollmentID).
		Limit(1).
		Find(&cert).Error
	if err != nil {
		return nil, err
	}
	if cert.ID == uuid.Nil {
		return nil, nil
	}
	return &cert, nil
}

func (r *certificateRepo) GetBySerial(dbc dbctx.Context, serial string) (*types.Certificate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if serial == "" {
		return nil, nil
	}
	var cert types.Certificate
	err := transaction.WithContext(dbc.Ctx).
		Where("serial = ?", serial).
		Limit(1).
		Find(&cert).Error
	if err != nil {
		return nil, err
	}
	if cert.ID == uuid.Nil {
		return nil, nil
	}
	return &cert, nil
}

func (r *certificateRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.Certificate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Certificate
	if studentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("issued_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
