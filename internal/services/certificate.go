package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// CertificateService serves issued certificates. Issuance itself lives in
// CertificateIssuanceService; this side is read-only.
type CertificateService interface {
	ListMyCertificates(ctx context.Context) ([]*learning.Certificate, error)
	// VerifyBySerial resolves a printed serial to its certificate. Any
	// authenticated caller may verify; serials are public identifiers.
	VerifyBySerial(ctx context.Context, serial string) (*learning.Certificate, error)
}

type certificateService struct {
	log          *logger.Logger
	certificates repos.CertificateRepo
}

func NewCertificateService(baseLog *logger.Logger, certificates repos.CertificateRepo) CertificateService {
	return &certificateService{
		log:          baseLog.With("service", "CertificateService"),
		certificates: certificates,
	}
}

func (s *certificateService) ListMyCertificates(ctx context.Context) ([]*learning.Certificate, error) {
	const op = "Certificate.Service.ListMyCertificates"
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	rows, err := s.certificates.ListByStudent(dbctx.Background(ctx), rd.UserID)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	return rows, nil
}

func (s *certificateService) VerifyBySerial(ctx context.Context, serial string) (*learning.Certificate, error) {
	const op = "Certificate.Service.VerifyBySerial"
	serial = strings.ToUpper(strings.TrimSpace(serial))
	if serial == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing serial", nil)
	}
	cert, err := s.certificates.GetBySerial(dbctx.Background(ctx), serial)
	if err != nil {
		return nil, mapServiceError(op, err)
	}
	if cert == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "certificate not found", nil)
	}
	return cert, nil
}
