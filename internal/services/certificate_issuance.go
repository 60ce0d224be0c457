package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/events"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// CertificateIssuanceService drives the claim → render → upload → finalize
// pipeline for one enrollment. The aggregate's claim flag is the at-most-once
// guard; this service owns everything between the claim and the finalize.
type CertificateIssuanceService interface {
	// IssueForEnrollment issues the certificate if the enrollment is eligible
	// and unclaimed. A nil certificate with nil error means another caller
	// holds or completed the claim (idempotent no-op).
	IssueForEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*learning.Certificate, error)
}

type certificateIssuanceService struct {
	log      *logger.Logger
	agg      aggregates.CertificateAggregate
	renderer CertificateRenderer
	store    ArtifactStore
	bus      events.Publisher
}

func NewCertificateIssuanceService(
	baseLog *logger.Logger,
	agg aggregates.CertificateAggregate,
	renderer CertificateRenderer,
	store ArtifactStore,
	bus events.Publisher,
) CertificateIssuanceService {
	if bus == nil {
		bus = events.NewNoopPublisher()
	}
	return &certificateIssuanceService{
		log:      baseLog.With("service", "CertificateIssuanceService"),
		agg:      agg,
		renderer: renderer,
		store:    store,
		bus:      bus,
	}
}

func (s *certificateIssuanceService) IssueForEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*learning.Certificate, error) {
	start := time.Now()

	claim, err := s.agg.ClaimIssuance(ctx, aggregates.ClaimIssuanceInput{EnrollmentID: enrollmentID})
	if err != nil {
		s.observe("claim_failed", start)
		return nil, err
	}
	if !claim.Claimed {
		return nil, nil
	}

	issuedAt := time.Now().UTC()
	serial := learning.CertificateSerial(enrollmentID, issuedAt)

	artifact, err := s.renderCertificate(ctx, claim, issuedAt, serial)
	if err != nil {
		s.release(ctx, enrollmentID, "render failed: "+err.Error())
		s.observe("render_failed", start)
		return nil, fmt.Errorf("render certificate for enrollment %s: %w", enrollmentID, err)
	}

	objectKey := fmt.Sprintf("certificates/%s/%s.png", enrollmentID, serial)
	if err := s.store.Put(ctx, objectKey, "image/png", bytes.NewReader(artifact.Bytes())); err != nil {
		s.release(ctx, enrollmentID, "upload failed: "+err.Error())
		s.observe("upload_failed", start)
		return nil, fmt.Errorf("upload certificate for enrollment %s: %w", enrollmentID, err)
	}

	final, err := s.agg.FinalizeIssuance(ctx, aggregates.FinalizeIssuanceInput{
		EnrollmentID: enrollmentID,
		Serial:       serial,
		ObjectKey:    objectKey,
		URL:          s.store.PublicURL(objectKey),
		IssuedAt:     issuedAt,
	})
	if err != nil {
		// The uploaded object is orphaned once the claim is released; delete
		// it best-effort so the retry does not collide on the serial key.
		if delErr := s.store.Delete(ctx, objectKey); delErr != nil {
			s.log.Warn("Orphaned certificate artifact left behind", "object_key", objectKey, "error", delErr)
		}
		s.release(ctx, enrollmentID, "finalize failed: "+err.Error())
		s.observe("finalize_failed", start)
		return nil, err
	}

	s.observe("issued", start)
	if m := observability.Current(); m != nil {
		m.IncCertificateIssued()
	}
	s.log.Info("Certificate issued",
		"enrollment_id", enrollmentID,
		"serial", final.Certificate.Serial,
		"student_id", final.Certificate.StudentID,
	)

	if err := s.bus.Publish(ctx, events.Event{
		Topic:        events.TopicCertificateIssued,
		OccurredAt:   issuedAt,
		StudentID:    final.Certificate.StudentID,
		CourseID:     final.Certificate.CourseID,
		EnrollmentID: enrollmentID,
		Data: map[string]any{
			"serial":          final.Certificate.Serial,
			"certificate_url": final.Certificate.URL,
		},
	}); err != nil {
		s.log.Warn("Certificate event publish failed", "enrollment_id", enrollmentID, "error", err)
	}

	cert := final.Certificate
	return &cert, nil
}

func (s *certificateIssuanceService) renderCertificate(ctx context.Context, claim aggregates.ClaimIssuanceResult, issuedAt time.Time, serial string) (bytes.Buffer, error) {
	if s.renderer == nil {
		return bytes.Buffer{}, fmt.Errorf("certificate renderer not configured")
	}
	completionDate := issuedAt
	if claim.Enrollment.CompletedAt != nil {
		completionDate = *claim.Enrollment.CompletedAt
	}
	return s.renderer.Render(ctx, CertificateRenderInput{
		StudentName:    claim.Student.FullName(),
		CourseTitle:    claim.Course.Title,
		CompletionDate: completionDate,
		Serial:         serial,
	})
}

// release rolls the claim back so the reconciliation job can retry the
// enrollment later. A failed release is only logged; the backlog sweep keys
// off certificate_issued, and a finalized enrollment is guarded against
// release inside the aggregate.
func (s *certificateIssuanceService) release(ctx context.Context, enrollmentID uuid.UUID, reason string) {
	if err := s.agg.ReleaseIssuance(ctx, aggregates.ReleaseIssuanceInput{
		EnrollmentID: enrollmentID,
		Reason:       reason,
	}); err != nil {
		s.log.Error("Issuance release failed; enrollment may stay claimed",
			"enrollment_id", enrollmentID,
			"reason", reason,
			"error", err,
		)
	}
}

func (s *certificateIssuanceService) observe(status string, start time.Time) {
	if m := observability.Current(); m != nil {
		m.ObserveCertificateIssuance(status, time.Since(start))
	}
}
