package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	types "github.com/courseloom/courseloom-backend/internal/domain"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/google/uuid"
)

type CertificateAggregateDeps struct {
	Base BaseDeps

	Enrollments  repos.EnrollmentRepo
	Courses      repos.CourseRepo
	Users        repos.UserRepo
	Certificates repos.CertificateRepo
}

type certificateAggregate struct {
	deps CertificateAggregateDeps
}

func NewCertificateAggregate(deps CertificateAggregateDeps) domainagg.CertificateAggregate {
	deps.Base = deps.Base.withDefaults()
	return &certificateAggregate{deps: deps}
}

func (a *certificateAggregate) Contract() domainagg.Contract {
	return domainagg.CertificateAggregateContract
}

func (a *certificateAggregate) ClaimIssuance(ctx context.Context, in domainagg.ClaimIssuanceInput) (domainagg.ClaimIssuanceResult, error) {
	const op = "Certificates.Issuance.Claim"
	var out domainagg.ClaimIssuanceResult
	if in.EnrollmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing enrollment_id", nil)
	}
	if a.deps.Enrollments == nil || a.deps.Courses == nil || a.deps.Users == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "certificate aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		enrollment, err := a.deps.Enrollments.LockByID(dbc, in.EnrollmentID)
		if err != nil {
			return err
		}
		if enrollment == nil || enrollment.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("enrollment not found: %s", in.EnrollmentID.String()), nil)
		}
		course, err := a.deps.Courses.GetByID(dbc, enrollment.CourseID)
		if err != nil {
			return err
		}
		if course == nil || course.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("course not found: %s", enrollment.CourseID.String()), nil)
		}
		if !course.CertificateEnabled {
			return InvariantError("course does not issue certificates")
		}
		if !enrollment.IsCompleted {
			return InvariantError("enrollment is not completed")
		}
		if enrollment.CertificateIssued {
			// someone else holds or held the claim; not an error
			out = domainagg.ClaimIssuanceResult{
				Claimed:    false,
				Enrollment: *enrollment,
				Course:     *course,
			}
			return nil
		}

		now := time.Now().UTC()
		ok, err := a.deps.Base.CASGuard.UpdateByFlag(dbc, "enrollment", enrollment.ID, "certificate_issued", false, map[string]any{
			"certificate_issued": true,
			"updated_at":         now,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "certificate claim raced"); err != nil {
			return err
		}
		enrollment.CertificateIssued = true
		enrollment.UpdatedAt = now

		student, err := a.deps.Users.GetByID(dbc, enrollment.StudentID)
		if err != nil {
			return err
		}
		if student == nil || student.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("student not found: %s", enrollment.StudentID.String()), nil)
		}
		out = domainagg.ClaimIssuanceResult{
			Claimed:    true,
			Enrollment: *enrollment,
			Course:     *course,
			Student:    *student,
		}
		return nil
	})
	return out, err
}

func (a *certificateAggregate) FinalizeIssuance(ctx context.Context, in domainagg.FinalizeIssuanceInput) (domainagg.FinalizeIssuanceResult, error) {
	const op = "Certificates.Issuance.Finalize"
	var out domainagg.FinalizeIssuanceResult
	if in.EnrollmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing enrollment_id", nil)
	}
	serial := strings.TrimSpace(in.Serial)
	if serial == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing serial", nil)
	}
	url := strings.TrimSpace(in.URL)
	if url == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing url", nil)
	}
	if a.deps.Enrollments == nil || a.deps.Certificates == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "certificate aggregate repos not configured", nil)
	}
	issuedAt := in.IssuedAt.UTC()
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		enrollment, err := a.deps.Enrollments.LockByID(dbc, in.EnrollmentID)
		if err != nil {
			return err
		}
		if enrollment == nil || enrollment.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("enrollment not found: %s", in.EnrollmentID.String()), nil)
		}
		if !enrollment.CertificateIssued {
			return InvariantError("cannot finalize a certificate without a claim")
		}
		if enrollment.CertificateURL != "" {
			return ConflictError("certificate already finalized")
		}

		cert := &types.Certificate{
			ID:           uuid.New(),
			EnrollmentID: enrollment.ID,
			CourseID:     enrollment.CourseID,
			StudentID:    enrollment.StudentID,
			Serial:       serial,
			ObjectKey:    strings.TrimSpace(in.ObjectKey),
			URL:          url,
			IssuedAt:     issuedAt,
			CreatedAt:    issuedAt,
			UpdatedAt:    issuedAt,
		}
		if _, err := a.deps.Certificates.Create(dbc, []*types.Certificate{cert}); err != nil {
			return err
		}

		ok, err := a.deps.Base.CASGuard.UpdateGuarded(dbc, "enrollment", enrollment.ID,
			map[string]any{"certificate_issued": true, "certificate_url": ""},
			map[string]any{"certificate_url": url, "updated_at": issuedAt},
		)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "enrollment changed while finalizing certificate"); err != nil {
			return err
		}
		enrollment.CertificateURL = url
		enrollment.UpdatedAt = issuedAt
		out = domainagg.FinalizeIssuanceResult{
			Certificate: *cert,
			Enrollment:  *enrollment,
		}
		return nil
	})
	return out, err
}

func (a *certificateAggregate) ReleaseIssuance(ctx context.Context, in domainagg.ReleaseIssuanceInput) error {
	const op = "Certificates.Issuance.Release"
	if in.EnrollmentID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing enrollment_id", nil)
	}
	if a.deps.Enrollments == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "certificate aggregate repos not configured", nil)
	}

	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		enrollment, err := a.deps.Enrollments.LockByID(dbc, in.EnrollmentID)
		if err != nil {
			return err
		}
		if enrollment == nil || enrollment.ID == uuid.Nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("enrollment not found: %s", in.EnrollmentID.String()), nil)
		}

		// the url guard keeps a finalized certificate from being unwound;
		// releasing an unclaimed enrollment is a quiet no-op
		released, err := a.deps.Base.CASGuard.UpdateGuarded(dbc, "enrollment", enrollment.ID,
			map[string]any{"certificate_issued": true, "certificate_url": ""},
			map[string]any{"certificate_issued": false, "updated_at": time.Now().UTC()},
		)
		if err != nil {
			return err
		}
		if released && a.deps.Base.Log != nil {
			a.deps.Base.Log.Warn("released certificate issuance claim",
				"enrollment_id", enrollment.ID.String(),
				"reason", in.Reason,
			)
		}
		return nil
	})
}
