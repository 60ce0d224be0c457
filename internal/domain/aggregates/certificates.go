package aggregates

import (
	"context"
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/google/uuid"
)

var CertificateAggregateContract = Contract{
	Name:             "Certificates.IssuanceAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the at-most-once issuance guard: claim is a conditional flip of " +
		"certificate_issued, finalize records the artifact, release rolls the " +
		"claim back after a failed render so a later pass can retry.",
}

// CertificateAggregate owns the issuance lifecycle for completed enrollments.
//
// Render and upload happen outside the aggregate, between Claim and
// Finalize/Release; the flag guard is what keeps concurrent callers from
// both rendering.
type CertificateAggregate interface {
	Aggregate

	// ClaimIssuance flips certificate_issued false→true iff it is currently
	// false. Claimed=false with no error means another caller holds or held
	// the claim.
	ClaimIssuance(ctx context.Context, in ClaimIssuanceInput) (ClaimIssuanceResult, error)

	// FinalizeIssuance records the certificate row and the enrollment's
	// certificate URL after a successful render+upload.
	FinalizeIssuance(ctx context.Context, in FinalizeIssuanceInput) (FinalizeIssuanceResult, error)

	// ReleaseIssuance rolls certificate_issued back to false after a failed
	// render so a later issuance attempt can retry.
	ReleaseIssuance(ctx context.Context, in ReleaseIssuanceInput) error
}

type ClaimIssuanceInput struct {
	EnrollmentID uuid.UUID
}

type ClaimIssuanceResult struct {
	Claimed    bool
	Enrollment learning.Enrollment
	// Course and Student are loaded with the claim so the renderer gets its
	// display fields without a second read.
	Course  learning.Course
	Student user.User
}

type FinalizeIssuanceInput struct {
	EnrollmentID uuid.UUID
	Serial       string
	ObjectKey    string
	URL          string
	IssuedAt     time.Time
}

type FinalizeIssuanceResult struct {
	Certificate learning.Certificate
	Enrollment  learning.Enrollment
}

type ReleaseIssuanceInput struct {
	EnrollmentID uuid.UUID
	Reason       string
}
