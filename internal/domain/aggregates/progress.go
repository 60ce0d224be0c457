package aggregates

import (
	"context"
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/google/uuid"
)

var ProgressAggregateContract = Contract{
	Name:             "Progress.TrackerAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns lesson_progress upserts and the enrollment completion state machine. " +
		"Completion is sticky, time accumulates via atomic increments, and the " +
		"course-level recompute runs in the same transaction as the completion event.",
}

// ProgressAggregate owns per-student progress writes and the one-time
// enrollment completion transition.
type ProgressAggregate interface {
	Aggregate

	// RecordInteraction lazily creates or updates the (student, lesson)
	// progress row. A completion event also recomputes the enrollment.
	RecordInteraction(ctx context.Context, in RecordInteractionInput) (RecordInteractionResult, error)

	// RecomputeCompletion refreshes enrollment progress from source counts.
	// Safe to call repeatedly; only the first pass over 100% transitions the
	// completion flag.
	RecomputeCompletion(ctx context.Context, in RecomputeCompletionInput) (RecomputeCompletionResult, error)
}

type RecordInteractionInput struct {
	StudentID    uuid.UUID
	LessonID     uuid.UUID
	Completed    *bool // true is sticky; false never reverts
	SecondsDelta *int  // clamped at 0, applied as an atomic increment
	EventAt      time.Time
}

type RecordInteractionResult struct {
	Progress        learning.LessonProgress
	Enrollment      *learning.Enrollment // set when a completion recompute ran
	CourseCompleted bool                 // enrollment transitioned this call
	// CertificateDue is true when the transition above happened on a
	// certifiable course; the caller owns triggering issuance post-commit.
	CertificateDue bool
}

type RecomputeCompletionInput struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
}

type RecomputeCompletionResult struct {
	Enrollment       learning.Enrollment
	CompletedLessons int
	TotalLessons     int
	Transitioned     bool
	CertificateDue   bool
}
