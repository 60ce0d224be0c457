package aggregates

import (
	"context"
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/google/uuid"
)

var AttemptAggregateContract = Contract{
	Name:             "Assessment.AttemptAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns quiz attempt inserts: policy gating, grading, and monotonic " +
		"attempt numbering. The unique (student, lesson, attempt_number) index " +
		"is the last line against concurrent duplicate numbers.",
}

// AttemptAggregate owns graded quiz submissions.
//
// A submission rejected by the attempt policy returns CodeBusinessRule with
// Meta carrying max_attempts/remaining_attempts and, for cooldowns,
// cooldown_seconds/next_attempt_at. A concurrent duplicate attempt number
// surfaces as CodeConflict or CodeRetryable and may be retried once.
type AttemptAggregate interface {
	Aggregate

	// SubmitAttempt gates, grades, and appends one attempt.
	SubmitAttempt(ctx context.Context, in SubmitAttemptInput) (SubmitAttemptResult, error)
}

type SubmitAttemptInput struct {
	StudentID        uuid.UUID
	LessonID         uuid.UUID
	Answers          []learning.AnswerSubmission
	TimeSpentSeconds int
	SubmittedAt      time.Time
}

type SubmitAttemptResult struct {
	Attempt learning.QuizAttempt
	// Passed is the attempt's percentage measured against the quiz's
	// effective passing score.
	Passed bool
	// Summary reflects the gate state after this attempt landed, computed
	// with the same predicate the gate itself used.
	Summary learning.AttemptSummary
}
