package aggregates

import (
	"context"

	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/google/uuid"
)

var OrderingAggregateContract = Contract{
	Name:             "Content.OrderingAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns dense per-section lesson positions and per-course section positions. " +
		"Every mutation renumbers inside one serialized transaction so no reader " +
		"observes a gap or a duplicate position.",
}

// OrderingAggregate owns the dense-sequence invariant for course content.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeForbidden, CodeConflict, CodeRetryable,
// CodeInternal.
type OrderingAggregate interface {
	Aggregate

	// CreateSection appends or splices a section into the course's dense
	// section sequence.
	CreateSection(ctx context.Context, in CreateSectionInput) (CreateSectionResult, error)

	// InsertLesson creates a lesson at the desired position, shifting later
	// lessons up by one; omitted position appends at max+1.
	InsertLesson(ctx context.Context, in InsertLessonInput) (InsertLessonResult, error)

	// DeleteLesson removes the lesson and closes the gap it leaves, together
	// with the lesson's progress and attempt rows.
	DeleteLesson(ctx context.Context, in DeleteLessonInput) (DeleteLessonResult, error)

	// MoveLesson renumbers the source section, then splices the lesson into
	// the destination; both sections end dense.
	MoveLesson(ctx context.Context, in MoveLessonInput) (MoveLessonResult, error)

	// ReorderSection applies an explicit position assignment covering every
	// lesson in the section exactly once.
	ReorderSection(ctx context.Context, in ReorderSectionInput) (ReorderSectionResult, error)
}

type CreateSectionInput struct {
	CourseID        uuid.UUID
	ActorID         uuid.UUID
	Title           string
	DesiredPosition *int // nil appends
}

type CreateSectionResult struct {
	Section        learning.Section
	CourseSections []learning.Section
}

type InsertLessonInput struct {
	SectionID       uuid.UUID
	ActorID         uuid.UUID
	Title           string
	Type            string
	DesiredPosition *int // nil appends
	IsVisible       *bool
	IsRequired      *bool
	EstimatedTime   int
	Content         *learning.LessonContent
	QuizSettings    *learning.QuizSettings
}

type InsertLessonResult struct {
	Lesson         learning.Lesson
	SectionLessons []learning.Lesson
}

type DeleteLessonInput struct {
	LessonID uuid.UUID
	ActorID  uuid.UUID
}

type DeleteLessonResult struct {
	SectionID      uuid.UUID
	SectionLessons []learning.Lesson
}

type MoveLessonInput struct {
	LessonID      uuid.UUID
	ActorID       uuid.UUID
	FromSectionID uuid.UUID
	ToSectionID   uuid.UUID
	NewPosition   *int // nil appends to the destination
}

type MoveLessonResult struct {
	SourceSectionID uuid.UUID
	DestSectionID   uuid.UUID
	SourceLessons   []learning.Lesson
	DestLessons     []learning.Lesson
}

// LessonPosition is one (lesson, position) pair in a batch reorder.
type LessonPosition struct {
	LessonID uuid.UUID `json:"lesson_id"`
	Position int       `json:"order"`
}

type ReorderSectionInput struct {
	SectionID uuid.UUID
	ActorID   uuid.UUID
	Pairs     []LessonPosition
}

type ReorderSectionResult struct {
	SectionLessons []learning.Lesson
}
