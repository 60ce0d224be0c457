package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TopicLessonCompleted   = "lesson.completed"
	TopicCourseCompleted   = "course.completed"
	TopicCertificateIssued = "certificate.issued"
)

// Event is one progress milestone pushed to downstream consumers
// (notification workers, analytics sinks). Delivery is best-effort
// at-least-once; consumers must tolerate duplicates.
type Event struct {
	Topic        string         `json:"topic"`
	OccurredAt   time.Time      `json:"occurred_at"`
	StudentID    uuid.UUID      `json:"student_id"`
	CourseID     uuid.UUID      `json:"course_id"`
	EnrollmentID uuid.UUID      `json:"enrollment_id,omitempty"`
	LessonID     uuid.UUID      `json:"lesson_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. Used when no
// broker is configured so callers never need a nil check.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }

func (noopPublisher) Close() error { return nil }
