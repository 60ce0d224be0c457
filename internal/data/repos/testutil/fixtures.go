package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/courseloom/courseloom-backend/internal/domain"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email, role string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
		Role:      role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, instructorID uuid.UUID, certifiable bool) *types.Course {
	tb.Helper()
	c := &types.Course{
		ID:                 uuid.New(),
		InstructorID:       instructorID,
		Title:              "course",
		Status:             learning.CourseStatusPublished,
		CertificateEnabled: certifiable,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedSection(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, position int) *types.Section {
	tb.Helper()
	s := &types.Section{
		ID:       uuid.New(),
		CourseID: courseID,
		Title:    fmt.Sprintf("section %d", position),
		Position: position,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed section: %v", err)
	}
	return s
}

func SeedLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID, sectionID uuid.UUID, position int) *types.Lesson {
	tb.Helper()
	l := &types.Lesson{
		ID:         uuid.New(),
		CourseID:   courseID,
		SectionID:  sectionID,
		Title:      fmt.Sprintf("lesson %d", position),
		Type:       learning.LessonTypeText,
		Position:   position,
		IsVisible:  true,
		IsRequired: true,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

// SeedQuizLesson creates a quiz lesson with the given question set and
// attempt policy already encoded onto the row.
func SeedQuizLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID, sectionID uuid.UUID, position int, quiz learning.QuizContent, settings learning.QuizSettings) *types.Lesson {
	tb.Helper()
	content, err := json.Marshal(learning.LessonContent{Type: learning.LessonTypeQuiz, Quiz: &quiz})
	if err != nil {
		tb.Fatalf("marshal quiz content: %v", err)
	}
	policy, err := json.Marshal(settings)
	if err != nil {
		tb.Fatalf("marshal quiz settings: %v", err)
	}
	l := &types.Lesson{
		ID:               uuid.New(),
		CourseID:         courseID,
		SectionID:        sectionID,
		Title:            fmt.Sprintf("quiz %d", position),
		Type:             learning.LessonTypeQuiz,
		Position:         position,
		IsVisible:        true,
		IsRequired:       true,
		Content:          datatypes.JSON(content),
		QuizSettingsJSON: datatypes.JSON(policy),
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed quiz lesson: %v", err)
	}
	return l
}

// SetTotalLessons pins course.total_lessons for tests that seed lesson rows
// directly instead of going through the ordering aggregate.
func SetTotalLessons(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, total int) {
	tb.Helper()
	if err := tx.WithContext(ctx).
		Model(&types.Course{}).
		Where("id = ?", courseID).
		Update("total_lessons", total).Error; err != nil {
		tb.Fatalf("set total_lessons: %v", err)
	}
}

func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) *types.Enrollment {
	tb.Helper()
	e := &types.Enrollment{
		ID:        uuid.New(),
		StudentID: studentID,
		CourseID:  courseID,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

// CompleteEnrollment force-marks an enrollment completed, for tests that
// start at the certificate stage instead of walking the progress path.
func CompleteEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) {
	tb.Helper()
	now := time.Now().UTC()
	if err := tx.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("id = ?", enrollmentID).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": now,
			"progress":     100,
		}).Error; err != nil {
		tb.Fatalf("complete enrollment: %v", err)
	}
}

// TwoQuestionQuiz is the canonical fixture quiz: q1 worth 1 point, q2 worth
// 1 point, correct options "q1o1"/"q2o2".
func TwoQuestionQuiz() learning.QuizContent {
	return learning.QuizContent{
		Questions: []learning.QuizQuestion{
			{
				ID:     "q1",
				Prompt: "first",
				Options: []learning.QuizOption{
					{ID: "q1o1", Text: "right"},
					{ID: "q1o2", Text: "wrong"},
				},
				CorrectOptionID: "q1o1",
			},
			{
				ID:     "q2",
				Prompt: "second",
				Options: []learning.QuizOption{
					{ID: "q2o1", Text: "wrong"},
					{ID: "q2o2", Text: "right"},
				},
				CorrectOptionID: "q2o2",
			},
		},
	}
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrInt(v int) *int { return &v }

func PtrBool(v bool) *bool { return &v }
