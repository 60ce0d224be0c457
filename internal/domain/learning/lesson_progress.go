package learning

import (
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LessonProgress is the per-student, per-lesson completion/time record.
// Created lazily on first interaction; IsCompleted only ever flips false→true.
type LessonProgress struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID uuid.UUID  `gorm:"type:uuid;not null;index:idx_lesson_progress_student_lesson,unique,priority:1" json:"student_id"`
	Student   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	LessonID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_lesson_progress_student_lesson,unique,priority:2" json:"lesson_id"`
	Lesson    *Lesson    `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`

	// CourseID/SectionID are denormalized so completion recounts never join
	// through the lesson table.
	CourseID  uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	SectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"section_id"`

	IsCompleted      bool `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	TimeSpentSeconds int  `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`

	FirstAccessedAt time.Time `gorm:"column:first_accessed_at;not null;default:now()" json:"first_accessed_at"`
	LastAccessedAt  time.Time `gorm:"column:last_accessed_at;not null;default:now()" json:"last_accessed_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }

// Percentage reports the lesson-level progress value exposed on reads: a
// lesson is either untouched or done, so the value is 0 or 100.
func (p *LessonProgress) Percentage() int {
	if p != nil && p.IsCompleted {
		return 100
	}
	return 0
}
