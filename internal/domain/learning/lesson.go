package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LessonTypeVideo      = "video"
	LessonTypeText       = "text"
	LessonTypeFile       = "file"
	LessonTypeLink       = "link"
	LessonTypeQuiz       = "quiz"
	LessonTypeAssignment = "assignment"
)

func ValidLessonType(t string) bool {
	switch t {
	case LessonTypeVideo, LessonTypeText, LessonTypeFile, LessonTypeLink, LessonTypeQuiz, LessonTypeAssignment:
		return true
	default:
		return false
	}
}

// Lesson is the orderable unit of course content. Position is dense per
// section (1..N) and is mutated only through the ordering aggregate.
type Lesson struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Course    *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	SectionID uuid.UUID `gorm:"type:uuid;not null;index:idx_lesson_section_position,priority:1" json:"section_id"`
	Section   *Section  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SectionID;references:ID" json:"section,omitempty"`

	Title    string `gorm:"column:title;not null" json:"title"`
	Type     string `gorm:"column:type;not null" json:"type"` // video|text|file|link|quiz|assignment
	Position int    `gorm:"column:position;not null;index:idx_lesson_section_position,priority:2" json:"order"`

	IsVisible     bool `gorm:"column:is_visible;not null;default:true" json:"is_visible"`
	IsRequired    bool `gorm:"column:is_required;not null;default:true" json:"is_required"`
	EstimatedTime int  `gorm:"column:estimated_time;not null;default:0" json:"estimated_time"` // minutes

	// Content holds the tagged per-type payload (see LessonContent).
	Content datatypes.JSON `gorm:"column:content;type:jsonb" json:"content,omitempty"`
	// QuizSettingsJSON holds the attempt policy for quiz lessons.
	QuizSettingsJSON datatypes.JSON `gorm:"column:quiz_settings;type:jsonb" json:"quiz_settings,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Lesson) TableName() string { return "lesson" }
