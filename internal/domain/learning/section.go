package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Section groups lessons inside a course. Position is dense per course
// (1..N); there is deliberately no unique index on it because dense
// renumbering shifts rows through transient duplicates inside a transaction.
type Section struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index:idx_section_course_position,priority:1" json:"course_id"`
	Course   *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`

	Title    string `gorm:"column:title;not null" json:"title"`
	Position int    `gorm:"column:position;not null;index:idx_section_course_position,priority:2" json:"order"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Section) TableName() string { return "section" }
