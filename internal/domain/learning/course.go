package learning

import (
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusArchived  = "archived"
)

type Course struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	InstructorID uuid.UUID  `gorm:"type:uuid;not null;index" json:"instructor_id"`
	Instructor   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:InstructorID;references:ID" json:"instructor,omitempty"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Level       string `gorm:"column:level" json:"level"`
	Subject     string `gorm:"column:subject" json:"subject"`

	Status      string     `gorm:"column:status;not null;default:'draft';index" json:"status"`
	PublishedAt *time.Time `gorm:"column:published_at;index" json:"published_at,omitempty"`

	// TotalLessons is the denormalized lesson count used as the completion
	// denominator. Only the sequencer mutates it, inside the same transaction
	// as the lesson row change.
	TotalLessons int `gorm:"column:total_lessons;not null;default:0" json:"total_lessons"`

	// CertificateEnabled marks the course as certifiable on completion.
	CertificateEnabled bool `gorm:"column:certificate;not null;default:false" json:"certificate"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }
