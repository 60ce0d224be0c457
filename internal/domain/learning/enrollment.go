package learning

import (
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrollment links a student to a course and carries the aggregate completion
// state. Progress is always recomputed from lesson counts, never incremented
// in place; IsCompleted and CertificateIssued are one-way flags.
type Enrollment struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID uuid.UUID  `gorm:"type:uuid;not null;index:idx_enrollment_student_course,unique,priority:1" json:"student_id"`
	Student   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	CourseID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_enrollment_student_course,unique,priority:2" json:"course_id"`
	Course    *Course    `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`

	Progress    int        `gorm:"column:progress;not null;default:0" json:"progress"`
	IsCompleted bool       `gorm:"column:is_completed;not null;default:false;index" json:"is_completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CertificateIssued bool   `gorm:"column:certificate_issued;not null;default:false" json:"certificate_issued"`
	CertificateURL    string `gorm:"column:certificate_url" json:"certificate_url,omitempty"`

	EnrolledAt time.Time `gorm:"column:enrolled_at;not null;default:now()" json:"enrolled_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Enrollment) TableName() string { return "enrollment" }
