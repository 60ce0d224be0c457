package learning

import (
	"fmt"
	"strings"
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certificate records the issued artifact for one completed enrollment.
// At most one row exists per enrollment.
type Certificate struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EnrollmentID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex" json:"enrollment_id"`
	Enrollment   *Enrollment `gorm:"constraint:OnDelete:CASCADE;foreignKey:EnrollmentID;references:ID" json:"enrollment,omitempty"`
	CourseID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"course_id"`
	StudentID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"student_id"`
	Student      *user.User  `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`

	Serial    string `gorm:"column:serial;not null;uniqueIndex" json:"serial"`
	ObjectKey string `gorm:"column:object_key;not null" json:"object_key"`
	URL       string `gorm:"column:url;not null" json:"url"`

	IssuedAt time.Time `gorm:"column:issued_at;not null;default:now()" json:"issued_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Certificate) TableName() string { return "certificate" }

// CertificateSerial builds the printed serial number. External verification
// tooling matches on the truncated enrollment-id suffix, so the format is
// frozen as CERT-<year>-<first 8 hex chars of the enrollment id>.
func CertificateSerial(enrollmentID uuid.UUID, issuedAt time.Time) string {
	hex := strings.ReplaceAll(enrollmentID.String(), "-", "")
	suffix := strings.ToUpper(hex)
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("CERT-%d-%s", issuedAt.Year(), suffix)
}
