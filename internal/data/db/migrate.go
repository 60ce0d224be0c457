package db

import (
	"fmt"

	types "github.com/courseloom/courseloom-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Identity
		// =========================
		&types.User{},

		// =========================
		// Course content
		// =========================
		&types.Course{},
		&types.Section{},
		&types.Lesson{},

		// =========================
		// Learner state
		// =========================
		&types.Enrollment{},
		&types.LessonProgress{},
		&types.QuizAttempt{},

		// =========================
		// Certificates
		// =========================
		&types.Certificate{},
	)
}

func EnsureContentIndexes(db *gorm.DB) error {
	// Analytics and gate reads scan one lesson's attempt history; the unique
	// numbering index starts at student_id so it cannot serve these.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_quiz_attempt_lesson_submitted
		ON quiz_attempt (lesson_id, submitted_at)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_quiz_attempt_lesson_submitted: %w", err)
	}

	// Completion recompute counts completed rows per (course, student).
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_lesson_progress_course_student
		ON lesson_progress (course_id, student_id)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_lesson_progress_course_student: %w", err)
	}

	// The certificate reconciliation sweep only ever reads this slice.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_enrollment_certificate_backlog
		ON enrollment (completed_at)
		WHERE deleted_at IS NULL AND is_completed AND NOT certificate_issued;
	`).Error; err != nil {
		return fmt.Errorf("create idx_enrollment_certificate_backlog: %w", err)
	}

	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureContentIndexes(s.db); err != nil {
		s.log.Error("Content index migration failed", "error", err)
		return err
	}
	return nil
}
