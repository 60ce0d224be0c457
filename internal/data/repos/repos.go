package repos

import (
	"gorm.io/gorm"

	"github.com/courseloom/courseloom-backend/internal/data/repos/learning"
	"github.com/courseloom/courseloom-backend/internal/data/repos/user"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type CourseRepo = learning.CourseRepo
type SectionRepo = learning.SectionRepo
type LessonRepo = learning.LessonRepo
type LessonProgressRepo = learning.LessonProgressRepo
type EnrollmentRepo = learning.EnrollmentRepo
type QuizAttemptRepo = learning.QuizAttemptRepo
type CertificateRepo = learning.CertificateRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return learning.NewCourseRepo(db, baseLog)
}

func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	return learning.NewSectionRepo(db, baseLog)
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return learning.NewLessonRepo(db, baseLog)
}

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return learning.NewLessonProgressRepo(db, baseLog)
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return learning.NewEnrollmentRepo(db, baseLog)
}

func NewQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) QuizAttemptRepo {
	return learning.NewQuizAttemptRepo(db, baseLog)
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	return learning.NewCertificateRepo(db, baseLog)
}
