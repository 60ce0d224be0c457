package app

import (
	"gorm.io/gorm"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type Repos struct {
	User           repos.UserRepo
	Course         repos.CourseRepo
	Section        repos.SectionRepo
	Lesson         repos.LessonRepo
	LessonProgress repos.LessonProgressRepo
	Enrollment     repos.EnrollmentRepo
	QuizAttempt    repos.QuizAttemptRepo
	Certificate    repos.CertificateRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		Course:         repos.NewCourseRepo(db, log),
		Section:        repos.NewSectionRepo(db, log),
		Lesson:         repos.NewLessonRepo(db, log),
		LessonProgress: repos.NewLessonProgressRepo(db, log),
		Enrollment:     repos.NewEnrollmentRepo(db, log),
		QuizAttempt:    repos.NewQuizAttemptRepo(db, log),
		Certificate:    repos.NewCertificateRepo(db, log),
	}
}
