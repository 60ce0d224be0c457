package domain

import (
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/domain/user"
)

const (
	RoleStudent    = user.RoleStudent
	RoleInstructor = user.RoleInstructor
	RoleAdmin      = user.RoleAdmin
)

type User = user.User

type Course = learning.Course
type Section = learning.Section
type Lesson = learning.Lesson
type LessonContent = learning.LessonContent
type LessonProgress = learning.LessonProgress
type Enrollment = learning.Enrollment
type QuizAttempt = learning.QuizAttempt
type QuizSettings = learning.QuizSettings
type QuizContent = learning.QuizContent
type QuizQuestion = learning.QuizQuestion
type AnswerRecord = learning.AnswerRecord
type Certificate = learning.Certificate

type AttemptPolicyDecision = learning.AttemptPolicyDecision
type AttemptSummary = learning.AttemptSummary
type QuizAnalytics = learning.QuizAnalytics
type QuestionStat = learning.QuestionStat
type DistributionBucket = learning.DistributionBucket
type DateCount = learning.DateCount
