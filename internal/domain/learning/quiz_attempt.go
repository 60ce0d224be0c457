package learning

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizAttempt is one graded submission of a quiz lesson. Rows are append-only;
// AttemptNumber is contiguous per (student, lesson) starting at 1 and the
// unique index makes the concurrent-writer race lose cleanly instead of
// duplicating a number.
type QuizAttempt struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID uuid.UUID  `gorm:"type:uuid;not null;index:idx_quiz_attempt_number,unique,priority:1" json:"student_id"`
	Student   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	LessonID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_quiz_attempt_number,unique,priority:2" json:"lesson_id"`
	Lesson    *Lesson    `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
	CourseID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`

	AttemptNumber int `gorm:"column:attempt_number;not null;index:idx_quiz_attempt_number,unique,priority:3" json:"attempt_number"`

	Answers    datatypes.JSON `gorm:"column:answers;type:jsonb" json:"answers,omitempty"`
	Percentage int            `gorm:"column:percentage;not null;default:0" json:"percentage"`

	CorrectCount    int `gorm:"column:correct_count;not null;default:0" json:"correct_count"`
	IncorrectCount  int `gorm:"column:incorrect_count;not null;default:0" json:"incorrect_count"`
	UnansweredCount int `gorm:"column:unanswered_count;not null;default:0" json:"unanswered_count"`

	TimeSpentSeconds int       `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`
	SubmittedAt      time.Time `gorm:"column:submitted_at;not null;default:now();index" json:"submitted_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuizAttempt) TableName() string { return "quiz_attempt" }

// AnswerRecord is the stored per-question grading outcome.
type AnswerRecord struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	Answered         bool   `json:"answered"`
	Correct          bool   `json:"correct"`
	PointsAwarded    int    `json:"points_awarded"`
}

// AnswerSubmission is one selected option in an incoming submission, before
// grading.
type AnswerSubmission struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
}

// SelectionMap collapses a submission into question→option form for grading.
// A later duplicate for the same question wins.
func SelectionMap(answers []AnswerSubmission) map[string]string {
	m := make(map[string]string, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = a.SelectedOptionID
	}
	return m
}

func EncodeAnswers(records []AnswerRecord) (datatypes.JSON, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func DecodeAnswers(raw datatypes.JSON) ([]AnswerRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []AnswerRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return records, nil
}
