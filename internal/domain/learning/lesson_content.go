package learning

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// LessonContent is the tagged payload stored on a lesson. Exactly one variant
// field matching Type is populated; boundary validation enforces that before
// anything downstream decodes it.
type LessonContent struct {
	Type       string             `json:"type"`
	Video      *VideoContent      `json:"video,omitempty"`
	Text       *TextContent       `json:"text,omitempty"`
	File       *FileContent       `json:"file,omitempty"`
	Link       *LinkContent       `json:"link,omitempty"`
	Quiz       *QuizContent       `json:"quiz,omitempty"`
	Assignment *AssignmentContent `json:"assignment,omitempty"`
}

type VideoContent struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Transcript      string `json:"transcript,omitempty"`
}

type TextContent struct {
	BodyMD string `json:"body_md"`
}

type FileContent struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
}

type LinkContent struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type QuizContent struct {
	Questions []QuizQuestion `json:"questions"`
}

type QuizQuestion struct {
	ID              string       `json:"id"`
	Prompt          string       `json:"prompt"`
	Options         []QuizOption `json:"options"`
	CorrectOptionID string       `json:"correct_option_id"`
	Points          int          `json:"points,omitempty"` // <=0 means 1
}

type QuizOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type AssignmentContent struct {
	InstructionsMD  string   `json:"instructions_md"`
	SubmissionTypes []string `json:"submission_types,omitempty"`
}

func DecodeLessonContent(raw datatypes.JSON) (*LessonContent, error) {
	c := &LessonContent{}
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decode lesson content: %w", err)
	}
	return c, nil
}

// Validate checks that the populated variant matches Type. Unknown types are
// rejected so stale clients cannot smuggle untyped payloads.
func (c *LessonContent) Validate() error {
	if c == nil || c.Type == "" {
		return fmt.Errorf("lesson content: missing type")
	}
	var ok bool
	switch c.Type {
	case LessonTypeVideo:
		ok = c.Video != nil
	case LessonTypeText:
		ok = c.Text != nil
	case LessonTypeFile:
		ok = c.File != nil
	case LessonTypeLink:
		ok = c.Link != nil
	case LessonTypeQuiz:
		ok = c.Quiz != nil && len(c.Quiz.Questions) > 0
	case LessonTypeAssignment:
		ok = c.Assignment != nil
	default:
		return fmt.Errorf("lesson content: unknown type %q", c.Type)
	}
	if !ok {
		return fmt.Errorf("lesson content: type %q has no matching payload", c.Type)
	}
	return nil
}

func (q *QuizQuestion) EffectivePoints() int {
	if q == nil || q.Points <= 0 {
		return 1
	}
	return q.Points
}

func (q *QuizContent) TotalPoints() int {
	if q == nil {
		return 0
	}
	total := 0
	for i := range q.Questions {
		total += q.Questions[i].EffectivePoints()
	}
	return total
}

// GradeResult carries the outcome of grading one submission against the quiz
// payload. Percentage is points-weighted, rounded half up and clamped to
// [0,100]; the three counts are denormalized onto the attempt row.
type GradeResult struct {
	Answers         []AnswerRecord
	Percentage      int
	EarnedPoints    int
	TotalPoints     int
	CorrectCount    int
	IncorrectCount  int
	UnansweredCount int
}

// Grade scores selected option ids keyed by question id. Questions missing
// from the submission count as unanswered, never as wrong-with-penalty.
func (q *QuizContent) Grade(selected map[string]string) GradeResult {
	res := GradeResult{}
	if q == nil {
		return res
	}
	res.Answers = make([]AnswerRecord, 0, len(q.Questions))
	for i := range q.Questions {
		question := &q.Questions[i]
		points := question.EffectivePoints()
		res.TotalPoints += points

		rec := AnswerRecord{QuestionID: question.ID}
		choice, answered := selected[question.ID]
		if answered && choice != "" {
			rec.Answered = true
			rec.SelectedOptionID = choice
			if choice == question.CorrectOptionID {
				rec.Correct = true
				rec.PointsAwarded = points
				res.EarnedPoints += points
				res.CorrectCount++
			} else {
				res.IncorrectCount++
			}
		} else {
			res.UnansweredCount++
		}
		res.Answers = append(res.Answers, rec)
	}
	if res.TotalPoints > 0 {
		res.Percentage = clampPercent(roundHalfUp(100 * float64(res.EarnedPoints) / float64(res.TotalPoints)))
	}
	return res
}
