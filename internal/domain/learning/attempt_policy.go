package learning

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DefaultPassingScore applies when a quiz carries no explicit passing score.
const DefaultPassingScore = 70

// QuizSettings is the attempt policy stored on a quiz lesson. Zero values
// mean "unrestricted" for MaxAttempts/CooldownSeconds/TimeLimitSeconds.
type QuizSettings struct {
	MaxAttempts      int `json:"max_attempts,omitempty"`
	CooldownSeconds  int `json:"cooldown_seconds,omitempty"`
	PassingScore     int `json:"passing_score,omitempty"`
	TimeLimitSeconds int `json:"time_limit_seconds,omitempty"`
}

func DecodeQuizSettings(raw datatypes.JSON) (*QuizSettings, error) {
	s := &QuizSettings{}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("decode quiz settings: %w", err)
	}
	return s, nil
}

func (s *QuizSettings) EffectivePassingScore() int {
	if s == nil || s.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return s.PassingScore
}

const (
	RetakeReasonAttemptsExhausted = "attempts_exhausted"
	RetakeReasonCooldownActive    = "cooldown_active"
)

// AttemptPolicyDecision is the gating verdict shared by the submit path and
// the read-side retake check.
type AttemptPolicyDecision struct {
	CanRetake              bool       `json:"can_retake"`
	AttemptsUsed           int        `json:"attempts_used"`
	RemainingAttempts      *int       `json:"remaining_attempts,omitempty"` // nil when unlimited
	NextAttemptAvailableAt *time.Time `json:"next_attempt_available_at,omitempty"`
	Reason                 string     `json:"reason,omitempty"`
}

// EvaluateAttemptPolicy decides whether one more attempt is allowed right
// now. Submission gating and the canRetake read both call this, so the two
// paths cannot drift apart. Exhausted attempts win over an active cooldown.
func EvaluateAttemptPolicy(settings *QuizSettings, attemptsUsed int, lastSubmittedAt *time.Time, now time.Time) AttemptPolicyDecision {
	if settings == nil {
		settings = &QuizSettings{}
	}
	decision := AttemptPolicyDecision{CanRetake: true, AttemptsUsed: attemptsUsed}

	if settings.MaxAttempts > 0 {
		remaining := settings.MaxAttempts - attemptsUsed
		if remaining < 0 {
			remaining = 0
		}
		decision.RemainingAttempts = &remaining
		if remaining == 0 {
			decision.CanRetake = false
			decision.Reason = RetakeReasonAttemptsExhausted
			return decision
		}
	}

	if settings.CooldownSeconds > 0 && lastSubmittedAt != nil {
		readyAt := lastSubmittedAt.Add(time.Duration(settings.CooldownSeconds) * time.Second)
		if now.Before(readyAt) {
			decision.CanRetake = false
			decision.Reason = RetakeReasonCooldownActive
			decision.NextAttemptAvailableAt = &readyAt
		}
	}
	return decision
}

// AttemptSummary is the student-facing view of attempt state for one quiz:
// the gating verdict plus best/average scores over the existing attempts.
type AttemptSummary struct {
	LessonID               uuid.UUID  `json:"lesson_id"`
	StudentID              uuid.UUID  `json:"student_id"`
	AttemptsUsed           int        `json:"attempts_used"`
	RemainingAttempts      *int       `json:"remaining_attempts,omitempty"`
	CanRetake              bool       `json:"can_retake"`
	NextAttemptAvailableAt *time.Time `json:"next_attempt_available_at,omitempty"`
	Reason                 string     `json:"reason,omitempty"`
	BestScore              int        `json:"best_score"`
	AverageScore           float64    `json:"average_score"`
	LastAttemptAt          *time.Time `json:"last_attempt_at,omitempty"`
}

// BuildAttemptSummary derives the summary from the stored attempts using the
// same policy predicate that gates submission.
func BuildAttemptSummary(lessonID, studentID uuid.UUID, settings *QuizSettings, attempts []QuizAttempt, now time.Time) AttemptSummary {
	summary := AttemptSummary{
		LessonID:  lessonID,
		StudentID: studentID,
	}
	var scoreSum int
	for i := range attempts {
		a := &attempts[i]
		scoreSum += a.Percentage
		if a.Percentage > summary.BestScore {
			summary.BestScore = a.Percentage
		}
		if summary.LastAttemptAt == nil || a.SubmittedAt.After(*summary.LastAttemptAt) {
			t := a.SubmittedAt
			summary.LastAttemptAt = &t
		}
	}
	if len(attempts) > 0 {
		summary.AverageScore = math.Round(float64(scoreSum)/float64(len(attempts))*100) / 100
	}

	decision := EvaluateAttemptPolicy(settings, len(attempts), summary.LastAttemptAt, now)
	summary.AttemptsUsed = decision.AttemptsUsed
	summary.RemainingAttempts = decision.RemainingAttempts
	summary.CanRetake = decision.CanRetake
	summary.NextAttemptAvailableAt = decision.NextAttemptAvailableAt
	summary.Reason = decision.Reason
	return summary
}
