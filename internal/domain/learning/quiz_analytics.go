package learning

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// QuizAnalytics is the instructor-facing aggregate over the full attempt
// history of one quiz lesson. It is recomputed from scratch on every call;
// nothing in here is incrementally maintained.
type QuizAnalytics struct {
	LessonID           uuid.UUID            `json:"lesson_id"`
	TotalAttempts      int                  `json:"total_attempts"`
	TotalStudents      int                  `json:"total_students"`
	AverageScore       float64              `json:"average_score"`
	AverageTimeSeconds float64              `json:"average_time_seconds"`
	PassingRate        float64              `json:"passing_rate"`
	QuestionStats      []QuestionStat       `json:"question_stats"`
	ScoreDistribution  []DistributionBucket `json:"score_distribution"`
	TimeDistribution   []DistributionBucket `json:"time_distribution"`
	AttemptsByDate     []DateCount          `json:"attempts_by_date"`
}

type QuestionStat struct {
	QuestionID      string  `json:"question_id"`
	Prompt          string  `json:"prompt"`
	CorrectCount    int     `json:"correct_count"`
	IncorrectCount  int     `json:"incorrect_count"`
	UnansweredCount int     `json:"unanswered_count"`
	CorrectRate     float64 `json:"correct_rate"`
	Difficulty      float64 `json:"difficulty"` // 100 - CorrectRate
}

type DistributionBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type DateCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

var scoreBucketBounds = []struct {
	label string
	max   int // inclusive upper percentage
}{
	{"0-20", 20},
	{"21-40", 40},
	{"41-60", 60},
	{"61-80", 80},
	{"81-100", 100},
}

var timeBucketBounds = []struct {
	label string
	max   int // inclusive upper bound in seconds, -1 = unbounded
}{
	{"0-1m", 60},
	{"1-5m", 300},
	{"5-10m", 600},
	{"10-30m", 1800},
	{"30m+", -1},
}

// ComputeQuizAnalytics derives the aggregate from the attempt rows. An empty
// history yields zero counts and zeroed fixed buckets, never an error; rows
// whose stored answers fail to decode count toward the totals but contribute
// nothing to per-question stats.
func ComputeQuizAnalytics(lessonID uuid.UUID, content *QuizContent, passingScore int, attempts []QuizAttempt) QuizAnalytics {
	out := QuizAnalytics{
		LessonID:          lessonID,
		QuestionStats:     []QuestionStat{},
		ScoreDistribution: emptyBuckets(len(scoreBucketBounds)),
		TimeDistribution:  emptyBuckets(len(timeBucketBounds)),
		AttemptsByDate:    []DateCount{},
	}
	for i := range scoreBucketBounds {
		out.ScoreDistribution[i].Label = scoreBucketBounds[i].label
	}
	for i := range timeBucketBounds {
		out.TimeDistribution[i].Label = timeBucketBounds[i].label
	}
	if len(attempts) == 0 {
		return out
	}

	out.TotalAttempts = len(attempts)

	students := map[uuid.UUID]struct{}{}
	byDate := map[string]int{}
	var scoreSum, timeSum, passed int
	type questionTally struct {
		correct, incorrect, unanswered int
	}
	tallies := map[string]*questionTally{}
	var questions []QuizQuestion
	if content != nil {
		questions = content.Questions
	}
	for i := range questions {
		tallies[questions[i].ID] = &questionTally{}
	}

	for i := range attempts {
		a := &attempts[i]
		students[a.StudentID] = struct{}{}
		scoreSum += a.Percentage
		timeSum += a.TimeSpentSeconds
		if a.Percentage >= passingScore {
			passed++
		}
		out.ScoreDistribution[scoreBucketIndex(a.Percentage)].Count++
		out.TimeDistribution[timeBucketIndex(a.TimeSpentSeconds)].Count++
		byDate[a.SubmittedAt.UTC().Format("2006-01-02")]++

		records, err := DecodeAnswers(a.Answers)
		if err != nil {
			continue
		}
		answered := map[string]AnswerRecord{}
		for _, rec := range records {
			answered[rec.QuestionID] = rec
		}
		for qid, tally := range tallies {
			rec, ok := answered[qid]
			switch {
			case !ok || !rec.Answered:
				tally.unanswered++
			case rec.Correct:
				tally.correct++
			default:
				tally.incorrect++
			}
		}
	}

	out.TotalStudents = len(students)
	out.AverageScore = round2(float64(scoreSum) / float64(len(attempts)))
	out.AverageTimeSeconds = round2(float64(timeSum) / float64(len(attempts)))
	out.PassingRate = round2(100 * float64(passed) / float64(len(attempts)))

	for i := range questions {
		q := &questions[i]
		tally := tallies[q.ID]
		total := tally.correct + tally.incorrect + tally.unanswered
		rate := 0.0
		if total > 0 {
			rate = round2(100 * float64(tally.correct) / float64(total))
		}
		out.QuestionStats = append(out.QuestionStats, QuestionStat{
			QuestionID:      q.ID,
			Prompt:          q.Prompt,
			CorrectCount:    tally.correct,
			IncorrectCount:  tally.incorrect,
			UnansweredCount: tally.unanswered,
			CorrectRate:     rate,
			Difficulty:      round2(100 - rate),
		})
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		out.AttemptsByDate = append(out.AttemptsByDate, DateCount{Date: d, Count: byDate[d]})
	}
	return out
}

func emptyBuckets(n int) []DistributionBucket {
	return make([]DistributionBucket, n)
}

func scoreBucketIndex(percentage int) int {
	for i, b := range scoreBucketBounds {
		if percentage <= b.max {
			return i
		}
	}
	return len(scoreBucketBounds) - 1
}

func timeBucketIndex(seconds int) int {
	for i, b := range timeBucketBounds {
		if b.max < 0 || seconds <= b.max {
			return i
		}
	}
	return len(timeBucketBounds) - 1
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
