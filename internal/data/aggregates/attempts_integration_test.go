package aggregates

import (
	"context"
	"sync"
	"testing"
	"time"

	learningrepos "github.com/courseloom/courseloom-backend/internal/data/repos/learning"
	repotest "github.com/courseloom/courseloom-backend/internal/data/repos/testutil"
	types "github.com/courseloom/courseloom-backend/internal/domain"
	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newAttemptAggregate(tx *gorm.DB, log *logger.Logger) domainagg.AttemptAggregate {
	return NewAttemptAggregate(AttemptAggregateDeps{
		Base: BaseDeps{
			DB:       tx,
			Runner:   NewGormTxRunner(tx),
			CASGuard: NewCASGuard(tx),
		},
		Lessons:     learningrepos.NewLessonRepo(tx, log),
		Enrollments: learningrepos.NewEnrollmentRepo(tx, log),
		Attempts:    learningrepos.NewQuizAttemptRepo(tx, log),
	})
}

func TestAttemptAggregateValidation(t *testing.T) {
	agg := NewAttemptAggregate(AttemptAggregateDeps{})
	ctx := context.Background()

	if _, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{LessonID: uuid.New()}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing student_id: want validation got %v", err)
	}
	if _, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{StudentID: uuid.New()}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing lesson_id: want validation got %v", err)
	}
}

func TestAttemptAggregateSubmitGradesAndNumbers(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	agg := newAttemptAggregate(tx, log)

	ctx := context.Background()
	instructor := repotest.SeedUser(t, ctx, tx, "att-grade-i@test.dev", "instructor")
	student := repotest.SeedUser(t, ctx, tx, "att-grade-s@test.dev", "student")
	course := repotest.SeedCourse(t, ctx, tx, instructor.ID, false)
	section := repotest.SeedSection(t, ctx, tx, course.ID, 1)
	quiz := repotest.SeedQuizLesson(t, ctx, tx, course.ID, section.ID, 1, repotest.TwoQuestionQuiz(), learning.QuizSettings{MaxAttempts: 3})
	repotest.SeedEnrollment(t, ctx, tx, student.ID, course.ID)

	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	res, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID: student.ID,
		LessonID:  quiz.ID,
		Answers: []learning.AnswerSubmission{
			{QuestionID: "q1", SelectedOptionID: "q1o1"},
			{QuestionID: "q2", SelectedOptionID: "q2o2"},
		},
		TimeSpentSeconds: 120,
		SubmittedAt:      t0,
	})
	if err != nil {
		t.Fatalf("SubmitAttempt first: %v", err)
	}
	if res.Attempt.AttemptNumber != 1 {
		t.Fatalf("attempt number: want=1 got=%d", res.Attempt.AttemptNumber)
	}
	if res.Attempt.Percentage != 100 || res.Attempt.CorrectCount != 2 || res.Attempt.IncorrectCount != 0 {
		t.Fatalf("perfect attempt grading: %+v", res.Attempt)
	}
	if res.Summary.AttemptsUsed != 1 || !res.Summary.CanRetake {
		t.Fatalf("summary after first: %+v", res.Summary)
	}
	if res.Summary.RemainingAttempts == nil || *res.Summary.RemainingAttempts != 2 {
		t.Fatalf("remaining after first: %+v", res.Summary.RemainingAttempts)
	}
	if res.Summary.BestScore != 100 {
		t.Fatalf("best score: want=100 got=%d", res.Summary.BestScore)
	}

	res, err = agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID: student.ID,
		LessonID:  quiz.ID,
		Answers: []learning.AnswerSubmission{
			{QuestionID: "q1", SelectedOptionID: "q1o1"},
			{QuestionID: "q2", SelectedOptionID: "q2o1"},
		},
		SubmittedAt: t0.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt second: %v", err)
	}
	if res.Attempt.AttemptNumber != 2 {
		t.Fatalf("attempt number: want=2 got=%d", res.Attempt.AttemptNumber)
	}
	if res.Attempt.Percentage != 50 || res.Attempt.CorrectCount != 1 || res.Attempt.IncorrectCount != 1 {
		t.Fatalf("half attempt grading: %+v", res.Attempt)
	}
	if res.Summary.BestScore != 100 {
		t.Fatalf("best score survives a worse attempt: %+v", res.Summary)
	}
	if res.Summary.AverageScore != 75 {
		t.Fatalf("average score: want=75 got=%v", res.Summary.AverageScore)
	}

	// unanswered questions count separately from wrong ones
	res, err = agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID: student.ID,
		LessonID:  quiz.ID,
		Answers: []learning.AnswerSubmission{
			{QuestionID: "q1", SelectedOptionID: "q1o2"},
		},
		SubmittedAt: t0.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt third: %v", err)
	}
	if res.Attempt.Percentage != 0 || res.Attempt.IncorrectCount != 1 || res.Attempt.UnansweredCount != 1 {
		t.Fatalf("partial attempt grading: %+v", res.Attempt)
	}
}

func TestAttemptAggregateMaxAttemptsGate(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	agg := newAttemptAggregate(tx, log)

	ctx := context.Background()
	instructor := repotest.SeedUser(t, ctx, tx, "att-max-i@test.dev", "instructor")
	student := repotest.SeedUser(t, ctx, tx, "att-max-s@test.dev", "student")
	course := repotest.SeedCourse(t, ctx, tx, instructor.ID, false)
	section := repotest.SeedSection(t, ctx, tx, course.ID, 1)
	quiz := repotest.SeedQuizLesson(t, ctx, tx, course.ID, section.ID, 1, repotest.TwoQuestionQuiz(), learning.QuizSettings{MaxAttempts: 3})
	repotest.SeedEnrollment(t, ctx, tx, student.ID, course.ID)

	t0 := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		res, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
			StudentID:   student.ID,
			LessonID:    quiz.ID,
			Answers:     []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
			SubmittedAt: t0.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SubmitAttempt %d: %v", i+1, err)
		}
		if res.Attempt.AttemptNumber != i+1 {
			t.Fatalf("attempt number %d: got=%d", i+1, res.Attempt.AttemptNumber)
		}
	}

	_, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID:   student.ID,
		LessonID:    quiz.ID,
		Answers:     []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
		SubmittedAt: t0.Add(time.Hour),
	})
	if !domainagg.IsCode(err, domainagg.CodeBusinessRule) {
		t.Fatalf("fourth attempt: want business_rule got %v", err)
	}
	meta := domainagg.MetaOf(err)
	if meta == nil {
		t.Fatalf("gate rejection must carry meta")
	}
	if got, ok := meta["max_attempts"].(int); !ok || got != 3 {
		t.Fatalf("meta max_attempts: want=3 got=%v", meta["max_attempts"])
	}
	if got, ok := meta["remaining_attempts"].(int); !ok || got != 0 {
		t.Fatalf("meta remaining_attempts: want=0 got=%v", meta["remaining_attempts"])
	}
	if got := meta["reason"]; got != learning.RetakeReasonAttemptsExhausted {
		t.Fatalf("meta reason: want=%s got=%v", learning.RetakeReasonAttemptsExhausted, got)
	}

	attempts := learningrepos.NewQuizAttemptRepo(tx, log)
	rows, err := attempts.ListByStudentLesson(dbctx.Context{Ctx: ctx}, student.ID, quiz.ID)
	if err != nil {
		t.Fatalf("ListByStudentLesson: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("stored attempts: want=3 got=%d", len(rows))
	}
	for i, r := range rows {
		if r.AttemptNumber != i+1 {
			t.Fatalf("stored attempt number at %d: want=%d got=%d", i, i+1, r.AttemptNumber)
		}
	}
}

func TestAttemptAggregateCooldownGate(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	agg := newAttemptAggregate(tx, log)

	ctx := context.Background()
	instructor := repotest.SeedUser(t, ctx, tx, "att-cool-i@test.dev", "instructor")
	student := repotest.SeedUser(t, ctx, tx, "att-cool-s@test.dev", "student")
	course := repotest.SeedCourse(t, ctx, tx, instructor.ID, false)
	section := repotest.SeedSection(t, ctx, tx, course.ID, 1)
	quiz := repotest.SeedQuizLesson(t, ctx, tx, course.ID, section.ID, 1, repotest.TwoQuestionQuiz(), learning.QuizSettings{CooldownSeconds: 3600})
	repotest.SeedEnrollment(t, ctx, tx, student.ID, course.ID)

	t0 := time.Date(2026, 4, 3, 10, 0, 0, 0, time.UTC)
	if _, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID:   student.ID,
		LessonID:    quiz.ID,
		Answers:     []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
		SubmittedAt: t0,
	}); err != nil {
		t.Fatalf("SubmitAttempt first: %v", err)
	}

	_, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID:   student.ID,
		LessonID:    quiz.ID,
		Answers:     []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
		SubmittedAt: t0.Add(10 * time.Minute),
	})
	if !domainagg.IsCode(err, domainagg.CodeBusinessRule) {
		t.Fatalf("cooldown attempt: want business_rule got %v", err)
	}
	meta := domainagg.MetaOf(err)
	if got := meta["reason"]; got != learning.RetakeReasonCooldownActive {
		t.Fatalf("meta reason: want=%s got=%v", learning.RetakeReasonCooldownActive, got)
	}
	if got, ok := meta["cooldown_seconds"].(int); !ok || got != 3600 {
		t.Fatalf("meta cooldown_seconds: want=3600 got=%v", meta["cooldown_seconds"])
	}
	wantReady := t0.Add(time.Hour).Format(time.RFC3339)
	if got := meta["next_attempt_at"]; got != wantReady {
		t.Fatalf("meta next_attempt_at: want=%s got=%v", wantReady, got)
	}

	res, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID:   student.ID,
		LessonID:    quiz.ID,
		Answers:     []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
		SubmittedAt: t0.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt after cooldown: %v", err)
	}
	if res.Attempt.AttemptNumber != 2 {
		t.Fatalf("attempt number after cooldown: want=2 got=%d", res.Attempt.AttemptNumber)
	}
}

func TestAttemptAggregateSummaryUsesGatePredicate(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	agg := newAttemptAggregate(tx, log)

	ctx := context.Background()
	instructor := repotest.SeedUser(t, ctx, tx, "att-sum-i@test.dev", "instructor")
	student := repotest.SeedUser(t, ctx, tx, "att-sum-s@test.dev", "student")
	course := repotest.SeedCourse(t, ctx, tx, instructor.ID, false)
	section := repotest.SeedSection(t, ctx, tx, course.ID, 1)
	quiz := repotest.SeedQuizLesson(t, ctx, tx, course.ID, section.ID, 1, repotest.TwoQuestionQuiz(), learning.QuizSettings{MaxAttempts: 2})
	repotest.SeedEnrollment(t, ctx, tx, student.ID, course.ID)

	t0 := time.Date(2026, 4, 4, 9, 0, 0, 0, time.UTC)
	if _, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID:   student.ID,
		LessonID:    quiz.ID,
		Answers:     []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
		SubmittedAt: t0,
	}); err != nil {
		t.Fatalf("SubmitAttempt 50%%: %v", err)
	}

	res, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID: student.ID,
		LessonID:  quiz.ID,
		Answers: []learning.AnswerSubmission{
			{QuestionID: "q1", SelectedOptionID: "q1o1"},
			{QuestionID: "q2", SelectedOptionID: "q2o2"},
		},
		SubmittedAt: t0.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt 100%%: %v", err)
	}
	if res.Summary.CanRetake {
		t.Fatalf("summary after final allowed attempt must report exhausted")
	}
	if res.Summary.Reason != learning.RetakeReasonAttemptsExhausted {
		t.Fatalf("summary reason: want=%s got=%s", learning.RetakeReasonAttemptsExhausted, res.Summary.Reason)
	}
	if res.Summary.BestScore != 100 {
		t.Fatalf("best score: want=100 got=%d", res.Summary.BestScore)
	}
	if res.Summary.AverageScore != 75 {
		t.Fatalf("average score: want=75 got=%v", res.Summary.AverageScore)
	}
}

func TestAttemptAggregateRejectsBadTargets(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	agg := newAttemptAggregate(tx, log)

	ctx := context.Background()
	instructor := repotest.SeedUser(t, ctx, tx, "att-bad-i@test.dev", "instructor")
	student := repotest.SeedUser(t, ctx, tx, "att-bad-s@test.dev", "student")
	course := repotest.SeedCourse(t, ctx, tx, instructor.ID, false)
	section := repotest.SeedSection(t, ctx, tx, course.ID, 1)
	text := repotest.SeedLesson(t, ctx, tx, course.ID, section.ID, 1)
	quiz := repotest.SeedQuizLesson(t, ctx, tx, course.ID, section.ID, 2, repotest.TwoQuestionQuiz(), learning.QuizSettings{})
	repotest.SeedEnrollment(t, ctx, tx, student.ID, course.ID)

	_, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID: student.ID,
		LessonID:  text.ID,
		Answers:   []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("non-quiz lesson: want invariant violation got %v", err)
	}

	outsider := repotest.SeedUser(t, ctx, tx, "att-bad-o@test.dev", "student")
	_, err = agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID: outsider.ID,
		LessonID:  quiz.ID,
		Answers:   []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
	})
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("unenrolled student: want precondition_failed got %v", err)
	}

	_, err = agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		StudentID: student.ID,
		LessonID:  uuid.New(),
		Answers:   []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
	})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown lesson: want not_found got %v", err)
	}
}

func TestAttemptAggregateConcurrentSubmissionsConflict(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	agg := newAttemptAggregate(db, log)

	ctx := context.Background()
	instructor := repotest.SeedUser(t, ctx, db, "att-conc-i@test.dev", "instructor")
	student := repotest.SeedUser(t, ctx, db, "att-conc-s@test.dev", "student")
	course := repotest.SeedCourse(t, ctx, db, instructor.ID, false)
	section := repotest.SeedSection(t, ctx, db, course.ID, 1)
	quiz := repotest.SeedQuizLesson(t, ctx, db, course.ID, section.ID, 1, repotest.TwoQuestionQuiz(), learning.QuizSettings{})
	enrollment := repotest.SeedEnrollment(t, ctx, db, student.ID, course.ID)
	t.Cleanup(func() {
		_ = db.WithContext(ctx).Where("lesson_id = ?", quiz.ID).Delete(&types.QuizAttempt{}).Error
		_ = db.WithContext(ctx).Where("id = ?", enrollment.ID).Delete(&types.Enrollment{}).Error
		_ = db.WithContext(ctx).Where("id = ?", quiz.ID).Delete(&types.Lesson{}).Error
		_ = db.WithContext(ctx).Where("id = ?", section.ID).Delete(&types.Section{}).Error
		_ = db.WithContext(ctx).Where("id = ?", course.ID).Delete(&types.Course{}).Error
		_ = db.WithContext(ctx).Where("id IN ?", []uuid.UUID{instructor.ID, student.ID}).Delete(&types.User{}).Error
	})

	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	submit := func() {
		defer wg.Done()
		<-start
		_, err := agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
			StudentID:   student.ID,
			LessonID:    quiz.ID,
			Answers:     []learning.AnswerSubmission{{QuestionID: "q1", SelectedOptionID: "q1o1"}},
			SubmittedAt: time.Now().UTC(),
		})
		errs <- err
	}
	go submit()
	go submit()

	close(start)
	wg.Wait()
	close(errs)

	var successCount int
	var conflictCount int
	for err := range errs {
		if err == nil {
			successCount++
			continue
		}
		if domainagg.IsCode(err, domainagg.CodeConflict) {
			conflictCount++
			continue
		}
		t.Fatalf("unexpected error: %v", err)
	}
	if successCount != 1 {
		t.Fatalf("success count: want=1 got=%d", successCount)
	}
	if conflictCount != 1 {
		t.Fatalf("conflict count: want=1 got=%d", conflictCount)
	}
}
