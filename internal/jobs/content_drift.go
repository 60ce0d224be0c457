package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
	"github.com/courseloom/courseloom-backend/internal/utils"
)

// ContentDriftDetector periodically rechecks the invariants the write paths
// maintain: dense lesson positions per section, course.total_lessons equal to
// the live lesson count, enrollment.progress equal to the recomputed
// percentage. Detection is set-based in SQL; anything found goes to the
// observability reporting edge. The detector never repairs rows itself,
// repair stays with the recompute operation.
type ContentDriftDetector struct {
	db  *gorm.DB
	log *logger.Logger

	interval time.Duration
	limit    int
}

func NewContentDriftDetector(db *gorm.DB, baseLog *logger.Logger) *ContentDriftDetector {
	log := baseLog.With("component", "ContentDriftDetector")

	interval := utils.GetEnvAsInt("CONTENT_DRIFT_SCAN_INTERVAL_SECONDS", 300, log)
	if interval < 1 {
		interval = 1
	}
	limit := utils.GetEnvAsInt("CONTENT_DRIFT_SCAN_LIMIT", 100, log)
	if limit < 1 {
		limit = 1
	}

	return &ContentDriftDetector{
		db:       db,
		log:      log,
		interval: time.Duration(interval) * time.Second,
		limit:    limit,
	}
}

func (w *ContentDriftDetector) Start(ctx context.Context) {
	w.log.Info("Starting content drift detector",
		"interval", w.interval.String(),
		"scan_limit", w.limit,
	)

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				w.log.Info("Content drift detector stopped")
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()
}

func (w *ContentDriftDetector) runOnce(ctx context.Context) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Content drift detector panic", "panic", r)
			observability.Current().ObserveJobRun("content_drift_scan", "panic", time.Since(started))
		}
	}()

	issues, err := w.scan(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		w.log.Warn("Content drift scan failed", "error", err)
	}
	if len(issues) > 0 {
		observability.ReportContentDrift(ctx, w.log, issues, map[string]any{
			"job":        "content_drift_scan",
			"scan_limit": w.limit,
		})
	}
	observability.Current().ObserveJobRun("content_drift_scan", status, time.Since(started))
}

func (w *ContentDriftDetector) scan(ctx context.Context) ([]observability.ContentDriftIssue, error) {
	var issues []observability.ContentDriftIssue

	sparse, err := w.scanSparsePositions(ctx)
	if err != nil {
		return issues, fmt.Errorf("scan sparse positions: %w", err)
	}
	issues = append(issues, sparse...)

	staleTotals, err := w.scanStaleTotals(ctx)
	if err != nil {
		return issues, fmt.Errorf("scan stale totals: %w", err)
	}
	issues = append(issues, staleTotals...)

	staleProgress, err := w.scanStaleProgress(ctx)
	if err != nil {
		return issues, fmt.Errorf("scan stale progress: %w", err)
	}
	issues = append(issues, staleProgress...)

	return issues, nil
}

type sectionPositionRow struct {
	SectionID         uuid.UUID `gorm:"column:section_id"`
	CourseID          uuid.UUID `gorm:"column:course_id"`
	LessonCount       int       `gorm:"column:lesson_count"`
	MinPosition       int       `gorm:"column:min_position"`
	MaxPosition       int       `gorm:"column:max_position"`
	DistinctPositions int       `gorm:"column:distinct_positions"`
}

// A section's live lessons must occupy positions 1..N exactly.
func (w *ContentDriftDetector) scanSparsePositions(ctx context.Context) ([]observability.ContentDriftIssue, error) {
	var rows []sectionPositionRow
	err := w.db.WithContext(ctx).Raw(`
		SELECT lesson.section_id,
		       section.course_id,
		       COUNT(*) AS lesson_count,
		       MIN(lesson.position) AS min_position,
		       MAX(lesson.position) AS max_position,
		       COUNT(DISTINCT lesson.position) AS distinct_positions
		FROM lesson
		JOIN section ON section.id = lesson.section_id AND section.deleted_at IS NULL
		WHERE lesson.deleted_at IS NULL
		GROUP BY lesson.section_id, section.course_id
		HAVING COUNT(*) <> MAX(lesson.position)
		    OR MIN(lesson.position) <> 1
		    OR COUNT(DISTINCT lesson.position) <> COUNT(*)
		LIMIT ?
	`, w.limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	issues := make([]observability.ContentDriftIssue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, observability.ContentDriftIssue{
			Kind:     observability.DriftKindSparsePositions,
			CourseID: row.CourseID.String(),
			Subject:  row.SectionID.String(),
			Expected: float64(row.LessonCount),
			Actual:   float64(row.MaxPosition),
			Meta: map[string]any{
				"min_position":       row.MinPosition,
				"distinct_positions": row.DistinctPositions,
				"lesson_count":       row.LessonCount,
			},
		})
	}
	return issues, nil
}

type courseTotalRow struct {
	CourseID      uuid.UUID `gorm:"column:course_id"`
	TotalLessons  int       `gorm:"column:total_lessons"`
	ActualLessons int       `gorm:"column:actual_lessons"`
}

func (w *ContentDriftDetector) scanStaleTotals(ctx context.Context) ([]observability.ContentDriftIssue, error) {
	var rows []courseTotalRow
	err := w.db.WithContext(ctx).Raw(`
		SELECT course.id AS course_id,
		       course.total_lessons,
		       COUNT(lesson.id) AS actual_lessons
		FROM course
		LEFT JOIN lesson ON lesson.course_id = course.id AND lesson.deleted_at IS NULL
		WHERE course.deleted_at IS NULL
		GROUP BY course.id, course.total_lessons
		HAVING course.total_lessons <> COUNT(lesson.id)
		LIMIT ?
	`, w.limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	issues := make([]observability.ContentDriftIssue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, observability.ContentDriftIssue{
			Kind:     observability.DriftKindStaleTotal,
			CourseID: row.CourseID.String(),
			Expected: float64(row.ActualLessons),
			Actual:   float64(row.TotalLessons),
		})
	}
	return issues, nil
}

type enrollmentProgressRow struct {
	EnrollmentID     uuid.UUID `gorm:"column:enrollment_id"`
	CourseID         uuid.UUID `gorm:"column:course_id"`
	StudentID        uuid.UUID `gorm:"column:student_id"`
	StoredProgress   int       `gorm:"column:stored_progress"`
	TotalLessons     int       `gorm:"column:total_lessons"`
	CompletedLessons int       `gorm:"column:completed_lessons"`
}

// The SQL prefilter mirrors CompletionPercent (round half up, clamp to 100);
// each hit is reverified with the real function before it is reported.
func (w *ContentDriftDetector) scanStaleProgress(ctx context.Context) ([]observability.ContentDriftIssue, error) {
	var rows []enrollmentProgressRow
	err := w.db.WithContext(ctx).Raw(`
		SELECT * FROM (
			SELECT enrollment.id AS enrollment_id,
			       enrollment.course_id,
			       enrollment.student_id,
			       enrollment.progress AS stored_progress,
			       course.total_lessons,
			       (SELECT COUNT(*)
			        FROM lesson_progress lp
			        WHERE lp.course_id = enrollment.course_id
			          AND lp.student_id = enrollment.student_id
			          AND lp.is_completed = TRUE
			          AND lp.deleted_at IS NULL) AS completed_lessons
			FROM enrollment
			JOIN course ON course.id = enrollment.course_id AND course.deleted_at IS NULL
			WHERE enrollment.deleted_at IS NULL
		) scan
		WHERE scan.stored_progress <> CASE
			WHEN scan.total_lessons <= 0 OR scan.completed_lessons <= 0 THEN 0
			ELSE LEAST(100, ROUND(100.0 * scan.completed_lessons / scan.total_lessons))
		END
		LIMIT ?
	`, w.limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	issues := make([]observability.ContentDriftIssue, 0, len(rows))
	for _, row := range rows {
		pct := learning.CompletionPercent(row.CompletedLessons, row.TotalLessons)
		if pct == row.StoredProgress {
			continue
		}
		issues = append(issues, observability.ContentDriftIssue{
			Kind:     observability.DriftKindStaleProgress,
			CourseID: row.CourseID.String(),
			Subject:  row.EnrollmentID.String(),
			Expected: float64(pct),
			Actual:   float64(row.StoredProgress),
			Meta: map[string]any{
				"student_id":        row.StudentID.String(),
				"completed_lessons": row.CompletedLessons,
				"total_lessons":     row.TotalLessons,
			},
		})
	}
	return issues, nil
}
