package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// ContentDriftIssue is one detected divergence between stored content state
// and the invariants the write paths maintain: a sparse position sequence,
// a stale total_lessons count, a progress percentage that no longer matches
// the completion rows.
type ContentDriftIssue struct {
	Kind     string         `json:"kind"`
	CourseID string         `json:"course_id,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	Expected float64        `json:"expected"`
	Actual   float64        `json:"actual"`
	Meta     map[string]any `json:"meta,omitempty"`
}

const (
	DriftKindSparsePositions = "sparse_positions"
	DriftKindStaleTotal      = "stale_total_lessons"
	DriftKindStaleProgress   = "stale_progress"
)

type driftAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var driftAlerts driftAlertState

// ReportContentDrift counts the issues, logs them, and posts a rate-limited
// webhook alert when alerting is configured. Detection lives with the drift
// detector; this is only the reporting edge.
func ReportContentDrift(ctx context.Context, log *logger.Logger, issues []ContentDriftIssue, meta map[string]any) {
	if len(issues) == 0 {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}

	kindCounts := map[string]int{}
	for i := range issues {
		kind := strings.TrimSpace(issues[i].Kind)
		if kind == "" {
			kind = "unknown"
			issues[i].Kind = kind
		}
		kindCounts[kind]++
		if m := Current(); m != nil {
			m.IncContentDrift(kind)
		}
	}

	if log != nil {
		log.Warn("content drift detected",
			"kinds", kindCounts,
			"issue_count", len(issues),
			"meta", meta,
		)
	}
	sendContentDriftAlert(issues, kindCounts, meta, log)
}

func contentDriftAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("CONTENT_DRIFT_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func contentDriftAlertWebhook() string {
	val := strings.TrimSpace(os.Getenv("CONTENT_DRIFT_ALERT_WEBHOOK_URL"))
	if val != "" {
		return val
	}
	return strings.TrimSpace(os.Getenv("SLO_ALERT_WEBHOOK_URL"))
}

func contentDriftAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("CONTENT_DRIFT_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 10 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}

func sendContentDriftAlert(issues []ContentDriftIssue, kindCounts map[string]int, meta map[string]any, log *logger.Logger) {
	if !contentDriftAlertsEnabled() {
		return
	}
	webhook := contentDriftAlertWebhook()
	if webhook == "" {
		return
	}
	key := "content_drift"
	driftAlerts.mu.Lock()
	if driftAlerts.last == nil {
		driftAlerts.last = map[string]time.Time{}
	}
	last := driftAlerts.last[key]
	minInterval := contentDriftAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		driftAlerts.mu.Unlock()
		return
	}
	driftAlerts.last[key] = time.Now()
	driftAlerts.mu.Unlock()

	sample := issues
	if len(sample) > 5 {
		sample = sample[:5]
	}
	payload := map[string]any{
		"title":     "Content drift detected",
		"kinds":     kindCounts,
		"sample":    sample,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("content drift alert request build failed", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("content drift alert post failed", "error", err)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("content drift alert sent", "status", resp.StatusCode)
	}
}
