package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/courseloom/courseloom-backend/internal/data/repos"
	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
	"github.com/courseloom/courseloom-backend/internal/services"
	"github.com/courseloom/courseloom-backend/internal/utils"
)

// CertificateReconciler re-drives issuance for completed enrollments whose
// inline issuance failed or was interrupted mid-pipeline. The issuance claim
// is the at-most-once guard, so re-running a candidate another worker already
// picked up is a no-op.
type CertificateReconciler struct {
	log         *logger.Logger
	enrollments repos.EnrollmentRepo
	issuance    services.CertificateIssuanceService

	interval    time.Duration
	batchSize   int
	concurrency int
}

func NewCertificateReconciler(baseLog *logger.Logger, enrollments repos.EnrollmentRepo, issuance services.CertificateIssuanceService) *CertificateReconciler {
	log := baseLog.With("component", "CertificateReconciler")

	interval := utils.GetEnvAsInt("CERT_RECONCILER_INTERVAL_SECONDS", 60, log)
	if interval < 1 {
		interval = 1
	}
	batch := utils.GetEnvAsInt("CERT_RECONCILER_BATCH_SIZE", 50, log)
	if batch < 1 {
		batch = 1
	}
	concurrency := utils.GetEnvAsInt("CERT_RECONCILER_CONCURRENCY", 4, log)
	if concurrency < 1 {
		concurrency = 1
	}

	return &CertificateReconciler{
		log:         log,
		enrollments: enrollments,
		issuance:    issuance,
		interval:    time.Duration(interval) * time.Second,
		batchSize:   batch,
		concurrency: concurrency,
	}
}

func (w *CertificateReconciler) Start(ctx context.Context) {
	w.log.Info("Starting certificate reconciler",
		"interval", w.interval.String(),
		"batch_size", w.batchSize,
		"concurrency", w.concurrency,
	)

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				w.log.Info("Certificate reconciler stopped")
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()
}

func (w *CertificateReconciler) runOnce(ctx context.Context) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Certificate reconciler panic", "panic", r)
			observability.Current().ObserveJobRun("certificate_reconciler", "panic", time.Since(started))
		}
	}()

	issued, failed, err := w.sweep(ctx)
	status := "ok"
	switch {
	case err != nil:
		status = "error"
		w.log.Warn("Certificate reconciliation sweep failed", "error", err)
	case failed > 0:
		status = "partial"
		w.log.Warn("Certificate reconciliation sweep finished with failures",
			"issued", issued,
			"failed", failed,
		)
	case issued > 0:
		w.log.Info("Certificate reconciliation sweep issued certificates", "issued", issued)
	}
	observability.Current().ObserveJobRun("certificate_reconciler", status, time.Since(started))
}

// sweep returns how many candidates were issued and how many failed. A
// candidate that lost the claim race counts as neither.
func (w *CertificateReconciler) sweep(ctx context.Context) (int, int, error) {
	dbc := dbctx.Background(ctx)

	backlog, err := w.enrollments.CountCertificateBacklog(dbc)
	if err != nil {
		return 0, 0, fmt.Errorf("count certificate backlog: %w", err)
	}
	observability.Current().SetCertificateBacklog(float64(backlog))
	if backlog == 0 {
		return 0, 0, nil
	}

	candidates, err := w.enrollments.ListCertificateBacklog(dbc, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("list certificate backlog: %w", err)
	}

	var issued, failed int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, candidate := range candidates {
		e := candidate
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			cert, err := w.issuance.IssueForEnrollment(gctx, e.ID)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				w.log.Warn("Reconciled issuance failed",
					"enrollment_id", e.ID,
					"course_id", e.CourseID,
					"error", err,
				)
				return nil
			}
			if cert == nil {
				// Lost the claim to an inline issuance or another sweep.
				return nil
			}
			atomic.AddInt32(&issued, 1)
			w.log.Info("Reconciled certificate issued",
				"enrollment_id", e.ID,
				"certificate_id", cert.ID,
				"serial", cert.Serial,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt32(&issued)), int(atomic.LoadInt32(&failed)), err
	}
	return int(atomic.LoadInt32(&issued)), int(atomic.LoadInt32(&failed)), nil
}
