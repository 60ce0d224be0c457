package services

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	userdom "github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/courseloom/courseloom-backend/internal/events"
)

func claimedEnrollment() domainagg.ClaimIssuanceResult {
	completed := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	return domainagg.ClaimIssuanceResult{
		Claimed: true,
		Enrollment: learning.Enrollment{
			ID:          uuid.New(),
			StudentID:   uuid.New(),
			CourseID:    uuid.New(),
			Progress:    100,
			IsCompleted: true,
			CompletedAt: &completed,
		},
		Course:  learning.Course{ID: uuid.New(), Title: "Distributed Systems"},
		Student: userdom.User{ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace"},
	}
}

func TestIssuanceHappyPathFinalizesAndPublishes(t *testing.T) {
	agg := &fakeCertificateAggregate{claimResult: claimedEnrollment()}
	renderer := &fakeRenderer{}
	store := &fakeStore{}
	bus := &fakeBus{}
	svc := NewCertificateIssuanceService(newTestLogger(t), agg, renderer, store, bus)

	enrollmentID := agg.claimResult.Enrollment.ID
	cert, err := svc.IssueForEnrollment(ctxAs(uuid.New(), userdom.RoleAdmin), enrollmentID)
	if err != nil {
		t.Fatalf("IssueForEnrollment: %v", err)
	}
	if cert == nil {
		t.Fatalf("expected a certificate")
	}
	if renderer.calls != 1 {
		t.Fatalf("render calls: want=1 got=%d", renderer.calls)
	}
	if renderer.last.StudentName != "Ada Lovelace" {
		t.Fatalf("student name: want=%q got=%q", "Ada Lovelace", renderer.last.StudentName)
	}
	if renderer.last.CourseTitle != "Distributed Systems" {
		t.Fatalf("course title: got=%q", renderer.last.CourseTitle)
	}
	if !renderer.last.CompletionDate.Equal(*agg.claimResult.Enrollment.CompletedAt) {
		t.Fatalf("completion date: want=%v got=%v", agg.claimResult.Enrollment.CompletedAt, renderer.last.CompletionDate)
	}
	if store.putCalls != 1 || store.lastType != "image/png" {
		t.Fatalf("store put: want 1 png put got %d (%s)", store.putCalls, store.lastType)
	}
	if !strings.HasPrefix(store.lastKey, "certificates/"+enrollmentID.String()+"/") {
		t.Fatalf("object key: got=%q", store.lastKey)
	}
	if agg.finalizeCalls != 1 || agg.releaseCalls != 0 {
		t.Fatalf("aggregate calls: finalize=%d release=%d", agg.finalizeCalls, agg.releaseCalls)
	}
	if !strings.HasPrefix(agg.lastFinalize.Serial, "CERT-") {
		t.Fatalf("serial: got=%q", agg.lastFinalize.Serial)
	}
	if agg.lastFinalize.URL != "https://cdn.test/"+store.lastKey {
		t.Fatalf("finalize url: got=%q", agg.lastFinalize.URL)
	}
	if got := bus.topics(); len(got) != 1 || got[0] != events.TopicCertificateIssued {
		t.Fatalf("topics: want=[certificate.issued] got=%v", got)
	}
}

func TestIssuanceUnclaimedIsIdempotentNoOp(t *testing.T) {
	agg := &fakeCertificateAggregate{claimResult: domainagg.ClaimIssuanceResult{Claimed: false}}
	renderer := &fakeRenderer{}
	svc := NewCertificateIssuanceService(newTestLogger(t), agg, renderer, &fakeStore{}, nil)

	cert, err := svc.IssueForEnrollment(ctxAs(uuid.New(), userdom.RoleAdmin), uuid.New())
	if err != nil {
		t.Fatalf("IssueForEnrollment: %v", err)
	}
	if cert != nil {
		t.Fatalf("expected nil certificate for lost claim")
	}
	if renderer.calls != 0 {
		t.Fatalf("render calls: want=0 got=%d", renderer.calls)
	}
}

func TestIssuanceRenderFailureReleasesClaim(t *testing.T) {
	agg := &fakeCertificateAggregate{claimResult: claimedEnrollment()}
	renderer := &fakeRenderer{err: domainagg.NewError(domainagg.CodeInternal, "render", "font missing", nil)}
	store := &fakeStore{}
	svc := NewCertificateIssuanceService(newTestLogger(t), agg, renderer, store, nil)

	_, err := svc.IssueForEnrollment(ctxAs(uuid.New(), userdom.RoleAdmin), agg.claimResult.Enrollment.ID)
	if err == nil {
		t.Fatalf("expected render error")
	}
	if agg.releaseCalls != 1 {
		t.Fatalf("release calls: want=1 got=%d", agg.releaseCalls)
	}
	if !strings.HasPrefix(agg.lastRelease.Reason, "render failed") {
		t.Fatalf("release reason: got=%q", agg.lastRelease.Reason)
	}
	if store.putCalls != 0 || agg.finalizeCalls != 0 {
		t.Fatalf("no upload/finalize after failed render: put=%d finalize=%d", store.putCalls, agg.finalizeCalls)
	}
}

func TestIssuanceUploadFailureReleasesClaim(t *testing.T) {
	agg := &fakeCertificateAggregate{claimResult: claimedEnrollment()}
	store := &fakeStore{putErr: domainagg.NewError(domainagg.CodeRetryable, "store", "bucket unreachable", nil)}
	svc := NewCertificateIssuanceService(newTestLogger(t), agg, &fakeRenderer{}, store, nil)

	_, err := svc.IssueForEnrollment(ctxAs(uuid.New(), userdom.RoleAdmin), agg.claimResult.Enrollment.ID)
	if err == nil {
		t.Fatalf("expected upload error")
	}
	if agg.releaseCalls != 1 || agg.finalizeCalls != 0 {
		t.Fatalf("aggregate calls after failed upload: release=%d finalize=%d", agg.releaseCalls, agg.finalizeCalls)
	}
}

func TestIssuanceFinalizeFailureDeletesOrphanAndReleases(t *testing.T) {
	agg := &fakeCertificateAggregate{
		claimResult: claimedEnrollment(),
		finalizeErr: domainagg.NewError(domainagg.CodeInternal, "finalize", "insert failed", nil),
	}
	store := &fakeStore{}
	svc := NewCertificateIssuanceService(newTestLogger(t), agg, &fakeRenderer{}, store, nil)

	_, err := svc.IssueForEnrollment(ctxAs(uuid.New(), userdom.RoleAdmin), agg.claimResult.Enrollment.ID)
	if err == nil {
		t.Fatalf("expected finalize error")
	}
	if store.delCalls != 1 || store.lastDeled != store.lastKey {
		t.Fatalf("orphan delete: calls=%d key=%q uploaded=%q", store.delCalls, store.lastDeled, store.lastKey)
	}
	if agg.releaseCalls != 1 {
		t.Fatalf("release calls: want=1 got=%d", agg.releaseCalls)
	}
}
