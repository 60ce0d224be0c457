package services

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	userdom "github.com/courseloom/courseloom-backend/internal/domain/user"
	"github.com/courseloom/courseloom-backend/internal/events"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
	"github.com/courseloom/courseloom-backend/internal/platform/dbctx"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

func newTestLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("logger.New: %v", err)
	}
	return log
}

func ctxAs(userID uuid.UUID, role string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID, Role: role})
}

// --- aggregate fakes ---

type fakeOrderingAggregate struct {
	lastCreate  domainagg.CreateSectionInput
	lastInsert  domainagg.InsertLessonInput
	lastDelete  domainagg.DeleteLessonInput
	lastMove    domainagg.MoveLessonInput
	lastReorder domainagg.ReorderSectionInput
	calls       int
}

func (f *fakeOrderingAggregate) Contract() domainagg.Contract {
	return domainagg.OrderingAggregateContract
}

func (f *fakeOrderingAggregate) CreateSection(_ context.Context, in domainagg.CreateSectionInput) (domainagg.CreateSectionResult, error) {
	f.calls++
	f.lastCreate = in
	return domainagg.CreateSectionResult{}, nil
}

func (f *fakeOrderingAggregate) InsertLesson(_ context.Context, in domainagg.InsertLessonInput) (domainagg.InsertLessonResult, error) {
	f.calls++
	f.lastInsert = in
	return domainagg.InsertLessonResult{}, nil
}

func (f *fakeOrderingAggregate) DeleteLesson(_ context.Context, in domainagg.DeleteLessonInput) (domainagg.DeleteLessonResult, error) {
	f.calls++
	f.lastDelete = in
	return domainagg.DeleteLessonResult{}, nil
}

func (f *fakeOrderingAggregate) MoveLesson(_ context.Context, in domainagg.MoveLessonInput) (domainagg.MoveLessonResult, error) {
	f.calls++
	f.lastMove = in
	return domainagg.MoveLessonResult{}, nil
}

func (f *fakeOrderingAggregate) ReorderSection(_ context.Context, in domainagg.ReorderSectionInput) (domainagg.ReorderSectionResult, error) {
	f.calls++
	f.lastReorder = in
	return domainagg.ReorderSectionResult{}, nil
}

type fakeProgressAggregate struct {
	recordResult    domainagg.RecordInteractionResult
	recordErr       error
	recordCalls     int
	lastRecord      domainagg.RecordInteractionInput
	recomputeResult domainagg.RecomputeCompletionResult
	recomputeErr    error
	recomputeCalls  int
}

func (f *fakeProgressAggregate) Contract() domainagg.Contract {
	return domainagg.ProgressAggregateContract
}

func (f *fakeProgressAggregate) RecordInteraction(_ context.Context, in domainagg.RecordInteractionInput) (domainagg.RecordInteractionResult, error) {
	f.recordCalls++
	f.lastRecord = in
	return f.recordResult, f.recordErr
}

func (f *fakeProgressAggregate) RecomputeCompletion(_ context.Context, _ domainagg.RecomputeCompletionInput) (domainagg.RecomputeCompletionResult, error) {
	f.recomputeCalls++
	return f.recomputeResult, f.recomputeErr
}

// fakeAttemptAggregate pops one scripted response per call so tests can
// stage a conflict followed by a success.
type fakeAttemptAggregate struct {
	results []domainagg.SubmitAttemptResult
	errs    []error
	calls   int
	last    domainagg.SubmitAttemptInput
}

func (f *fakeAttemptAggregate) Contract() domainagg.Contract {
	return domainagg.AttemptAggregateContract
}

func (f *fakeAttemptAggregate) SubmitAttempt(_ context.Context, in domainagg.SubmitAttemptInput) (domainagg.SubmitAttemptResult, error) {
	idx := f.calls
	f.calls++
	f.last = in
	var res domainagg.SubmitAttemptResult
	var err error
	if idx < len(f.results) {
		res = f.results[idx]
	}
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return res, err
}

type fakeCertificateAggregate struct {
	claimResult   domainagg.ClaimIssuanceResult
	claimErr      error
	claimCalls    int
	finalizeErr   error
	finalizeCalls int
	lastFinalize  domainagg.FinalizeIssuanceInput
	releaseCalls  int
	lastRelease   domainagg.ReleaseIssuanceInput
}

func (f *fakeCertificateAggregate) Contract() domainagg.Contract {
	return domainagg.CertificateAggregateContract
}

func (f *fakeCertificateAggregate) ClaimIssuance(_ context.Context, _ domainagg.ClaimIssuanceInput) (domainagg.ClaimIssuanceResult, error) {
	f.claimCalls++
	return f.claimResult, f.claimErr
}

func (f *fakeCertificateAggregate) FinalizeIssuance(_ context.Context, in domainagg.FinalizeIssuanceInput) (domainagg.FinalizeIssuanceResult, error) {
	f.finalizeCalls++
	f.lastFinalize = in
	if f.finalizeErr != nil {
		return domainagg.FinalizeIssuanceResult{}, f.finalizeErr
	}
	return domainagg.FinalizeIssuanceResult{
		Certificate: learning.Certificate{
			EnrollmentID: in.EnrollmentID,
			CourseID:     f.claimResult.Course.ID,
			StudentID:    f.claimResult.Student.ID,
			Serial:       in.Serial,
			ObjectKey:    in.ObjectKey,
			URL:          in.URL,
			IssuedAt:     in.IssuedAt,
		},
	}, nil
}

func (f *fakeCertificateAggregate) ReleaseIssuance(_ context.Context, in domainagg.ReleaseIssuanceInput) error {
	f.releaseCalls++
	f.lastRelease = in
	return nil
}

// --- collaborator fakes ---

type fakeIssuance struct {
	cert  *learning.Certificate
	err   error
	calls int
	last  uuid.UUID
}

func (f *fakeIssuance) IssueForEnrollment(_ context.Context, enrollmentID uuid.UUID) (*learning.Certificate, error) {
	f.calls++
	f.last = enrollmentID
	return f.cert, f.err
}

type fakeBus struct {
	published []events.Event
	err       error
}

func (f *fakeBus) Publish(_ context.Context, ev events.Event) error {
	f.published = append(f.published, ev)
	return f.err
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) topics() []string {
	out := make([]string, 0, len(f.published))
	for _, ev := range f.published {
		out = append(out, ev.Topic)
	}
	return out
}

type fakeRenderer struct {
	err   error
	calls int
	last  CertificateRenderInput
}

func (f *fakeRenderer) Render(_ context.Context, in CertificateRenderInput) (bytes.Buffer, error) {
	f.calls++
	f.last = in
	var buf bytes.Buffer
	if f.err != nil {
		return buf, f.err
	}
	buf.WriteString("png-bytes")
	return buf, nil
}

type fakeStore struct {
	putErr    error
	putCalls  int
	lastKey   string
	lastType  string
	delCalls  int
	lastDeled string
}

func (f *fakeStore) Put(_ context.Context, key, contentType string, _ io.Reader) error {
	f.putCalls++
	f.lastKey = key
	f.lastType = contentType
	return f.putErr
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.delCalls++
	f.lastDeled = key
	return nil
}

func (f *fakeStore) PublicURL(key string) string { return "https://cdn.test/" + key }

// --- repo fakes (map-backed, only the methods the services reach) ---

type fakeCourseRepo struct {
	byID map[uuid.UUID]*learning.Course
	err  error
}

func (f *fakeCourseRepo) Create(dbctx.Context, []*learning.Course) ([]*learning.Course, error) {
	return nil, nil
}

func (f *fakeCourseRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*learning.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeCourseRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*learning.Course, error) {
	return f.GetByID(dbc, id)
}

func (f *fakeCourseRepo) ListByInstructor(dbctx.Context, uuid.UUID) ([]*learning.Course, error) {
	return nil, nil
}

func (f *fakeCourseRepo) IncrementTotalLessons(dbctx.Context, uuid.UUID, int) error { return nil }

func (f *fakeCourseRepo) UpdateFields(dbctx.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}

type fakeSectionRepo struct {
	byCourse map[uuid.UUID][]*learning.Section
}

func (f *fakeSectionRepo) Create(dbctx.Context, []*learning.Section) ([]*learning.Section, error) {
	return nil, nil
}

func (f *fakeSectionRepo) GetByID(dbctx.Context, uuid.UUID) (*learning.Section, error) {
	return nil, nil
}

func (f *fakeSectionRepo) LockByID(dbctx.Context, uuid.UUID) (*learning.Section, error) {
	return nil, nil
}

func (f *fakeSectionRepo) ListByCourse(_ dbctx.Context, courseID uuid.UUID) ([]*learning.Section, error) {
	return f.byCourse[courseID], nil
}

func (f *fakeSectionRepo) MaxPosition(dbctx.Context, uuid.UUID) (int, error) { return 0, nil }

func (f *fakeSectionRepo) ShiftPositionsFrom(dbctx.Context, uuid.UUID, int, int) error { return nil }

func (f *fakeSectionRepo) UpdateFields(dbctx.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}

type fakeLessonRepo struct {
	byID      map[uuid.UUID]*learning.Lesson
	bySection map[uuid.UUID][]*learning.Lesson
}

func (f *fakeLessonRepo) Create(dbctx.Context, []*learning.Lesson) ([]*learning.Lesson, error) {
	return nil, nil
}

func (f *fakeLessonRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*learning.Lesson, error) {
	return f.byID[id], nil
}

func (f *fakeLessonRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*learning.Lesson, error) {
	return f.GetByID(dbc, id)
}

func (f *fakeLessonRepo) ListBySection(_ dbctx.Context, sectionID uuid.UUID) ([]*learning.Lesson, error) {
	return f.bySection[sectionID], nil
}

func (f *fakeLessonRepo) CountBySection(dbctx.Context, uuid.UUID) (int64, error) { return 0, nil }

func (f *fakeLessonRepo) MaxPosition(dbctx.Context, uuid.UUID) (int, error) { return 0, nil }

func (f *fakeLessonRepo) ShiftPositionsFrom(dbctx.Context, uuid.UUID, int, int) error { return nil }

func (f *fakeLessonRepo) ShiftPositionsAfter(dbctx.Context, uuid.UUID, int, int) error { return nil }

func (f *fakeLessonRepo) UpdatePosition(dbctx.Context, uuid.UUID, int) error { return nil }

func (f *fakeLessonRepo) UpdatePositions(dbctx.Context, uuid.UUID, map[uuid.UUID]int) error {
	return nil
}

func (f *fakeLessonRepo) MoveToSection(dbctx.Context, uuid.UUID, uuid.UUID, int) error { return nil }

func (f *fakeLessonRepo) SoftDeleteByIDs(dbctx.Context, []uuid.UUID) error { return nil }

func (f *fakeLessonRepo) UpdateFields(dbctx.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}

type fakeProgressRepo struct {
	byStudentLesson map[uuid.UUID]map[uuid.UUID]*learning.LessonProgress
}

func (f *fakeProgressRepo) Create(dbctx.Context, []*learning.LessonProgress) ([]*learning.LessonProgress, error) {
	return nil, nil
}

func (f *fakeProgressRepo) GetByStudentLesson(_ dbctx.Context, studentID, lessonID uuid.UUID) (*learning.LessonProgress, error) {
	return f.byStudentLesson[studentID][lessonID], nil
}

func (f *fakeProgressRepo) LockByStudentLesson(dbc dbctx.Context, studentID, lessonID uuid.UUID) (*learning.LessonProgress, error) {
	return f.GetByStudentLesson(dbc, studentID, lessonID)
}

func (f *fakeProgressRepo) GetByID(dbctx.Context, uuid.UUID) (*learning.LessonProgress, error) {
	return nil, nil
}

func (f *fakeProgressRepo) AccumulateTime(dbctx.Context, uuid.UUID, int, time.Time) error {
	return nil
}

func (f *fakeProgressRepo) Touch(dbctx.Context, uuid.UUID, time.Time) error { return nil }

func (f *fakeProgressRepo) CountCompleted(dbctx.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeProgressRepo) ListByStudentCourse(dbctx.Context, uuid.UUID, uuid.UUID) ([]*learning.LessonProgress, error) {
	return nil, nil
}

func (f *fakeProgressRepo) SoftDeleteByLessonIDs(dbctx.Context, []uuid.UUID) error { return nil }

type fakeEnrollmentRepo struct {
	byID        map[uuid.UUID]*learning.Enrollment
	byStudent   map[uuid.UUID][]*learning.Enrollment
	backlog     []*learning.Enrollment
	backlogErr  error
	createCalls int
}

func (f *fakeEnrollmentRepo) Create(_ dbctx.Context, rows []*learning.Enrollment) ([]*learning.Enrollment, error) {
	f.createCalls++
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	return rows, nil
}

func (f *fakeEnrollmentRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*learning.Enrollment, error) {
	return f.byID[id], nil
}

func (f *fakeEnrollmentRepo) GetByStudentCourse(_ dbctx.Context, studentID, courseID uuid.UUID) (*learning.Enrollment, error) {
	for _, e := range f.byStudent[studentID] {
		if e.CourseID == courseID {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeEnrollmentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*learning.Enrollment, error) {
	return f.GetByID(dbc, id)
}

func (f *fakeEnrollmentRepo) LockByStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*learning.Enrollment, error) {
	return f.GetByStudentCourse(dbc, studentID, courseID)
}

func (f *fakeEnrollmentRepo) ListByStudent(_ dbctx.Context, studentID uuid.UUID) ([]*learning.Enrollment, error) {
	return f.byStudent[studentID], nil
}

func (f *fakeEnrollmentRepo) UpdateProgress(dbctx.Context, uuid.UUID, int) error { return nil }

func (f *fakeEnrollmentRepo) ListCertificateBacklog(_ dbctx.Context, limit int) ([]*learning.Enrollment, error) {
	if f.backlogErr != nil {
		return nil, f.backlogErr
	}
	if limit > 0 && limit < len(f.backlog) {
		return f.backlog[:limit], nil
	}
	return f.backlog, nil
}

func (f *fakeEnrollmentRepo) CountCertificateBacklog(dbctx.Context) (int64, error) {
	return int64(len(f.backlog)), nil
}

type fakeAttemptRepo struct {
	byStudentLesson map[uuid.UUID]map[uuid.UUID][]*learning.QuizAttempt
	byLesson        map[uuid.UUID][]*learning.QuizAttempt
}

func (f *fakeAttemptRepo) Create(dbctx.Context, []*learning.QuizAttempt) ([]*learning.QuizAttempt, error) {
	return nil, nil
}

func (f *fakeAttemptRepo) GetByID(dbctx.Context, uuid.UUID) (*learning.QuizAttempt, error) {
	return nil, nil
}

func (f *fakeAttemptRepo) MaxAttemptNumber(dbctx.Context, uuid.UUID, uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeAttemptRepo) ListByStudentLesson(_ dbctx.Context, studentID, lessonID uuid.UUID) ([]*learning.QuizAttempt, error) {
	return f.byStudentLesson[studentID][lessonID], nil
}

func (f *fakeAttemptRepo) ListByLesson(_ dbctx.Context, lessonID uuid.UUID) ([]*learning.QuizAttempt, error) {
	return f.byLesson[lessonID], nil
}

func (f *fakeAttemptRepo) CountByStudentLesson(_ dbctx.Context, studentID, lessonID uuid.UUID) (int64, error) {
	return int64(len(f.byStudentLesson[studentID][lessonID])), nil
}

func (f *fakeAttemptRepo) SoftDeleteByLessonIDs(dbctx.Context, []uuid.UUID) error { return nil }

type fakeCertificateRepo struct {
	bySerial  map[string]*learning.Certificate
	byStudent map[uuid.UUID][]*learning.Certificate
}

func (f *fakeCertificateRepo) Create(dbctx.Context, []*learning.Certificate) ([]*learning.Certificate, error) {
	return nil, nil
}

func (f *fakeCertificateRepo) GetByEnrollmentID(dbctx.Context, uuid.UUID) (*learning.Certificate, error) {
	return nil, nil
}

func (f *fakeCertificateRepo) GetBySerial(_ dbctx.Context, serial string) (*learning.Certificate, error) {
	return f.bySerial[serial], nil
}

func (f *fakeCertificateRepo) ListByStudent(_ dbctx.Context, studentID uuid.UUID) ([]*learning.Certificate, error) {
	return f.byStudent[studentID], nil
}

type fakeUserRepo struct {
	byID map[uuid.UUID]*userdom.User
}

func (f *fakeUserRepo) Create(dbctx.Context, []*userdom.User) ([]*userdom.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*userdom.User, error) {
	return f.byID[id], nil
}

func (f *fakeUserRepo) GetByIDs(dbctx.Context, []uuid.UUID) ([]*userdom.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) GetByEmail(dbctx.Context, string) (*userdom.User, error) { return nil, nil }

func (f *fakeUserRepo) EmailExists(dbctx.Context, string) (bool, error) { return false, nil }

func (f *fakeUserRepo) UpdateName(dbctx.Context, uuid.UUID, string, string) error { return nil }
