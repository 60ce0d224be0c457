package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/services"
)

type fakeProgressService struct {
	eventIn       services.LessonEventInput
	eventRes      services.RecordLessonEventResult
	viewStudentID uuid.UUID
	viewLessonID  uuid.UUID
	err           error
}

func (f *fakeProgressService) RecordLessonEvent(ctx context.Context, in services.LessonEventInput) (services.RecordLessonEventResult, error) {
	f.eventIn = in
	return f.eventRes, f.err
}

func (f *fakeProgressService) GetLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) (services.LessonProgressView, error) {
	f.viewStudentID = studentID
	f.viewLessonID = lessonID
	return services.LessonProgressView{StudentID: studentID, LessonID: lessonID}, f.err
}

func (f *fakeProgressService) GetCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (*learning.Enrollment, error) {
	f.viewStudentID = studentID
	return &learning.Enrollment{StudentID: studentID, CourseID: courseID}, f.err
}

func (f *fakeProgressService) RecomputeCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (domainagg.RecomputeCompletionResult, error) {
	f.viewStudentID = studentID
	return domainagg.RecomputeCompletionResult{}, f.err
}

func progressRouter(svc services.ProgressService, identity gin.HandlerFunc) *gin.Engine {
	h := NewProgressHandler(svc)
	return newHandlerRouter(func(g *gin.RouterGroup) {
		if identity != nil {
			g.Use(identity)
		}
		g.POST("/lessons/:id/events", h.RecordLessonEvent)
		g.GET("/lessons/:id/progress", h.GetLessonProgress)
	})
}

func TestRecordLessonEventBindsBody(t *testing.T) {
	lessonID := uuid.New()
	caller := uuid.New()
	svc := &fakeProgressService{}
	r := progressRouter(svc, identityMiddleware(caller, "student"))

	rec := doJSON(t, r, http.MethodPost, "/api/lessons/"+lessonID.String()+"/events",
		map[string]any{"completed": true, "seconds_delta": 45})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if svc.eventIn.LessonID != lessonID {
		t.Fatalf("lesson id: want=%s got=%s", lessonID, svc.eventIn.LessonID)
	}
	if svc.eventIn.Completed == nil || !*svc.eventIn.Completed {
		t.Fatalf("completed: want=true got=%v", svc.eventIn.Completed)
	}
	if svc.eventIn.SecondsDelta == nil || *svc.eventIn.SecondsDelta != 45 {
		t.Fatalf("seconds delta: want=45 got=%v", svc.eventIn.SecondsDelta)
	}
}

func TestGetLessonProgressDefaultsToCaller(t *testing.T) {
	lessonID := uuid.New()
	caller := uuid.New()
	svc := &fakeProgressService{}
	r := progressRouter(svc, identityMiddleware(caller, "student"))

	rec := doJSON(t, r, http.MethodGet, "/api/lessons/"+lessonID.String()+"/progress", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if svc.viewStudentID != caller {
		t.Fatalf("student should default to caller: want=%s got=%s", caller, svc.viewStudentID)
	}
}

func TestGetLessonProgressStudentOverride(t *testing.T) {
	lessonID := uuid.New()
	caller := uuid.New()
	other := uuid.New()
	svc := &fakeProgressService{}
	r := progressRouter(svc, identityMiddleware(caller, "instructor"))

	rec := doJSON(t, r, http.MethodGet,
		"/api/lessons/"+lessonID.String()+"/progress?student_id="+other.String(), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if svc.viewStudentID != other {
		t.Fatalf("student override: want=%s got=%s", other, svc.viewStudentID)
	}
}

func TestGetLessonProgressNoIdentity(t *testing.T) {
	svc := &fakeProgressService{}
	r := progressRouter(svc, nil)

	rec := doJSON(t, r, http.MethodGet, "/api/lessons/"+uuid.NewString()+"/progress", nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: want=403 got=%d", rec.Code)
	}
	if svc.viewStudentID != uuid.Nil {
		t.Fatalf("service should not be reached without an identity")
	}
}
