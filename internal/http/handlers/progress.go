package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/services"
)

type ProgressHandler struct {
	svc services.ProgressService
}

func NewProgressHandler(svc services.ProgressService) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

// POST /api/lessons/:id/events
// body: { "completed": true, "seconds_delta": 30 } (either or both)
// The acting student is always the caller.
func (h *ProgressHandler) RecordLessonEvent(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Completed    *bool `json:"completed"`
		SecondsDelta *int  `json:"seconds_delta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}

	res, err := h.svc.RecordLessonEvent(c.Request.Context(), services.LessonEventInput{
		LessonID:     lessonID,
		Completed:    req.Completed,
		SecondsDelta: req.SecondsDelta,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/lessons/:id/progress?student_id=...
// student_id defaults to the caller; reading another student's rows is
// gated inside the service.
func (h *ProgressHandler) GetLessonProgress(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := studentFromRequest(c)
	if !ok {
		return
	}

	view, err := h.svc.GetLessonProgress(c.Request.Context(), studentID, lessonID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": view})
}

// GET /api/courses/:id/progress?student_id=...
func (h *ProgressHandler) GetCourseProgress(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := studentFromRequest(c)
	if !ok {
		return
	}

	enrollment, err := h.svc.GetCourseProgress(c.Request.Context(), studentID, courseID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": enrollment})
}

// POST /api/courses/:id/progress/recompute?student_id=...
// student_id defaults to the caller.
func (h *ProgressHandler) RecomputeCourseProgress(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := studentFromRequest(c)
	if !ok {
		return
	}

	res, err := h.svc.RecomputeCourseProgress(c.Request.Context(), studentID, courseID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"enrollment":        res.Enrollment,
		"completed_lessons": res.CompletedLessons,
		"total_lessons":     res.TotalLessons,
		"transitioned":      res.Transitioned,
	})
}
