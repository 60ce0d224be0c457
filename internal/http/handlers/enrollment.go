package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/services"
)

type EnrollmentHandler struct {
	svc services.EnrollmentService
}

func NewEnrollmentHandler(svc services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{svc: svc}
}

// POST /api/courses/:id/enroll
// Enrolls the caller; repeat calls return the existing enrollment.
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	enrollment, err := h.svc.Enroll(c.Request.Context(), courseID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": enrollment})
}

// GET /api/enrollments
func (h *EnrollmentHandler) ListMyEnrollments(c *gin.Context) {
	enrollments, err := h.svc.ListMyEnrollments(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollments": enrollments})
}

// GET /api/enrollments/:id
func (h *EnrollmentHandler) GetEnrollment(c *gin.Context) {
	enrollmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	enrollment, err := h.svc.GetEnrollment(c.Request.Context(), enrollmentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enrollment": enrollment})
}
