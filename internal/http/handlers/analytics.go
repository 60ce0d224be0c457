package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/services"
)

type AnalyticsHandler struct {
	svc services.AnalyticsService
}

func NewAnalyticsHandler(svc services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// GET /api/lessons/:id/analytics
// Course owner or admin only; the aggregate spans the whole cohort.
func (h *AnalyticsHandler) QuizAnalytics(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}

	analytics, err := h.svc.QuizAnalytics(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"analytics": analytics})
}
