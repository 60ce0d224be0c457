package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/services"
)

type QuizHandler struct {
	svc services.QuizService
}

func NewQuizHandler(svc services.QuizService) *QuizHandler {
	return &QuizHandler{svc: svc}
}

// POST /api/lessons/:id/attempts
// body: { "answers": [ { "question_id": "q1", "selected_option_id": "q1o2" } ],
//         "time_spent_seconds": 120 }
func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Answers          []learning.AnswerSubmission `json:"answers"`
		TimeSpentSeconds int                         `json:"time_spent_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}

	res, err := h.svc.SubmitAttempt(c.Request.Context(), services.SubmitQuizInput{
		LessonID:         lessonID,
		Answers:          req.Answers,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"attempt": res.Attempt,
		"passed":  res.Passed,
		"summary": res.Summary,
	})
}

// GET /api/lessons/:id/can-retake?student_id=...
func (h *QuizHandler) CanRetake(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := studentFromRequest(c)
	if !ok {
		return
	}

	decision, err := h.svc.CanRetake(c.Request.Context(), studentID, lessonID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, decision)
}

// GET /api/lessons/:id/attempts?student_id=...
func (h *QuizHandler) ListAttempts(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := studentFromRequest(c)
	if !ok {
		return
	}

	attempts, summary, err := h.svc.ListAttempts(c.Request.Context(), studentID, lessonID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attempts": attempts, "summary": summary})
}
