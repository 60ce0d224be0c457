package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/domain/learning"
	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/services"
)

type ContentHandler struct {
	svc services.ContentService
}

func NewContentHandler(svc services.ContentService) *ContentHandler {
	return &ContentHandler{svc: svc}
}

// POST /api/courses/:id/sections
// body: { "title": "...", "order": 2 } (order optional; appends)
func (h *ContentHandler) CreateSection(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
		Order *int   `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}

	res, err := h.svc.CreateSection(c.Request.Context(), domainagg.CreateSectionInput{
		CourseID:        courseID,
		Title:           req.Title,
		DesiredPosition: req.Order,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"section": res.Section, "sections": res.CourseSections})
}

// PATCH /api/sections/:id
// body: { "title": "..." }
func (h *ContentHandler) RenameSection(c *gin.Context) {
	sectionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}

	section, err := h.svc.RenameSection(c.Request.Context(), sectionID, req.Title)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"section": section})
}

// POST /api/sections/:id/lessons
// body: { "title": "...", "type": "video", "order": 3, "is_visible": true,
//         "is_required": true, "estimated_time": 10, "content": {...},
//         "quiz_settings": {...} }
func (h *ContentHandler) InsertLesson(c *gin.Context) {
	sectionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title         string                  `json:"title"`
		Type          string                  `json:"type"`
		Order         *int                    `json:"order"`
		IsVisible     *bool                   `json:"is_visible"`
		IsRequired    *bool                   `json:"is_required"`
		EstimatedTime int                     `json:"estimated_time"`
		Content       *learning.LessonContent `json:"content"`
		QuizSettings  *learning.QuizSettings  `json:"quiz_settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}

	res, err := h.svc.InsertLesson(c.Request.Context(), domainagg.InsertLessonInput{
		SectionID:       sectionID,
		Title:           req.Title,
		Type:            req.Type,
		DesiredPosition: req.Order,
		IsVisible:       req.IsVisible,
		IsRequired:      req.IsRequired,
		EstimatedTime:   req.EstimatedTime,
		Content:         req.Content,
		QuizSettings:    req.QuizSettings,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lesson": res.Lesson, "lessons": res.SectionLessons})
}

// DELETE /api/lessons/:id
func (h *ContentHandler) DeleteLesson(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.DeleteLesson(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"section_id": res.SectionID, "lessons": res.SectionLessons})
}

// POST /api/lessons/:id/move
// body: { "to_section_id": "...", "from_section_id": "...", "order": 1 }
// from_section_id is an optional guard; order nil appends to the destination.
func (h *ContentHandler) MoveLesson(c *gin.Context) {
	lessonID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ToSectionID   uuid.UUID `json:"to_section_id"`
		FromSectionID uuid.UUID `json:"from_section_id"`
		Order         *int      `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}

	res, err := h.svc.MoveLesson(c.Request.Context(), domainagg.MoveLessonInput{
		LessonID:      lessonID,
		FromSectionID: req.FromSectionID,
		ToSectionID:   req.ToSectionID,
		NewPosition:   req.Order,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"source_section_id": res.SourceSectionID,
		"dest_section_id":   res.DestSectionID,
		"source_lessons":    res.SourceLessons,
		"dest_lessons":      res.DestLessons,
	})
}

// PUT /api/sections/:id/order
// body: { "pairs": [ { "lesson_id": "...", "order": 1 }, ... ] }
// The set must cover the section's lessons exactly.
func (h *ContentHandler) ReorderSection(c *gin.Context) {
	sectionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Pairs []domainagg.LessonPosition `json:"pairs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}

	res, err := h.svc.ReorderSection(c.Request.Context(), domainagg.ReorderSectionInput{
		SectionID: sectionID,
		Pairs:     req.Pairs,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lessons": res.SectionLessons})
}

// GET /api/courses/:id/outline
func (h *ContentHandler) GetCourseOutline(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	outline, err := h.svc.GetCourseOutline(c.Request.Context(), courseID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"outline": outline})
}
