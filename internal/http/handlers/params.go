package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/platform/ctxutil"
)

// pathID parses a uuid path parameter, responding 400 itself on failure.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// studentFromRequest resolves which student a progress/attempt read targets:
// the student_id query param when present, otherwise the caller. Whether the
// caller may read that student's rows is the service's decision.
func studentFromRequest(c *gin.Context) (uuid.UUID, bool) {
	if raw := strings.TrimSpace(c.Query("student_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), fmt.Errorf("invalid student_id"))
			return uuid.Nil, false
		}
		return id, true
	}
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusForbidden, string(domainagg.CodeForbidden), fmt.Errorf("missing caller identity"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}
