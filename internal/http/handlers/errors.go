package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/platform/apierr"
)

func statusForCode(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeForbidden:
		return http.StatusForbidden
	case domainagg.CodeBusinessRule, domainagg.CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError translates a service error into the envelope. Domain
// errors keep their code and meta; anything else surfaces as internal.
func respondServiceError(c *gin.Context, err error) {
	var derr *domainagg.Error
	if errors.As(err, &derr) {
		msg := err
		if derr.Message != "" {
			msg = errors.New(derr.Message)
		}
		response.RespondErrorWithMeta(c, statusForCode(derr.Code), string(derr.Code), msg, derr.Meta)
		return
	}
	if aerr := apierr.From(err); aerr != nil {
		response.RespondError(c, aerr.Status, aerr.Code, aerr)
		return
	}
	response.RespondError(c, http.StatusInternalServerError, string(domainagg.CodeInternal), err)
}

