package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	domainagg "github.com/courseloom/courseloom-backend/internal/domain/aggregates"
)

func TestRespondServiceErrorMapsDomainCodes(t *testing.T) {
	cases := []struct {
		code domainagg.ErrorCode
		want int
	}{
		{domainagg.CodeValidation, http.StatusBadRequest},
		{domainagg.CodeNotFound, http.StatusNotFound},
		{domainagg.CodeForbidden, http.StatusForbidden},
		{domainagg.CodeBusinessRule, http.StatusUnprocessableEntity},
		{domainagg.CodePreconditionFailed, http.StatusUnprocessableEntity},
		{domainagg.CodeConflict, http.StatusConflict},
		{domainagg.CodeRetryable, http.StatusServiceUnavailable},
		{domainagg.CodeInvariantViolation, http.StatusInternalServerError},
		{domainagg.CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			r := newHandlerRouter(func(g *gin.RouterGroup) {
				g.GET("/fail", func(c *gin.Context) {
					respondServiceError(c, domainagg.NewError(tc.code, "Test.Op", "it broke", nil))
				})
			})

			rec := doJSON(t, r, http.MethodGet, "/api/fail", nil)
			if rec.Code != tc.want {
				t.Fatalf("status for %s: want=%d got=%d", tc.code, tc.want, rec.Code)
			}
			envelope := decodeErrorEnvelope(t, rec)
			if envelope.Error.Code != string(tc.code) {
				t.Fatalf("code: want=%s got=%s", tc.code, envelope.Error.Code)
			}
			if envelope.Error.Message != "it broke" {
				t.Fatalf("message should drop the internal op prefix, got %q", envelope.Error.Message)
			}
		})
	}
}

func TestRespondServiceErrorCarriesMeta(t *testing.T) {
	r := newHandlerRouter(func(g *gin.RouterGroup) {
		g.GET("/blocked", func(c *gin.Context) {
			respondServiceError(c, domainagg.NewErrorWithMeta(
				domainagg.CodeBusinessRule, "Test.Op", "max attempts reached",
				map[string]any{"remaining_attempts": 0, "reason": "attempts_exhausted"}, nil))
		})
	})

	rec := doJSON(t, r, http.MethodGet, "/api/blocked", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: want=422 got=%d", rec.Code)
	}
	envelope := decodeErrorEnvelope(t, rec)
	if envelope.Error.Meta["reason"] != "attempts_exhausted" {
		t.Fatalf("meta should survive the envelope, got %+v", envelope.Error.Meta)
	}
}

func TestRespondServiceErrorUnknownErrorIsInternal(t *testing.T) {
	r := newHandlerRouter(func(g *gin.RouterGroup) {
		g.GET("/boom", func(c *gin.Context) {
			respondServiceError(c, errors.New("driver exploded"))
		})
	})

	rec := doJSON(t, r, http.MethodGet, "/api/boom", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
	envelope := decodeErrorEnvelope(t, rec)
	if envelope.Error.Code != "internal" {
		t.Fatalf("code: want=internal got=%s", envelope.Error.Code)
	}
}
