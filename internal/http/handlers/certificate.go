package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/courseloom/courseloom-backend/internal/http/response"
	"github.com/courseloom/courseloom-backend/internal/services"
)

type CertificateHandler struct {
	svc services.CertificateService
}

func NewCertificateHandler(svc services.CertificateService) *CertificateHandler {
	return &CertificateHandler{svc: svc}
}

// GET /api/certificates
func (h *CertificateHandler) ListMyCertificates(c *gin.Context) {
	certificates, err := h.svc.ListMyCertificates(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"certificates": certificates})
}

// GET /api/certificates/verify/:serial
func (h *CertificateHandler) VerifyBySerial(c *gin.Context) {
	certificate, err := h.svc.VerifyBySerial(c.Request.Context(), c.Param("serial"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"certificate": certificate})
}
