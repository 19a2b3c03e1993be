package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"together.backend/internal/interfaces/http/response"
	"together.backend/internal/usecases"
)

// AttestationHandler handles the confirmed-event read endpoints
type AttestationHandler struct {
	attestationUsecase *usecases.AttestationUsecase
}

// NewAttestationHandler creates a new attestation handler
func NewAttestationHandler(attestationUsecase *usecases.AttestationUsecase) *AttestationHandler {
	return &AttestationHandler{attestationUsecase: attestationUsecase}
}

// ListAttestations lists attestations containing an address
// GET /api/v1/attestations/:address?page=1&limit=50
func (h *AttestationHandler) ListAttestations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	attestations, meta, err := h.attestationUsecase.ListByAddress(c.Request.Context(), c.Param("address"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attestations": attestations,
		"meta":         meta,
	})
}

// GetStrengths lists the pair strengths for an address
// GET /api/v1/users/:address/strength
func (h *AttestationHandler) GetStrengths(c *gin.Context) {
	strengths, err := h.attestationUsecase.GetStrengths(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"strengths": strengths})
}
