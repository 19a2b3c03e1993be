package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"together.backend/internal/domain/entities"
	"together.backend/internal/interfaces/http/response"
	"together.backend/internal/usecases"
)

// ConnectionHandler handles connection intent endpoints
type ConnectionHandler struct {
	connectionUsecase *usecases.ConnectionUsecase
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connectionUsecase *usecases.ConnectionUsecase) *ConnectionHandler {
	return &ConnectionHandler{connectionUsecase: connectionUsecase}
}

// SubmitIntent registers a one-directional connection intent
// POST /api/v1/connections
func (h *ConnectionHandler) SubmitIntent(c *gin.Context) {
	var input entities.ConnectionIntentInput

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pending, err := h.connectionUsecase.SubmitIntent(c.Request.Context(), input.FromAddress, input.ToAddress)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, pending)
}

// GetPending lists unexpired intents touching an address
// GET /api/v1/users/:address/pending
func (h *ConnectionHandler) GetPending(c *gin.Context) {
	views, err := h.connectionUsecase.GetPending(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"pending": views})
}

// GetConnections lists optimistic connections touching an address
// GET /api/v1/users/:address/connections
func (h *ConnectionHandler) GetConnections(c *gin.Context) {
	views, err := h.connectionUsecase.GetConnections(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"connections": views})
}
