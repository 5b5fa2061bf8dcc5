package risk

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/breachmarket/breachmarket/internal/validation"
)

// Handler provides HTTP endpoints for protocol risk.
type Handler struct {
	service *Service
}

// NewHandler creates a new risk handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up risk routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/risk/:protocol", h.GetScore)
	r.GET("/risk", h.Hottest)
	r.POST("/risk/:protocol/flag", h.FlagCritical)
}

// GetScore handles GET /v1/risk/:protocol
func (h *Handler) GetScore(c *gin.Context) {
	protocol := c.Param("protocol")
	if !validation.IsValidProtocol(protocol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_protocol",
			"message": "invalid protocol identifier",
		})
		return
	}

	score, err := h.service.Get(c.Request.Context(), protocol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"risk": score})
}

// Hottest handles GET /v1/risk?limit=N
func (h *Handler) Hottest(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	scores, err := h.service.Hottest(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"protocols": scores, "count": len(scores)})
}

type flagRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// FlagCritical handles POST /v1/risk/:protocol/flag
func (h *Handler) FlagCritical(c *gin.Context) {
	protocol := c.Param("protocol")
	if !validation.IsValidProtocol(protocol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_protocol",
			"message": "invalid protocol identifier",
		})
		return
	}

	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.IsValidPrincipal(req.Caller) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_principal",
			"message": "caller must be a valid address",
		})
		return
	}

	score, err := h.service.FlagCritical(c.Request.Context(), protocol, req.Caller)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "flag_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"risk": score})
}
