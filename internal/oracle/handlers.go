package oracle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/breachmarket/breachmarket/internal/validation"
)

// Handler provides HTTP endpoints for oracle management.
type Handler struct {
	service *Service
}

// NewHandler creates a new oracle handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up oracle routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/oracles", h.Register)
	r.GET("/oracles/:principal", h.GetStats)
	r.GET("/oracles", h.Leaderboard)
}

// RegisterAdminRoutes sets up admin-only oracle routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/oracles/:principal/revoke", h.Revoke)
}

type registerRequest struct {
	Principal string `json:"principal" binding:"required"`
}

// Register handles POST /v1/oracles
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.IsValidPrincipal(req.Principal) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_principal",
			"message": "principal must be a valid address",
		})
		return
	}

	o, err := h.service.Register(c.Request.Context(), req.Principal)
	if err != nil {
		status := http.StatusInternalServerError
		code := "register_failed"
		switch {
		case errors.Is(err, ErrAlreadyRegistered):
			status = http.StatusConflict
			code = "already_registered"
		case errors.Is(err, ErrTransferFailed):
			status = http.StatusPaymentRequired
			code = "transfer_failed"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"oracle": o})
}

// GetStats handles GET /v1/oracles/:principal
func (h *Handler) GetStats(c *gin.Context) {
	o, err := h.service.Get(c.Request.Context(), c.Param("principal"))
	if err != nil {
		if errors.Is(err, ErrOracleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "oracle_not_found",
				"message": "Oracle not registered",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"oracle": o})
}

// Leaderboard handles GET /v1/oracles?limit=N
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	oracles, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"oracles": oracles, "count": len(oracles)})
}

// Revoke handles POST /v1/admin/oracles/:principal/revoke
func (h *Handler) Revoke(c *gin.Context) {
	err := h.service.Revoke(c.Request.Context(), c.Param("principal"))
	if err != nil {
		if errors.Is(err, ErrOracleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "oracle_not_found",
				"message": "Oracle not registered",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
