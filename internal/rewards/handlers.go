package rewards

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for reward accounts.
type Handler struct {
	service *Service
}

// NewHandler creates a new rewards handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up reward routes. Routes using :principal expect
// the principal-param middleware upstream.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rewards/:principal", h.GetAccount)
	r.POST("/rewards/:principal/claim", h.Claim)
	r.GET("/rewards", h.TopEarners)
}

// GetAccount handles GET /v1/rewards/:principal
func (h *Handler) GetAccount(c *gin.Context) {
	a, err := h.service.Account(c.Request.Context(), c.Param("principal"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": a})
}

// Claim handles POST /v1/rewards/:principal/claim
func (h *Handler) Claim(c *gin.Context) {
	amount, err := h.service.Claim(c.Request.Context(), c.Param("principal"))
	if err != nil {
		status := http.StatusInternalServerError
		code := "claim_failed"
		switch {
		case errors.Is(err, ErrNothingToClaim):
			status = http.StatusConflict
			code = "nothing_to_claim"
		case errors.Is(err, ErrTransferFailed):
			status = http.StatusBadGateway
			code = "transfer_failed"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimed": amount})
}

// TopEarners handles GET /v1/rewards?limit=N
func (h *Handler) TopEarners(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	accounts, err := h.service.TopEarners(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
}
