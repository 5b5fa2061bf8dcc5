package predictions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the prediction market.
type Handler struct {
	service *Service
}

// NewHandler creates a new predictions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up prediction routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/predictions", h.Submit)
	r.GET("/predictions/:id", h.Get)
	r.GET("/predictions/:id/window", h.WindowStatus)
	r.GET("/predictions/:id/outcome", h.GetOutcome)
	r.POST("/predictions/:id/resolve", h.Resolve)
	r.GET("/predictions/estimate", h.EstimateReward)
	r.GET("/predictors/:principal/predictions", h.ListByPredictor)
	r.GET("/protocols/:protocol/predictions", h.ListByProtocol)
	r.GET("/stats", h.Stats)
}

// Submit handles POST /v1/predictions
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	p, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "submit_failed"
		switch {
		case errors.Is(err, ErrInvalidPrediction):
			status = http.StatusBadRequest
			code = "invalid_prediction"
		case errors.Is(err, ErrInsufficientStake):
			status = http.StatusPaymentRequired
			code = "insufficient_stake"
		case errors.Is(err, ErrTransferFailed):
			status = http.StatusPaymentRequired
			code = "transfer_failed"
		case errors.Is(err, ErrUnauthorized):
			status = http.StatusForbidden
			code = "unauthorized"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"prediction": p})
}

// Get handles GET /v1/predictions/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		notFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prediction": p})
}

// WindowStatus handles GET /v1/predictions/:id/window
func (h *Handler) WindowStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	open, remaining, err := h.service.WindowStatus(c.Request.Context(), id)
	if err != nil {
		notFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": open, "heightsRemaining": remaining})
}

// GetOutcome handles GET /v1/predictions/:id/outcome
func (h *Handler) GetOutcome(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	o, err := h.service.GetOutcome(c.Request.Context(), id)
	if err != nil {
		notFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": o})
}

// Resolve handles POST /v1/predictions/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	req.PredictionID = id

	p, o, err := h.service.Resolve(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "resolve_failed"
		switch {
		case errors.Is(err, ErrPredictionNotFound):
			status = http.StatusNotFound
			code = "prediction_not_found"
		case errors.Is(err, ErrAlreadyResolved):
			status = http.StatusConflict
			code = "already_resolved"
		case errors.Is(err, ErrWindowNotYetClosed):
			status = http.StatusConflict
			code = "window_not_yet_closed"
		case errors.Is(err, ErrUnauthorized):
			status = http.StatusForbidden
			code = "unauthorized"
		case errors.Is(err, ErrInvalidPrediction):
			status = http.StatusBadRequest
			code = "invalid_prediction"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prediction": p, "outcome": o})
}

// EstimateReward handles GET /v1/predictions/estimate?stake=&severity=&aiConfidence=
func (h *Handler) EstimateReward(c *gin.Context) {
	stake, err1 := strconv.ParseUint(c.Query("stake"), 10, 64)
	severity, err2 := strconv.ParseUint(c.Query("severity"), 10, 64)
	conf, err3 := strconv.ParseUint(c.Query("aiConfidence"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || severity > MaxScore || conf > MaxScore {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "stake, severity (0-100) and aiConfidence (0-100) are required",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reward": CalculateReward(stake, severity, conf)})
}

// ListByPredictor handles GET /v1/predictors/:principal/predictions
func (h *Handler) ListByPredictor(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.service.ListByPredictor(c.Request.Context(), c.Param("principal"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": list, "count": len(list)})
}

// ListByProtocol handles GET /v1/protocols/:protocol/predictions
func (h *Handler) ListByProtocol(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.service.ListByProtocol(c.Request.Context(), c.Param("protocol"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": list, "count": len(list)})
}

// Stats handles GET /v1/stats
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": st})
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_id",
			"message": "prediction id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func notFoundOr500(c *gin.Context, err error) {
	if errors.Is(err, ErrPredictionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "prediction_not_found",
			"message": "Prediction not found",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "message": err.Error()})
}
