// Package server wires the HTTP API together: storage selection,
// middleware, routes, and lifecycle management.
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/breachmarket/breachmarket/internal/config"
	"github.com/breachmarket/breachmarket/internal/credential"
	"github.com/breachmarket/breachmarket/internal/health"
	"github.com/breachmarket/breachmarket/internal/heights"
	"github.com/breachmarket/breachmarket/internal/ledger"
	"github.com/breachmarket/breachmarket/internal/logging"
	"github.com/breachmarket/breachmarket/internal/metrics"
	"github.com/breachmarket/breachmarket/internal/oracle"
	"github.com/breachmarket/breachmarket/internal/predictions"
	"github.com/breachmarket/breachmarket/internal/ratelimit"
	"github.com/breachmarket/breachmarket/internal/realtime"
	"github.com/breachmarket/breachmarket/internal/rewards"
	"github.com/breachmarket/breachmarket/internal/risk"
	"github.com/breachmarket/breachmarket/internal/security"
	"github.com/breachmarket/breachmarket/internal/traces"
	"github.com/breachmarket/breachmarket/internal/validation"
)

// HealthResponse is the aggregate health report
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

// Server is the main API server
type Server struct {
	cfg *config.Config

	heights     heights.Source
	ledger      *ledger.Ledger
	issuer      *credential.Issuer
	oracles     *oracle.Service
	riskSvc     *risk.Service
	rewardsSvc  *rewards.Service
	predictions *predictions.Service
	realtimeHub *realtime.Hub
	rateLimiter *ratelimit.Limiter
	healthReg   *health.Registry

	db             *sql.DB // nil if using in-memory
	router         *gin.Engine
	httpSrv        *http.Server
	logger         *slog.Logger
	tracesShutdown func(context.Context) error
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHeights sets a custom height source (for testing)
func WithHeights(hs heights.Source) Option {
	return func(s *Server) {
		s.heights = hs
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logging.New(cfg.LogLevel, "json"),
		healthReg: health.NewRegistry(),
	}

	// Apply options first (may set heights/logger)
	for _, opt := range opts {
		opt(s)
	}

	if s.heights == nil {
		s.heights = heights.NewInterval(cfg.GenesisTime, cfg.BlockInterval)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		ledgerStore     ledger.Store
		oracleStore     oracle.Store
		riskStore       risk.Store
		rewardsStore    rewards.Store
		predictionStore predictions.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		ledgerStore = ledger.NewPostgresStore(db)
		oracleStore = oracle.NewPostgresStore(db)
		riskStore = risk.NewPostgresStore(db)
		rewardsStore = rewards.NewPostgresStore(db)
		predictionStore = predictions.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
		s.logger.Info("schema is migration-managed; run `breachmarket-migrate up` before first start")

		s.healthReg.Register("database", func(ctx context.Context) (string, error) {
			return "", db.PingContext(ctx)
		})
	} else {
		ledgerStore = ledger.NewMemoryStore()
		oracleStore = oracle.NewMemoryStore()
		riskStore = risk.NewMemoryStore()
		rewardsStore = rewards.NewMemoryStore()
		predictionStore = predictions.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	emitter := &realtimeEventEmitter{s.realtimeHub}

	// Wire the market services. The ledger underpins every value
	// transfer: stakes, fees, refunds, and reward claims.
	s.ledger = ledger.New(ledgerStore)
	s.issuer = credential.NewIssuer()
	s.oracles = oracle.NewService(oracleStore, s.ledger, s.issuer, s.heights,
		cfg.RegistrationFee, cfg.TreasuryAddr).WithEvents(emitter)
	s.riskSvc = risk.NewService(riskStore, s.oracles, s.heights).WithEvents(emitter)
	s.rewardsSvc = rewards.NewService(rewardsStore, s.ledger, cfg.EscrowAddr).WithEvents(emitter)
	s.predictions = predictions.NewService(predictionStore, s.oracles, s.riskSvc,
		s.rewardsSvc, s.ledger, s.heights, cfg.EscrowAddr,
		cfg.MinStake, cfg.WindowBlocks).WithEvents(emitter)
	if s.db != nil {
		// All postgres stores share this pool, so resolution effects can
		// run in one transaction.
		s.predictions.WithTxBeginner(s.db)
	}
	s.logger.Info("prediction market enabled",
		"minStake", cfg.MinStake,
		"registrationFee", cfg.RegistrationFee,
		"windowBlocks", cfg.WindowBlocks,
	)

	s.healthReg.Register("heights", func(ctx context.Context) (string, error) {
		// A wall-clock source that reports 0 after the first interval
		// means the genesis time is in the future.
		return fmt.Sprintf("height %d", s.heights.Current()), nil
	})

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
		if burst := s.cfg.RateLimitRPM / 6; burst > rlCfg.BurstSize {
			rlCfg.BurstSize = burst
		}
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.AdminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin credentials required",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info endpoints
	s.router.GET("/api", s.infoHandler)
	s.router.GET("/api/market", s.marketInfoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :principal URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.PrincipalParamMiddleware())

	oracleHandler := oracle.NewHandler(s.oracles)
	oracleHandler.RegisterRoutes(v1)
	predictions.NewHandler(s.predictions).RegisterRoutes(v1)
	risk.NewHandler(s.riskSvc).RegisterRoutes(v1)
	rewards.NewHandler(s.rewardsSvc).RegisterRoutes(v1)

	// Ledger read endpoints
	v1.GET("/ledger/:principal", s.balanceHandler)
	v1.GET("/ledger/:principal/history", s.historyHandler)

	// Realtime stats
	v1.GET("/stream/stats", s.streamStatsHandler)

	// Faucet credits play balances. Open in development, admin-gated
	// otherwise.
	if s.cfg.IsDevelopment() {
		v1.POST("/faucet", s.faucetHandler)
		s.logger.Info("faucet open (development mode)")
	}

	// Admin routes (disabled unless ADMIN_SECRET is set)
	if s.cfg.AdminSecret != "" {
		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		oracleHandler.RegisterAdminRoutes(admin)
		admin.POST("/faucet", s.faucetHandler)
		s.logger.Info("admin routes enabled")
	}
}

// -----------------------------------------------------------------------------
// Handlers owned by the server (health, info, ledger, faucet)
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.Run(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "BreachMarket",
		"description": "Staking-based breach prediction market",
		"version":     "0.1.0",
		"decimals":    6,
	})
}

// marketInfoHandler returns the market parameters clients need before
// submitting: stakes, fees, and the resolution window.
func (s *Server) marketInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"market": gin.H{
			"minStake":        s.cfg.MinStake,
			"registrationFee": s.cfg.RegistrationFee,
			"windowBlocks":    s.cfg.WindowBlocks,
			"currentHeight":   s.heights.Current(),
			"escrow":          s.cfg.EscrowAddr,
			"treasury":        s.cfg.TreasuryAddr,
		},
	})
}

func (s *Server) balanceHandler(c *gin.Context) {
	account, err := s.ledger.Balance(c.Request.Context(), c.Param("principal"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to fetch balance",
		})
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) historyHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := s.ledger.History(c.Request.Context(), c.Param("principal"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to fetch history",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

type faucetRequest struct {
	Principal string `json:"principal" binding:"required"`
	Amount    uint64 `json:"amount" binding:"required"`
}

func (s *Server) faucetHandler(c *gin.Context) {
	var req faucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "principal and amount are required",
		})
		return
	}
	if !validation.IsValidPrincipal(req.Principal) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_principal",
			"message": "Principal must be a valid hex address",
		})
		return
	}
	if err := s.ledger.Deposit(c.Request.Context(), req.Principal, req.Amount, "faucet"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Deposit failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credited": req.Amount, "principal": req.Principal})
}

func (s *Server) streamStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.realtimeHub.Stats())
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when no OTLP endpoint is configured)
	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("tracing init failed, continuing without traces", "error", err)
	} else {
		s.tracesShutdown = shutdown
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	if s.realtimeHub != nil {
		go s.realtimeHub.Run(runCtx)
	}

	// Export database pool stats
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesShutdown != nil {
		if err := s.tracesShutdown(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// -----------------------------------------------------------------------------
// Realtime adapters
// -----------------------------------------------------------------------------

// realtimeEventEmitter adapts realtime.Hub to the feature packages'
// EventEmitter interfaces. Numeric fields are emitted as float64 so
// in-process filtering matches what JSON-decoded subscriptions see.
type realtimeEventEmitter struct {
	hub *realtime.Hub
}

func (e *realtimeEventEmitter) EmitOracleRegistered(o *oracle.Oracle) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventOracleRegistered,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"principal":          o.Principal,
			"reputationScore":    float64(o.ReputationScore),
			"registrationHeight": float64(o.RegistrationHeight),
		},
	})
}

func (e *realtimeEventEmitter) EmitPredictionSubmitted(p *predictions.Prediction) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventPredictionSubmitted,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"predictionId":   float64(p.ID),
			"predictor":      p.Predictor,
			"targetProtocol": p.TargetProtocol,
			"vulnType":       p.VulnType,
			"severityScore":  float64(p.SeverityScore),
			"aiConfidence":   float64(p.AIConfidence),
			"predictedLoss":  float64(p.PredictedLoss),
			"stakeAmount":    float64(p.StakeAmount),
		},
	})
}

func (e *realtimeEventEmitter) EmitPredictionResolved(p *predictions.Prediction, o *predictions.Outcome) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventPredictionResolved,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"predictionId":      float64(p.ID),
			"predictor":         p.Predictor,
			"targetProtocol":    p.TargetProtocol,
			"stakeAmount":       float64(p.StakeAmount),
			"accurate":          p.Accurate,
			"actualLoss":        float64(o.ActualLoss),
			"incidentConfirmed": o.IncidentConfirmed,
			"resolutionOracle":  o.ResolutionOracle,
		},
	})
}

func (e *realtimeEventEmitter) EmitRiskFlagged(score *risk.Score, caller string) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventRiskFlagged,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"protocol":    score.Protocol,
			"currentRisk": float64(score.CurrentRisk),
			"principal":   caller,
		},
	})
}

func (e *realtimeEventEmitter) EmitRewardClaimed(predictor string, amount uint64) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(&realtime.Event{
		Type:      realtime.EventRewardClaimed,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"predictor": predictor,
			"amount":    float64(amount),
		},
	})
}
