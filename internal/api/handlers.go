package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/auth"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/bot"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/registry"
)

// StartBotRequest is the body of POST /api/v1/bot/start. Omitted risk and schedule
// fields fall back to the server's configured defaults.
type StartBotRequest struct {
	ID                     string  `json:"id"`
	Symbol                 string  `json:"symbol" binding:"required"`
	ProductID              int     `json:"product_id" binding:"required"`
	OrderSize              int     `json:"order_size" binding:"required"`
	StopLossPoints         float64 `json:"stop_loss_points"`
	TakeProfitPoints       float64 `json:"take_profit_points"`
	BreakevenTriggerPoints float64 `json:"breakeven_trigger_points"`
	Timeframe              string  `json:"timeframe"`
	ResetIntervalMinutes   int     `json:"reset_interval_minutes"`
	Timezone               string  `json:"timezone"`
	WaitForNextCandle      *bool   `json:"wait_for_next_candle"`
	StartupDelayMinutes    int     `json:"startup_delay_minutes"`
	MaxPositionSize        float64 `json:"max_position_size"`
	CheckExistingOrders    *bool   `json:"check_existing_orders"`
}

// botConfig merges the request with server defaults.
func (s *Server) botConfig(req StartBotRequest) bot.Config {
	cfg := bot.Config{
		ID:                     req.ID,
		Symbol:                 req.Symbol,
		ProductID:              req.ProductID,
		OrderSize:              req.OrderSize,
		StopLossPoints:         req.StopLossPoints,
		TakeProfitPoints:       req.TakeProfitPoints,
		BreakevenTriggerPoints: req.BreakevenTriggerPoints,
		Timeframe:              req.Timeframe,
		ResetIntervalMinutes:   req.ResetIntervalMinutes,
		Timezone:               req.Timezone,
		StartupDelayMinutes:    req.StartupDelayMinutes,
		MaxPositionSize:        req.MaxPositionSize,
		OrderCheckInterval:     time.Duration(s.cfg.Monitoring.OrderCheckIntervalSeconds) * time.Second,
		PositionCheckInterval:  time.Duration(s.cfg.Monitoring.PositionCheckIntervalSeconds) * time.Second,
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.StopLossPoints == 0 {
		cfg.StopLossPoints = s.cfg.Risk.StopLossPoints
	}
	if cfg.TakeProfitPoints == 0 {
		cfg.TakeProfitPoints = s.cfg.Risk.TakeProfitPoints
	}
	if cfg.BreakevenTriggerPoints == 0 {
		cfg.BreakevenTriggerPoints = s.cfg.Risk.BreakevenTriggerPoints
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = s.cfg.Schedule.Timeframe
	}
	if cfg.Timezone == "" {
		cfg.Timezone = s.cfg.Schedule.Timezone
	}
	if cfg.StartupDelayMinutes == 0 {
		cfg.StartupDelayMinutes = s.cfg.Schedule.StartupDelayMinutes
	}
	if req.WaitForNextCandle != nil {
		cfg.WaitForNextCandle = *req.WaitForNextCandle
	} else {
		cfg.WaitForNextCandle = s.cfg.Schedule.WaitForNextCandle
	}
	if req.CheckExistingOrders != nil {
		cfg.CheckExistingOrders = *req.CheckExistingOrders
	} else {
		cfg.CheckExistingOrders = s.cfg.Risk.CheckExistingOrders
	}
	return cfg
}

// handleRoot returns service identification.
// GET /
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "delta-breakout-bot",
		"status":  "running",
		"bots":    len(s.reg.List()),
	})
}

// handleHealth returns server health.
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).String(),
	})
}

// handleLogin issues a bearer token for the operator.
// POST /api/v1/auth/login
func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "password is required")
		return
	}

	if s.authService == nil {
		errorResponse(c, http.StatusServiceUnavailable, auth.ErrNotConfigured.Message)
		return
	}

	resp, err := s.authService.Login(req.Password)
	if err != nil {
		var authErr auth.AuthError
		if errors.As(err, &authErr) && authErr.Code == auth.ErrNotConfigured.Code {
			errorResponse(c, http.StatusServiceUnavailable, authErr.Message)
			return
		}
		errorResponse(c, http.StatusUnauthorized, auth.ErrInvalidCredentials.Message)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleRefresh exchanges a refresh token for a new token pair.
// POST /api/v1/auth/refresh
func (s *Server) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if s.authService == nil {
		errorResponse(c, http.StatusServiceUnavailable, auth.ErrNotConfigured.Message)
		return
	}

	resp, err := s.authService.Refresh(req.RefreshToken)
	if err != nil {
		var authErr auth.AuthError
		if errors.As(err, &authErr) && authErr.Code == auth.ErrNotConfigured.Code {
			errorResponse(c, http.StatusServiceUnavailable, authErr.Message)
			return
		}
		errorResponse(c, http.StatusUnauthorized, auth.ErrInvalidToken.Message)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleStartBot creates and launches a bot instance.
// POST /api/v1/bot/start
func (s *Server) handleStartBot(c *gin.Context) {
	var req StartBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.botConfig(req)
	b, err := bot.New(cfg, s.exchange, s.bus)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := s.reg.Start(b)
	if err != nil {
		if errors.Is(err, registry.ErrAlreadyRunning) {
			errorResponse(c, http.StatusConflict, "bot "+cfg.ID+" is already running")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     cfg.ID,
		"run_id": runID,
		"status": "started",
	})
}

// handleListBots lists every registered bot.
// GET /api/v1/bots
func (s *Server) handleListBots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bots": s.reg.List()})
}

// handleBotStatus returns one bot's state snapshot.
// GET /api/v1/bot/status/:id
func (s *Server) handleBotStatus(c *gin.Context) {
	status, err := s.reg.Snapshot(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "bot not found")
		return
	}
	c.JSON(http.StatusOK, status)
}

// handleStopBot stops a running bot and cancels its orders.
// POST /api/v1/bot/stop/:id
func (s *Server) handleStopBot(c *gin.Context) {
	id := c.Param("id")
	if err := s.reg.Stop(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "bot not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "stopped"})
}

// handleDeleteBot removes a stopped bot.
// DELETE /api/v1/bot/:id
func (s *Server) handleDeleteBot(c *gin.Context) {
	id := c.Param("id")
	if err := s.reg.Delete(id); err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			errorResponse(c, http.StatusNotFound, "bot not found")
		case errors.Is(err, registry.ErrStillRunning):
			errorResponse(c, http.StatusBadRequest, "bot is still running, stop it first")
		default:
			errorResponse(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "deleted"})
}

// handleBotOrders returns the bot's live open orders from the exchange.
// GET /api/v1/bot/orders/:id
func (s *Server) handleBotOrders(c *gin.Context) {
	b, err := s.reg.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "bot not found")
		return
	}

	orders, err := b.Client().GetOpenOrders(b.ProductID())
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "exchange query failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// handleBotPosition returns the bot's live exchange position.
// GET /api/v1/bot/position/:id
func (s *Server) handleBotPosition(c *gin.Context) {
	b, err := s.reg.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "bot not found")
		return
	}

	positions, err := b.Client().GetPositions(b.ProductID())
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "exchange query failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// handleBotEvents returns recent journal entries for a bot.
// GET /api/v1/bot/events/:id
func (s *Server) handleBotEvents(c *gin.Context) {
	if s.journal == nil {
		errorResponse(c, http.StatusServiceUnavailable, "event journal is not enabled")
		return
	}

	id := c.Param("id")
	if _, err := s.reg.Get(id); err != nil {
		errorResponse(c, http.StatusNotFound, "bot not found")
		return
	}

	history, err := s.journal.Recent(c.Request.Context(), id, 100)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": history})
}
