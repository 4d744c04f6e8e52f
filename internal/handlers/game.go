package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trdelnik-backend/internal/ledger"
	"trdelnik-backend/internal/models"
	"trdelnik-backend/internal/services"
)

type GameHandler struct {
	gameService    *services.GameService
	historyService *services.HistoryService
	archiveService *services.ArchiveService
	redisService   *services.RedisService
}

func NewGameHandler(gameService *services.GameService, historyService *services.HistoryService, archiveService *services.ArchiveService, redisService *services.RedisService) *GameHandler {
	return &GameHandler{
		gameService:    gameService,
		historyService: historyService,
		archiveService: archiveService,
		redisService:   redisService,
	}
}

type StartGameRequest struct {
	Difficulty models.Difficulty `json:"difficulty" binding:"required"`
	Stake      string            `json:"stake" binding:"required"`
}

func (h *GameHandler) StartGame(c *gin.Context) {
	player := c.GetString("player")

	var req StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if !h.allow(c, player, "start", services.DefaultRateLimitStarts) {
		return
	}

	session, err := h.gameService.StartGame(c.Request.Context(), player, req.Difficulty, req.Stake)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    sessionView(session),
	})
}

func (h *GameHandler) PlayStep(c *gin.Context) {
	player := c.GetString("player")

	if !h.allow(c, player, "step", services.DefaultRateLimitSteps) {
		return
	}

	session, err := h.gameService.PlayStep(c.Request.Context(), player)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    sessionView(session),
	})
}

func (h *GameHandler) CashOut(c *gin.Context) {
	player := c.GetString("player")

	if !h.allow(c, player, "cashout", services.DefaultRateLimitCashouts) {
		return
	}

	session, err := h.gameService.CashOut(c.Request.Context(), player)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    sessionView(session),
	})
}

// CurrentGame returns the live session, falling back to the Redis snapshot
// for a client returning after a reload. The snapshot is marked stale: the
// ledger must be re-queried before it can be trusted.
func (h *GameHandler) CurrentGame(c *gin.Context) {
	player := c.GetString("player")

	if session, ok := h.gameService.CurrentSession(player); ok {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"game":    sessionView(session),
			"stale":   false,
		})
		return
	}

	if h.redisService != nil {
		snapshot, err := h.redisService.GetSessionSnapshot(c.Request.Context(), player)
		if err == nil && snapshot != nil {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"game":    sessionView(snapshot),
				"stale":   true,
			})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{
		"error": "No game found",
	})
}

func (h *GameHandler) GetHistory(c *gin.Context) {
	records, err := h.historyService.RecentGames(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to reconstruct game history",
			"details": err.Error(),
		})
		return
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if limit < len(records) {
			records = records[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   records,
		"count":   len(records),
	})
}

func (h *GameHandler) GetArchivedGame(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game id"})
		return
	}

	if h.archiveService == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Archive not configured"})
		return
	}

	game, err := h.archiveService.GetGame(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch archived game",
			"details": err.Error(),
		})
		return
	}
	if game == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not archived"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    game,
	})
}

func (h *GameHandler) GetTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tiers":   models.TierConfigs,
	})
}

func (h *GameHandler) allow(c *gin.Context, player, action string, limit int) bool {
	if h.redisService == nil {
		return true
	}

	allowed, err := h.redisService.CheckRateLimit(c.Request.Context(), player, action, limit, time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
		return false
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
		return false
	}

	return true
}

func sessionView(s *models.GameSession) gin.H {
	view := gin.H{
		"session_id":   s.SessionID,
		"player":       s.Player,
		"difficulty":   s.Difficulty,
		"stake":        s.Stake,
		"current_step": s.CurrentStep,
		"max_steps":    models.TierConfigs[s.Difficulty].MaxSteps,
		"multiplier":   models.FormatMultiplier(s.CurrentMultiplier()),
		"status":       s.Status,
		"step_history": s.StepHistory,
		"started_at":   s.StartedAt,
	}

	if s.Status == models.GameStatusCashedOut {
		view["payout"] = s.Payout
	}
	if s.Terminal() {
		view["ended_at"] = s.EndedAt
	}

	return view
}

// respondLedgerError maps the ledger error taxonomy onto HTTP responses.
// Transport failures expose whether the transaction may already be on the
// wire so the client can offer a manual retry instead of blindly
// resubmitting a stake.
func respondLedgerError(c *gin.Context, err error) {
	var validation *ledger.ValidationError
	var authorization *ledger.AuthorizationError
	var insolvency *ledger.InsolvencyError
	var mismatch *ledger.ProtocolMismatchError
	var transport *ledger.TransportError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Reason,
		})
	case errors.As(err, &authorization):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "You don't own this game",
			"details": authorization.Reason,
		})
	case errors.As(err, &insolvency):
		c.JSON(http.StatusConflict, gin.H{
			"error":       "The game vault cannot cover this payout right now. Try again shortly or play a smaller game.",
			"recoverable": true,
			"details":     insolvency.Reason,
		})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Ledger contract mismatch",
			"details": mismatch.Error(),
		})
	case errors.As(err, &transport):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":              "Ledger request failed",
			"possibly_broadcast": transport.Broadcast,
			"retry_safe":         !transport.Broadcast,
			"details":            transport.Error(),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Request failed",
			"details": err.Error(),
		})
	}
}
