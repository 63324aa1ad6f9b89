package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mines-backend/internal/models"
	"mines-backend/internal/services"
)

type GameHandler struct {
	engine       *services.MinesEngine
	redisService *services.RedisService
}

func NewGameHandler(engine *services.MinesEngine, redisService *services.RedisService) *GameHandler {
	return &GameHandler{
		engine:       engine,
		redisService: redisService,
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSessionAlreadyActive),
		errors.Is(err, services.ErrCellAlreadyRevealed):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrInvalidParameter),
		errors.Is(err, services.ErrNothingToCashOut):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func (h *GameHandler) Start(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.engine.Start(userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"bonus":        result.Bonus,
		"last_balance": result.LastBalance,
		"new_balance":  result.NewBalance,
		"game":         result.Snapshot,
	})
}

func (h *GameHandler) Reveal(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.engine.Reveal(userID, req.Cell)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Outcome == services.OutcomeLose {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"type":    result.Outcome,
			"game":    result.Disclosure,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"type":     result.Outcome,
		"game":     result.Snapshot,
		"game_off": result.GameOff,
	})
}

func (h *GameHandler) CashOut(c *gin.Context) {
	userID := c.GetInt64("user_id")

	result, err := h.engine.CashOut(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"game":         result.Disclosure,
		"last_balance": result.LastBalance,
		"new_balance":  result.NewBalance,
	})
}

func (h *GameHandler) GetState(c *gin.Context) {
	userID := c.GetInt64("user_id")

	snapshot, err := h.engine.GetState(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    snapshot,
	})
}

func (h *GameHandler) SuggestNextCell(c *gin.Context) {
	userID := c.GetInt64("user_id")

	cell, err := h.engine.SuggestNextCell(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"num":     cell,
	})
}

func (h *GameHandler) RecentGames(c *gin.Context) {
	events, err := h.redisService.RecentGames()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to fetch recent games",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   events,
		"count":   len(events),
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redisService.GetWallet(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get wallet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
		},
	})
}

func (h *GameHandler) GetBalanceHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		limit = 50
	}

	entries, err := h.redisService.BalanceHistory(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get balance history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": entries,
		"count":   len(entries),
	})
}
