package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mines-backend/internal/services"
)

type UserHandler struct {
	redisService *services.RedisService
}

func NewUserHandler(redisService *services.RedisService) *UserHandler {
	return &UserHandler{redisService: redisService}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	profile, err := h.redisService.Profile(userID.(int64))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}

	wallet, err := h.redisService.GetWallet(userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get wallet"})
		return
	}

	bonusCredit, err := h.redisService.BonusCredit(userID.(int64))
	if err != nil {
		bonusCredit = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"user": profile,
		"wallet": gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
		},
		"bonus_credit": bonusCredit,
	})
}
