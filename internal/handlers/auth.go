package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mines-backend/internal/models"
	"mines-backend/internal/services"
)

type AuthHandler struct {
	redisService *services.RedisService
	jwtService   *services.JWTService
}

func NewAuthHandler(redisService *services.RedisService, jwtService *services.JWTService) *AuthHandler {
	return &AuthHandler{
		redisService: redisService,
		jwtService:   jwtService,
	}
}

// Login issues an API token for a player identity. Account management
// proper lives upstream; this endpoint just records the display profile
// the feed needs and mints the JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		PlayerID int64  `json:"player_id" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Avatar   string `json:"avatar"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	profile := &models.PlayerProfile{
		ID:     req.PlayerID,
		Name:   req.Name,
		Avatar: req.Avatar,
	}
	if err := h.redisService.StoreProfile(profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to store profile",
		})
		return
	}

	sessionID := uuid.New().String()
	token, err := h.jwtService.GenerateToken(req.PlayerID, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to issue token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    profile,
	})
}
