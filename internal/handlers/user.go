package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"promptday-backend/internal/services"
)

type UserHandler struct {
	redisService  *services.RedisService
	contestEngine *services.ContestEngine
}

func NewUserHandler(redisService *services.RedisService, contestEngine *services.ContestEngine) *UserHandler {
	return &UserHandler{
		redisService:  redisService,
		contestEngine: contestEngine,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	address := c.GetString("address")
	sessionID := c.GetString("session_id")

	session, err := h.redisService.GetUserSession(c.Request.Context(), address, sessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return
	}

	user, err := h.redisService.GetUser(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	status, err := h.contestEngine.Status(c.Request.Context(), address, time.Now())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to resolve contest status",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
		"session": gin.H{
			"session_id":    session.SessionID,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessed,
		},
		"contest": status,
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	address := c.GetString("address")
	sessionID := c.GetString("session_id")

	if err := h.redisService.DeleteUserSession(c.Request.Context(), address, sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
