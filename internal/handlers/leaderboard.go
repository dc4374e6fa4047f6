package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"promptday-backend/internal/models"
	"promptday-backend/internal/services"
)

type LeaderboardHandler struct {
	redisService *services.RedisService
}

func NewLeaderboardHandler(redisService *services.RedisService) *LeaderboardHandler {
	return &LeaderboardHandler{redisService: redisService}
}

// GetLeaderboard returns submitted scores for a day, best first. Defaults to
// today; historical days are addressable by day key.
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	dayKey := c.DefaultQuery("day", models.DayKey(time.Now()))
	if _, err := models.ParseDayKey(dayKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid day key",
			"details": err.Error(),
		})
		return
	}

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	entries, err := h.redisService.GetLeaderboard(c.Request.Context(), dayKey, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to fetch leaderboard",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"day":         dayKey,
		"leaderboard": entries,
		"count":       len(entries),
	})
}
