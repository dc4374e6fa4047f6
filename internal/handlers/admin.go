package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"promptday-backend/internal/models"
	"promptday-backend/internal/services"
)

type AdminHandler struct {
	redisService *services.RedisService
}

func NewAdminHandler(redisService *services.RedisService) *AdminHandler {
	return &AdminHandler{redisService: redisService}
}

// RotateContestIDs mints fresh contest identifiers for every tier.
func (h *AdminHandler) RotateContestIDs(c *gin.Context) {
	ids := models.NewContestIDs(models.DayKey(time.Now()))

	if err := h.redisService.SetContestIDs(c.Request.Context(), ids); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Error setting contest IDs",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Contest IDs updated successfully",
		"contestIds": ids,
	})
}

// SetDailyImage sets the target image for a day (today when day is omitted).
func (h *AdminHandler) SetDailyImage(c *gin.Context) {
	var req struct {
		ImageURL string `json:"imageUrl" binding:"required"`
		Day      string `json:"day"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	dayKey := req.Day
	if dayKey == "" {
		dayKey = models.DayKey(time.Now())
	} else if _, err := models.ParseDayKey(dayKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid day key",
			"details": err.Error(),
		})
		return
	}

	if err := h.redisService.SetDailyImage(c.Request.Context(), dayKey, req.ImageURL); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to set daily image",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"day":      dayKey,
		"imageUrl": req.ImageURL,
	})
}
