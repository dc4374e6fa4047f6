package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"promptday-backend/internal/models"
	"promptday-backend/internal/services"
)

type ContestHandler struct {
	contestEngine *services.ContestEngine
	redisService  *services.RedisService
}

func NewContestHandler(contestEngine *services.ContestEngine, redisService *services.RedisService) *ContestHandler {
	return &ContestHandler{
		contestEngine: contestEngine,
		redisService:  redisService,
	}
}

func (h *ContestHandler) GetStatus(c *gin.Context) {
	address := c.GetString("address")

	status, err := h.contestEngine.Status(c.Request.Context(), address, time.Now())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Failed to resolve status",
			"code":      "store_unavailable",
			"retryable": true,
			"details":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"state":            status.State,
		"canPlay":          status.CanPlay,
		"promptsRemaining": status.PromptsRemaining,
		"hasStaked":        status.HasStaked,
		"needsToStake":     status.NeedsToStake,
		"scoreSubmitted":   status.ScoreSubmitted,
		"contestId":        status.DayKey,
	})
}

func (h *ContestHandler) Stake(c *gin.Context) {
	address := c.GetString("address")

	var req models.StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	status, err := h.contestEngine.RecordStake(c.Request.Context(), address, req.ContestID, req.TxHash, time.Now())
	if err != nil {
		if errors.Is(err, services.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Failed to record stake",
				"code":      "store_unavailable",
				"retryable": true,
				"details":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid contest ID",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "User status updated successfully",
		"state":            status.State,
		"promptsRemaining": status.PromptsRemaining,
	})
}

func (h *ContestHandler) SubmitAttempt(c *gin.Context) {
	address := c.GetString("address")

	var req models.AttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid prompt",
			"details": err.Error(),
		})
		return
	}

	attempt, remaining, err := h.contestEngine.SubmitPrompt(c.Request.Context(), address, req.PromptText, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotStaked):
			c.JSON(http.StatusConflict, gin.H{
				"error": "You need to stake before playing today's contest",
				"code":  "needs_stake",
			})
		case errors.Is(err, services.ErrNoAttemptsRemaining):
			c.JSON(http.StatusConflict, gin.H{
				"error": "No prompts remaining for today",
				"code":  "no_attempts_remaining",
			})
		case errors.Is(err, services.ErrGenerationFailed):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":     "Error generating image",
				"code":      "generation_failed",
				"retryable": true,
				"details":   err.Error(),
			})
		case errors.Is(err, services.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Failed to record attempt",
				"code":      "store_unavailable",
				"retryable": true,
				"details":   err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to submit prompt",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"promptsRemaining": remaining,
		"attempt": gin.H{
			"promptText":         attempt.PromptText,
			"imageUrl":           attempt.ImageURL,
			"closenessScore":     attempt.ClosenessScore,
			"scoreIndeterminate": attempt.ScoreIndeterminate,
		},
	})
}

func (h *ContestHandler) SubmitScore(c *gin.Context) {
	address := c.GetString("address")

	var req models.SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	score, index, err := h.contestEngine.Finalize(c.Request.Context(), address, req.TxHash, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadySubmitted):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Score already submitted for today",
				"code":  "already_submitted",
			})
		case errors.Is(err, services.ErrNotEligibleToSubmit):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Use all your prompts before submitting a score",
				"code":  "not_eligible_to_submit",
			})
		default:
			if req.TxHash != "" {
				// The chain transaction went through but the record write
				// did not. This needs manual reconciliation; retrying would
				// double-submit to the ledger.
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":     "Your on-chain submission succeeded but recording it failed. Please contact support; do not resubmit.",
					"code":      "ledger_succeeded_record_failed",
					"retryable": false,
					"tx_hash":   req.TxHash,
					"details":   err.Error(),
				})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Failed to submit score",
				"code":      "store_unavailable",
				"retryable": true,
				"details":   err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Score submitted successfully",
		"score":        score,
		"attemptIndex": index,
	})
}

func (h *ContestHandler) GetContestData(c *gin.Context) {
	address := c.GetString("address")

	record, err := h.contestEngine.ContestData(c.Request.Context(), address, time.Now())
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No contest found for today"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Failed to fetch contest data",
			"code":      "store_unavailable",
			"retryable": true,
			"details":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"promptsRemaining": record.PromptsRemaining,
		"prompts":          record.Prompts,
		"scoreSubmitted":   record.ScoreSubmitted,
	})
}

func (h *ContestHandler) GetTodaysImage(c *gin.Context) {
	dayKey := models.DayKey(time.Now())

	imageURL, err := h.redisService.GetDailyImage(c.Request.Context(), dayKey)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to fetch today's image",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
}

func (h *ContestHandler) GetContestIDs(c *gin.Context) {
	tier, err := models.ValidateTier(c.Query("tier"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid contest tier",
			"details": err.Error(),
		})
		return
	}

	ids, err := h.redisService.GetContestIDs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to fetch contest IDs",
			"details": err.Error(),
		})
		return
	}

	if ids == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No contest IDs found"})
		return
	}

	var contestID string
	switch tier {
	case models.TierBeginner:
		contestID = ids.Beginner
	case models.TierAdvanced:
		contestID = ids.Advanced
	case models.TierPro:
		contestID = ids.Pro
	}

	c.JSON(http.StatusOK, gin.H{
		"contestId": contestID,
		"updatedAt": ids.UpdatedAt,
	})
}
