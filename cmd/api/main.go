package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"promptday-backend/internal/config"
	"promptday-backend/internal/handlers"
	"promptday-backend/internal/middleware"
	"promptday-backend/internal/models"
	"promptday-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)
	openaiService := services.NewOpenAIService(cfg)

	contestEngine := services.NewContestEngine(
		redisService,
		openaiService,
		openaiService,
		cfg.AttemptBudget,
		cfg.ExternalCallTimeout,
	)

	wsHandler := handlers.NewWebSocketHandler(redisService)
	contestEngine.SetBroadcaster(wsHandler)

	// Rotate tier contest ids when the UTC day rolls over.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		ensure := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if _, err := redisService.EnsureContestIDs(ctx, models.DayKey(time.Now())); err != nil {
				log.Printf("Failed to ensure contest IDs: %v", err)
			}
		}

		ensure()
		for range ticker.C {
			ensure()
		}
	}()

	authHandler := handlers.NewAuthHandler(redisService, jwtService)
	userHandler := handlers.NewUserHandler(redisService, contestEngine)
	contestHandler := handlers.NewContestHandler(contestEngine, redisService)
	leaderboardHandler := handlers.NewLeaderboardHandler(redisService)
	adminHandler := handlers.NewAdminHandler(redisService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/wallet", authHandler.Authenticate)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		contest := protected.Group("/contest")
		{
			contest.GET("/status", contestHandler.GetStatus)
			contest.POST("/stake", contestHandler.Stake)
			contest.POST("/attempts", contestHandler.SubmitAttempt)
			contest.POST("/submit", contestHandler.SubmitScore)
			contest.GET("/today", contestHandler.GetContestData)
			contest.GET("/image", contestHandler.GetTodaysImage)
			contest.GET("/ids", contestHandler.GetContestIDs)
		}

		protected.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.AdminToken))
	{
		admin.POST("/contest-ids", adminHandler.RotateContestIDs)
		admin.POST("/daily-image", adminHandler.SetDailyImage)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
