package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mines-backend/internal/config"
	"mines-backend/internal/handlers"
	"mines-backend/internal/middleware"
	"mines-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		log.Fatalf("Failed to load game tuning: %v", err)
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)

	engine := services.NewMinesEngine(
		redisService, // accounts
		redisService, // game store
		redisService, // risk config
		redisService, // event feed
		redisService, // history ledger
		tuning,
	)

	feedHandler := handlers.NewFeedHandler(redisService)
	go feedHandler.Run(context.Background())

	authHandler := handlers.NewAuthHandler(redisService, jwtService)
	userHandler := handlers.NewUserHandler(redisService)
	gameHandler := handlers.NewGameHandler(engine, redisService)

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

	router.POST("/auth/login", authHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)

		protected.GET("/ws", feedHandler.HandleWebSocket)

		games := protected.Group("/games")
		{
			games.GET("/balance", gameHandler.GetBalance)
			games.GET("/history", gameHandler.GetBalanceHistory)
			games.GET("/recent", gameHandler.RecentGames)

			mines := games.Group("/mines")
			{
				mines.POST("/start", gameHandler.Start)
				mines.POST("/reveal", gameHandler.Reveal)
				mines.POST("/cashout", gameHandler.CashOut)
				mines.GET("/state", gameHandler.GetState)
				mines.GET("/suggest", gameHandler.SuggestNextCell)
			}
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
