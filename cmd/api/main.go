package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/config"
	"trdelnik-backend/internal/handlers"
	"trdelnik-backend/internal/ledger"
	"trdelnik-backend/internal/middleware"
	"trdelnik-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	rpcClient := ledger.NewRPCClient(cfg.LedgerRPCURL, cfg.LedgerContract, cfg.LedgerQueryWindow)
	adapter := ledger.NewAdapter(rpcClient, ledger.Variant(cfg.LedgerVariant))

	var archiveService *services.ArchiveService
	if cfg.AkaveEndpoint != "" && cfg.AkaveBucket != "" {
		archiveService, err = services.NewArchiveService(context.Background(), cfg)
		if err != nil {
			logrus.Fatalf("Failed to set up Akave archive: %v", err)
		}
	} else {
		logrus.Warn("Akave archive not configured, finished games will not be archived")
	}

	meritsService := services.NewMeritsService(cfg)
	jwtService := services.NewJWTService(cfg)

	gameService := services.NewGameService(adapter, redisService, archiveService, meritsService)
	historyService := services.NewHistoryService(
		rpcClient,
		redisService,
		cfg.HistoryWindowBlocks,
		cfg.HistoryMaxRecords,
		time.Duration(cfg.HistoryCacheTTLSec)*time.Second,
	)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logrus.Fatalf("Failed to create scheduler: %v", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Duration(cfg.HistoryRefreshSec)*time.Second),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := historyService.RefreshCache(ctx); err != nil {
				logrus.Warnf("history cache refresh failed: %v", err)
			}
		}),
	)
	if err != nil {
		logrus.Fatalf("Failed to schedule history refresh: %v", err)
	}
	scheduler.Start()
	defer scheduler.Shutdown()

	wsHandler := handlers.NewWebSocketHandler(gameService)
	gameService.SetNotify(wsHandler.NotifySession)

	authHandler := handlers.NewAuthHandler(jwtService, gameService)
	gameHandler := handlers.NewGameHandler(gameService, historyService, archiveService, redisService)
	meritsHandler := handlers.NewMeritsHandler(meritsService)

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

	router.GET("/auth/wallet", authHandler.WalletAuth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", authHandler.GetCurrentPlayer)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		games := protected.Group("/games")
		{
			games.POST("/start", gameHandler.StartGame)
			games.POST("/step", gameHandler.PlayStep)
			games.POST("/cashout", gameHandler.CashOut)
			games.GET("/current", gameHandler.CurrentGame)
			games.GET("/tiers", gameHandler.GetTiers)
			games.GET("/history", gameHandler.GetHistory)
			games.GET("/archive/:id", gameHandler.GetArchivedGame)
		}

		protected.GET("/merits/:address", meritsHandler.GetUserRanking)
	}

	logrus.Infof("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
