package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mdhv11/cardwiz/config"
	"github.com/mdhv11/cardwiz/handler"
	"github.com/mdhv11/cardwiz/middleware"
	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/pkg/cache"
	"github.com/mdhv11/cardwiz/pkg/logger"
	"github.com/mdhv11/cardwiz/repository"
	"github.com/mdhv11/cardwiz/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Database
	db, err := repository.Connect(&cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	cardRepo := repository.NewCardRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	advisorRepo := repository.NewAdvisorRepository(db)

	// Blob storage
	storage, err := service.NewMinioStorage(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	if err := storage.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure storage bucket", "error", err)
		os.Exit(1)
	}

	// Redis-backed cache and rate limit counters
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	appCache := newAppCache(redisClient, &cfg.Cache)
	counterStore := middleware.NewRedisCounterStore(redisClient)

	// Messaging backbone
	publisher := service.NewKafkaPublisher(&cfg.Kafka)
	defer publisher.Close()

	// AI backend
	aiClient := service.NewAIClient(&cfg.AI, appCache)

	// Services
	userService := service.NewUserService(userRepo, appCache, &cfg.Auth)
	cardService := service.NewCardService(cardRepo, appCache)
	transactionService := service.NewTransactionService(transactionRepo, appCache)
	advisorService := service.NewAdvisorService(advisorRepo)
	ingestionService := service.NewIngestionService(documentRepo, cardRepo, storage, aiClient, publisher, &cfg.AI)
	recommendService := service.NewRecommendationService(cardRepo, transactionRepo, aiClient, storage, appCache)

	// Handlers
	authHandler := handler.NewAuthHandler(userService)
	cardHandler := handler.NewCardHandler(cardService, ingestionService, recommendService)
	transactionHandler := handler.NewTransactionHandler(transactionService, recommendService)
	advisorHandler := handler.NewAdvisorHandler(advisorService)
	callbackHandler := handler.NewCallbackHandler(ingestionService, &cfg.AI)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(counterStore, &cfg.RateLimit, &cfg.Auth))

	// Health and info probes
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "cardwiz-user-service",
		})
	})

	// Ingestion callback from the analysis backend, secured by shared secret
	router.POST("/internal/ingestion-callback", callbackHandler.HandleIngestionCallback)

	// Public routes
	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.GET("/users/me", authHandler.Me)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		protected.GET("/cards", cardHandler.List)
		protected.POST("/cards", cardHandler.Create)
		protected.GET("/cards/:cardId", cardHandler.Get)
		protected.PUT("/cards/:cardId", cardHandler.Update)
		protected.DELETE("/cards/:cardId", cardHandler.Delete)
		protected.POST("/cards/documents/analyze", cardHandler.AnalyzeDocument)
		protected.POST("/cards/:cardId/documents/analyze", cardHandler.AnalyzeDocumentAsync)
		protected.GET("/cards/documents/:documentId/status", cardHandler.DocumentStatus)
		protected.POST("/cards/recommendations", cardHandler.Recommend)
		protected.POST("/cards/statement-missed-savings", cardHandler.StatementMissedSavings)
		protected.GET("/cards/knowledge-coverage", cardHandler.KnowledgeCoverage)

		protected.GET("/transactions", transactionHandler.List)
		protected.POST("/transactions", transactionHandler.Create)
		protected.POST("/transactions/validate", transactionHandler.Validate)
		protected.GET("/transactions/:transactionId", transactionHandler.Get)
		protected.PUT("/transactions/:transactionId", transactionHandler.Update)
		protected.DELETE("/transactions/:transactionId", transactionHandler.Delete)

		protected.GET("/advisor/messages", advisorHandler.History)
		protected.POST("/advisor/messages", advisorHandler.Append)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// newAppCache builds the versioned cache over Redis and registers the legacy
// payload shapes still found under older entries.
func newAppCache(client *redis.Client, cfg *config.CacheConfig) *cache.Cache {
	ttls := make(map[string]time.Duration, len(cfg.TTLMinutes))
	for name, minutes := range cfg.TTLMinutes {
		ttls[name] = time.Duration(minutes) * time.Minute
	}

	c := cache.New(
		cache.NewRedisStore(client),
		cfg.VersionPrefix,
		time.Duration(cfg.DefaultTTLMinutes)*time.Minute,
		ttls,
	)

	c.RegisterLegacyType("UserProfile", func() any { return &model.User{} })
	c.RegisterLegacyType("CardMetadata", func() any { return &model.Card{} })
	c.RegisterLegacyType("Recommendation", func() any { return &service.Recommendation{} })

	return c
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Window")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
