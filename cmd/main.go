package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/telemetry"
	"docqa-platform/internal/vectorstore/qdrant"
	"docqa-platform/middleware"
	"docqa-platform/routes"
	"docqa-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Connect to Redis (sessions, rate limits, task queue)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	// Connect to the vector store
	vectors, err := qdrant.NewStore(cfg.QdrantAddr)
	if err != nil {
		log.Fatal("Failed to connect to Qdrant:", err)
	}
	defer vectors.Close()

	// Model clients
	embedder, err := ai.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	// Tracing and metrics
	shutdownTracer, err := telemetry.InitTracer("docqa-platform")
	if err != nil {
		log.Printf("Tracing init failed, continuing without: %v", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Printf("Metrics init failed, continuing without: %v", err)
		metrics = nil
	}

	// Task queue producer
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Services
	documents := services.NewMongoDocumentStore(mongoClient, cfg.DBName)
	retriever := services.NewRetriever(embedder, vectors, metrics)
	toolset := services.NewToolset(retriever)
	composer := services.NewComposer(retriever, toolset, geminiClient, metrics)
	export := services.NewExportService(documents)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.TracingMiddleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Middleware and routes
	authMiddleware := middleware.NewAuthMiddleware(cfg, rdb)
	router.Use(middleware.EnrichTrace())

	routes.SetupAuthRoutes(router, cfg, mongoClient, rdb, authMiddleware)
	routes.SetupDocumentRoutes(router, routes.DocumentDeps{
		Config:    cfg,
		Documents: documents,
		Vectors:   vectors,
		Queue:     queueClient,
		Export:    export,
	}, authMiddleware)
	routes.SetupChatRoutes(router, composer, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
