package main

import (
	"context"
	"log"
	"time"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/config"
	"docqa-platform/internal/queue"
	"docqa-platform/internal/telemetry"
	"docqa-platform/internal/vectorstore/qdrant"
	"docqa-platform/services"

	"github.com/hibiken/asynq"
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
	defer mongoClient.Disconnect(context.Background())

	// Connect to the vector store
	vectors, err := qdrant.NewStore(cfg.QdrantAddr)
	if err != nil {
		log.Fatal("Failed to connect to Qdrant:", err)
	}
	defer vectors.Close()

	// Initialize the embedding client
	embedder, err := ai.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Printf("Metrics init failed, continuing without: %v", err)
		metrics = nil
	}

	documents := services.NewMongoDocumentStore(mongoClient, cfg.DBName)
	pipeline := services.NewIngestionPipeline(
		services.NewExtractor(),
		services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		vectors,
		documents,
		metrics,
	)

	// Periodic sweep of storage files no document row references
	sweepInterval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		sweepInterval = time.Hour
	}
	sweepMinAge, err := time.ParseDuration(cfg.SweepMinAge)
	if err != nil {
		sweepMinAge = 24 * time.Hour
	}
	sweeper := services.NewStorageSweeper(cfg.StorageDir, sweepMinAge, documents)
	if err := sweeper.Start(sweepInterval); err != nil {
		log.Printf("Failed to start storage sweeper: %v", err)
	}
	defer sweeper.Stop()

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				// Ingestion does not retry, so this log line is the
				// terminal record of a failed upload.
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pipeline)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessIngest)

	log.Println("Starting ingestion worker...")
	log.Printf("   Queues: critical(6), default(3), low(1)")
	log.Printf("   Redis: %s", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
