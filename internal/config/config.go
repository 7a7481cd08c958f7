package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	CORSOrigins  []string
	MaxFileSize  int64
	AllowedExts  []string
	BcryptCost   int
	ChunkSize    int
	ChunkOverlap int
	StorageDir   string

	// Redis (rate limiting, token revocation, task queue)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT token secrets
	AccessSecret  string
	RefreshSecret string

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Qdrant vector store
	QdrantAddr string

	// Gemini (generation + embeddings)
	GeminiAPIKey    string
	GeminiModel     string
	EmbeddingsModel string
	GeminiTier      string

	// Orphaned upload sweep
	SweepInterval string
	SweepMinAge   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/docqa"),
		DBName:       getEnv("DB_NAME", "docqa"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		AllowedExts:  strings.Split(getEnv("ALLOWED_EXTENSIONS", ".pdf,.doc,.docx,.txt,.md"), ","),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),
		ChunkSize:    getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		StorageDir:   getEnv("FILE_STORAGE_DIR", "./storage"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		QdrantAddr: getEnv("QDRANT_ADDR", "localhost:6334"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		SweepInterval: getEnv("STORAGE_SWEEP_INTERVAL", "1h"),
		SweepMinAge:   getEnv("STORAGE_SWEEP_MIN_AGE", "24h"),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("REFRESH_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be smaller than MAX_CHUNK_SIZE")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
