package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MaxVideoChunkSize is the largest id batch the videos endpoint accepts.
const MaxVideoChunkSize = 50

type Config struct {
	// YouTube Data API
	APIKey             string
	RequestsPerSecond  float64
	ConcurrentRequests int
	MaxRetries         int

	// Harvest
	DataDir        string
	InputCSV       string
	CutoffDate     time.Time
	BatchSize      int
	VideoChunkSize int
	Workers        int

	// Combine
	CombineChunkSize int

	// Optional backing services
	DatabaseURL   string
	RedisURL      string
	MigrationsDir string

	// Status server
	StatusPort      string
	StatusJWTSecret string
	FrontendURL     string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	dataDir := getEnvOrDefault("DATA_DIR", "./data")

	cfg := &Config{
		APIKey:             os.Getenv("API_KEY"),
		RequestsPerSecond:  getEnvAsFloatOrDefault("YOUTUBE_REQUESTS_PER_SECOND", 5),
		ConcurrentRequests: getEnvAsIntOrDefault("YOUTUBE_CONCURRENT_REQUESTS", 4),
		MaxRetries:         getEnvAsIntOrDefault("YOUTUBE_MAX_RETRIES", 3),
		DataDir:            dataDir,
		InputCSV:           getEnvOrDefault("INPUT_CSV", filepath.Join(dataDir, "data_csv", "playlist_id.csv")),
		CutoffDate:         getEnvAsTimeOrDefault("CUTOFF_DATE", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		BatchSize:          getEnvAsIntOrDefault("BATCH_SIZE", 50),
		VideoChunkSize:     clamp(getEnvAsIntOrDefault("VIDEO_CHUNK_SIZE", MaxVideoChunkSize), 1, MaxVideoChunkSize),
		Workers:            getEnvAsIntOrDefault("HARVEST_WORKERS", 1),
		CombineChunkSize:   getEnvAsIntOrDefault("COMBINE_CHUNK_SIZE", 1000),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		MigrationsDir:      getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		StatusPort:         getEnvOrDefault("STATUS_PORT", ""),
		StatusJWTSecret:    getEnvOrDefault("STATUS_JWT_SECRET", ""),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "*"),
	}

	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return cfg
}

// RequireAPIKey fails when no credential for the remote service is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("required environment variable API_KEY is not set")
	}
	return nil
}

// RunDir is the run-scoped checkpoint directory for the given run date (YYYY-MM-DD).
func (c *Config) RunDir(runDate string) string {
	return filepath.Join(c.DataDir, "data_json", "batch_"+runDate)
}

// CombinedPath is where the combiner writes the consolidated document of one artifact kind.
func (c *Config) CombinedPath(kind, runDate string) string {
	return filepath.Join(c.DataDir, "data_json", fmt.Sprintf("%s_%s.json", kind, runDate))
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

// getEnvAsTimeOrDefault accepts RFC 3339 or a bare YYYY-MM-DD date, both read as UTC.
func getEnvAsTimeOrDefault(key string, defaultVal time.Time) time.Time {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t.UTC()
	}
	return defaultVal
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
