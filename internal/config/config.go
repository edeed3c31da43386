package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/localnerve/memebase/internal/types"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        string
	CORSOrigins string
	LogLevel    string
	LogFormat   string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlite-pure, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Auth configuration
	JWTSecret        string
	JWTExpiry        time.Duration
	JWTRefreshWindow time.Duration
	AdminTeamID      string

	// File storage configuration
	StorageDir       string
	MaxFileSize      int64
	AllowedFileTypes []string

	// ImageKit configuration
	ImageKitPublicKey   string
	ImageKitPrivateKey  string
	ImageKitURLEndpoint string
	ImageKitAPIURL      string
	ImageKitUploadURL   string

	// Translation configuration
	TranslateURL   string
	TranslateRate  float64
	TranslateBurst int

	// Functions configuration
	TrendingInterval    time.Duration
	TrendingConcurrency int
	TrendingCollections []string
	BatchChunkSize      int
}

// Load loads configuration from environment variables.
// A .env file is read first when present (ENV_FILE overrides the path).
func Load() (*Config, error) {
	if err := loadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                getEnv("PORT", "3000"),
		CORSOrigins:         getEnv("CORS_ORIGINS", "*"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		DBType:              getEnv("DB_TYPE", "mysql"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "3306"),
		DBDatabase:          getEnv("DB_DATABASE", ""),
		DBUser:              getEnv("DB_USER", ""),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:   getEnvAsInt("DB_CONNECTION_LIMIT", 10),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpiry:           getEnvAsDuration("JWT_EXPIRY", 15*time.Minute),
		JWTRefreshWindow:    getEnvAsDuration("JWT_REFRESH_WINDOW", 24*time.Hour),
		AdminTeamID:         getEnv("ADMIN_TEAM_ID", "admins"),
		StorageDir:          getEnv("STORAGE_DIR", "./storage"),
		MaxFileSize:         int64(getEnvAsInt("MAX_FILE_SIZE", 10*1024*1024)),
		AllowedFileTypes:    getEnvAsList("ALLOWED_FILE_TYPES", []string{"image/jpeg", "image/png", "image/gif", "image/webp", "video/mp4", "video/webm"}),
		ImageKitPublicKey:   getEnv("IMAGEKIT_PUBLIC_KEY", ""),
		ImageKitPrivateKey:  getEnv("IMAGEKIT_PRIVATE_KEY", ""),
		ImageKitURLEndpoint: getEnv("IMAGEKIT_URL_ENDPOINT", ""),
		ImageKitAPIURL:      getEnv("IMAGEKIT_API_URL", "https://api.imagekit.io/v1"),
		ImageKitUploadURL:   getEnv("IMAGEKIT_UPLOAD_URL", "https://upload.imagekit.io/api/v1/files/upload"),
		TranslateURL:        getEnv("TRANSLATE_URL", "https://translate.googleapis.com/translate_a/single"),
		TranslateRate:       getEnvAsFloat("TRANSLATE_RATE", 5),
		TranslateBurst:      getEnvAsInt("TRANSLATE_BURST", 10),
		TrendingInterval:    getEnvAsDuration("TRENDING_INTERVAL", time.Hour),
		TrendingConcurrency: getEnvAsInt("TRENDING_CONCURRENCY", 8),
		TrendingCollections: getEnvAsList("TRENDING_COLLECTIONS", []string{"tags", "objects", "moods"}),
		BatchChunkSize:      getEnvAsInt("BATCH_CHUNK_SIZE", 25),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.DBDatabase == "" {
		return types.NewConfigError("DB_DATABASE", "DB_DATABASE is required")
	}
	if c.DBType != "sqlite" && c.DBType != "sqlite-pure" && c.DBUser == "" {
		return types.NewConfigError("DB_USER", "DB_USER is required")
	}
	if c.JWTSecret == "" {
		return types.NewConfigError("JWT_SECRET", "JWT_SECRET is required")
	}
	if c.AdminTeamID == "" {
		return types.NewConfigError("ADMIN_TEAM_ID", "ADMIN_TEAM_ID is required")
	}
	if c.MaxFileSize <= 0 {
		return types.NewConfigError("MAX_FILE_SIZE", "MAX_FILE_SIZE must be positive")
	}
	if c.TrendingConcurrency < 1 {
		c.TrendingConcurrency = 1
	}
	if c.BatchChunkSize < 1 {
		c.BatchChunkSize = 1
	}
	return nil
}

// ImageKitEnabled reports whether ImageKit credentials are configured
func (c *Config) ImageKitEnabled() bool {
	return c.ImageKitPrivateKey != "" && c.ImageKitPublicKey != ""
}

// loadEnvFile reads the given file, or ./.env when path is empty and the file exists
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
