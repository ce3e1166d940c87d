// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultMaxVideoSize is the upload ceiling for videos (70 MiB)
	DefaultMaxVideoSize int64 = 70 * 1024 * 1024
	// DefaultMaxImageSize is the upload ceiling for images (20 MiB)
	DefaultMaxImageSize int64 = 20 * 1024 * 1024
)

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Server     ServerConfig
	Logging    LoggingConfig
	CORS       CORSConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Media      MediaConfig
	Transcoder TranscoderConfig
	Requeue    RequeueConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds settings for validating session tokens issued by the identity provider
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// StorageConfig selects and configures the blob storage backend
type StorageConfig struct {
	Driver   string // "local" or "s3"
	BasePath string
	Bucket   string
	Region   string
	Endpoint string
}

// MediaConfig holds media limits and rendering settings
type MediaConfig struct {
	BaseURL        string
	MaxVideoSize   int64
	MaxImageSize   int64
	FormatsFile    string
	RenderCacheTTL time.Duration
}

// TranscoderConfig holds paths to the ffmpeg binaries
type TranscoderConfig struct {
	FFmpegPath  string
	FFprobePath string
}

// RequeueConfig controls the scheduler that re-enqueues stuck compression jobs
type RequeueConfig struct {
	Schedule   string
	StaleAfter time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080" // default port
	}
	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = serverPort

	// Logging configuration
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // default level
	}
	cfg.Logging.Level = logLevel

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWT.Secret = jwtSecret

	cfg.JWT.AccessTokenExpiry, err = durationEnv("JWT_ACCESS_TOKEN_EXPIRY", time.Hour)
	if err != nil {
		return nil, err
	}

	// Redis configuration
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost" // default
	}
	cfg.Redis.Host = redisHost

	cfg.Redis.Port, err = intEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, err
	}

	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD") // optional

	cfg.Redis.DB, err = intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	// Storage configuration
	cfg.Storage.Driver = strings.ToLower(os.Getenv("STORAGE_DRIVER"))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	cfg.Storage.BasePath = os.Getenv("MEDIA_BASE_PATH")
	cfg.Storage.Bucket = os.Getenv("S3_BUCKET")
	cfg.Storage.Region = os.Getenv("S3_REGION")
	cfg.Storage.Endpoint = os.Getenv("S3_ENDPOINT")

	switch cfg.Storage.Driver {
	case "local":
		if cfg.Storage.BasePath == "" {
			return nil, fmt.Errorf("MEDIA_BASE_PATH is required for local storage")
		}
	case "s3":
		if cfg.Storage.Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
		if cfg.Storage.Region == "" {
			cfg.Storage.Region = "us-east-1"
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: %s", cfg.Storage.Driver)
	}

	// Media configuration
	cfg.Media.BaseURL = strings.TrimRight(os.Getenv("MEDIA_BASE_URL"), "/")
	if cfg.Media.BaseURL == "" {
		cfg.Media.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	cfg.Media.MaxVideoSize, err = int64Env("MAX_VIDEO_SIZE", DefaultMaxVideoSize)
	if err != nil {
		return nil, err
	}
	cfg.Media.MaxImageSize, err = int64Env("MAX_IMAGE_SIZE", DefaultMaxImageSize)
	if err != nil {
		return nil, err
	}

	cfg.Media.FormatsFile = os.Getenv("FORMATS_FILE") // optional, built-in formats otherwise

	cfg.Media.RenderCacheTTL, err = durationEnv("RENDER_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	// Transcoder configuration
	cfg.Transcoder.FFmpegPath = os.Getenv("FFMPEG_PATH")
	if cfg.Transcoder.FFmpegPath == "" {
		cfg.Transcoder.FFmpegPath = "ffmpeg"
	}
	cfg.Transcoder.FFprobePath = os.Getenv("FFPROBE_PATH")
	if cfg.Transcoder.FFprobePath == "" {
		cfg.Transcoder.FFprobePath = "ffprobe"
	}

	// Requeue scheduler configuration
	cfg.Requeue.Schedule = os.Getenv("REQUEUE_SCHEDULE")
	if cfg.Requeue.Schedule == "" {
		cfg.Requeue.Schedule = "*/5 * * * *"
	}
	cfg.Requeue.StaleAfter, err = durationEnv("REQUEUE_STALE_AFTER", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

// RedisAddr returns the host:port address of Redis
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// parseOrigins parses a comma-separated list of origins, defaulting to all origins
func parseOrigins(raw string) []string {
	if raw == "" {
		// Default to allow all origins if not specified (for development)
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, origin := range parts {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func int64Env(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
