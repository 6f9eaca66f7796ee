package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	// S3
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool

	// ClamAV
	ClamdSocketPath string
	ClamdTimeout    time.Duration

	// OCR sidecar
	OCREndpoint string
	OCRTimeout  time.Duration

	// Pipeline worker
	ScratchDir        string
	WorkerConcurrency int
	QueueMaxAttempts  int
	QueueBackoffBase  time.Duration
	QueueBackoffCap   time.Duration
	QueuePollInterval time.Duration

	// Upload limits
	MaxFileSize   int64
	PresignExpiry time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", "./data/docvault.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		S3Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:      getEnv("S3_BUCKET_NAME", "documents"),
		S3UseSSL:          getEnv("S3_USE_SSL", "false") == "true",
		ClamdSocketPath:   getEnv("CLAMD_SOCKET", "/var/run/clamav/clamd.ctl"),
		ClamdTimeout:      getEnvDuration("CLAMD_TIMEOUT", 60*time.Second),
		OCREndpoint:       getEnv("OCR_ENDPOINT", "http://localhost:8884/tesseract"),
		OCRTimeout:        getEnvDuration("OCR_TIMEOUT", 120*time.Second),
		ScratchDir:        getEnv("SCRATCH_DIR", os.TempDir()),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		QueueMaxAttempts:  getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
		QueueBackoffBase:  getEnvDuration("QUEUE_BACKOFF_BASE", 2*time.Second),
		QueueBackoffCap:   getEnvDuration("QUEUE_BACKOFF_CAP", 600*time.Second),
		QueuePollInterval: getEnvDuration("QUEUE_POLL_INTERVAL", time.Second),
		MaxFileSize:       500 * 1024 * 1024,
		PresignExpiry:     getEnvDuration("PRESIGN_EXPIRY", time.Hour),
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
