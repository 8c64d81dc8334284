package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the CLI and SDK wiring need from the
// environment.
type Config struct {
	APIBaseURL      string
	UserID          int
	SessionCookie   string
	CloudName       string
	UploadPreset    string
	UploadURL       string
	AMQPURL         string
	AMQPExchange    string
	Environment     string
	ReconcileDelay  time.Duration
	StubListenAddr  string
	StubPostgresDSN string
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIBaseURL:      getEnv("MSGSYNC_API_URL", "http://localhost:8086/api"),
		UserID:          getEnvInt("MSGSYNC_USER_ID", 0),
		SessionCookie:   getEnv("MSGSYNC_SESSION_COOKIE", ""),
		CloudName:       getEnv("MSGSYNC_CLOUDINARY_CLOUD_NAME", ""),
		UploadPreset:    getEnv("MSGSYNC_CLOUDINARY_UPLOAD_PRESET", "ml_default"),
		UploadURL:       getEnv("MSGSYNC_UPLOAD_URL", ""),
		AMQPURL:         getEnv("MSGSYNC_AMQP_URL", ""),
		AMQPExchange:    getEnv("MSGSYNC_AMQP_EXCHANGE", "marketplace.audit"),
		Environment:     getEnv("MSGSYNC_ENV", "development"),
		ReconcileDelay:  getEnvDuration("MSGSYNC_RECONCILE_DELAY", 500*time.Millisecond),
		StubListenAddr:  getEnv("MSGSYNC_STUB_ADDR", ":8086"),
		StubPostgresDSN: getEnv("MSGSYNC_STUB_DB_DSN", ""),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
