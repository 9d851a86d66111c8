package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	AuthJWTSecret    string
	PaymentJWTSecret string

	NanoBananaAPIKey  string
	NanoBananaBaseURL string
	NanoBananaModel   string
	CallbackBaseURL   string
	PollAttempts      int
	PollInterval      time.Duration

	GroqAPIKey  string
	GroqModel   string
	GroqBaseURL string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	StorageDriver      string
	StorageBasePath    string
	StorageBaseURL     string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioPublicBaseURL string
	MinioUseSSL        bool

	CleanupInterval  time.Duration
	CleanupRetention time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		AuthJWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
		PaymentJWTSecret: os.Getenv("PAYMENT_JWT_SECRET"),

		NanoBananaAPIKey:  os.Getenv("NANO_BANANA_API_KEY"),
		NanoBananaBaseURL: getEnv("NANO_BANANA_BASE_URL", "https://api.kie.ai/api/v1/jobs"),
		NanoBananaModel:   getEnv("NANO_BANANA_MODEL", "nano-banana-pro"),
		CallbackBaseURL:   os.Getenv("CALLBACK_BASE_URL"),
		PollAttempts:      getEnvInt("POLL_MAX_ATTEMPTS", 60),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),

		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),
		GroqModel:   getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),

		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),

		StorageDriver:      getEnv("STORAGE_DRIVER", "minio"),
		StorageBasePath:    getEnv("STORAGE_BASE_PATH", "./data/uploads"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		MinioEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:        getEnv("MINIO_BUCKET", "comic-uploads"),
		MinioPublicBaseURL: os.Getenv("MINIO_PUBLIC_BASE_URL"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", false),

		CleanupInterval:  time.Minute * time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)),
		CleanupRetention: time.Hour * time.Duration(getEnvInt("CLEANUP_RETENTION_HOURS", 24)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	if cfg.PaymentJWTSecret == "" {
		return nil, fmt.Errorf("PAYMENT_JWT_SECRET is required")
	}

	if cfg.StorageDriver != "minio" && cfg.StorageDriver != "filesystem" {
		return nil, fmt.Errorf("STORAGE_DRIVER must be minio or filesystem, got %q", cfg.StorageDriver)
	}

	if cfg.StorageDriver == "minio" && cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_DRIVER=minio")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
