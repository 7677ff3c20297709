package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server, worker and CLI read from the environment.
type Config struct {
	Port        string
	LogLevel    string
	StoreDriver string // "mongo" or "memory"

	MongoURI string
	MongoDB  string

	JWTSecret   string
	TokenExpiry time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost     string
	SMTPPort     string
	SMTPSender   string
	SMTPPassword string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
	UploadDir      string

	AdminPasswordHash string
	SuperadminWallets []string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendURL        string

	CORSOrigins []string

	ClaimHold        time.Duration
	RateLimitPerMin  int
	RateLimitBurst   int
	WorkerConcurrent int
}

const (
	defaultPort        = "8080"
	defaultMongoDB     = "food_rescue"
	defaultTokenExpiry = 24 * time.Hour
	defaultClaimHold   = 30 * time.Minute
	defaultRatePerMin  = 30
	defaultRateBurst   = 10
	defaultConcurrency = 5

	devJWTSecret = "dev-secret-change-me"
)

// LoadConfig reads .env (if present) and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:        readEnv("PORT", defaultPort),
		LogLevel:    readEnv("LOG_LEVEL", "info"),
		StoreDriver: strings.ToLower(readEnv("STORE_DRIVER", "mongo")),

		MongoURI: readEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  readEnv("MONGO_DB", defaultMongoDB),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenExpiry: parseDuration("TOKEN_EXPIRY", defaultTokenExpiry),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt("REDIS_DB", 0),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     readEnv("SMTP_PORT", "587"),
		SMTPSender:   os.Getenv("SMTP_EMAIL"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    readEnv("MINIO_BUCKET", "food-images"),
		MinioUseSSL:    parseBool("MINIO_USE_SSL", false),
		MinioPublicURL: os.Getenv("MINIO_PUBLIC_URL"),
		UploadDir:      readEnv("UPLOAD_DIR", "./uploads"),

		AdminPasswordHash: os.Getenv("ADMIN_SIGNUP_PASSWORD_HASH"),
		SuperadminWallets: parseList("SUPERADMIN_WALLETS", ""),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		FrontendURL:        readEnv("FRONTEND_URL", "http://localhost:3000"),

		CORSOrigins: parseList("CORS_ORIGINS", "http://localhost:3000"),

		ClaimHold:        parseDuration("CLAIM_HOLD", defaultClaimHold),
		RateLimitPerMin:  parseInt("RATE_LIMIT_PER_MINUTE", defaultRatePerMin),
		RateLimitBurst:   parseInt("RATE_LIMIT_BURST", defaultRateBurst),
		WorkerConcurrent: parseInt("WORKER_CONCURRENCY", defaultConcurrency),
	}

	if cfg.StoreDriver != "memory" {
		cfg.StoreDriver = "mongo"
	}
	if cfg.ClaimHold <= 0 {
		cfg.ClaimHold = defaultClaimHold
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = defaultTokenExpiry
	}
	if cfg.WorkerConcurrent <= 0 {
		cfg.WorkerConcurrent = defaultConcurrency
	}
	if cfg.JWTSecret == "" && cfg.StoreDriver == "memory" {
		logrus.Warn("JWT_SECRET is not set; tokens are signed with an insecure development secret")
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}

// ErrMissingJWTSecret is returned by CheckJWTSecret when tokens cannot be
// signed safely.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when STORE_DRIVER is not memory")

// CheckJWTSecret fails when a persistent deployment has no signing secret.
// Only the in-memory driver falls back to the development secret.
func (c *Config) CheckJWTSecret() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// GoogleEnabled reports whether the OAuth login routes can be served.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// MinioEnabled reports whether images go to object storage instead of disk.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
