package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable through OTP_STORE_BACKEND.
const (
	BackendDynamo = "dynamo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	OTP OTPConfig

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	AllowedOrigins []string // CORS allowed origins

	// TrustProxyHeaders makes the rate limiter key clients by X-Forwarded-For /
	// X-Real-Ip. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// OTPConfig is the one-time code policy.
type OTPConfig struct {
	Backend       string
	TTL           time.Duration
	MaxAttempts   int
	CodeLength    int
	StoreTimeout  time.Duration
	SweepInterval time.Duration
	HashCost      int
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OneTimeCodes string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),
		OTP: OTPConfig{
			Backend:       strings.ToLower(getEnv("OTP_STORE_BACKEND", BackendDynamo)),
			TTL:           getEnvDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
			CodeLength:    getEnvInt("OTP_CODE_LENGTH", 6),
			StoreTimeout:  getEnvDuration("OTP_STORE_TIMEOUT", 3*time.Second),
			SweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", time.Minute),
			HashCost:      getEnvInt("OTP_HASH_COST", 10),
		},
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			OneTimeCodes: getEnv("DYNAMO_TABLE_ONE_TIME_CODES", "one_time_codes"),
		},
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisNamespace: getEnv("REDIS_NAMESPACE", "tribe"),
		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnv("SMTP_PORT", "1025"),
		SMTPFrom:       getEnv("SMTP_FROM", "noreply@tribe.app"),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
