package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Payment Gateway
	GatewayBaseURL string
	GatewayAPIKey  string

	// 協調サービスのベースURL
	UsersServiceURL        string
	NotificationServiceURL string
	CouponServiceURL       string
	ActivityServiceURL     string

	// Audit bus (Kafka)
	KafkaBrokers []string
	AuditTopic   string

	// Charge retry
	ChargeMaxRetries int
	ChargeBaseDelay  time.Duration

	// Outbound HTTP
	HTTPTimeout time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitCharge  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GatewayAPIKey = os.Getenv("GATEWAY_API_KEY")
	if cfg.GatewayAPIKey == "" {
		missing = append(missing, "GATEWAY_API_KEY")
	}

	cfg.UsersServiceURL = os.Getenv("USERS_SERVICE_URL")
	if cfg.UsersServiceURL == "" {
		missing = append(missing, "USERS_SERVICE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GatewayBaseURL = getEnvString("GATEWAY_BASE_URL", "https://api.stripe.com/v1")
	cfg.NotificationServiceURL = getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:7184")
	cfg.CouponServiceURL = getEnvString("COUPON_SERVICE_URL", "http://localhost:7185")
	cfg.ActivityServiceURL = getEnvString("ACTIVITY_SERVICE_URL", "http://localhost:7186")
	cfg.KafkaBrokers = splitAndTrim(getEnvString("KAFKA_BROKERS", "localhost:9092"))
	cfg.AuditTopic = getEnvString("AUDIT_TOPIC", "audit-log")
	cfg.ChargeMaxRetries = getEnvInt("CHARGE_MAX_RETRIES", 2)
	cfg.ChargeBaseDelay = getEnvDuration("CHARGE_BASE_DELAY", 2*time.Second)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCharge = getEnvInt("RATE_LIMIT_CHARGE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitAndTrim はカンマ区切りの文字列を空白を除去しつつ分割する。
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
