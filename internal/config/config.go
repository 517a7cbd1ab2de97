package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MailDeliverySMTP  = "smtp"
	MailDeliveryQueue = "queue"
)

type Config struct {
	AppEnv                  string
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret        string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	JWTIssuer        string
	BcryptCost       int

	VerificationTTL             time.Duration
	VerificationCleanupInterval time.Duration
	FrontendURL                 string
	DefaultRole                 string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	SMTPFrom     string
	MailDelivery string

	RedisAddr             string
	RedisPassword         string
	MailWorkerConcurrency int

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	// TrustedProxies lists the CIDRs whose forwarding headers are believed.
	TrustedProxies []string

	LogFormat string
	LogLevel  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:                  getEnv("APP_ENV", "development"),
		ServerPort:              getEnv("SERVER_PORT", "3000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 20*time.Second),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 1)),

		JWTSecret:        strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: strings.TrimSpace(os.Getenv("JWT_REFRESH_SECRET")),
		JWTAccessTTL:     getDuration("JWT_ACCESS_TTL", 5*time.Minute),
		JWTRefreshTTL:    getDuration("JWT_REFRESH_TTL", 720*time.Hour),
		JWTIssuer:        getEnv("JWT_ISSUER", "auth-service"),
		BcryptCost:       getInt("BCRYPT_COST", 12),

		VerificationTTL:             getDuration("VERIFICATION_TTL", 60*time.Minute),
		VerificationCleanupInterval: getDuration("VERIFICATION_CLEANUP_INTERVAL", 15*time.Minute),
		FrontendURL:                 strings.TrimSpace(os.Getenv("FRONTEND_URL")),
		DefaultRole:                 getEnv("DEFAULT_ROLE", "user"),

		SMTPHost:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUser:     strings.TrimSpace(os.Getenv("SMTP_USER")),
		SMTPPass:     os.Getenv("SMTP_PASS"),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@localhost"),
		MailDelivery: strings.ToLower(getEnv("MAIL_DELIVERY", MailDeliverySMTP)),

		RedisAddr:             getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		MailWorkerConcurrency: getInt("MAIL_WORKER_CONCURRENCY", 2),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),
		TrustedProxies:   splitCSV(os.Getenv("TRUSTED_PROXIES")),

		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.JWTSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.VerificationTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TTL must be positive")
	}

	parsed, err := url.Parse(c.FrontendURL)
	if c.FrontendURL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("FRONTEND_URL must be an absolute URL")
	}

	if c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required")
	}

	for _, proxy := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy)
		}
	}

	switch c.MailDelivery {
	case MailDeliverySMTP:
	case MailDeliveryQueue:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when MAIL_DELIVERY=queue")
		}
	default:
		return fmt.Errorf("MAIL_DELIVERY must be %q or %q", MailDeliverySMTP, MailDeliveryQueue)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
