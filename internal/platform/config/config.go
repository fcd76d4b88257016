package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr                      string
	DatabaseURL               string
	JWTSecret                 string
	AccessTokenTTL            time.Duration
	SessionTTL                time.Duration
	DataEncryptionKey         string
	Environment               string
	MFAIssuer                 string
	SeedAdminEmail            string
	SeedAdminPassword         string
	SeedHREmail               string
	SeedHRPassword            string
	EmailFrom                 string
	EmailEnabled              bool
	SMTPHost                  string
	SMTPPort                  int
	SMTPUser                  string
	SMTPPassword              string
	SMTPUseTLS                bool
	RunMigrations             bool
	RunSeed                   bool
	MaxBodyBytes              int64
	RateLimitPerMinute        int
	CycleCloseInterval        time.Duration
	NotificationPurgeInterval time.Duration
	NotificationRetention     time.Duration
	WorkflowNotifications     bool
	MetricsEnabled            bool
}

func Load() Config {
	return Config{
		Addr:                      getEnv("APP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		AccessTokenTTL:            getEnvDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		SessionTTL:                getEnvDuration("SESSION_TTL", 8*time.Hour),
		DataEncryptionKey:         getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:               getEnv("APP_ENV", "development"),
		MFAIssuer:                 getEnv("MFA_ISSUER", "ReviewFlow"),
		SeedAdminEmail:            getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:         getEnv("SEED_ADMIN_PASSWORD", ""),
		SeedHREmail:               getEnv("SEED_HR_EMAIL", ""),
		SeedHRPassword:            getEnv("SEED_HR_PASSWORD", ""),
		EmailFrom:                 getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:              getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  getEnvInt("SMTP_PORT", 587),
		SMTPUser:                  getEnv("SMTP_USER", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:                getEnvBool("SMTP_USE_TLS", true),
		RunMigrations:             getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:                   getEnvBool("RUN_SEED", true),
		MaxBodyBytes:              int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:        getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CycleCloseInterval:        getEnvDuration("CYCLE_CLOSE_INTERVAL", 24*time.Hour),
		NotificationPurgeInterval: getEnvDuration("NOTIFICATION_PURGE_INTERVAL", 24*time.Hour),
		NotificationRetention:     getEnvDuration("NOTIFICATION_RETENTION", 90*24*time.Hour),
		WorkflowNotifications:     getEnvBool("WORKFLOW_NOTIFICATIONS", false),
		MetricsEnabled:            getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminEmail) != "" && len(c.SeedAdminPassword) < 12 {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 12 characters or RUN_SEED disabled in production")
		}
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.SessionTTL < c.AccessTokenTTL {
		return fmt.Errorf("SESSION_TTL must not be shorter than ACCESS_TOKEN_TTL")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.NotificationRetention < 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must not be negative")
	}
	return nil
}
