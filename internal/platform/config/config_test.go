package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/reviewflow",
		JWTSecret:          "test-secret",
		AccessTokenTTL:     30 * time.Minute,
		SessionTTL:         8 * time.Hour,
		Environment:        "development",
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 60,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ADDR", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("WORKFLOW_NOTIFICATIONS", "")

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("expected 30m access token ttl, got %v", cfg.AccessTokenTTL)
	}
	if cfg.WorkflowNotifications {
		t.Fatal("expected workflow notifications to default off")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-number")
	t.Setenv("RUN_SEED", "maybe")
	t.Setenv("SESSION_TTL", "forever")

	cfg := Load()
	if cfg.SMTPPort != 587 {
		t.Fatalf("expected fallback smtp port, got %d", cfg.SMTPPort)
	}
	if !cfg.RunSeed {
		t.Fatal("expected fallback run seed true")
	}
	if cfg.SessionTTL != 8*time.Hour {
		t.Fatalf("expected fallback session ttl, got %v", cfg.SessionTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWTSecret = " " }, wantErr: true},
		{name: "session shorter than token", mutate: func(c *Config) { c.SessionTTL = time.Minute }, wantErr: true},
		{name: "tiny body limit", mutate: func(c *Config) { c.MaxBodyBytes = 10 }, wantErr: true},
		{name: "email without smtp host", mutate: func(c *Config) { c.EmailEnabled = true }, wantErr: true},
		{
			name: "production requires encryption key",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.JWTSecret = "0123456789abcdef0123456789abcdef"
			},
			wantErr: true,
		},
		{
			name: "production short secret",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.DataEncryptionKey = "0123456789abcdef0123456789abcdef"
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
