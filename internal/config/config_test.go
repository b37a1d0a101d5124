package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"PORT", "SERVER_PORT", "TOKEN_TTL", "LOGIN_LOCK_DURATION", "LOGIN_MAX_TEMP_ATTEMPTS", "RECURRENCE_SCHEDULE", "CORS_ALLOWED_ORIGINS"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.TokenTTL != 8*time.Hour {
		t.Fatalf("expected 8h token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.LoginLockDuration != 15*time.Second || cfg.LoginMaxTempAttempts != 3 || cfg.LoginMaxPermAttempts != 1 {
		t.Fatalf("unexpected lockout defaults: %+v", cfg)
	}
	if cfg.RecurrenceSchedule != "5 0 * * *" {
		t.Fatalf("unexpected default schedule %q", cfg.RecurrenceSchedule)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected default origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "7000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "7000" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_ReadsDotEnvFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "LOGIN_LOCK_DURATION")
	unsetEnvWithCleanup(t, "RECURRENCE_SCHEDULE")

	dir := t.TempDir()
	content := "LOGIN_LOCK_DURATION=30s\nRECURRENCE_SCHEDULE=* * * * *\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv exports into the process environment; drop them afterwards.
	t.Cleanup(func() {
		_ = os.Unsetenv("LOGIN_LOCK_DURATION")
		_ = os.Unsetenv("RECURRENCE_SCHEDULE")
	})

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LoginLockDuration != 30*time.Second {
		t.Fatalf("expected 30s lock duration from .env, got %s", cfg.LoginLockDuration)
	}
	if cfg.RecurrenceSchedule != "* * * * *" {
		t.Fatalf("expected per-minute schedule from .env, got %q", cfg.RecurrenceSchedule)
	}
}

func TestLoadConfig_SplitsCORSOrigins(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_NegativeRateLimitDisabled(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "LOGIN_RATE_LIMIT_PER_MINUTE", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LoginRateLimitPerMinute != 0 {
		t.Fatalf("expected rate limit to be disabled, got %d", cfg.LoginRateLimitPerMinute)
	}
}

func TestValidate_ReportsMissingKeys(t *testing.T) {
	err := Config{}.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if got := err.Error(); got != "missing required configuration: DATABASE_URL, JWT_SECRET" {
		t.Fatalf("unexpected error %q", got)
	}

	if err := (Config{DatabaseURL: "postgres://x", JWTSecret: "s"}).Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	if loc := (Config{BusinessTimezone: "Not/AZone"}).Location(); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", loc)
	}
	if loc := (Config{}).Location(); loc != time.UTC {
		t.Fatalf("expected UTC for empty timezone, got %s", loc)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetenv %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
