/**
 * @description
 * Configuration management for the approval service. Values come from environment
 * variables and an optional .env file, bound through Viper into Config.
 *
 * @dependencies
 * - github.com/spf13/viper: environment and .env binding.
 * - github.com/joho/godotenv: pre-loads a .env file into the process environment.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the approval service.
type Config struct {
	AppEnv      string `mapstructure:"APP_ENV"`
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	LoginMaxTempAttempts    int           `mapstructure:"LOGIN_MAX_TEMP_ATTEMPTS"`
	LoginMaxPermAttempts    int           `mapstructure:"LOGIN_MAX_PERM_ATTEMPTS"`
	LoginLockDuration       time.Duration `mapstructure:"LOGIN_LOCK_DURATION"`
	LoginRateLimitPerMinute int           `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`

	RecurrenceEnabled  bool          `mapstructure:"RECURRENCE_ENABLED"`
	RecurrenceSchedule string        `mapstructure:"RECURRENCE_SCHEDULE"`
	RecurrenceLockTTL  time.Duration `mapstructure:"RECURRENCE_LOCK_TTL"`
	BusinessTimezone   string        `mapstructure:"BUSINESS_TIMEZONE"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	InternalAPIKey     string   `mapstructure:"INTERNAL_API_KEY"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from the environment and an optional .env file in path.
func LoadConfig(path string) (config Config, err error) {
	// godotenv does not override variables that are already set.
	if loadErr := godotenv.Load(filepath.Join(path, ".env")); loadErr != nil && !os.IsNotExist(loadErr) {
		log.Printf("level=warn component=config msg=\"failed to load .env file\" err=%v", loadErr)
	}

	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIN_CONNS", 1)
	viper.SetDefault("TOKEN_TTL", "8h")
	viper.SetDefault("LOGIN_MAX_TEMP_ATTEMPTS", 3)
	viper.SetDefault("LOGIN_MAX_PERM_ATTEMPTS", 1)
	viper.SetDefault("LOGIN_LOCK_DURATION", "15s")
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 0)
	viper.SetDefault("RECURRENCE_ENABLED", true)
	viper.SetDefault("RECURRENCE_SCHEDULE", "5 0 * * *")
	viper.SetDefault("RECURRENCE_LOCK_TTL", "10m")
	viper.SetDefault("BUSINESS_TIMEZONE", "UTC")
	viper.SetDefault("REDIS_KEY_PREFIX", "approvals")
	viper.SetDefault("EVENTS_EXCHANGE", "approvals.events")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	for _, key := range []string{
		"APP_ENV", "SERVER_PORT", "PORT", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"JWT_SECRET", "TOKEN_TTL",
		"LOGIN_MAX_TEMP_ATTEMPTS", "LOGIN_MAX_PERM_ATTEMPTS", "LOGIN_LOCK_DURATION", "LOGIN_RATE_LIMIT_PER_MINUTE",
		"RECURRENCE_ENABLED", "RECURRENCE_SCHEDULE", "RECURRENCE_LOCK_TTL", "BUSINESS_TIMEZONE",
		"REDIS_URL", "REDIS_KEY_PREFIX", "RABBITMQ_URL", "EVENTS_EXCHANGE",
		"INTERNAL_API_KEY", "CORS_ALLOWED_ORIGINS",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisKeyPrefix), ":")
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "approvals"
	}
	config.CORSAllowedOrigins = splitOrigins(config.CORSAllowedOrigins)

	if config.LoginRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative login rate limit configured; disabling\" value=%d", config.LoginRateLimitPerMinute)
		config.LoginRateLimitPerMinute = 0
	}
	if config.TokenTTL <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive token ttl configured; using 8h\" value=%s", config.TokenTTL)
		config.TokenTTL = 8 * time.Hour
	}

	return
}

// Validate reports missing required settings by name.
func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Location resolves BusinessTimezone, falling back to UTC.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.BusinessTimezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("level=warn component=config msg=\"invalid business timezone; using UTC\" timezone=%q err=%v", name, err)
		return time.UTC
	}
	return loc
}

// IsDevelopment reports whether the service runs with development defaults.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development") || strings.EqualFold(c.AppEnv, "dev")
}

// splitOrigins flattens comma separated entries, since env values arrive as one string.
func splitOrigins(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
