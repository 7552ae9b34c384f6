package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Environment string
	DBDSN       string
	Storage     string
	HTTPAddr    string

	JWTSecret  string
	JWTIssuer  string
	SessionTTL time.Duration
	PlanTTL    time.Duration

	AllowAdminUsernameFallback bool

	TelegramToken string

	ReconcileInterval time.Duration
	ActivityBuffer    int
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из произвольного источника переменных
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment:   getenv("ENV"),
		DBDSN:         getenv("DB_DSN"),
		Storage:       getenv("STORAGE"),
		HTTPAddr:      getenv("HTTP_ADDR"),
		JWTSecret:     getenv("JWT_SECRET"),
		JWTIssuer:     getenv("JWT_ISSUER"),
		TelegramToken: getenv("TELEGRAM_TOKEN"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Storage == "" {
		cfg.Storage = StoragePostgres
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "studytrack"
	}

	var err error
	if cfg.SessionTTL, err = durationOr(getenv, "SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PlanTTL, err = durationOr(getenv, "PLAN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = durationOr(getenv, "RECONCILE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.AllowAdminUsernameFallback, err = boolOr(getenv, "ALLOW_ADMIN_USERNAME_FALLBACK", false); err != nil {
		return nil, err
	}
	if cfg.ActivityBuffer, err = intOr(getenv, "ACTIVITY_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.ActivityBuffer < 0 {
		return nil, fmt.Errorf("ACTIVITY_BUFFER must not be negative, got %d", cfg.ActivityBuffer)
	}

	// Проверяем обязательные поля
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

func durationOr(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func boolOr(getenv func(string) string, key string, def bool) (bool, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func intOr(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
