package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type HTTPConfig struct {
	Addr string
}

type PagingConfig struct {
	DefaultLimit int
	MaxLimit     int
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	HTTP        HTTPConfig
	Paging      PagingConfig

	// Collaborator endpoints. Empty means the collaborator is absent and the
	// service falls back to its development behaviour: in-memory engine,
	// no count cache, no event publishing.
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	JWTSecret   string
}

func (c AppConfig) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		Env:         strings.TrimSpace(os.Getenv("APP_ENV")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		},
		Paging: PagingConfig{
			DefaultLimit: envInt("PAGE_DEFAULT_LIMIT", 50),
			MaxLimit:     envInt("PAGE_MAX_LIMIT", 100),
		},
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		NATSURL:     strings.TrimSpace(os.Getenv("NATS_URL")),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Paging.MaxLimit <= 0 {
		cfg.Paging.MaxLimit = 100
	}
	if cfg.Paging.DefaultLimit <= 0 || cfg.Paging.DefaultLimit > cfg.Paging.MaxLimit {
		cfg.Paging.DefaultLimit = 50
	}
	return cfg, nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
