// Package config содержит логику чтения конфигурации сервиса банка отходов.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Провайдеры проверки токенов.
const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

// Config содержит параметры конфигурации сервиса банка отходов.
type Config struct {
	RunAddress              string        `env:"RUN_ADDRESS"`
	DatabaseURI             string        `env:"DATABASE_URI"`
	LogLevel                string        `env:"LOG_LEVEL"`
	AuthProvider            string        `env:"AUTH_PROVIDER"`
	AuthSecret              string        `env:"AUTH_SECRET"`
	FirebaseProjectID       string        `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string        `env:"FIREBASE_CREDENTIALS_FILE"`
	RedisAddr               string        `env:"REDIS_ADDR"`
	CatalogCacheTTL         time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	PageSize                int           `env:"PAGE_SIZE" envDefault:"6"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := &Config{}
	if err := env.Parse(envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{
		CatalogCacheTTL: envCfg.CatalogCacheTTL,
		PageSize:        envCfg.PageSize,
	}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level: debug, info, warn, error")
	flag.StringVar(&cfg.AuthProvider, "p", AuthProviderJWT, "token verifier: jwt or firebase")
	flag.StringVar(&cfg.AuthSecret, "s", "", "HS256 secret for the jwt provider")
	flag.StringVar(&cfg.RedisAddr, "c", "", "redis address for the catalog cache, empty disables it")

	flag.Parse()

	override(&cfg.RunAddress, envCfg.RunAddress)
	override(&cfg.DatabaseURI, envCfg.DatabaseURI)
	override(&cfg.LogLevel, envCfg.LogLevel)
	override(&cfg.AuthProvider, envCfg.AuthProvider)
	override(&cfg.AuthSecret, envCfg.AuthSecret)
	override(&cfg.RedisAddr, envCfg.RedisAddr)
	cfg.FirebaseProjectID = envCfg.FirebaseProjectID
	cfg.FirebaseCredentialsFile = envCfg.FirebaseCredentialsFile

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}

func (c *Config) validate() error {
	switch c.AuthProvider {
	case AuthProviderJWT:
		if c.AuthSecret == "" {
			return fmt.Errorf("AUTH_SECRET is required for the %s provider", AuthProviderJWT)
		}
	case AuthProviderFirebase:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the %s provider", AuthProviderFirebase)
		}
	default:
		return fmt.Errorf("unknown auth provider %q", c.AuthProvider)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	return nil
}
