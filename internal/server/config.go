// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the classchat
// service.
package server

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// RateLimitConfig defines the parameters for per-connection message rate
// limiting.
type RateLimitConfig struct {
	Burst          int           `env:"BURST"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL"`
}

// Config holds the server configuration settings including security and
// moderation controls.
type Config struct {
	Port            string          `env:"SERVER_PORT"`
	AllowedOrigins  []string        `env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxMessageSize  int64           `env:"MAX_MESSAGE_SIZE"`
	RateLimit       RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	JWTSecret       string          `env:"JWT_SECRET"`
	ShutdownTimeout time.Duration   `env:"SHUTDOWN_TIMEOUT"`
	BannedWords     []string        `env:"BANNED_WORDS" envSeparator:","`
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
	activeModerator *Moderator
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}
	activeModerator = NewModerator(cfg.BannedWords)

	return cfg
}

// SetConfig applies the provided configuration and returns the sanitized
// form actually in effect. Passing nil resets to defaults.
func SetConfig(cfg *Config) Config {
	if cfg == nil {
		return sanitizeConfig(defaultConfig())
	}

	sanitized := Config{
		Port:            cfg.Port,
		AllowedOrigins:  append([]string(nil), cfg.AllowedOrigins...),
		MaxMessageSize:  cfg.MaxMessageSize,
		RateLimit:       cfg.RateLimit,
		JWTSecret:       cfg.JWTSecret,
		ShutdownTimeout: cfg.ShutdownTimeout,
		BannedWords:     append([]string(nil), cfg.BannedWords...),
	}
	return sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.BannedWords = append([]string(nil), cfg.BannedWords...)
	return cfg
}

// currentModerator returns the moderator built from the active word list.
func currentModerator() *Moderator {
	configMu.RLock()
	defer configMu.RUnlock()
	return activeModerator
}

// NewConfig creates a Config instance populated with default values.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from a .env file (when
// present) and the process environment, falling back to defaults for any
// setting left unset.
func NewConfigFromEnv() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using process environment")
	}

	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		log.Printf("Invalid environment configuration, keeping defaults: %v", err)
	}
	return &cfg
}
