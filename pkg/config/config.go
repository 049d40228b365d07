// Package config provides unified configuration for the chat relay.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CHATRELAY_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/chatrelay/pkg/account"
)

// Config holds all configuration for the chat relay.
type Config struct {
	Server        ServerConfig        `yaml:"server" envPrefix:"SERVER_"`
	Relay         RelayConfig         `yaml:"relay" envPrefix:"RELAY_"`
	Storage       StorageConfig       `yaml:"storage" envPrefix:"STORAGE_"`
	Auth          AuthConfig          `yaml:"auth" envPrefix:"AUTH_"`
	Chat          ChatConfig          `yaml:"chat" envPrefix:"CHAT_"`
	Logging       LoggingConfig       `yaml:"logging" envPrefix:"LOG_"`
	Observability ObservabilityConfig `yaml:"observability" envPrefix:"OBSERVABILITY_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`                         // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`         // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`       // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"` // default: 15s
	StaticDir       string        `yaml:"static_dir" env:"STATIC_DIR"`             // optional
	CORS            CORSConfig    `yaml:"cors" envPrefix:"CORS_"`
}

// CORSConfig holds cross-origin settings for browser front ends.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" env:"ENABLED"`                                 // default: true
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","` // default: ["*"]
}

// RelayConfig holds the upstream proxy settings.
type RelayConfig struct {
	Endpoint        string        `yaml:"endpoint" env:"ENDPOINT"`                   // required
	APIKey          string        `yaml:"api_key" env:"API_KEY"`                     // optional
	APIKeyFile      string        `yaml:"api_key_file" env:"API_KEY_FILE"`           // _file variant for api_key
	Model           string        `yaml:"model" env:"MODEL"`                         // default: "gpt-4o-mini"
	PayloadShape    string        `yaml:"payload_shape" env:"PAYLOAD_SHAPE"`         // "enveloped" or "bare", default: "enveloped"
	MaxPromptLength int           `yaml:"max_prompt_length" env:"MAX_PROMPT_LENGTH"` // default: 500
	MaxRetries      int           `yaml:"max_retries" env:"MAX_RETRIES"`             // default: 3
	BackoffBase     time.Duration `yaml:"backoff_base" env:"BACKOFF_BASE"`           // default: 1s
	BackoffCap      time.Duration `yaml:"backoff_cap" env:"BACKOFF_CAP"`             // default: 30s
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`     // default: 10s
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`           // default: 30s
	Temperature     float64       `yaml:"temperature" env:"TEMPERATURE"`             // 0 = upstream default
	MaxTokens       int           `yaml:"max_tokens" env:"MAX_TOKENS"`               // 0 = upstream default
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Messages MessageStoreConfig `yaml:"messages" envPrefix:"MESSAGES_"`
	Sessions SessionStoreConfig `yaml:"sessions" envPrefix:"SESSIONS_"`
}

// MessageStoreConfig selects the chat log backend.
type MessageStoreConfig struct {
	Type     string `yaml:"type" env:"TYPE"`           // "memory" or "jsonfile", default: "memory"
	Path     string `yaml:"path" env:"PATH"`           // jsonfile only
	MaxUsers int    `yaml:"max_users" env:"MAX_USERS"` // memory only, 0 = unlimited
}

// SessionStoreConfig selects the login session backend.
type SessionStoreConfig struct {
	Type  string      `yaml:"type" env:"TYPE"` // "memory" or "redis", default: "memory"
	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL       string `yaml:"url" env:"URL"`
	URLFile   string `yaml:"url_file" env:"URL_FILE"` // _file variant for url
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// AuthConfig holds account and authentication settings.
type AuthConfig struct {
	PasswordHash string             `yaml:"password_hash" env:"PASSWORD_HASH"` // "bcrypt" or "sha256", default: "bcrypt"
	BcryptCost   int                `yaml:"bcrypt_cost" env:"BCRYPT_COST"`     // default: bcrypt.DefaultCost
	SessionTTL   time.Duration      `yaml:"session_ttl" env:"SESSION_TTL"`     // default: 1h
	Cookie       CookieConfig       `yaml:"cookie" envPrefix:"COOKIE_"`
	JWT          JWTConfig          `yaml:"jwt" envPrefix:"JWT_"`
	SeedUsers    []account.SeedUser `yaml:"seed_users"`
}

// CookieConfig holds session cookie attributes.
type CookieConfig struct {
	Name   string `yaml:"name" env:"NAME"`     // default: "session_id"
	Secure bool   `yaml:"secure" env:"SECURE"` // default: false
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED"`
	Secret     string        `yaml:"secret" env:"SECRET"`
	SecretFile string        `yaml:"secret_file" env:"SECRET_FILE"` // _file variant for secret
	Issuer     string        `yaml:"issuer" env:"ISSUER"`           // default: "chatrelay"
	TTL        time.Duration `yaml:"ttl" env:"TTL"`                 // default: session_ttl
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	SystemPrompt    string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`         // default: "You are a helpful assistant."
	ContextTurns    int    `yaml:"context_turns" env:"CONTEXT_TURNS"`         // default: 10
	AllowAnonymous  bool   `yaml:"allow_anonymous" env:"ALLOW_ANONYMOUS"`     // default: true
	AnonymousUserID string `yaml:"anonymous_user_id" env:"ANONYMOUS_USER_ID"` // default: "guest"
}

// LoggingConfig controls the process-wide slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // trace, debug, info, warn, error; default: info
	Format string `yaml:"format" env:"FORMAT"` // text or json; default: text

	// Debug lists debug categories (relay, auth, chat, storage, all).
	// CHATRELAY_DEBUG takes precedence.
	Debug string `yaml:"debug" env:"DEBUG"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"` // default: true
	Path    string `yaml:"path" env:"PATH"`       // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
		},
		Relay: RelayConfig{
			Model:           "gpt-4o-mini",
			PayloadShape:    "enveloped",
			MaxPromptLength: 500,
			MaxRetries:      3,
			BackoffBase:     time.Second,
			BackoffCap:      30 * time.Second,
			ConnectTimeout:  10 * time.Second,
			ReadTimeout:     30 * time.Second,
		},
		Storage: StorageConfig{
			Messages: MessageStoreConfig{Type: "memory"},
			Sessions: SessionStoreConfig{
				Type:  "memory",
				Redis: RedisConfig{KeyPrefix: "chatrelay:session:"},
			},
		},
		Auth: AuthConfig{
			PasswordHash: "bcrypt",
			SessionTTL:   time.Hour,
			Cookie:       CookieConfig{Name: "session_id"},
			JWT:          JWTConfig{Issuer: "chatrelay"},
		},
		Chat: ChatConfig{
			SystemPrompt:    "You are a helpful assistant.",
			ContextTurns:    10,
			AllowAnonymous:  true,
			AnonymousUserID: "guest",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
