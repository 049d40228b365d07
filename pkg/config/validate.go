package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// relay.endpoint is required and must be an absolute http(s) URL.
	if c.Relay.Endpoint == "" {
		errs = append(errs, fmt.Errorf("relay.endpoint is required"))
	} else if u, err := url.Parse(c.Relay.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("relay.endpoint must be an absolute http(s) URL, got %q", c.Relay.Endpoint))
	}

	switch c.Relay.PayloadShape {
	case "enveloped", "bare":
		// valid
	default:
		errs = append(errs, fmt.Errorf("relay.payload_shape must be \"enveloped\" or \"bare\", got %q", c.Relay.PayloadShape))
	}

	if c.Relay.MaxPromptLength <= 0 {
		errs = append(errs, fmt.Errorf("relay.max_prompt_length must be > 0, got %d", c.Relay.MaxPromptLength))
	}
	if c.Relay.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("relay.max_retries must be >= 1, got %d", c.Relay.MaxRetries))
	}
	if c.Relay.BackoffBase <= 0 {
		errs = append(errs, fmt.Errorf("relay.backoff_base must be > 0, got %s", c.Relay.BackoffBase))
	}
	if c.Relay.BackoffCap < c.Relay.BackoffBase {
		errs = append(errs, fmt.Errorf("relay.backoff_cap (%s) must be >= relay.backoff_base (%s)", c.Relay.BackoffCap, c.Relay.BackoffBase))
	}
	if c.Relay.Temperature < 0 || c.Relay.Temperature > 2 {
		errs = append(errs, fmt.Errorf("relay.temperature must be within [0, 2], got %g", c.Relay.Temperature))
	}
	if c.Relay.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("relay.max_tokens must be >= 0, got %d", c.Relay.MaxTokens))
	}

	// storage.messages.type must be a known value.
	switch c.Storage.Messages.Type {
	case "memory":
		// valid
	case "jsonfile":
		if c.Storage.Messages.Path == "" {
			errs = append(errs, fmt.Errorf("storage.messages.path is required when storage.messages.type is \"jsonfile\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.messages.type must be \"memory\" or \"jsonfile\", got %q", c.Storage.Messages.Type))
	}

	// storage.sessions.type must be a known value.
	switch c.Storage.Sessions.Type {
	case "memory":
		// valid
	case "redis":
		if c.Storage.Sessions.Redis.URL == "" {
			errs = append(errs, fmt.Errorf("storage.sessions.redis.url or storage.sessions.redis.url_file is required when storage.sessions.type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.sessions.type must be \"memory\" or \"redis\", got %q", c.Storage.Sessions.Type))
	}

	switch c.Auth.PasswordHash {
	case "bcrypt", "sha256":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.password_hash must be \"bcrypt\" or \"sha256\", got %q", c.Auth.PasswordHash))
	}

	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.session_ttl must be > 0, got %s", c.Auth.SessionTTL))
	}

	if c.Auth.JWT.Enabled && len(c.Auth.JWT.Secret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt.secret must be at least 32 bytes when auth.jwt.enabled is true"))
	}

	for i, u := range c.Auth.SeedUsers {
		if strings.TrimSpace(u.Username) == "" || u.Password == "" {
			errs = append(errs, fmt.Errorf("auth.seed_users[%d] needs a username and a password", i))
		}
	}

	if c.Chat.ContextTurns < 0 {
		errs = append(errs, fmt.Errorf("chat.context_turns must be >= 0, got %d", c.Chat.ContextTurns))
	}
	if c.Chat.AllowAnonymous && strings.TrimSpace(c.Chat.AnonymousUserID) == "" {
		errs = append(errs, fmt.Errorf("chat.anonymous_user_id is required when chat.allow_anonymous is true"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
