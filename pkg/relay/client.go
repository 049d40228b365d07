package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/observability"
)

// maxResponseBytes bounds how much of an upstream response is read.
const maxResponseBytes = 1 << 20

// Config holds the client-wide relay settings.
type Config struct {
	// Endpoint is the full URL of the upstream proxy (required).
	Endpoint string

	// APIKey is sent as a Bearer credential when non-empty.
	APIKey string

	// Model is placed in the enveloped payload. Default: "gpt-4o-mini".
	Model string

	// PayloadShape selects enveloped or bare serialization. Default: enveloped.
	PayloadShape PayloadShape

	// MaxPromptLength caps the trimmed rune length of user turns. Default: 500.
	MaxPromptLength int

	// MaxRetries is the default number of attempts per call. Default: 3.
	MaxRetries int

	// BackoffBase is the delay after the first failed attempt. Default: 1s.
	BackoffBase time.Duration

	// BackoffCap bounds every backoff delay. Default: 30s.
	BackoffCap time.Duration

	// ConnectTimeout bounds dialing the upstream. Default: 10s.
	ConnectTimeout time.Duration

	// ReadTimeout bounds a single attempt, body included. Default: 30s.
	ReadTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.PayloadShape == "" {
		c.PayloadShape = ShapeEnveloped
	}
	if c.MaxPromptLength <= 0 {
		c.MaxPromptLength = 500
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
}

// Options are the per-call parameters of Relay.
type Options struct {
	// MaxRetries overrides Config.MaxRetries when >= 1.
	MaxRetries int

	// Temperature, MaxTokens and CallerID are forwarded as-is in the
	// enveloped shape and omitted when unset.
	Temperature *float64
	MaxTokens   *int
	CallerID    string
}

// Client relays conversations to the upstream proxy. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The client's own
// timeouts replace ConnectTimeout and ReadTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
// The sleeper must return ctx.Err() when ctx is done before the delay ends.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a relay client. It fails when the endpoint is missing or not
// an absolute http(s) URL, or when the payload shape is unknown.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.applyDefaults()
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("relay endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("relay endpoint %q is not an absolute http(s) URL", cfg.Endpoint)
	}
	if !cfg.PayloadShape.Valid() {
		return nil, fmt.Errorf("unknown payload shape %q", cfg.PayloadShape)
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout: cfg.ConnectTimeout,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sleep:  sleepContext,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Relay sends turns to the upstream proxy and returns the assistant's reply.
// On failure the error is a *Error; see the package documentation for the
// retry policy.
func (c *Client) Relay(ctx context.Context, turns []api.Turn, opts Options) (string, error) {
	start := time.Now()
	text, err := c.relay(ctx, turns, opts)

	result := "ok"
	if err != nil {
		result = string(KindOf(err))
	}
	observability.RelayCallsTotal.WithLabelValues(result).Inc()
	observability.RelayLatency.Observe(time.Since(start).Seconds())

	return text, err
}

func (c *Client) relay(ctx context.Context, turns []api.Turn, opts Options) (string, error) {
	if err := c.validate(turns); err != nil {
		return "", err
	}

	body, err := buildPayload(c.cfg.PayloadShape, c.cfg.Model, turns, opts)
	if err != nil {
		return "", &Error{Kind: KindInvalidInput, Message: "encoding request", Err: err}
	}
	debug.Log("relay", "upstream request",
		"endpoint", c.cfg.Endpoint,
		"shape", c.cfg.PayloadShape,
		"turns", len(turns),
		"bytes", len(body),
	)
	debug.Trace("relay", "upstream request body", "body", string(body))

	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = c.cfg.MaxRetries
	}

	var last *Error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", cancelled(err, attempt)
		}

		status, respBody, sendErr := c.send(ctx, body)
		if err := ctx.Err(); err != nil {
			observability.RelayAttemptsTotal.WithLabelValues("cancelled").Inc()
			return "", cancelled(err, attempt+1)
		}

		decision := Classify(status, sendErr)
		c.logger.Debug("relay attempt",
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"status", status,
			"action", decision.Action.String(),
		)

		switch decision.Action {
		case ActionParse:
			text, perr := ExtractReply(respBody)
			if perr != nil {
				observability.RelayAttemptsTotal.WithLabelValues("terminal").Inc()
				perr.StatusCode = status
				perr.Attempts = attempt + 1
				c.logger.Warn("relay failed", "kind", perr.Kind, "error", perr.Message)
				return "", perr
			}
			observability.RelayAttemptsTotal.WithLabelValues("ok").Inc()
			return text, nil

		case ActionFail:
			observability.RelayAttemptsTotal.WithLabelValues("terminal").Inc()
			rerr := &Error{
				Kind:       decision.Kind,
				Message:    describeBody(respBody),
				StatusCode: status,
				Body:       truncate(respBody),
				Attempts:   attempt + 1,
			}
			c.logger.Warn("relay failed", "kind", rerr.Kind, "status", status, "error", rerr.Message)
			return "", rerr
		}

		observability.RelayAttemptsTotal.WithLabelValues("retry").Inc()
		last = &Error{
			Kind:       decision.Kind,
			StatusCode: status,
			Attempts:   attempt + 1,
			Err:        sendErr,
		}
		if sendErr == nil {
			last.Message = describeBody(respBody)
			last.Body = truncate(respBody)
		}

		if attempt == maxRetries-1 {
			c.logger.Warn("relay retries exhausted",
				"kind", last.Kind,
				"attempts", maxRetries,
				"error", last.Error(),
			)
			return "", last
		}

		delay := Backoff(attempt, c.cfg.BackoffBase, c.cfg.BackoffCap)
		c.logger.Warn("relay attempt failed, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"kind", last.Kind,
			"status", status,
			"delay", delay,
		)
		observability.RelayBackoffSeconds.Observe(delay.Seconds())
		if err := c.sleep(ctx, delay); err != nil {
			return "", cancelled(err, attempt+1)
		}
	}

	return "", &Error{
		Kind:     KindRetriesExhausted,
		Message:  fmt.Sprintf("no result after %d attempts", maxRetries),
		Attempts: maxRetries,
		Err:      errOrNil(last),
	}
}

// validate rejects input that must never reach the network.
func (c *Client) validate(turns []api.Turn) error {
	if len(turns) == 0 {
		return invalidInput("at least one turn is required")
	}
	for i, t := range turns {
		role, err := api.ParseRole(string(t.Role))
		if err != nil {
			return invalidInput("turn %d: %v", i, err)
		}
		text := strings.TrimSpace(t.Content)
		if text == "" {
			return invalidInput("turn %d: content is empty", i)
		}
		if role == api.RoleUser && utf8.RuneCountInString(text) > c.cfg.MaxPromptLength {
			return invalidInput("turn %d: content exceeds %d characters", i, c.cfg.MaxPromptLength)
		}
	}
	return nil
}

// send performs one POST and returns the status code and body. Any error
// returned here is a transport-level failure.
func (c *Client) send(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	debug.Log("relay", "upstream response",
		"status", resp.StatusCode,
		"bytes", len(data),
		"preview", debug.Truncate(string(data), 200),
	)
	debug.Trace("relay", "upstream response body", "body", string(data))
	return resp.StatusCode, data, nil
}

// Close releases idle upstream connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func cancelled(err error, attempts int) *Error {
	return &Error{
		Kind:     KindCancelled,
		Message:  "relay call cancelled",
		Attempts: attempts,
		Err:      err,
	}
}

func errOrNil(e *Error) error {
	if e == nil {
		return nil
	}
	return e
}
