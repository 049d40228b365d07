package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rhuss/chatrelay/pkg/account"
	"github.com/rhuss/chatrelay/pkg/auth"
	"github.com/rhuss/chatrelay/pkg/auth/jwt"
	"github.com/rhuss/chatrelay/pkg/auth/password"
	"github.com/rhuss/chatrelay/pkg/auth/session"
	"github.com/rhuss/chatrelay/pkg/chat"
	"github.com/rhuss/chatrelay/pkg/config"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/relay"
	"github.com/rhuss/chatrelay/pkg/storage/jsonfile"
	"github.com/rhuss/chatrelay/pkg/storage/memory"
	"github.com/rhuss/chatrelay/pkg/storage/redis"
	transporthttp "github.com/rhuss/chatrelay/pkg/transport/http"
)

// newLogger builds the process logger from the logging section. A nil
// writer logs to stderr.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level, err := debug.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	debug.Init(cfg.Debug)
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", cfg.Format)
	}
}

func newRelayClient(cfg config.RelayConfig, logger *slog.Logger) (*relay.Client, error) {
	return relay.New(relay.Config{
		Endpoint:        cfg.Endpoint,
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		PayloadShape:    relay.PayloadShape(cfg.PayloadShape),
		MaxPromptLength: cfg.MaxPromptLength,
		MaxRetries:      cfg.MaxRetries,
		BackoffBase:     cfg.BackoffBase,
		BackoffCap:      cfg.BackoffCap,
		ConnectTimeout:  cfg.ConnectTimeout,
		ReadTimeout:     cfg.ReadTimeout,
	}, relay.WithLogger(logger))
}

// relayOptions turns the optional generation parameters into per-call
// options. Zero values leave the upstream defaults in place.
func relayOptions(cfg config.RelayConfig) relay.Options {
	var opts relay.Options
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		opts.Temperature = &t
	}
	if cfg.MaxTokens != 0 {
		n := cfg.MaxTokens
		opts.MaxTokens = &n
	}
	return opts
}

// messageStore is what the chat service and /healthz need from a store.
type messageStore interface {
	chat.MessageStore
	transporthttp.HealthChecker
	io.Closer
}

func newMessageStore(cfg config.MessageStoreConfig) (messageStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewMessages(cfg.MaxUsers), nil
	case "jsonfile":
		return jsonfile.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown message store %q", cfg.Type)
	}
}

// sessionStore is what the account service and /healthz need from a store.
type sessionStore interface {
	account.SessionStore
	transporthttp.HealthChecker
	io.Closer
}

func newSessionStore(ctx context.Context, cfg config.SessionStoreConfig) (sessionStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewSessions(), nil
	case "redis":
		return redis.New(ctx, redis.Config{URL: cfg.Redis.URL, KeyPrefix: cfg.Redis.KeyPrefix})
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Type)
	}
}

// app holds the wired server components.
type app struct {
	adapter *transporthttp.Adapter
	closers []io.Closer
}

// Close releases stores and clients in reverse creation order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildApp wires stores, services and the HTTP adapter from cfg.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	client, err := newRelayClient(cfg.Relay, logger)
	if err != nil {
		return nil, fmt.Errorf("creating relay client: %w", err)
	}
	a.closers = append(a.closers, client)

	messages, err := newMessageStore(cfg.Storage.Messages)
	if err != nil {
		return nil, fmt.Errorf("creating message store: %w", err)
	}
	a.closers = append(a.closers, messages)

	sessions, err := newSessionStore(ctx, cfg.Storage.Sessions)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	a.closers = append(a.closers, sessions)

	hasher, err := password.New(cfg.Auth.PasswordHash, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("creating password hasher: %w", err)
	}

	accounts := account.NewService(memory.NewUsers(), sessions, hasher,
		account.WithSessionTTL(cfg.Auth.SessionTTL),
		account.WithLogger(logger),
	)
	if err := accounts.Seed(ctx, cfg.Auth.SeedUsers); err != nil {
		return nil, err
	}
	if n := len(cfg.Auth.SeedUsers); n > 0 {
		logger.Info("seed users created", "count", n)
	}

	chatSvc := chat.NewService(client, messages, chat.Config{
		SystemPrompt: cfg.Chat.SystemPrompt,
		ContextTurns: cfg.Chat.ContextTurns,
		Relay:        relayOptions(cfg.Relay),
	}, logger)

	cookies := session.New(accounts, cfg.Auth.Cookie.Name)
	authenticators := []auth.Authenticator{cookies}
	opts := []transporthttp.AdapterOption{
		transporthttp.WithHealthCheckers(messages, sessions),
		transporthttp.WithAdapterLogger(logger),
	}
	if cfg.Auth.JWT.Enabled {
		ttl := cfg.Auth.JWT.TTL
		if ttl == 0 {
			ttl = cfg.Auth.SessionTTL
		}
		bearer, err := jwt.New(jwt.Config{
			Secret: []byte(cfg.Auth.JWT.Secret),
			Issuer: cfg.Auth.JWT.Issuer,
			TTL:    ttl,
		}, accounts)
		if err != nil {
			return nil, fmt.Errorf("creating bearer authenticator: %w", err)
		}
		authenticators = append([]auth.Authenticator{bearer}, authenticators...)
		opts = append(opts, transporthttp.WithTokenIssuer(bearer))
	}
	opts = append(opts, transporthttp.WithAuthenticators(authenticators...))

	adapterCfg := transporthttp.Config{
		CookieName:      cookies.CookieName(),
		CookieSecure:    cfg.Auth.Cookie.Secure,
		AllowAnonymous:  cfg.Chat.AllowAnonymous,
		AnonymousUserID: cfg.Chat.AnonymousUserID,
		StaticDir:       cfg.Server.StaticDir,
	}
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}
	if cfg.Server.CORS.Enabled {
		adapterCfg.CORSOrigins = cfg.Server.CORS.AllowedOrigins
	}

	a.adapter = transporthttp.NewAdapter(accounts, chatSvc, adapterCfg, opts...)
	return a, nil
}
