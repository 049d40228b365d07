package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatrelay/pkg/config"
	"github.com/rhuss/chatrelay/pkg/debug"
	transporthttp "github.com/rhuss/chatrelay/pkg/transport/http"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

// runServe wires the application from cfg and serves until ctx ends.
func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Logging, nil)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("configuration loaded",
		"relay_endpoint", cfg.Relay.Endpoint,
		"model", cfg.Relay.Model,
		"payload_shape", cfg.Relay.PayloadShape,
		"messages_store", cfg.Storage.Messages.Type,
		"sessions_store", cfg.Storage.Sessions.Type,
		"anonymous_chat", cfg.Chat.AllowAnonymous,
		"bearer_tokens", cfg.Auth.JWT.Enabled,
		"debug", debug.Categories(),
	)

	srv := transporthttp.NewServer(app.adapter,
		transporthttp.WithAddr(net.JoinHostPort("", strconv.Itoa(cfg.Server.Port))),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
