package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/chat"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var systemPrompt string

	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Send one prompt to the upstream proxy and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			client, err := newRelayClient(cfg.Relay, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			if systemPrompt == "" {
				systemPrompt = cfg.Chat.SystemPrompt
			}
			if strings.TrimSpace(systemPrompt) == "" {
				systemPrompt = chat.DefaultSystemPrompt
			}

			turns := []api.Turn{
				api.SystemTurn(systemPrompt),
				api.UserTurn(strings.Join(args, " ")),
			}
			reply, err := client.Relay(cmd.Context(), turns, relayOptions(cfg.Relay))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "System prompt (defaults to chat.system_prompt)")
	return cmd
}
