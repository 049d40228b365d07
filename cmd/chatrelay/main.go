// Command chatrelay runs the chat relay server and offers a one-shot
// prompt for checking the upstream proxy from a terminal.
//
// Configuration is read from a YAML file (--config, CHATRELAY_CONFIG,
// ./config.yaml or /etc/chatrelay/config.yaml) and CHATRELAY_* environment
// variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
