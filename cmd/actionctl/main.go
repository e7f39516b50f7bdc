// actionctl calls entry points on a running server, mints development tokens and lists the catalogue.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	addr    string
	token   string
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "actionctl",
		Short:         "Client for the server-actions gRPC API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:8080", "gRPC server address")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ACTIONCTL_TOKEN"), "Bearer token (default $ACTIONCTL_TOKEN)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-call timeout")

	cmd.AddCommand(
		newCallCommand(opts),
		newTokenCommand(),
		newActionsCommand(),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
