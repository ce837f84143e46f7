package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured database is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openConnection(nil)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		defer cancel()
		if err := conn.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", cfg.Driver, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (config: %s)\n", cfg.Driver, resolveString(configPath, "none"))
		return nil
	},
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "ping timeout")
}
