package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/host"
)

func newRefreshPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-path <path>",
		Short: "Ask the host to rescan a filesystem path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := host.New(cfg.Host)
			if err != nil {
				return fmt.Errorf("host client: %w", err)
			}
			_, name, ok, err := client.FindNearestKnownAncestor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not inside any host library folder", args[0])
			}
			if err := client.RefreshByPath(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refresh requested for %s (library %q)\n", args[0], name)
			return nil
		},
	}
}
