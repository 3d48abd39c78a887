package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "reprocess <host-item-id>",
		Short: "Reprocess one host item immediately",
		Long:  "Reprocess looks the item up on the host and dispatches it without waiting for the debounce window. Episodes and seasons are reprocessed through their series.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Reprocess(cmd.Context(), strings.TrimSpace(args[0]), deep)
				if err != nil {
					return err
				}
				mode := "reprocess"
				if resp.Deep {
					mode = "deep refresh"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dispatched %s for %s %q (%s)\n", mode, resp.ItemType, resp.DisplayName, resp.HostItemID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "Re-fetch metadata and cast even when the record is complete")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Walk the host library and dispatch every movie and series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Scan(cmd.Context(), deep)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "Deep refresh every item")
	return cmd
}
