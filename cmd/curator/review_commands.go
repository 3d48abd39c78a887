package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/api"
	"curator/internal/store"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and clear the manual review queue",
	}
	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewClearCommand(ctx))
	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items needing review, lowest score first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				items, err := api.NewReviewService(st).List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, api.ReviewListResponse{Items: items})
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Review queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Type", "ID", "Title", "Score", "Reason", "Updated"},
					reviewRows(items),
					3,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the review queue as JSON")
	return cmd
}

func reviewRows(items []api.ReviewItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		title := item.DisplayName
		if strings.TrimSpace(title) == "" {
			title = "-"
		}
		rows = append(rows, []string{
			item.ItemType,
			item.ExternalID,
			title,
			strconv.FormatFloat(item.Score, 'f', 1, 64),
			item.Reason,
			item.UpdatedAt,
		})
	}
	return rows
}

func newReviewClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <type> <id>",
		Short: "Remove one entry from the review queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				resp, err := api.NewReviewService(st).Clear(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if !resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "No review entry for %s\n", resp.Key)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared review entry %s\n", resp.Key)
				return nil
			})
		},
	}
}
