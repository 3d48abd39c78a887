package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"curator/internal/api"
	"curator/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and record store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			err := ctx.withClient(func(client *api.Client) error {
				var err error
				status, err = client.Status(cmd.Context())
				return err
			})
			if err != nil {
				if !errors.Is(err, api.ErrDaemonUnavailable) {
					return err
				}
				// Fall back to the store so counts are visible while stopped.
				err = ctx.withStore(func(st *store.Store) error {
					status.DatabasePath = st.Path()
					stats, err := st.Stats(cmd.Context())
					if err != nil {
						status.StoreError = err.Error()
						return nil
					}
					status.Store = api.FromStoreStats(stats)
					return nil
				})
				if err != nil {
					return err
				}
			}
			if jsonOut {
				return printJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status, isTerminal(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}

func renderStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	p := statusPrinter{out: out, color: colorize}
	p.section("Daemon")
	if status.Running {
		p.line("curator", healthGood, fmt.Sprintf("running (pid %d)", status.PID))
		p.line("started", healthInfo, status.StartedAt)
		p.line("pending keys", healthInfo, strconv.Itoa(status.PendingKeys))
		p.line("library scan", healthInfo, yesNo(status.ScanInProgress))
	} else {
		p.line("curator", healthDown, "not running")
	}
	if status.DatabasePath != "" {
		p.line("database", healthInfo, status.DatabasePath)
	}
	if status.OverrideRoot != "" {
		p.line("override cache", healthInfo, status.OverrideRoot)
	}
	fmt.Fprintln(out)

	p.section("Records")
	if status.StoreError != "" {
		p.line("store", healthDown, status.StoreError)
		return
	}
	s := status.Store
	review := healthGood
	if s.Review > 0 || s.Failed > 0 {
		review = healthDegraded
	}
	p.line("review queue", review, fmt.Sprintf("%d waiting, %d failed", s.Review, s.Failed))
	rows := [][]string{
		{"Records", strconv.Itoa(s.Records)},
		{"In library", strconv.Itoa(s.InLibrary)},
		{"Children", strconv.Itoa(s.Children)},
		{"Actors", strconv.Itoa(s.Actors)},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Needs review", strconv.Itoa(s.Review)},
	}
	if status.Running {
		d := status.Dispatch
		rows = append(rows,
			[]string{"Units dispatched", strconv.FormatInt(d.Dispatched, 10)},
			[]string{"Units running", strconv.FormatInt(d.Running, 10)},
			[]string{"Units failed", strconv.FormatInt(d.Failed, 10)},
		)
	}
	fmt.Fprintln(out, renderTable([]string{"Metric", "Count"}, rows, 1))
}
