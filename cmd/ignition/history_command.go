package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ignition/internal/history"
	"ignition/internal/launcher"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [launcher]",
		Short: "Show recorded launch events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				if _, err := launcher.Lookup(args[0]); err != nil {
					return err
				}
				name = args[0]
			}

			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(stdout, "Launch history is disabled (set history.enabled = true)")
				return nil
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			events, err := store.List(cmd.Context(), name, limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(stdout, "No launch events recorded")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, event := range events {
				rows = append(rows, []string{
					event.CreatedAt.Local().Format(time.RFC3339),
					event.Launcher,
					string(event.Type),
					strconv.Itoa(event.PID),
					event.Detail,
				})
			}
			table := renderTable([]string{"Time", "Launcher", "Event", "PID", "Detail"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events to show")
	return cmd
}
