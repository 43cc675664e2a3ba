package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ignition/internal/daemon"
	"ignition/internal/history"
	"ignition/internal/launcher"
	"ignition/internal/logging"
)

// newRunCommand builds the hidden daemon body command. `ignition start`
// re-executes the binary with `run <launcher>` in a new session; this command
// is what actually acquires the PID lock and supervises the launcher.
func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    "run <launcher>",
		Short:  "Run a launcher daemon in the foreground",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			l, err := launcher.Lookup(args[0])
			if err != nil {
				return err
			}

			// Stdout is already redirected to the launcher's log file when
			// spawned detached; running in a terminal logs straight to it.
			logger, err := logging.New(logging.Options{
				Level:       ctx.logLevel(cfg),
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger = logging.NewComponentLogger(logger, l.Name())

			var store *history.Store
			if cfg.History.Enabled {
				store, err = history.Open(cfg)
				if err != nil {
					logger.Warn("open history store", logging.Error(err))
					store = nil
				}
			}

			mgr, err := daemon.NewManager(l.Name(), cfg, logger, store)
			if err != nil {
				return err
			}
			return mgr.Run(cmd.Context(), func(runCtx context.Context) error {
				return l.Run(runCtx, cfg, logger)
			})
		},
	}
}
