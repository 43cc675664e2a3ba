package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ignition/internal/daemonctl"
	"ignition/internal/launcher"
	"ignition/internal/pidfile"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:       "start <launcher>",
		Short:     "Start a launcher daemon in the background",
		Args:      cobra.ExactArgs(1),
		ValidArgs: launcher.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := launcher.Lookup(name); err != nil {
				return err
			}
			cfg := ctx.configValue()
			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			pid, err := daemonctl.Spawn(cfg, logger, name, launchOptions(ctx))
			var running *pidfile.AlreadyRunningError
			if errors.As(err, &running) {
				fmt.Fprintf(stdout, "%s launcher already running (pid %d)\n", name, running.PID)
				return nil
			}
			if err != nil {
				return err
			}
			if err := daemonctl.WaitRunning(cfg, logger, name, startWaitTimeout); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Started %s launcher (pid %d)\n", name, pid)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:       "stop <launcher>",
		Short:     "Stop a running launcher daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: launcher.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := launcher.Lookup(name); err != nil {
				return err
			}
			cfg := ctx.configValue()
			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			stopped, err := daemonctl.Stop(cmd.Context(), cfg, logger, name)
			if err != nil {
				return err
			}
			if !stopped {
				fmt.Fprintf(stdout, "%s launcher is not running\n", name)
				return nil
			}
			if err := daemonctl.WaitStopped(cfg, logger, name, stopGracePeriod); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Stopped %s launcher\n", name)
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:       "restart <launcher>",
		Short:     "Restart a launcher daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: launcher.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := launcher.Lookup(name); err != nil {
				return err
			}
			cfg := ctx.configValue()
			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			wasRunning, pid, err := daemonctl.Restart(cmd.Context(), cfg, logger, name, launchOptions(ctx), stopGracePeriod)
			if err != nil {
				return err
			}
			if wasRunning {
				fmt.Fprintf(stdout, "Stopped %s launcher\n", name)
			}
			if err := daemonctl.WaitRunning(cfg, logger, name, startWaitTimeout); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Started %s launcher (pid %d)\n", name, pid)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status [launcher...]",
		Short: "Show launcher daemon status",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = launcher.Names()
			}
			for _, name := range names {
				if _, err := launcher.Lookup(name); err != nil {
					return err
				}
			}
			cfg := ctx.configValue()
			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			statuses := daemonctl.Status(cfg, logger, names)
			for _, line := range renderSectionHeader("Launcher Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, status := range statuses {
				kind, detail := describeStatus(status)
				fmt.Fprintln(stdout, renderStatusLine(status.Name, kind, detail, colorize))
			}
			fmt.Fprintln(stdout)

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				pid := ""
				if status.PID > 0 {
					pid = strconv.Itoa(status.PID)
				}
				rows = append(rows, []string{status.Name, status.Result.String(), pid, status.PidFile})
			}
			table := renderTable([]string{"Launcher", "State", "PID", "PID File"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func describeStatus(status daemonctl.LauncherStatus) (statusKind, string) {
	switch status.Result {
	case pidfile.Running:
		return statusOK, fmt.Sprintf("Running (pid %d)", status.PID)
	case pidfile.NoFile:
		return statusInfo, "Not running"
	case pidfile.NotRunning:
		return statusWarn, fmt.Sprintf("Not running, stale PID file (pid %d)", status.PID)
	case pidfile.Unreadable:
		return statusError, fmt.Sprintf("Unreadable PID file at %s", status.PidFile)
	case pidfile.AccessDenied:
		return statusWarn, "Process exists but is not accessible"
	default:
		return statusInfo, status.Result.String()
	}
}

func launchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = *ctx.logLevelFlag
	}
	return opts
}
