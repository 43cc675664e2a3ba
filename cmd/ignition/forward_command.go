package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ignition/internal/logging"
	"ignition/internal/tunnel"
)

// newForwardCommand runs the SSH port forward in the foreground, without the
// daemon machinery. Useful for debugging tunnel configuration; the managed
// variant is `ignition start tunnel`.
func newForwardCommand(ctx *commandContext) *cobra.Command {
	var localPort int
	var portFile string

	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Run the SSH port forward in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return err
			}
			logger = logging.NewComponentLogger(logger, "tunnel")

			ep := tunnel.EndpointFromConfig(cfg)
			if cmd.Flags().Changed("local-port") {
				ep.LocalPort = localPort
			}
			if cmd.Flags().Changed("port-file") {
				ep.PortFile = portFile
			}
			if ep.RemoteHost == "" || ep.SSHHost == "" {
				return fmt.Errorf("tunnel is not configured (set tunnel.remote_host and tunnel.ssh_host)")
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return tunnel.NewForwarder(logger).Forward(signalCtx, ep)
		},
	}

	cmd.Flags().IntVar(&localPort, "local-port", 0, "Local port to bind (0 picks a free port)")
	cmd.Flags().StringVar(&portFile, "port-file", "", "File that receives the chosen local port")
	return cmd
}
