package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"ignition/internal/config"
	"ignition/internal/tunnel"
)

// Launcher is the long-running body of one managed daemon. Run blocks until
// its context is cancelled.
type Launcher interface {
	Name() string
	Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error
}

// Well-known launcher names.
const (
	RocketName  = "rocket"
	QueueName   = "queue"
	RecoverName = "recover"
	TunnelName  = "tunnel"
)

// Lookup resolves a launcher by name.
func Lookup(name string) (Launcher, error) {
	l, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown launcher %q (known: %v)", name, Names())
	}
	return l, nil
}

// Names returns all registered launcher names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var registry = map[string]Launcher{
	RocketName: &execLauncher{
		name: RocketName,
		commandLine: func(cfg *config.Config) (string, []string) {
			args := []string{"-w", cfg.RocketWorkerPath()}
			if cfg.Workflow.Tasks > 1 {
				args = append(args, "multi", strconv.Itoa(cfg.Workflow.Tasks))
			} else {
				args = append(args, "singleshot")
			}
			return cfg.Workflow.RocketCommand, args
		},
		interval: func(cfg *config.Config) time.Duration {
			return time.Duration(cfg.Workflow.RocketInterval) * time.Second
		},
	},
	QueueName: &execLauncher{
		name: QueueName,
		commandLine: func(cfg *config.Config) (string, []string) {
			args := []string{"-w", cfg.QueueWorkerPath(), "-q", cfg.QAdapterPath(), "singleshot"}
			return cfg.Workflow.QueueCommand, args
		},
		interval: func(cfg *config.Config) time.Duration {
			return time.Duration(cfg.Workflow.QueueInterval) * time.Second
		},
	},
	RecoverName: &execLauncher{
		name: RecoverName,
		commandLine: func(cfg *config.Config) (string, []string) {
			return cfg.Workflow.RecoverCommand, []string{"recover_offline"}
		},
		interval: func(cfg *config.Config) time.Duration {
			return time.Duration(cfg.Workflow.RecoverInterval) * time.Second
		},
	},
	TunnelName: tunnelLauncher{},
}

// tunnelLauncher keeps the SSH port forward alive as a managed daemon.
type tunnelLauncher struct{}

func (tunnelLauncher) Name() string { return TunnelName }

func (tunnelLauncher) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	forwarder := tunnel.NewForwarder(logger)
	return forwarder.Forward(ctx, tunnel.EndpointFromConfig(cfg))
}
