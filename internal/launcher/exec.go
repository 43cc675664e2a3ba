package launcher

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"ignition/internal/config"
	"ignition/internal/logging"
)

// execLauncher supervises an external worker command, re-invoking it at a
// fixed interval until the context ends. A failing worker is logged and
// relaunched; the daemon itself stays up.
type execLauncher struct {
	name        string
	commandLine func(cfg *config.Config) (string, []string)
	interval    func(cfg *config.Config) time.Duration
}

func (l *execLauncher) Name() string { return l.name }

func (l *execLauncher) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	command, args := l.commandLine(cfg)
	interval := l.interval(cfg)
	log := logging.NewComponentLogger(logger, "launcher").With(logging.String(logging.FieldLauncher, l.name))
	log.Info("supervising worker",
		logging.String("command", command+" "+strings.Join(args, " ")),
		logging.Duration("interval", interval),
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		cmd := exec.CommandContext(ctx, command, args...)
		// The daemon's streams are already redirected to its log files.
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		start := time.Now()
		err := cmd.Run()
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			log.Warn("worker exited with error",
				logging.Error(err),
				logging.Duration("runtime", time.Since(start)),
			)
		default:
			log.Debug("worker finished", logging.Duration("runtime", time.Since(start)))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
