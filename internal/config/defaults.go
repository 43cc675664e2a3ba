package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	defaultLogDir         = "~/.local/share/ignition/logs"
	defaultConfigDir      = "~/.config/ignition/workflow"
	defaultRocketCommand  = "rlaunch"
	defaultQueueCommand   = "qlaunch"
	defaultRecoverCommand = "lpad"
	defaultLaunchInterval = 10
	defaultSSHPort        = 22
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultHistoryEnabled = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PidDir: defaultPidDir(),
			LogDir: defaultLogDir,
		},
		Workflow: Workflow{
			ConfigDir:       defaultConfigDir,
			RocketCommand:   defaultRocketCommand,
			QueueCommand:    defaultQueueCommand,
			RecoverCommand:  defaultRecoverCommand,
			RocketInterval:  defaultLaunchInterval,
			QueueInterval:   defaultLaunchInterval,
			RecoverInterval: defaultLaunchInterval,
		},
		Tunnel: Tunnel{
			SSHPort: defaultSSHPort,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
	}
}

// defaultPidDir resolves a per-user runtime directory for PID files. Falling
// back to the state directory keeps things working on systems without a
// runtime dir (e.g. no logind session).
func defaultPidDir() string {
	if dir := xdg.RuntimeDir; dir != "" {
		return filepath.Join(dir, "ignition")
	}
	return filepath.Join(xdg.StateHome, "ignition")
}
