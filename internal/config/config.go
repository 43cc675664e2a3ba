package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon bookkeeping files.
type Paths struct {
	// PidDir holds launcher PID files. Defaults to the user runtime
	// directory so stale files disappear across reboots.
	PidDir string `toml:"pid_dir"`
	// LogDir holds redirected launcher stdout/stderr, the manager log,
	// and the history database.
	LogDir string `toml:"log_dir"`
}

// Workflow describes the external job-processing engine whose launchers
// ignition supervises.
type Workflow struct {
	// Machine is the short site/host label used to derive worker file names.
	Machine string `toml:"machine"`
	// Scheduler is the batch scheduler label (slurm, pbs, ...) used to
	// derive the queue adapter file name.
	Scheduler string `toml:"scheduler"`
	// ConfigDir is where the engine keeps its worker and adapter files.
	ConfigDir string `toml:"config_dir"`

	// Launcher commands. These are external collaborator binaries; ignition
	// only supervises them.
	RocketCommand  string `toml:"rocket_command"`
	QueueCommand   string `toml:"queue_command"`
	RecoverCommand string `toml:"recover_command"`

	// Relaunch intervals in seconds between consecutive worker invocations.
	RocketInterval  int `toml:"rocket_interval"`
	QueueInterval   int `toml:"queue_interval"`
	RecoverInterval int `toml:"recover_interval"`

	// Tasks is the number of parallel rocket tasks per launch (0 or 1 runs
	// a single task).
	Tasks int `toml:"tasks"`

	// Optional overrides for derived worker/adapter file paths.
	RocketWorkerFile string `toml:"rocket_worker_file"`
	QueueWorkerFile  string `toml:"queue_worker_file"`
	QAdapterFile     string `toml:"qadapter_file"`
}

// Tunnel contains SSH port forward parameters for reaching the engine's
// backing database through a jump host.
type Tunnel struct {
	RemoteHost string `toml:"remote_host"`
	RemotePort int    `toml:"remote_port"`
	// LocalPort of 0 requests a free ephemeral port.
	LocalPort int    `toml:"local_port"`
	SSHHost   string `toml:"ssh_host"`
	SSHUser   string `toml:"ssh_user"`
	SSHKey    string `toml:"ssh_key"`
	SSHPort   int    `toml:"ssh_port"`
	// PortFile receives the chosen local port as decimal text so other
	// processes can discover it. Empty disables the file.
	PortFile string `toml:"port_file"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// History contains launch history database configuration.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for ignition.
//
// Configuration sections by subsystem:
//   - Paths: PID and log directories
//   - Workflow: engine identity and launcher commands/intervals
//   - Tunnel: SSH local port forward parameters
//   - Logging: log format and level
//   - History: launch event audit trail
type Config struct {
	Paths    Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	Tunnel   Tunnel   `toml:"tunnel"`
	Logging  Logging  `toml:"logging"`
	History  History  `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ignition/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ignition.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories daemon operation requires.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.PidDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RocketWorkerPath returns the worker definition file for direct launches,
// derived from the machine name unless overridden.
func (c *Config) RocketWorkerPath() string {
	if strings.TrimSpace(c.Workflow.RocketWorkerFile) != "" {
		return c.Workflow.RocketWorkerFile
	}
	return filepath.Join(c.Workflow.ConfigDir,
		fmt.Sprintf("%s_noqueue_worker.yaml", strings.ToLower(c.Workflow.Machine)))
}

// QueueWorkerPath returns the worker definition file for queue launches,
// derived from the machine name unless overridden.
func (c *Config) QueueWorkerPath() string {
	if strings.TrimSpace(c.Workflow.QueueWorkerFile) != "" {
		return c.Workflow.QueueWorkerFile
	}
	return filepath.Join(c.Workflow.ConfigDir,
		fmt.Sprintf("%s_queue_worker.yaml", strings.ToLower(c.Workflow.Machine)))
}

// QAdapterPath returns the queue adapter file, derived from the machine and
// scheduler names unless overridden.
func (c *Config) QAdapterPath() string {
	if strings.TrimSpace(c.Workflow.QAdapterFile) != "" {
		return c.Workflow.QAdapterFile
	}
	return filepath.Join(c.Workflow.ConfigDir,
		fmt.Sprintf("%s_%s_qadapter.yaml",
			strings.ToLower(c.Workflow.Machine), strings.ToLower(c.Workflow.Scheduler)))
}

// HistoryDBPath returns the launch history database location.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.PidDir, err = expandPath(c.Paths.PidDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Workflow.ConfigDir, err = expandPath(c.Workflow.ConfigDir); err != nil {
		return err
	}
	for _, field := range []*string{
		&c.Workflow.RocketWorkerFile,
		&c.Workflow.QueueWorkerFile,
		&c.Workflow.QAdapterFile,
	} {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		if *field, err = expandPath(*field); err != nil {
			return err
		}
	}
	// The SSH key keeps its tilde form; the tunnel expands it at dial time
	// so the config file stays portable between users.
	c.Tunnel.SSHKey = strings.TrimSpace(c.Tunnel.SSHKey)

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Workflow.Machine = strings.TrimSpace(c.Workflow.Machine)
	c.Workflow.Scheduler = strings.TrimSpace(c.Workflow.Scheduler)
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
