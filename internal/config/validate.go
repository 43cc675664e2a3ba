package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTunnel(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Machine == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ignition/config.toml"
		}
		return fmt.Errorf("workflow.machine is required. Edit %s (create with 'ignition config init')", defaultPath)
	}
	for _, interval := range []struct {
		name  string
		value int
	}{
		{"workflow.rocket_interval", c.Workflow.RocketInterval},
		{"workflow.queue_interval", c.Workflow.QueueInterval},
		{"workflow.recover_interval", c.Workflow.RecoverInterval},
	} {
		if interval.value <= 0 {
			return fmt.Errorf("%s must be a positive number of seconds", interval.name)
		}
	}
	if c.Workflow.Tasks < 0 {
		return errors.New("workflow.tasks must not be negative")
	}
	return nil
}

func (c *Config) validateTunnel() error {
	if strings.TrimSpace(c.Tunnel.SSHHost) == "" {
		// Tunnel is optional until the forward command or tunnel launcher
		// is used; structural checks still apply to what is set.
		return c.validateTunnelPorts()
	}
	if strings.TrimSpace(c.Tunnel.SSHUser) == "" {
		return errors.New("tunnel.ssh_user must be set when tunnel.ssh_host is configured")
	}
	if strings.TrimSpace(c.Tunnel.RemoteHost) == "" {
		return errors.New("tunnel.remote_host must be set when tunnel.ssh_host is configured")
	}
	if c.Tunnel.RemotePort <= 0 {
		return errors.New("tunnel.remote_port must be set when tunnel.ssh_host is configured")
	}
	return c.validateTunnelPorts()
}

func (c *Config) validateTunnelPorts() error {
	for _, port := range []struct {
		name  string
		value int
	}{
		{"tunnel.remote_port", c.Tunnel.RemotePort},
		{"tunnel.local_port", c.Tunnel.LocalPort},
		{"tunnel.ssh_port", c.Tunnel.SSHPort},
	} {
		if port.value < 0 || port.value > 65535 {
			return fmt.Errorf("%s must be between 0 and 65535", port.name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
