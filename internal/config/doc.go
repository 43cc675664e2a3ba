// Package config loads, normalizes, and validates ignition configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and derives worker/adapter file locations from
// the machine and scheduler labels. The Config type centralizes every knob the
// daemon manager, launchers, and tunnel need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
