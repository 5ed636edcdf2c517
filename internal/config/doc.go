// Package config loads, normalizes, and validates autosplit configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// CLI needs: where clips, downloads and scratch files go, how often frames are
// probed, where the overlay sits on screen, and which external binaries run.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
