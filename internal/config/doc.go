// Package config loads imaged configuration from YAML, JSON or TOML files,
// overlays environment variables and validates the result. Watch re-loads a
// file on change for settings that may move at runtime.
package config
