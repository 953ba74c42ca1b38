package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overlays environment variables on cfg. The short names (PORT,
// IDLE_TIMEOUT, MODEL_PATH, VAE_PATH, OVIS_PATH, API_BASE_URL) are kept for
// existing deployments; IMAGED_* names take precedence where both apply.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("PORT: invalid port %q", v)
		}
		cfg.Server.Addr = ":" + strconv.Itoa(p)
	}
	if v := os.Getenv("IMAGED_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("IDLE_TIMEOUT"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IDLE_TIMEOUT: %w", err)
		}
		cfg.Manager.IdleTimeout = d
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("VAE_PATH"); v != "" {
		cfg.Model.VAEPath = v
	}
	if v := os.Getenv("OVIS_PATH"); v != "" {
		cfg.Model.EncoderPath = v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		cfg.Bridge.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("IMAGED_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("IMAGED_BACKEND"); v != "" {
		cfg.Backend.Kind = v
	}
	if v := os.Getenv("IMAGED_OUTPUTS_DIR"); v != "" {
		cfg.Outputs.Dir = v
	}
	return nil
}
