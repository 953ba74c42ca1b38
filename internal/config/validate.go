package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Validate reports every problem found in cfg, joined.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr: must not be empty"))
	}
	if c.Server.MaxBody == 0 {
		errs = append(errs, errors.New("server.max_body: must be positive"))
	}
	if c.Server.GenerateTimeout.Duration < 0 {
		errs = append(errs, errors.New("server.generate_timeout: must not be negative"))
	}
	if c.Manager.ReclaimInterval.Duration < 0 {
		errs = append(errs, errors.New("manager.reclaim_interval: must not be negative"))
	}
	if c.Manager.MaxConcurrentCompute < 0 {
		errs = append(errs, errors.New("manager.max_concurrent_compute: must not be negative"))
	}
	if strings.TrimSpace(c.Model.Path) == "" {
		errs = append(errs, errors.New("model.path: must not be empty"))
	}
	switch c.Backend.Kind {
	case "worker":
		if c.Backend.WorkerBin == "" {
			errs = append(errs, errors.New("backend.worker_bin: required for the worker backend"))
		}
		if c.Backend.PortStart != 0 || c.Backend.PortEnd != 0 {
			if c.Backend.PortStart <= 0 || c.Backend.PortEnd < c.Backend.PortStart || c.Backend.PortEnd > 65535 {
				errs = append(errs, fmt.Errorf("backend.port_start/port_end: invalid range %d-%d", c.Backend.PortStart, c.Backend.PortEnd))
			}
		}
	case "synthetic":
	default:
		errs = append(errs, fmt.Errorf("backend.kind: unknown backend %q (want worker or synthetic)", c.Backend.Kind))
	}
	if strings.TrimSpace(c.Outputs.Dir) == "" {
		errs = append(errs, errors.New("outputs.dir: must not be empty"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
