// Package backend implements the model loader and compute invoker used by the
// lifecycle manager: a worker subprocess for real models and a synthetic
// in-process renderer for demos and tests.
package backend

import (
	"fmt"

	"github.com/rs/zerolog"

	"imaged/internal/config"
	"imaged/internal/manager"
)

const (
	KindWorker    = "worker"
	KindSynthetic = "synthetic"
)

// New selects a backend by cfg.Kind.
func New(cfg config.Backend, model config.Model, log zerolog.Logger) (manager.Backend, error) {
	switch cfg.Kind {
	case KindWorker, "":
		return NewWorker(cfg, NewArtifacts(model, log), log), nil
	case KindSynthetic:
		return NewSynthetic(cfg.LoadDelay.Duration, log), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}
