package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imaged/internal/backend"
	"imaged/internal/config"
	"imaged/internal/httpapi"
	"imaged/internal/logging"
	"imaged/internal/manager"
	"imaged/internal/outputs"
	"imaged/pkg/types"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API and browser UI",
		Example: "  imaged serve --config imaged.yaml\n  IMAGED_BACKEND=synthetic imaged serve",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log, closer, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer closer.Close()
			configPath := ""
			if watch {
				configPath = opts.configPath
			}
			return serve(cmd.Context(), cfg, configPath, log)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "Re-read the config file on change (idle timeout and model source)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, configPath string, log zerolog.Logger) error {
	store, err := outputs.NewStore(cfg.Outputs.Dir)
	if err != nil {
		return err
	}
	be, err := backend.New(cfg.Backend, cfg.Model, log)
	if err != nil {
		return err
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Backend:              be,
		Source:               modelSource(cfg.Model),
		IdleTimeout:          idleTimeout(cfg.Manager),
		ReclaimInterval:      cfg.Manager.ReclaimInterval.Duration,
		MaxConcurrentCompute: cfg.Manager.MaxConcurrentCompute,
		DrainTimeout:         cfg.Manager.DrainTimeout.Duration,
		Logger:               &log,
		Publisher:            manager.MultiPublisher{httpapi.MetricsPublisher{}},
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	configureHTTP(cfg, log, baseCtx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewMux(mgr, store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Str("backend", cfg.Backend.Kind).Str("model", cfg.Model.Path).
			Str("outputs", store.Dir()).Msg("imaged listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Manager.DrainTimeout.Duration)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown incomplete; closing connections")
			_ = srv.Close()
		}
		// Waiters still blocked in Generate get 503.
		cancelBase()
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("manager close")
		}
		return nil
	})
	if configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, configPath, func(next config.Config, err error) {
				if err != nil {
					log.Error().Err(err).Str("path", configPath).Msg("config reload failed; keeping previous settings")
					return
				}
				applyReload(mgr, next, log)
			})
			if err != nil {
				log.Warn().Err(err).Msg("config watch disabled")
			}
			return nil
		})
	}
	return g.Wait()
}

// reloadTarget is the part of the manager a config reload may change.
type reloadTarget interface {
	SetIdleTimeout(time.Duration)
	SetSource(types.ModelSource)
}

// applyReload pushes deployment-scoped settings from a re-read config file.
// Everything else needs a restart.
func applyReload(m reloadTarget, cfg config.Config, log zerolog.Logger) {
	m.SetIdleTimeout(idleTimeout(cfg.Manager))
	m.SetSource(modelSource(cfg.Model))
	log.Info().Dur("idle_timeout", cfg.Manager.IdleTimeout.Duration).Str("model", cfg.Model.Path).Msg("config reloaded")
}

func configureHTTP(cfg config.Config, log zerolog.Logger, base context.Context) {
	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(base)
	httpapi.SetMaxBodyBytes(int64(cfg.Server.MaxBody.Bytes()))
	httpapi.SetGenerateTimeout(cfg.Server.GenerateTimeout.Duration)
	httpapi.SetCORSOptions(cfg.Server.CORS.Enabled, cfg.Server.CORS.AllowedOrigins, cfg.Server.CORS.AllowedMethods, cfg.Server.CORS.AllowedHeaders)
	httpapi.SetUIOptions(cfg.UI.Enabled, cfg.UI.AllowIdleTimeoutOverride)
	httpapi.SetRequestLogLevel(requestLogLevel(cfg.Log.Level))
}

// requestLogLevel maps the process level onto the HTTP layer's per-request
// levels.
func requestLogLevel(level string) string {
	switch level {
	case "debug", "trace":
		return "debug"
	case "warn", "error", "fatal", "panic":
		return "error"
	case "disabled":
		return "off"
	default:
		return "info"
	}
}

// idleTimeout keeps zero meaning "default" across reloads; the manager only
// applies that rule at construction.
func idleTimeout(m config.Manager) time.Duration {
	if m.IdleTimeout.Duration == 0 {
		return 300 * time.Second
	}
	return m.IdleTimeout.Duration
}

func modelSource(m config.Model) types.ModelSource {
	return types.ModelSource{Model: m.Path, VAE: m.VAEPath, Encoder: m.EncoderPath}
}
