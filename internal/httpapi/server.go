package httpapi

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imaged/pkg/types"
)

// Service defines the methods required by the HTTP API layer. The lifecycle
// manager implements it.
type Service interface {
	Generate(ctx context.Context, req types.GenerationRequest) (types.GenerationResult, error)
	Status() types.StatusResponse
	Ready() bool
	IdleTimeout() time.Duration
	SetIdleTimeout(d time.Duration)
}

// ImageStore persists generated images. outputs.Store implements it.
type ImageStore interface {
	Save(res types.GenerationResult) (types.ImageInfo, error)
	List() ([]types.ImageInfo, error)
	Stat(name string) (types.ImageInfo, error)
	Open(name string) (*os.File, error)
}

func NewMux(svc Service, images ImageStore) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc, images: images}

	// Compression for JSON endpoints; PNG bodies are already compressed.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json", "text/html"))
		r.Get("/status", h.status)
		r.Get("/api/images", h.listImages)
		r.Get("/api/images/{filename}", h.imageInfo)
		r.Get("/api/idle-timeout", h.getIdleTimeout)
		r.Put("/api/idle-timeout", h.putIdleTimeout)
		if uiEnabled {
			r.Get("/", h.uiIndex)
			r.Post("/ui/generate", h.uiGenerate)
		}
	})
	r.Post("/api/generate", h.generate)
	r.Get("/outputs/{filename}", h.serveOutput)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc    Service
	images ImageStore
}

// status godoc
// @Summary      Lifecycle status
// @Description  Slot state, idle countdown, in-flight claims and lifetime counters.
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}
