package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/simple-gallery/pkg/gallery"
)

// RouterConfig configures NewRouter
type RouterConfig struct {
	Service        gallery.Service
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *slog.Logger

	// Metrics is mounted at /metrics when set
	Metrics http.Handler

	// Ready backs /healthz/ready. Nil means always ready.
	Ready func(ctx context.Context) error

	// BlobDir is served under BlobURLPrefix when set (filesystem blob store)
	BlobDir       string
	BlobURLPrefix string

	// CORSOrigin enables permissive CORS for the given origin, e.g. "*" in development
	CORSOrigin string
}

// NewRouter builds the gallery HTTP surface
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.CORSOrigin != "" {
		r.Use(corsMiddleware(cfg.CORSOrigin))
	}

	RoutesHealthz(r)
	RoutesHealthzReady(r, cfg.Ready)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.BlobDir != "" {
		prefix := strings.TrimSuffix(cfg.BlobURLPrefix, "/")
		if prefix == "" {
			prefix = "/blobs"
		}
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.BlobDir)))
		r.Method(http.MethodGet, prefix+"/*", fileServer)
	}

	uploads := NewUploadHandler(cfg.Service,
		WithMaxUploadBytes(cfg.MaxUploadBytes),
		WithHandlerLogger(cfg.Logger),
	)
	r.Get("/", uploads.ListUploads)
	r.Mount("/uploads", uploads.Routes())

	return r
}

func RoutesHealthz(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
}

func RoutesHealthzReady(r chi.Router, ready func(ctx context.Context) error) {
	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
				render.Status(r, http.StatusServiceUnavailable)
				render.PlainText(w, r, http.StatusText(http.StatusServiceUnavailable))
				return
			}
		}
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
}

func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
