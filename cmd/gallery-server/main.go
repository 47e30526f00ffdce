package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-gallery/pkg/gallery/api"
	"github.com/tendant/simple-gallery/pkg/gallery/config"
)

// Config holds process-level settings. Service settings are read by config.WithEnv.
type Config struct {
	Host            string        `env:"HOST" env-default:""`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	EnvPrefix       string        `env:"GALLERY_ENV_PREFIX" env-default:""`
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var appConfig Config
	if err := cleanenv.ReadEnv(&appConfig); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(appConfig.LogFormat, appConfig.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(appConfig.EnvPrefix))
	if err != nil {
		logger.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig, serverConfig, logger); err != nil {
		logger.Error("Server error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, appConfig Config, serverConfig *config.ServerConfig, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	comps, err := serverConfig.Build(ctx, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer comps.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", appConfig.Host, serverConfig.Port),
		Handler:           newHandler(serverConfig, comps, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gallery server starting",
			"addr", httpServer.Addr,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}

func newHandler(serverConfig *config.ServerConfig, comps *config.Components, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	routerConfig := api.RouterConfig{
		Service:        comps.Service,
		MaxUploadBytes: serverConfig.MaxUploadBytes,
		RequestTimeout: serverConfig.RequestTimeout,
		Logger:         logger,
		Ready:          comps.Ready,
		BlobDir:        comps.BlobDir,
		BlobURLPrefix:  comps.BlobURLPrefix,
		CORSOrigin:     serverConfig.CORSOrigin,
	}
	if routerConfig.CORSOrigin == "" && serverConfig.Environment == "development" {
		routerConfig.CORSOrigin = "*"
	}
	if serverConfig.EnableMetrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		routerConfig.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}
	return api.NewRouter(routerConfig)
}

func newLogger(format, level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
