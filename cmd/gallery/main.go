package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand(serviceFromEnv)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ServiceFactory builds the gallery service a command runs against.
// The returned func releases its resources.
type ServiceFactory func(ctx context.Context, logger *slog.Logger) (gallery.Service, func(), error)

func NewRootCommand(factory ServiceFactory) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "gallery",
		Short: "Image gallery CLI",
		Long: `Image gallery command line interface.

Manages gallery uploads directly against the configured database and blob store.
Reads DATABASE_URL, STORAGE_URL and the other gallery settings from the
environment or a .env file. Uses in-memory storage when none are set.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewListCommand(factory))
	rootCmd.AddCommand(NewShowCommand(factory))
	rootCmd.AddCommand(NewUploadCommand(factory))
	rootCmd.AddCommand(NewEditCommand(factory))
	rootCmd.AddCommand(NewDeleteCommand(factory))

	return rootCmd
}

func serviceFromEnv(ctx context.Context, logger *slog.Logger) (gallery.Service, func(), error) {
	cfg, err := config.Load(config.WithEnv(""), config.WithMetrics(false), config.WithListingCache(0, 0))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	comps, err := cfg.Build(ctx, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return comps.Service, comps.Close, nil
}

// withService runs fn against a freshly built service
func withService(cmd *cobra.Command, factory ServiceFactory, fn func(svc gallery.Service) error) error {
	logger := commandLogger(cmd)
	svc, closeFn, err := factory(cmd.Context(), logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(svc)
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
