package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/listing"
	"github.com/tendant/simple-gallery/pkg/gallery/metrics"
	"github.com/tendant/simple-gallery/pkg/gallery/objectkey"
	"github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
	repopg "github.com/tendant/simple-gallery/pkg/gallery/repo/postgres"
	fsstorage "github.com/tendant/simple-gallery/pkg/gallery/storage/fs"
	memorystorage "github.com/tendant/simple-gallery/pkg/gallery/storage/memory"
	s3storage "github.com/tendant/simple-gallery/pkg/gallery/storage/s3"
)

// Database and storage types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"

	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:             "8080",
		Environment:      "development",
		DatabaseType:     DatabaseMemory,
		DBSchema:         "gallery",
		AutoMigrate:      true,
		Storage:          StorageConfig{Type: StorageMemory},
		KeyStrategy:      objectkey.StrategyRandomSuffix,
		MaxUploadBytes:   gallery.MaxImageSize + 1<<20,
		RequestTimeout:   60 * time.Second,
		ListingCacheSize: 64,
		ListingCacheTTL:  30 * time.Second,
		RedirectPath:     gallery.DefaultRedirect,

		EnableEventLogging: true,
		EnableListingCache: true,
		EnableMetrics:      true,
		MetricsNamespace:   metrics.DefaultNamespace,
	}
}

// ServerConfig represents server configuration for the gallery service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: gallery)
	AutoMigrate  bool   // create the upload table on startup

	// Blob storage configuration
	Storage     StorageConfig
	KeyStrategy string // objectkey strategy

	// HTTP options
	MaxUploadBytes int64
	RequestTimeout time.Duration
	RedirectPath   string
	CORSOrigin     string

	// Listing cache
	EnableListingCache bool
	ListingCacheSize   int
	ListingCacheTTL    time.Duration

	// Observability
	EnableEventLogging bool
	EnableMetrics      bool
	MetricsNamespace   string
}

// StorageConfig selects and configures the blob store
type StorageConfig struct {
	Type string // "memory", "fs", "s3"

	// Filesystem
	BaseDir   string
	URLPrefix string

	// S3
	Bucket                 string
	Region                 string
	Endpoint               string
	AccessKeyID            string
	SecretAccessKey        string
	UsePathStyle           bool
	PublicBaseURL          string
	DisableACL             bool
	EnableSSE              bool
	SSEAlgorithm           string
	SSEKMSKeyID            string
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != DatabaseMemory && c.DatabaseType != DatabasePostgres {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == DatabasePostgres && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFS:
		if c.Storage.BaseDir == "" {
			return errors.New("storage base_dir is required for fs storage")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if _, err := objectkey.New(c.KeyStrategy); err != nil {
		return err
	}

	if c.MaxUploadBytes <= gallery.MaxImageSize {
		return fmt.Errorf("max_upload_bytes must exceed the %d byte image limit", gallery.MaxImageSize)
	}

	if c.EnableListingCache && c.ListingCacheSize <= 0 {
		return errors.New("listing_cache_size must be positive when the listing cache is enabled")
	}

	return nil
}

// Components is a wired gallery service and the parts the HTTP layer needs
type Components struct {
	Service    gallery.Service
	Repository gallery.Repository
	BlobStore  gallery.BlobStore
	Listing    *listing.Cache
	Metrics    *metrics.PrometheusObserver

	// BlobDir is set when blobs live on the local filesystem and should be served
	BlobDir       string
	BlobURLPrefix string

	pool *pgxpool.Pool
}

// Ready reports whether the backing database is reachable
func (c *Components) Ready(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close releases the database pool, if any
func (c *Components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Build wires the repository, blob store, listing cache and metrics into a Service.
// reg receives the gallery metrics when metrics are enabled; nil uses the default registerer.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer, extra ...gallery.Option) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	comps := &Components{}

	repo, pool, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	comps.Repository = repo
	comps.pool = pool

	store, err := c.buildStorageBackend(comps)
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}
	comps.BlobStore = store

	options := []gallery.Option{
		gallery.WithRepository(repo),
		gallery.WithBlobStore(c.Storage.Type, store),
		gallery.WithLogger(logger),
		gallery.WithRedirect(c.RedirectPath),
	}

	if c.EnableEventLogging {
		options = append(options, gallery.WithEventSink(gallery.NewLoggingEventSink(logger)))
	}

	if c.EnableListingCache {
		cache, err := listing.New(repo, listing.Config{MaxSize: c.ListingCacheSize, TTL: c.ListingCacheTTL})
		if err != nil {
			comps.Close()
			return nil, fmt.Errorf("failed to build listing cache: %w", err)
		}
		comps.Listing = cache
		options = append(options, gallery.WithListingView(cache), gallery.WithEventSink(cache))
	}

	if c.EnableMetrics {
		observer, err := metrics.NewPrometheusObserver(c.MetricsNamespace, reg)
		if err != nil {
			comps.Close()
			return nil, err
		}
		comps.Metrics = observer
		options = append(options, gallery.WithObserver(observer))
	}

	svc, err := gallery.New(append(options, extra...)...)
	if err != nil {
		comps.Close()
		return nil, err
	}
	comps.Service = svc
	return comps, nil
}

// BuildService creates a Service instance from the server configuration.
// The returned func releases the database pool and must be called when done.
func (c *ServerConfig) BuildService(ctx context.Context, reg prometheus.Registerer) (gallery.Service, func(), error) {
	comps, err := c.Build(ctx, nil, reg)
	if err != nil {
		return nil, nil, err
	}
	return comps.Service, comps.Close, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (gallery.Repository, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil, nil
	case DatabasePostgres:
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		repo := repopg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repo, pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the schema on the search_path.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates the BlobStore for the configured storage type
func (c *ServerConfig) buildStorageBackend(comps *Components) (gallery.BlobStore, error) {
	keys, err := objectkey.New(c.KeyStrategy)
	if err != nil {
		return nil, err
	}

	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(memorystorage.Config{KeyGenerator: keys}), nil

	case StorageFS:
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir:      c.Storage.BaseDir,
			URLPrefix:    c.Storage.URLPrefix,
			KeyGenerator: keys,
		})
		if err != nil {
			return nil, err
		}
		comps.BlobDir = backend.BaseDir()
		comps.BlobURLPrefix = backend.URLPrefix()
		return backend, nil

	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:                 c.Storage.Region,
			Bucket:                 c.Storage.Bucket,
			AccessKeyID:            c.Storage.AccessKeyID,
			SecretAccessKey:        c.Storage.SecretAccessKey,
			Endpoint:               c.Storage.Endpoint,
			UsePathStyle:           c.Storage.UsePathStyle,
			PublicBaseURL:          c.Storage.PublicBaseURL,
			DisableACL:             c.Storage.DisableACL,
			EnableSSE:              c.Storage.EnableSSE,
			SSEAlgorithm:           c.Storage.SSEAlgorithm,
			SSEKMSKeyID:            c.Storage.SSEKMSKeyID,
			CreateBucketIfNotExist: c.Storage.CreateBucketIfNotExist,
			KeyGenerator:           keys,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}
