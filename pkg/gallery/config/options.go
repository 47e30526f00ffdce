package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != DatabaseMemory && dbType != DatabasePostgres {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == DatabasePostgres && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseURL picks the database type from a connection string.
// Empty and "memory" select the in-memory repository.
func WithDatabaseURL(dbURL string) Option {
	return func(c *ServerConfig) error {
		switch {
		case dbURL == "" || dbURL == "memory":
			c.DatabaseType = DatabaseMemory
			c.DatabaseURL = ""
		case isPostgresURL(dbURL):
			c.DatabaseType = DatabasePostgres
			c.DatabaseURL = dbURL
		default:
			return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
		}
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorageURL configures the blob store from a memory://, file:// or s3:// URL
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		storage, err := parseStorageURL(storageURL)
		if err != nil {
			return err
		}
		c.Storage = storage
		return nil
	}
}

// WithFilesystemStorage stores blobs under baseDir, served at urlPrefix
func WithFilesystemStorage(baseDir, urlPrefix string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: StorageFS, BaseDir: baseDir, URLPrefix: urlPrefix}
		return nil
	}
}

// WithS3Storage stores blobs in an S3 or S3-compatible bucket
func WithS3Storage(storage StorageConfig) Option {
	return func(c *ServerConfig) error {
		if storage.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		storage.Type = StorageS3
		c.Storage = storage
		return nil
	}
}

// WithKeyStrategy selects the object key strategy
func WithKeyStrategy(strategy string) Option {
	return func(c *ServerConfig) error {
		c.KeyStrategy = strategy
		return nil
	}
}

// WithListingCache sizes the listing cache. size 0 disables it.
func WithListingCache(size int, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if size < 0 {
			return fmt.Errorf("listing cache size cannot be negative")
		}
		c.EnableListingCache = size > 0
		c.ListingCacheSize = size
		c.ListingCacheTTL = ttl
		return nil
	}
}

// WithMetrics enables or disables Prometheus metrics
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}

// WithEventLogging enables or disables the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithRedirectPath sets where successful mutations redirect browsers
func WithRedirectPath(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return fmt.Errorf("redirect path cannot be empty")
		}
		c.RedirectPath = path
		return nil
	}
}
