package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//
//	PORT, ENVIRONMENT, REDIRECT_PATH, CORS_ORIGIN, MAX_UPLOAD_BYTES, REQUEST_TIMEOUT
//
// Database:
//
//	DATABASE_URL - "memory" (default) or "postgres://..." / "postgresql://..."
//	DB_SCHEMA    - Postgres schema (default: gallery)
//	AUTO_MIGRATE - create the upload table on startup (default: true)
//
// Storage:
//
//	STORAGE_URL - one of
//	              "memory://" (default)
//	              "file:///path/to/data?url_prefix=/blobs"
//	              "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//	OBJECT_KEY_STRATEGY - filename, random-suffix (default) or sharded
//
// Listing and observability:
//
//	LISTING_CACHE, LISTING_CACHE_SIZE, LISTING_CACHE_TTL, EVENT_LOGGING, METRICS, METRICS_NAMESPACE
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "REDIRECT_PATH"); ok && v != "" {
			c.RedirectPath = v
		}
		if v, ok := lookupEnv(prefix, "CORS_ORIGIN"); ok {
			c.CORSOrigin = v
		}
		if v, ok := lookupEnv(prefix, "OBJECT_KEY_STRATEGY"); ok && v != "" {
			c.KeyStrategy = v
		}
		if v, ok := lookupEnv(prefix, "METRICS_NAMESPACE"); ok && v != "" {
			c.MetricsNamespace = v
		}

		if n, ok, err := parseIntEnv(prefix, "MAX_UPLOAD_BYTES"); err != nil {
			return err
		} else if ok {
			c.MaxUploadBytes = int64(n)
		}
		if n, ok, err := parseIntEnv(prefix, "LISTING_CACHE_SIZE"); err != nil {
			return err
		} else if ok {
			c.ListingCacheSize = n
		}
		if d, ok, err := parseDurationEnv(prefix, "LISTING_CACHE_TTL"); err != nil {
			return err
		} else if ok {
			c.ListingCacheTTL = d
		}
		if d, ok, err := parseDurationEnv(prefix, "REQUEST_TIMEOUT"); err != nil {
			return err
		} else if ok {
			c.RequestTimeout = d
		}

		for key, dst := range map[string]*bool{
			"AUTO_MIGRATE":  &c.AutoMigrate,
			"LISTING_CACHE": &c.EnableListingCache,
			"EVENT_LOGGING": &c.EnableEventLogging,
			"METRICS":       &c.EnableMetrics,
		} {
			b, ok, err := parseBoolEnv(prefix, key)
			if err != nil {
				return err
			}
			if ok {
				*dst = b
			}
		}

		if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok {
			c.DBSchema = v
		}
		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		return applyStorageEnv(prefix, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, ok := lookupEnv(prefix, "DATABASE_URL")
	if !ok {
		return nil
	}
	return WithDatabaseURL(dbURL)(c)
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, ok := lookupEnv(prefix, "STORAGE_URL")
	if !ok {
		return nil
	}
	if err := WithStorageURL(storageURL)(c); err != nil {
		return err
	}

	if c.Storage.Type == StorageS3 {
		// Standard AWS variables are not prefixed
		if v, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && v != "" {
			c.Storage.AccessKeyID = v
		}
		if v, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && v != "" {
			c.Storage.SecretAccessKey = v
		}
		if v, ok := os.LookupEnv("AWS_REGION"); ok && v != "" && c.Storage.Region == "" {
			c.Storage.Region = v
		}
	}
	return nil
}

// parseStorageURL turns a STORAGE_URL into a StorageConfig
func parseStorageURL(raw string) (StorageConfig, error) {
	if raw == "" || raw == "memory" {
		return StorageConfig{Type: StorageMemory}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	q := u.Query()

	switch u.Scheme {
	case "memory":
		return StorageConfig{Type: StorageMemory}, nil

	case "file":
		dir := u.Path
		if u.Host != "" {
			// file://relative/dir
			dir = u.Host + u.Path
		}
		if dir == "" {
			return StorageConfig{}, fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageConfig{
			Type:      StorageFS,
			BaseDir:   dir,
			URLPrefix: q.Get("url_prefix"),
		}, nil

	case "s3":
		if u.Host == "" {
			return StorageConfig{}, fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		cfg := StorageConfig{
			Type:          StorageS3,
			Bucket:        u.Host,
			Region:        q.Get("region"),
			Endpoint:      q.Get("endpoint"),
			PublicBaseURL: q.Get("public_base_url"),
			SSEAlgorithm:  q.Get("sse"),
			SSEKMSKeyID:   q.Get("sse_kms_key_id"),
		}
		cfg.EnableSSE = cfg.SSEAlgorithm != ""
		for key, dst := range map[string]*bool{
			"path_style":    &cfg.UsePathStyle,
			"disable_acl":   &cfg.DisableACL,
			"create_bucket": &cfg.CreateBucketIfNotExist,
		} {
			if v := q.Get(key); v != "" {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return StorageConfig{}, fmt.Errorf("invalid boolean for STORAGE_URL %s: %w", key, err)
				}
				*dst = b
			}
		}
		return cfg, nil
	}

	return StorageConfig{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

func isPostgresURL(raw string) bool {
	return strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://")
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseDurationEnv(prefix, key string) (time.Duration, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid duration for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
