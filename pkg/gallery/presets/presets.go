// Package presets builds ready-to-use gallery services for common setups.
package presets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/config"
	"github.com/tendant/simple-gallery/pkg/gallery/listing"
	memoryrepo "github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
	fsstorage "github.com/tendant/simple-gallery/pkg/gallery/storage/fs"
	memorystorage "github.com/tendant/simple-gallery/pkg/gallery/storage/memory"
)

// NewDevelopment creates a service configured for local development: an
// in-memory record store, images on disk under ./dev-data, event logging and
// a listing cache.
//
// The returned cleanup removes the storage directory.
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (gallery.Service, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
		urlPrefix:  fsstorage.DefaultURLPrefix,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	repo := memoryrepo.New()

	fsBackend, err := fsstorage.New(fsstorage.Config{
		BaseDir:   cfg.storageDir,
		URLPrefix: cfg.urlPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	cache, err := listing.New(repo, listing.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create listing cache: %w", err)
	}

	svc, err := gallery.New(
		gallery.WithRepository(repo),
		gallery.WithBlobStore("fs", fsBackend),
		gallery.WithListingView(cache),
		gallery.WithEventSink(cache),
		gallery.WithEventSink(gallery.NewLoggingEventSink(nil)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(fsBackend.BaseDir())
	}

	return svc, cleanup, nil
}

// NewTesting creates an isolated in-memory service for tests. Nothing is
// written to disk and no events are logged.
//
//	func TestMyFeature(t *testing.T) {
//	    svc := presets.NewTesting(t, presets.WithTestFixtures())
//	    ...
//	}
func NewTesting(t testing.TB, opts ...TestingOption) gallery.Service {
	t.Helper()

	cfg := &testConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	svc, err := gallery.New(
		gallery.WithRepository(memoryrepo.New()),
		gallery.WithBlobStore("memory", memorystorage.New(memorystorage.Config{})),
	)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	if cfg.fixtures {
		if err := seedFixtures(context.Background(), svc); err != nil {
			t.Fatalf("failed to load test fixtures: %v", err)
		}
	}

	return svc
}

// NewProduction builds a service from the environment (see config.WithEnv)
// and refuses in-memory record or blob stores.
func NewProduction(ctx context.Context, reg prometheus.Registerer, opts ...config.Option) (*config.Components, error) {
	cfg, err := config.Load(append([]config.Option{config.WithEnv(""), config.WithEnvironment("production")}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := checkProduction(cfg); err != nil {
		return nil, err
	}
	return cfg.Build(ctx, nil, reg)
}

func checkProduction(cfg *config.ServerConfig) error {
	if cfg.DatabaseType == config.DatabaseMemory {
		return errors.New("production preset requires DATABASE_URL=postgres://... (memory not allowed in production)")
	}
	if cfg.Storage.Type == config.StorageMemory {
		return errors.New("production preset requires persistent storage (s3:// or file://, not memory)")
	}
	return nil
}

// Fixtures are the sample uploads loaded by WithTestFixtures, oldest first.
var Fixtures = []struct {
	Title       string
	FileName    string
	ContentType string
}{
	{"Sunset", "sunset.png", "image/png"},
	{"Mountains", "mountains.jpg", "image/jpeg"},
	{"City at night", "city.webp", "image/webp"},
}

func seedFixtures(ctx context.Context, svc gallery.Service) error {
	for _, fixture := range Fixtures {
		data := []byte("fixture:" + fixture.FileName)
		result := svc.CreateUpload(ctx, gallery.Form{
			Title: fixture.Title,
			Image: &gallery.ImageFile{
				Name:        fixture.FileName,
				ContentType: fixture.ContentType,
				Size:        int64(len(data)),
				Reader:      bytes.NewReader(data),
			},
		})
		if !result.OK() {
			return fmt.Errorf("fixture %q: %s", fixture.Title, result.Message)
		}
	}
	return nil
}

type devConfig struct {
	storageDir string
	urlPrefix  string
}

type testConfig struct {
	fixtures bool
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// WithDevURLPrefix sets the URL prefix of stored images
func WithDevURLPrefix(prefix string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.urlPrefix = prefix
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestFixtures seeds the service with the Fixtures uploads
func WithTestFixtures() TestingOption {
	return func(cfg *testConfig) {
		cfg.fixtures = true
	}
}
