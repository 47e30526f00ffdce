package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/objectkey"
)

// DefaultURLPrefix is the path the HTTP layer serves blobs under.
const DefaultURLPrefix = "/blobs"

// Backend is a filesystem implementation of the gallery.BlobStore interface
type Backend struct {
	baseDir   string
	urlPrefix string
	keys      objectkey.Generator
}

// Config options for the filesystem backend
type Config struct {
	BaseDir      string              // Base directory for storing files
	URLPrefix    string              // Prefix of returned URLs, DefaultURLPrefix when empty
	KeyGenerator objectkey.Generator // objectkey.Default() when nil
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	if config.URLPrefix == "" {
		config.URLPrefix = DefaultURLPrefix
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = objectkey.Default()
	}

	return &Backend{
		baseDir:   baseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
		keys:      config.KeyGenerator,
	}, nil
}

// BaseDir returns the directory blobs are written under
func (b *Backend) BaseDir() string {
	return b.baseDir
}

// URLPrefix returns the prefix of URLs handed out by Put
func (b *Backend) URLPrefix() string {
	return b.urlPrefix
}

// Put writes the content to a file under a key derived from name
func (b *Backend) Put(ctx context.Context, name string, reader io.Reader, opts gallery.PutOptions) (*gallery.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := b.keys.GenerateKey(name)
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial image
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	mode := os.FileMode(0644)
	if opts.Access == gallery.AccessPrivate {
		mode = 0600
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &gallery.PutResult{URL: b.urlPrefix + "/" + key, Key: key}, nil
}

// Delete removes the file addressed by url
func (b *Backend) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, b.urlPrefix+"/")
	if !ok || key == "" {
		return fmt.Errorf("%w: %s", gallery.ErrInvalidBlobURL, url)
	}
	filePath, err := b.pathFor(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return gallery.ErrBlobNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Clean up empty directories
	b.cleanupEmptyDirectories(filepath.Dir(filePath))

	return nil
}

// pathFor maps key to a file under baseDir, rejecting keys that escape it.
func (b *Backend) pathFor(key string) (string, error) {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.baseDir, filePath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key %q escapes base directory", gallery.ErrInvalidBlobURL, key)
	}
	return filePath, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
