package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/objectkey"
)

// DefaultBaseURL prefixes the URLs handed out by the memory backend.
const DefaultBaseURL = "memory://gallery"

type object struct {
	data        []byte
	contentType string
	access      gallery.Access
}

// Backend is an in-memory implementation of the gallery.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
	keys    objectkey.Generator
}

// Config options for the memory backend
type Config struct {
	BaseURL      string              // URL prefix, DefaultBaseURL when empty
	KeyGenerator objectkey.Generator // objectkey.Default() when nil
}

// New creates a new in-memory storage backend
func New(config Config) *Backend {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = objectkey.Default()
	}
	return &Backend{
		objects: make(map[string]object),
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		keys:    config.KeyGenerator,
	}
}

// Put stores the content read from reader under a key derived from name
func (b *Backend) Put(ctx context.Context, name string, reader io.Reader, opts gallery.PutOptions) (*gallery.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := b.keys.GenerateKey(name)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{data: data, contentType: contentType, access: opts.Access}
	return &gallery.PutResult{URL: b.URL(key), Key: key}, nil
}

// Delete removes the blob addressed by url
func (b *Backend) Delete(ctx context.Context, url string) error {
	key, err := b.keyFromURL(url)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return gallery.ErrBlobNotFound
	}
	delete(b.objects, key)
	return nil
}

// Get returns the stored bytes and content type for url
func (b *Backend) Get(url string) ([]byte, string, error) {
	key, err := b.keyFromURL(url)
	if err != nil {
		return nil, "", err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, "", gallery.ErrBlobNotFound
	}
	return obj.data, obj.contentType, nil
}

// Len returns the number of stored blobs
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// URL returns the public URL for key
func (b *Backend) URL(key string) string {
	return b.baseURL + "/" + key
}

func (b *Backend) keyFromURL(url string) (string, error) {
	key, ok := strings.CutPrefix(url, b.baseURL+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %s", gallery.ErrInvalidBlobURL, url)
	}
	return key, nil
}
