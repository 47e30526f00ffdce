package listing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tendant/simple-gallery/pkg/gallery"
)

const (
	defaultCacheMaxSize = 64
	defaultCacheTTL     = 30 * time.Second
)

// Source loads listing pages. gallery.Repository satisfies it.
type Source interface {
	ListUploads(ctx context.Context, limit, offset int) ([]*gallery.Upload, error)
}

// Config configures the listing cache.
type Config struct {
	// MaxSize is the maximum number of cached pages.
	MaxSize int
	// TTL bounds how stale a page may be when a change event was missed,
	// e.g. a write made by another process.
	TTL time.Duration
}

type entry struct {
	uploads  []*gallery.Upload
	storedAt time.Time
}

// Cache serves listing pages from an LRU keyed by (limit, offset). Every
// listing change event empties it.
type Cache struct {
	source Source
	pages  *lru.Cache[string, entry]
	ttl    time.Duration
	now    func() time.Time

	// generation counts ListingChanged calls. A page read from the source is
	// stored only if no change landed while the read was in flight.
	mu         sync.Mutex
	generation atomic.Uint64

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	Pages         int
}

// New wraps source with a page cache. Zero config values fall back to defaults.
func New(source Source, config Config) (*Cache, error) {
	if source == nil {
		return nil, fmt.Errorf("listing source is required")
	}
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheMaxSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	pages, err := lru.New[string, entry](config.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing cache: %w", err)
	}
	return &Cache{
		source: source,
		pages:  pages,
		ttl:    config.TTL,
		now:    time.Now,
	}, nil
}

// List returns a listing page, loading it from the source on a miss.
func (c *Cache) List(ctx context.Context, req gallery.ListUploadsRequest) ([]*gallery.Upload, error) {
	key := pageKey(req)

	if cached, ok := c.pages.Get(key); ok {
		if c.now().Sub(cached.storedAt) < c.ttl {
			c.hits.Add(1)
			return clone(cached.uploads), nil
		}
		c.pages.Remove(key)
	}
	c.misses.Add(1)

	gen := c.generation.Load()
	uploads, err := c.source.ListUploads(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation.Load() == gen {
		c.pages.Add(key, entry{uploads: clone(uploads), storedAt: c.now()})
	}
	c.mu.Unlock()
	return uploads, nil
}

// ListingChanged drops every cached page.
func (c *Cache) ListingChanged(ctx context.Context, event gallery.ListingEvent) error {
	c.mu.Lock()
	c.generation.Add(1)
	c.pages.Purge()
	c.mu.Unlock()
	c.invalidations.Add(1)
	return nil
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		Pages:         c.pages.Len(),
	}
}

func pageKey(req gallery.ListUploadsRequest) string {
	limit, offset := req.Limit, req.Offset
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("%d:%d", limit, offset)
}

// clone copies the records so cached pages do not alias caller values.
func clone(uploads []*gallery.Upload) []*gallery.Upload {
	out := make([]*gallery.Upload, len(uploads))
	for i, u := range uploads {
		cp := *u
		out[i] = &cp
	}
	return out
}

var (
	_ gallery.ListingView = (*Cache)(nil)
	_ gallery.EventSink   = (*Cache)(nil)
)
