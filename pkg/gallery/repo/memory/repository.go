package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// Repository implements gallery.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	uploads map[string]*gallery.Upload
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		uploads: make(map[string]*gallery.Upload),
	}
}

func (r *Repository) CreateUpload(ctx context.Context, upload *gallery.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.uploads[upload.ID]; exists {
		return fmt.Errorf("upload %s already exists", upload.ID)
	}

	// Create a copy to avoid external modifications
	uploadCopy := *upload
	r.uploads[upload.ID] = &uploadCopy
	return nil
}

func (r *Repository) GetUpload(ctx context.Context, id string) (*gallery.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	upload, exists := r.uploads[id]
	if !exists {
		return nil, gallery.ErrUploadNotFound
	}

	uploadCopy := *upload
	return &uploadCopy, nil
}

func (r *Repository) UpdateUpload(ctx context.Context, upload *gallery.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.uploads[upload.ID]
	if !exists {
		return gallery.ErrUploadNotFound
	}

	uploadCopy := *upload
	uploadCopy.CreatedAt = existing.CreatedAt
	r.uploads[upload.ID] = &uploadCopy
	return nil
}

func (r *Repository) DeleteUpload(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.uploads[id]; !exists {
		return gallery.ErrUploadNotFound
	}

	delete(r.uploads, id)
	return nil
}

// ListUploads returns uploads newest first. A non-positive limit returns all.
func (r *Repository) ListUploads(ctx context.Context, limit, offset int) ([]*gallery.Upload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uploads := make([]*gallery.Upload, 0, len(r.uploads))
	for _, upload := range r.uploads {
		uploadCopy := *upload
		uploads = append(uploads, &uploadCopy)
	}

	sort.Slice(uploads, func(i, j int) bool {
		if uploads[i].CreatedAt.Equal(uploads[j].CreatedAt) {
			return uploads[i].ID > uploads[j].ID
		}
		return uploads[i].CreatedAt.After(uploads[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(uploads) {
			return []*gallery.Upload{}, nil
		}
		uploads = uploads[offset:]
	}
	if limit > 0 && limit < len(uploads) {
		uploads = uploads[:limit]
	}
	return uploads, nil
}
