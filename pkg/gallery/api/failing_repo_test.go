package api

import (
	"context"
	"sync"

	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
)

// failingRepository makes the next CreateUpload fail when armed
type failingRepository struct {
	*memory.Repository

	mu         sync.Mutex
	failCreate error
}

func newFailingRepository() *failingRepository {
	return &failingRepository{Repository: memory.New()}
}

func (r *failingRepository) FailNextCreate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCreate = err
}

func (r *failingRepository) CreateUpload(ctx context.Context, upload *gallery.Upload) error {
	r.mu.Lock()
	err := r.failCreate
	r.failCreate = nil
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Repository.CreateUpload(ctx, upload)
}
