package gallery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
)

// failingRepository wraps the memory repository so a test can make the next
// call of a named method fail without touching stored records.
type failingRepository struct {
	*memory.Repository

	mu       sync.Mutex
	failNext map[string]error
}

func newFailingRepository() *failingRepository {
	return &failingRepository{Repository: memory.New(), failNext: make(map[string]error)}
}

func (r *failingRepository) FailNext(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext[method] = err
}

func (r *failingRepository) injected(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err, ok := r.failNext[method]
	if ok {
		delete(r.failNext, method)
	}
	return err
}

func (r *failingRepository) CreateUpload(ctx context.Context, upload *gallery.Upload) error {
	if err := r.injected("CreateUpload"); err != nil {
		return err
	}
	return r.Repository.CreateUpload(ctx, upload)
}

func (r *failingRepository) GetUpload(ctx context.Context, id string) (*gallery.Upload, error) {
	if err := r.injected("GetUpload"); err != nil {
		return nil, err
	}
	return r.Repository.GetUpload(ctx, id)
}

func (r *failingRepository) UpdateUpload(ctx context.Context, upload *gallery.Upload) error {
	if err := r.injected("UpdateUpload"); err != nil {
		return err
	}
	return r.Repository.UpdateUpload(ctx, upload)
}

func (r *failingRepository) DeleteUpload(ctx context.Context, id string) error {
	if err := r.injected("DeleteUpload"); err != nil {
		return err
	}
	return r.Repository.DeleteUpload(ctx, id)
}

func (r *failingRepository) ListUploads(ctx context.Context, limit, offset int) ([]*gallery.Upload, error) {
	if err := r.injected("ListUploads"); err != nil {
		return nil, err
	}
	return r.Repository.ListUploads(ctx, limit, offset)
}

func TestFailingRepository_FailsOnce(t *testing.T) {
	repo := newFailingRepository()
	ctx := context.Background()
	boom := errors.New("connection refused")

	require.NoError(t, repo.CreateUpload(ctx, &gallery.Upload{ID: "42", Title: "Sunset", CreatedAt: time.Now()}))

	repo.FailNext("DeleteUpload", boom)
	assert.ErrorIs(t, repo.DeleteUpload(ctx, "42"), boom)

	// The failure is consumed and the record is untouched
	_, err := repo.GetUpload(ctx, "42")
	require.NoError(t, err)
	assert.NoError(t, repo.DeleteUpload(ctx, "42"))
}
