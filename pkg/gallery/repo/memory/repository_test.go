package memory_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
)

func newUpload(id string, createdAt time.Time) *gallery.Upload {
	return &gallery.Upload{
		ID:        id,
		Title:     "Title " + id,
		Image:     "memory://gallery/" + id + ".png",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRepository_UploadLifecycle(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	upload := newUpload("42", now)
	require.NoError(t, repo.CreateUpload(ctx, upload))

	// Caller mutations do not leak into the store
	upload.Title = "mutated"
	got, err := repo.GetUpload(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Title 42", got.Title)

	got.Title = "Beach"
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.UpdateUpload(ctx, got))

	updated, err := repo.GetUpload(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Beach", updated.Title)
	assert.True(t, updated.CreatedAt.Equal(now))

	require.NoError(t, repo.DeleteUpload(ctx, "42"))
	_, err = repo.GetUpload(ctx, "42")
	assert.ErrorIs(t, err, gallery.ErrUploadNotFound)
}

func TestRepository_NotFound(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	_, err := repo.GetUpload(ctx, "7")
	assert.ErrorIs(t, err, gallery.ErrUploadNotFound)

	err = repo.UpdateUpload(ctx, newUpload("7", time.Now()))
	assert.ErrorIs(t, err, gallery.ErrUploadNotFound)

	err = repo.DeleteUpload(ctx, "7")
	assert.ErrorIs(t, err, gallery.ErrUploadNotFound)
}

func TestRepository_DuplicateID(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	require.NoError(t, repo.CreateUpload(ctx, newUpload("1", time.Now())))
	assert.Error(t, repo.CreateUpload(ctx, newUpload("1", time.Now())))
}

func TestRepository_ListUploads(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.CreateUpload(ctx, newUpload(fmt.Sprint(i), base.Add(time.Duration(i)*time.Hour))))
	}

	tests := []struct {
		name   string
		limit  int
		offset int
		ids    []string
	}{
		{"all newest first", 0, 0, []string{"5", "4", "3", "2", "1"}},
		{"limited", 2, 0, []string{"5", "4"}},
		{"paged", 2, 2, []string{"3", "2"}},
		{"offset past end", 10, 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uploads, err := repo.ListUploads(ctx, tt.limit, tt.offset)
			require.NoError(t, err)

			ids := make([]string, 0, len(uploads))
			for _, u := range uploads {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestRepository_MethodsMatchInterface(t *testing.T) {
	var _ gallery.Repository = (*memory.Repository)(nil)

	iface := reflect.TypeOf((*gallery.Repository)(nil)).Elem()
	impl := reflect.TypeOf(memory.New())

	want := make([]string, 0, iface.NumMethod())
	for i := 0; i < iface.NumMethod(); i++ {
		want = append(want, iface.Method(i).Name)
	}
	got := make([]string, 0, impl.NumMethod())
	for i := 0; i < impl.NumMethod(); i++ {
		got = append(got, impl.Method(i).Name)
	}
	assert.ElementsMatch(t, want, got, "exported methods beyond the repository contract")
}
