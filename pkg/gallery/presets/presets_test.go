package presets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/config"
	memoryrepo "github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
	memorystorage "github.com/tendant/simple-gallery/pkg/gallery/storage/memory"
)

func pngForm(title string) gallery.Form {
	data := "\x89PNG development"
	return gallery.Form{
		Title: title,
		Image: &gallery.ImageFile{
			Name:        "dev.png",
			ContentType: "image/png",
			Size:        int64(len(data)),
			Reader:      strings.NewReader(data),
		},
	}
}

func TestNewDevelopment(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dev-data")
	svc, cleanup, err := NewDevelopment(WithDevStorage(dir), WithDevURLPrefix("/dev"))
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	ctx := context.Background()
	result := svc.CreateUpload(ctx, pngForm("Dev"))
	require.True(t, result.OK(), "create failed: %+v", result)
	assert.True(t, strings.HasPrefix(result.Upload.Image, "/dev/"))

	key := strings.TrimPrefix(result.Upload.Image, "/dev/")
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err, "image should be written under the storage directory")

	uploads, err := svc.ListUploads(ctx, gallery.ListUploadsRequest{})
	require.NoError(t, err)
	assert.Len(t, uploads, 1)

	cleanup()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "storage directory should be removed after cleanup")
}

func TestNewTesting(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		svc := NewTesting(t)
		uploads, err := svc.ListUploads(context.Background(), gallery.ListUploadsRequest{})
		require.NoError(t, err)
		assert.Empty(t, uploads)
	})

	t.Run("with fixtures", func(t *testing.T) {
		svc := NewTesting(t, WithTestFixtures())
		uploads, err := svc.ListUploads(context.Background(), gallery.ListUploadsRequest{})
		require.NoError(t, err)
		require.Len(t, uploads, len(Fixtures))

		titles := make([]string, 0, len(uploads))
		for _, upload := range uploads {
			titles = append(titles, upload.Title)
		}
		for _, fixture := range Fixtures {
			assert.Contains(t, titles, fixture.Title)
		}
	})

	t.Run("isolated", func(t *testing.T) {
		first := NewTesting(t)
		second := NewTesting(t)
		require.True(t, first.CreateUpload(context.Background(), pngForm("Only here")).OK())

		uploads, err := second.ListUploads(context.Background(), gallery.ListUploadsRequest{})
		require.NoError(t, err)
		assert.Empty(t, uploads)
	})
}

func TestSeedFixtures_ContentTypes(t *testing.T) {
	store := memorystorage.New(memorystorage.Config{})
	svc, err := gallery.New(
		gallery.WithRepository(memoryrepo.New()),
		gallery.WithBlobStore("memory", store),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, seedFixtures(ctx, svc))

	uploads, err := svc.ListUploads(ctx, gallery.ListUploadsRequest{})
	require.NoError(t, err)
	require.Len(t, uploads, len(Fixtures))

	byTitle := make(map[string]string, len(uploads))
	for _, upload := range uploads {
		byTitle[upload.Title] = upload.Image
	}

	tests := []struct {
		title       string
		contentType string
	}{
		{"Sunset", "image/png"},
		{"Mountains", "image/jpeg"},
		{"City at night", "image/webp"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			url, ok := byTitle[tt.title]
			require.True(t, ok)
			_, contentType, err := store.Get(url)
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, contentType)
		})
	}
}

func TestNewProduction_RejectsMemoryBackends(t *testing.T) {
	t.Setenv("DATABASE_URL", "memory")
	t.Setenv("STORAGE_URL", "memory://")

	_, err := NewProduction(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory not allowed")
}

func TestCheckProduction(t *testing.T) {
	tests := []struct {
		name    string
		opts    []config.Option
		wantErr string
	}{
		{
			name:    "memory database",
			opts:    []config.Option{config.WithFilesystemStorage(t.TempDir(), "")},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "memory storage",
			opts:    []config.Option{config.WithDatabaseURL("postgres://localhost/gallery")},
			wantErr: "persistent storage",
		},
		{
			name: "postgres and filesystem",
			opts: []config.Option{
				config.WithDatabaseURL("postgres://localhost/gallery"),
				config.WithFilesystemStorage(t.TempDir(), ""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(tt.opts...)
			require.NoError(t, err)

			err = checkProduction(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
