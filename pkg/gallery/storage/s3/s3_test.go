package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/objectkey"
)

// fakeClient records single-part puts and deletes. Multipart calls are not
// expected for bodies smaller than the part size.
type fakeClient struct {
	manager.UploadAPIClient

	mu        sync.Mutex
	puts      []*s3.PutObjectInput
	bodies    map[string]string
	deletes   []string
	putErr    error
	deleteErr error
	headErr   error
	created   []*s3.CreateBucketInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{bodies: make(map[string]string)}
}

func (f *fakeClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, params)
	f.bodies[aws.ToString(params.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeClient) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, params)
	return &s3.CreateBucketOutput{}, nil
}

func newTestBackend(t *testing.T, config Config) (*Backend, *fakeClient) {
	t.Helper()
	if config.Bucket == "" {
		config.Bucket = "gallery"
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = objectkey.NewFilenameGenerator()
	}
	fc := newFakeClient()
	backend, err := newWithClient(config, fc)
	require.NoError(t, err)
	return backend, fc
}

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("StaticCredentials", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://test-bucket.s3.us-east-1.amazonaws.com/a.png", backend.URL("a.png"))
	})

	t.Run("InvalidEndpoint", func(t *testing.T) {
		_, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			Endpoint:        "localhost:9000",
		})
		assert.Error(t, err)
	})
}

func TestObjectURLPrefix(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "aws virtual hosted",
			config:   Config{Bucket: "gallery", Region: "eu-west-1"},
			expected: "https://gallery.s3.eu-west-1.amazonaws.com",
		},
		{
			name:     "minio path style",
			config:   Config{Bucket: "gallery", Endpoint: "http://localhost:9000", UsePathStyle: true},
			expected: "http://localhost:9000/gallery",
		},
		{
			name:     "custom endpoint virtual hosted",
			config:   Config{Bucket: "gallery", Endpoint: "https://objects.example.com"},
			expected: "https://gallery.objects.example.com",
		},
		{
			name:     "public base url wins",
			config:   Config{Bucket: "gallery", Endpoint: "http://localhost:9000", PublicBaseURL: "https://cdn.example.com/"},
			expected: "https://cdn.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, err := objectURLPrefix(tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, prefix)
		})
	}
}

func TestS3Backend_PutMultipart(t *testing.T) {
	backend, fc := newTestBackend(t, Config{Endpoint: "http://localhost:9000", UsePathStyle: true})

	result, err := backend.Put(context.Background(), "sunset.png", strings.NewReader("png bytes"), gallery.PutOptions{
		Access:      gallery.AccessPublic,
		Multipart:   true,
		ContentType: "image/png",
		Size:        9,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/gallery/sunset.png", result.URL)
	assert.Equal(t, "sunset.png", result.Key)

	require.Len(t, fc.puts, 1)
	put := fc.puts[0]
	assert.Equal(t, "gallery", aws.ToString(put.Bucket))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	assert.Equal(t, types.ObjectCannedACLPublicRead, put.ACL)
	assert.Equal(t, "png bytes", fc.bodies["sunset.png"])
}

func TestS3Backend_PutSinglePart(t *testing.T) {
	backend, fc := newTestBackend(t, Config{DisableACL: true, EnableSSE: true, SSEAlgorithm: "AES256"})

	_, err := backend.Put(context.Background(), "cat.gif", strings.NewReader("gif"), gallery.PutOptions{
		Access: gallery.AccessPublic,
		Size:   3,
	})
	require.NoError(t, err)

	require.Len(t, fc.puts, 1)
	put := fc.puts[0]
	assert.Equal(t, int64(3), aws.ToInt64(put.ContentLength))
	assert.Empty(t, put.ACL)
	assert.Equal(t, types.ServerSideEncryptionAes256, put.ServerSideEncryption)
}

func TestS3Backend_PutError(t *testing.T) {
	backend, fc := newTestBackend(t, Config{})
	fc.putErr = errors.New("connection reset")

	_, err := backend.Put(context.Background(), "sunset.png", strings.NewReader("png"), gallery.PutOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestS3Backend_Delete(t *testing.T) {
	backend, fc := newTestBackend(t, Config{PublicBaseURL: "https://cdn.example.com"})

	require.NoError(t, backend.Delete(context.Background(), "https://cdn.example.com/sunset.png"))
	assert.Equal(t, []string{"sunset.png"}, fc.deletes)
}

func TestS3Backend_DeleteErrors(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		deleteErr error
		target    error
	}{
		{
			name:   "foreign url",
			url:    "https://other.example.com/sunset.png",
			target: gallery.ErrInvalidBlobURL,
		},
		{
			name:      "no such key",
			url:       "https://cdn.example.com/sunset.png",
			deleteErr: &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."},
			target:    gallery.ErrBlobNotFound,
		},
		{
			name:      "typed no such key",
			url:       "https://cdn.example.com/sunset.png",
			deleteErr: &types.NoSuchKey{},
			target:    gallery.ErrBlobNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, fc := newTestBackend(t, Config{PublicBaseURL: "https://cdn.example.com"})
			fc.deleteErr = tt.deleteErr

			err := backend.Delete(context.Background(), tt.url)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("access denied", func(t *testing.T) {
		backend, fc := newTestBackend(t, Config{PublicBaseURL: "https://cdn.example.com"})
		fc.deleteErr = &smithy.GenericAPIError{Code: "AccessDenied"}

		err := backend.Delete(context.Background(), "https://cdn.example.com/sunset.png")
		require.Error(t, err)
		assert.NotErrorIs(t, err, gallery.ErrBlobNotFound)
	})
}

func TestS3Backend_CreateBucketIfNotExists(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		backend, fc := newTestBackend(t, Config{})
		require.NoError(t, backend.createBucketIfNotExists(context.Background()))
		assert.Empty(t, fc.created)
	})

	t.Run("missing", func(t *testing.T) {
		backend, fc := newTestBackend(t, Config{Region: "eu-west-1"})
		fc.headErr = &types.NotFound{}

		require.NoError(t, backend.createBucketIfNotExists(context.Background()))
		require.Len(t, fc.created, 1)
		assert.Equal(t, types.BucketLocationConstraint("eu-west-1"), fc.created[0].CreateBucketConfiguration.LocationConstraint)
	})

	t.Run("forbidden", func(t *testing.T) {
		backend, fc := newTestBackend(t, Config{})
		fc.headErr = &smithy.GenericAPIError{Code: "Forbidden"}

		assert.Error(t, backend.createBucketIfNotExists(context.Background()))
		assert.Empty(t, fc.created)
	})
}
