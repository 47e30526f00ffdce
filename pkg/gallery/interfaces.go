package gallery

import (
	"context"
	"io"
	"time"
)

// BlobStore stores image payloads and addresses them by public URL.
type BlobStore interface {
	// Put stores the payload under a key derived from name and returns its URL.
	Put(ctx context.Context, name string, reader io.Reader, opts PutOptions) (*PutResult, error)

	// Delete removes the blob addressed by url. Returns ErrBlobNotFound when
	// the backend can tell the blob is already gone.
	Delete(ctx context.Context, url string) error
}

// Repository persists Upload records.
type Repository interface {
	CreateUpload(ctx context.Context, upload *Upload) error
	GetUpload(ctx context.Context, id string) (*Upload, error)
	UpdateUpload(ctx context.Context, upload *Upload) error
	DeleteUpload(ctx context.Context, id string) error
	// ListUploads returns records newest first. limit <= 0 means no limit.
	ListUploads(ctx context.Context, limit, offset int) ([]*Upload, error)
}

// EventSink receives listing change notifications.
type EventSink interface {
	ListingChanged(ctx context.Context, event ListingEvent) error
}

// ListingView serves the gallery listing, typically from a cache.
type ListingView interface {
	List(ctx context.Context, req ListUploadsRequest) ([]*Upload, error)
}

// Observer receives timing and outcome data for mutations and blob calls.
type Observer interface {
	ObserveMutation(op string, result Result, duration time.Duration)
	ObserveBlob(op string, duration time.Duration, err error)
}
