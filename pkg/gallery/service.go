package gallery

import "context"

// Service defines the gallery operations
type Service interface {
	// Mutations. Failures are reported in the Result, never as a Go error.
	CreateUpload(ctx context.Context, form Form) Result
	UpdateUpload(ctx context.Context, id string, form Form) Result
	DeleteUpload(ctx context.Context, id string) Result

	// Reads
	GetUpload(ctx context.Context, id string) (*Upload, error)
	ListUploads(ctx context.Context, req ListUploadsRequest) ([]*Upload, error)
}
