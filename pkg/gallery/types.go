package gallery

import (
	"io"
	"time"
)

// Upload is a gallery entry: a title and the URL of its stored image.
type Upload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageFile is a submitted image file. Reader is consumed at most once.
type ImageFile struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// IsEmpty reports whether no usable file was submitted.
func (f *ImageFile) IsEmpty() bool {
	return f == nil || f.Size <= 0
}

// Form holds the raw fields of a create or update submission.
type Form struct {
	Title string
	Image *ImageFile
}

// Access controls the visibility of a stored blob.
type Access string

const (
	AccessPublic  Access = "public"
	AccessPrivate Access = "private"
)

// PutOptions configures a blob upload.
type PutOptions struct {
	Access      Access
	Multipart   bool
	ContentType string
	Size        int64
}

// PutResult describes a stored blob.
type PutResult struct {
	URL string
	Key string
}

// ListUploadsRequest pages through the gallery listing. A non-positive
// Limit returns every record.
type ListUploadsRequest struct {
	Limit  int
	Offset int
}

// Mutation names used in events, logs and metrics.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ListingEvent signals that the gallery listing changed.
type ListingEvent struct {
	Op       string
	UploadID string
	At       time.Time
}
