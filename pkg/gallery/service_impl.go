package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultRedirect is where successful create and update mutations send the caller.
const DefaultRedirect = "/"

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	blobName   string
	eventSinks MultiEventSink
	listing    ListingView
	observer   Observer
	logger     *slog.Logger
	redirectTo string
	now        func() time.Time
	newID      func() string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store. name identifies the backend in errors and logs.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.blobName = name
		s.blobStore = store
	}
}

// WithEventSink adds a sink for listing change events. May be given more than once.
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		if sink != nil {
			s.eventSinks = append(s.eventSinks, sink)
		}
	}
}

// WithListingView serves ListUploads from view instead of the repository.
func WithListingView(view ListingView) Option {
	return func(s *service) {
		s.listing = view
	}
}

// WithObserver sets the metrics observer
func WithObserver(observer Observer) Option {
	return func(s *service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRedirect overrides DefaultRedirect.
func WithRedirect(path string) Option {
	return func(s *service) {
		s.redirectTo = path
	}
}

// WithIDGenerator overrides the record ID generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		observer:   noopObserver{},
		logger:     slog.Default(),
		redirectTo: DefaultRedirect,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return s, nil
}

// Mutations

func (s *service) CreateUpload(ctx context.Context, form Form) (result Result) {
	start := time.Now()
	defer func() { s.observe(OpCreate, result, start) }()

	validated, err := ValidateCreate(form)
	if err != nil {
		return rejected(err)
	}

	put, err := s.putImage(ctx, validated.Image)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to upload image", "file_name", validated.Image.Name, "error", err)
		return failed(KindExternalStore, StageExternalFailed, MsgUploadImageFailed, err)
	}

	now := s.now()
	upload := &Upload{
		ID:        s.newID(),
		Title:     validated.Title,
		Image:     put.URL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repository.CreateUpload(ctx, upload); err != nil {
		// The blob stays in the store with nothing referencing it.
		s.logger.WarnContext(ctx, "Failed to create upload, blob orphaned", "image", put.URL, "error", err)
		return failed(KindRecordStore, StageRecordFailed, MsgCreateFailed, &UploadError{ID: upload.ID, Op: OpCreate, Err: err})
	}

	s.logger.InfoContext(ctx, "Upload created", "upload_id", upload.ID, "image", upload.Image)
	s.listingChanged(ctx, OpCreate, upload.ID)
	return succeeded(upload, s.redirectTo)
}

func (s *service) UpdateUpload(ctx context.Context, id string, form Form) (result Result) {
	start := time.Now()
	defer func() { s.observe(OpUpdate, result, start) }()

	validated, err := ValidateUpdate(form)
	if err != nil {
		return rejected(err)
	}

	existing, res, ok := s.load(ctx, id)
	if !ok {
		return res
	}

	imageURL := existing.Image
	replaced := false
	if validated.Image != nil {
		// Old blob goes first; a failed put below leaves the record pointing
		// at a deleted blob until the update is resubmitted.
		if err := s.deleteImage(ctx, existing.Image); err != nil {
			s.logger.ErrorContext(ctx, "Failed to delete image", "upload_id", id, "image", existing.Image, "error", err)
			return failed(KindExternalStore, StageExternalFailed, MsgDeleteImageFailed, err)
		}

		put, err := s.putImage(ctx, validated.Image)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to upload replacement image, record references deleted blob",
				"upload_id", id, "image", existing.Image, "error", err)
			return failed(KindExternalStore, StageExternalFailed, MsgUploadImageFailed, err)
		}
		imageURL = put.URL
		replaced = true
	}

	updated := *existing
	updated.Title = validated.Title
	updated.Image = imageURL
	updated.UpdatedAt = s.now()

	if err := s.repository.UpdateUpload(ctx, &updated); err != nil {
		if replaced {
			s.logger.WarnContext(ctx, "Failed to update upload after image replacement",
				"upload_id", id, "stale_image", existing.Image, "orphaned_image", imageURL, "error", err)
		} else {
			s.logger.ErrorContext(ctx, "Failed to update upload", "upload_id", id, "error", err)
		}
		return failed(KindRecordStore, StageRecordFailed, MsgUpdateFailed, &UploadError{ID: id, Op: OpUpdate, Err: err})
	}

	s.logger.InfoContext(ctx, "Upload updated", "upload_id", id, "image_replaced", replaced)
	s.listingChanged(ctx, OpUpdate, id)
	return succeeded(&updated, s.redirectTo)
}

func (s *service) DeleteUpload(ctx context.Context, id string) (result Result) {
	start := time.Now()
	defer func() { s.observe(OpDelete, result, start) }()

	existing, res, ok := s.load(ctx, id)
	if !ok {
		return res
	}

	// A failed blob delete stops here and leaves the record in place.
	if err := s.deleteImage(ctx, existing.Image); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete image", "upload_id", id, "image", existing.Image, "error", err)
		return failed(KindExternalStore, StageExternalFailed, MsgDeleteImageFailed, err)
	}

	if err := s.repository.DeleteUpload(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete upload, record references deleted blob",
			"upload_id", id, "image", existing.Image, "error", err)
		return failed(KindRecordStore, StageRecordFailed, MsgDeleteFailed, &UploadError{ID: id, Op: OpDelete, Err: err})
	}

	s.logger.InfoContext(ctx, "Upload deleted", "upload_id", id)
	s.listingChanged(ctx, OpDelete, id)
	return succeeded(existing, "")
}

// Reads

func (s *service) GetUpload(ctx context.Context, id string) (*Upload, error) {
	return s.repository.GetUpload(ctx, id)
}

func (s *service) ListUploads(ctx context.Context, req ListUploadsRequest) ([]*Upload, error) {
	if s.listing != nil {
		return s.listing.List(ctx, req)
	}
	return s.repository.ListUploads(ctx, req.Limit, req.Offset)
}

// Helpers

// load fetches the record a mutation targets. When ok is false, res is the
// terminal Result to return.
func (s *service) load(ctx context.Context, id string) (upload *Upload, res Result, ok bool) {
	upload, err := s.repository.GetUpload(ctx, id)
	if err == nil {
		return upload, Result{}, true
	}
	if errors.Is(err, ErrUploadNotFound) {
		return nil, failed(KindNotFound, StageRejected, MsgNoDataFound, err), false
	}
	s.logger.ErrorContext(ctx, "Failed to fetch upload", "upload_id", id, "error", err)
	return nil, failed(KindRecordStore, StageRecordFailed, MsgFetchFailed, &UploadError{ID: id, Op: "get", Err: err}), false
}

func (s *service) putImage(ctx context.Context, image *ImageFile) (*PutResult, error) {
	start := time.Now()
	put, err := s.blobStore.Put(ctx, image.Name, image.Reader, PutOptions{
		Access:      AccessPublic,
		Multipart:   true,
		ContentType: image.ContentType,
		Size:        image.Size,
	})
	s.observer.ObserveBlob("put", time.Since(start), err)
	if err != nil {
		return nil, &StorageError{Backend: s.blobName, Key: image.Name, Op: "put", Err: err}
	}
	return put, nil
}

// deleteImage treats an already missing blob as deleted so a resubmitted
// mutation can get past a blob removed by an earlier partial failure.
func (s *service) deleteImage(ctx context.Context, url string) error {
	start := time.Now()
	err := s.blobStore.Delete(ctx, url)
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.InfoContext(ctx, "Blob already gone", "image", url)
		err = nil
	}
	s.observer.ObserveBlob("delete", time.Since(start), err)
	if err != nil {
		return &StorageError{Backend: s.blobName, Key: url, Op: "delete", Err: err}
	}
	return nil
}

func (s *service) listingChanged(ctx context.Context, op, id string) {
	if len(s.eventSinks) == 0 {
		return
	}
	event := ListingEvent{Op: op, UploadID: id, At: s.now()}
	if err := s.eventSinks.ListingChanged(ctx, event); err != nil {
		// Log error but don't fail the operation
		s.logger.WarnContext(ctx, "Failed to publish listing change", "op", op, "upload_id", id, "error", err)
	}
}

func (s *service) observe(op string, result Result, start time.Time) {
	s.observer.ObserveMutation(op, result, time.Since(start))
}
