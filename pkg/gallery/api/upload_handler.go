package api

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-gallery/pkg/gallery"
)

// DefaultMaxUploadBytes caps a multipart request body. It leaves room above
// gallery.MaxImageSize so an oversized image still reaches the validator.
const DefaultMaxUploadBytes = gallery.MaxImageSize + 1<<20

// ListUploadsResponse is the response body for the listing
type ListUploadsResponse struct {
	Uploads []*gallery.Upload `json:"uploads"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// MessageResponse carries an operational failure message
type MessageResponse struct {
	Message string `json:"message"`
}

// ValidationResponse carries field-level validation messages
type ValidationResponse struct {
	Error map[string][]string `json:"error"`
}

// UploadHandler handles HTTP requests for gallery uploads
type UploadHandler struct {
	service        gallery.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

// HandlerOption configures an UploadHandler
type HandlerOption func(*UploadHandler)

// WithMaxUploadBytes overrides DefaultMaxUploadBytes
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *UploadHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithHandlerLogger sets the handler logger
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *UploadHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service gallery.Service, opts ...HandlerOption) *UploadHandler {
	h := &UploadHandler{
		service:        service,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the routes for uploads
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListUploads)
	r.Post("/", h.CreateUpload)
	r.Get("/{id}", h.GetUpload)
	r.Post("/{id}", h.UpdateUpload)
	r.Put("/{id}", h.UpdateUpload)
	r.Delete("/{id}", h.DeleteUpload)

	// HTML forms can only POST
	r.Post("/{id}/delete", h.DeleteUpload)

	return r
}

// ListUploads returns the gallery listing, newest first
func (h *UploadHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		http.Error(w, "Invalid offset", http.StatusBadRequest)
		return
	}

	uploads, err := h.service.ListUploads(r.Context(), gallery.ListUploadsRequest{Limit: limit, Offset: offset})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list uploads", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, MessageResponse{Message: gallery.MsgFetchFailed})
		return
	}

	render.JSON(w, r, ListUploadsResponse{Uploads: uploads, Limit: limit, Offset: offset})
}

// GetUpload returns a single upload
func (h *UploadHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	upload, err := h.service.GetUpload(r.Context(), id)
	if err != nil {
		if errors.Is(err, gallery.ErrUploadNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, MessageResponse{Message: gallery.MsgNoDataFound})
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to get upload", "upload_id", id, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, MessageResponse{Message: gallery.MsgFetchFailed})
		return
	}

	render.JSON(w, r, upload)
}

// CreateUpload accepts a multipart form with title and image
func (h *UploadHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	form, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	result := h.service.CreateUpload(r.Context(), form)
	h.writeResult(w, r, result, http.StatusCreated)
}

// UpdateUpload accepts a multipart form with title and an optional image
func (h *UploadHandler) UpdateUpload(w http.ResponseWriter, r *http.Request) {
	form, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	result := h.service.UpdateUpload(r.Context(), chi.URLParam(r, "id"), form)
	h.writeResult(w, r, result, http.StatusOK)
}

// DeleteUpload deletes an upload and its image
func (h *UploadHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	result := h.service.DeleteUpload(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, r, result, http.StatusNoContent)
}

// parseForm decodes title and image from a multipart or urlencoded body.
// When ok is false the error response has been written.
func (h *UploadHandler) parseForm(w http.ResponseWriter, r *http.Request) (form gallery.Form, cleanup func(), ok bool) {
	cleanup = func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	err := r.ParseMultipartForm(h.maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			// Same outcome as an image the validator finds too large
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, ValidationResponse{Error: map[string][]string{
				gallery.FieldImage: {gallery.MsgImageTooLarge},
			}})
			return form, cleanup, false
		}
		h.logger.WarnContext(r.Context(), "Invalid form submission", "error", err)
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return form, cleanup, false
	}

	form.Title = r.FormValue("title")

	if r.MultipartForm == nil {
		return form, cleanup, true
	}
	multipartForm := r.MultipartForm
	cleanup = func() {
		if err := multipartForm.RemoveAll(); err != nil {
			h.logger.WarnContext(r.Context(), "Failed to remove multipart temp files", "error", err)
		}
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return form, cleanup, true
	case err != nil:
		h.logger.WarnContext(r.Context(), "Failed to read image part", "error", err)
		http.Error(w, "Invalid image", http.StatusBadRequest)
		return form, cleanup, false
	}

	form.Image = imageFile(file, header)
	prev := cleanup
	cleanup = func() {
		file.Close()
		prev()
	}
	return form, cleanup, true
}

func imageFile(file multipart.File, header *multipart.FileHeader) *gallery.ImageFile {
	return &gallery.ImageFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}
}

// writeResult maps a mutation Result onto the response.
func (h *UploadHandler) writeResult(w http.ResponseWriter, r *http.Request, result gallery.Result, successStatus int) {
	switch result.Outcome {
	case gallery.OutcomeSuccess:
		if result.RedirectTo != "" && wantsRedirect(r) {
			http.Redirect(w, r, result.RedirectTo, http.StatusSeeOther)
			return
		}
		if successStatus == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		render.Status(r, successStatus)
		render.JSON(w, r, result.Upload)

	case gallery.OutcomeValidationFailure:
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ValidationResponse{Error: result.Errors})

	default:
		status := statusForKind(result.Kind)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "Mutation failed",
				"kind", string(result.Kind), "stage", string(result.Stage), "error", result.Err)
		}
		render.Status(r, status)
		render.JSON(w, r, MessageResponse{Message: result.Message})
	}
}

func statusForKind(kind gallery.Kind) int {
	switch kind {
	case gallery.KindNotFound:
		return http.StatusNotFound
	case gallery.KindExternalStore:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// wantsRedirect reports whether the caller is a browser form rather than an API client.
func wantsRedirect(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
