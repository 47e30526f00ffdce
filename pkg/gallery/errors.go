package gallery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUploadNotFound indicates the record does not exist
	ErrUploadNotFound = errors.New("upload not found")

	// ErrBlobNotFound indicates the blob does not exist in the store
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidBlobURL indicates a URL that does not belong to the store
	ErrInvalidBlobURL = errors.New("invalid blob url")
)

// Messages reported to callers in OperationFailure results.
const (
	MsgNoDataFound       = "No data found"
	MsgFetchFailed       = "Failed to fetch data"
	MsgCreateFailed      = "Failed to create data"
	MsgUpdateFailed      = "Failed to update data"
	MsgDeleteFailed      = "Failed to delete data"
	MsgUploadImageFailed = "Failed to upload image"
	MsgDeleteImageFailed = "Failed to delete image"
)

// ValidationError maps form fields to their failure messages.
type ValidationError struct {
	Fields map[string][]string
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Has reports whether field has at least one message.
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadError represents an error related to record operations
type UploadError struct {
	ID  string
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload operation %s failed for upload %s: %v", e.Op, e.ID, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
