package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-gallery/pkg/gallery"
)

// Schema creates the upload table. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS upload (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	image      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS upload_created_at_idx ON upload (created_at DESC, id DESC);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements gallery.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the upload table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return gallery.ErrUploadNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("upload already exists: %w", err)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing: %w", pgErr.ColumnName, err)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required: %w", err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateUpload(ctx context.Context, upload *gallery.Upload) error {
	query := `
		INSERT INTO upload (id, title, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		upload.ID, upload.Title, upload.Image, upload.CreatedAt, upload.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create upload", err)
	}
	return nil
}

func (r *Repository) GetUpload(ctx context.Context, id string) (*gallery.Upload, error) {
	query := `
		SELECT id, title, image, created_at, updated_at
		FROM upload WHERE id = $1`

	var upload gallery.Upload
	err := r.db.QueryRow(ctx, query, id).Scan(
		&upload.ID, &upload.Title, &upload.Image, &upload.CreatedAt, &upload.UpdatedAt)
	if err != nil {
		return nil, r.handlePostgresError("get upload", err)
	}
	return &upload, nil
}

func (r *Repository) UpdateUpload(ctx context.Context, upload *gallery.Upload) error {
	query := `
		UPDATE upload SET title = $2, image = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, upload.ID, upload.Title, upload.Image, upload.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update upload", err)
	}
	if tag.RowsAffected() == 0 {
		return gallery.ErrUploadNotFound
	}
	return nil
}

func (r *Repository) DeleteUpload(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM upload WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete upload", err)
	}
	if tag.RowsAffected() == 0 {
		return gallery.ErrUploadNotFound
	}
	return nil
}

// ListUploads returns uploads newest first. A non-positive limit returns all.
func (r *Repository) ListUploads(ctx context.Context, limit, offset int) ([]*gallery.Upload, error) {
	query := `
		SELECT id, title, image, created_at, updated_at
		FROM upload
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	// LIMIT NULL means no limit
	var limitArg interface{}
	if limit > 0 {
		limitArg = limit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, query, limitArg, offset)
	if err != nil {
		return nil, r.handlePostgresError("list uploads", err)
	}
	defer rows.Close()

	uploads := []*gallery.Upload{}
	for rows.Next() {
		var upload gallery.Upload
		if err := rows.Scan(&upload.ID, &upload.Title, &upload.Image, &upload.CreatedAt, &upload.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("scan upload", err)
		}
		uploads = append(uploads, &upload)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list uploads", err)
	}
	return uploads, nil
}
