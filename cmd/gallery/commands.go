package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-gallery/pkg/gallery"
)

// NewListCommand creates the list command
func NewListCommand(factory ServiceFactory) *cobra.Command {
	var limit int
	var offset int
	var useJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List gallery uploads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, factory, func(svc gallery.Service) error {
				uploads, err := svc.ListUploads(cmd.Context(), gallery.ListUploadsRequest{Limit: limit, Offset: offset})
				if err != nil {
					return fmt.Errorf("list failed: %w", err)
				}

				out := cmd.OutOrStdout()
				if useJSON {
					return writeJSON(out, uploads)
				}
				if len(uploads) == 0 {
					fmt.Fprintln(out, "No uploads")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tIMAGE\tCREATED")
				for _, upload := range uploads {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", upload.ID, upload.Title, upload.Image, upload.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")
	cmd.Flags().BoolVar(&useJSON, "json", false, "Output as JSON")

	return cmd
}

// NewShowCommand creates the show command
func NewShowCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "show <upload-id>",
		Short: "Show a single upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, factory, func(svc gallery.Service) error {
				upload, err := svc.GetUpload(cmd.Context(), args[0])
				if errors.Is(err, gallery.ErrUploadNotFound) {
					return errors.New(gallery.MsgNoDataFound)
				}
				if err != nil {
					return fmt.Errorf("show failed: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), upload)
			})
		},
	}
}

// NewUploadCommand creates the upload command
func NewUploadCommand(factory ServiceFactory) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "upload <image-file>",
		Short: "Add an image to the gallery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, closeFn, err := openImage(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			return withService(cmd, factory, func(svc gallery.Service) error {
				result := svc.CreateUpload(cmd.Context(), gallery.Form{Title: title, Image: image})
				if err := resultError(cmd, result); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Upload successful!\nID: %s\nImage: %s\n", result.Upload.ID, result.Upload.Image)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Image title (required)")

	return cmd
}

// NewEditCommand creates the edit command
func NewEditCommand(factory ServiceFactory) *cobra.Command {
	var title string
	var imagePath string

	cmd := &cobra.Command{
		Use:   "edit <upload-id>",
		Short: "Change an upload's title and optionally replace its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := gallery.Form{Title: title}
			if imagePath != "" {
				image, closeFn, err := openImage(imagePath)
				if err != nil {
					return err
				}
				defer closeFn()
				form.Image = image
			}

			return withService(cmd, factory, func(svc gallery.Service) error {
				result := svc.UpdateUpload(cmd.Context(), args[0], form)
				if err := resultError(cmd, result); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\nImage: %s\n", result.Upload.ID, result.Upload.Image)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title (required)")
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Replacement image file")

	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <upload-id>",
		Short: "Delete an upload and its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, factory, func(svc gallery.Service) error {
				result := svc.DeleteUpload(cmd.Context(), args[0])
				if err := resultError(cmd, result); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

// openImage opens path as a form image. The content type is sniffed from the file.
func openImage(path string) (*gallery.ImageFile, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("file does not exist: %s", path)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("not a file: %s", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect content type: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return &gallery.ImageFile{
		Name:        filepath.Base(path),
		ContentType: mtype.String(),
		Size:        info.Size(),
		Reader:      f,
	}, func() { f.Close() }, nil
}

// resultError prints validation messages and turns a failed Result into an error
func resultError(cmd *cobra.Command, result gallery.Result) error {
	switch result.Outcome {
	case gallery.OutcomeSuccess:
		return nil
	case gallery.OutcomeValidationFailure:
		fields := make([]string, 0, len(result.Errors))
		for field := range result.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			for _, msg := range result.Errors[field] {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
			}
		}
		return errors.New("validation failed")
	default:
		if result.Err != nil {
			commandLogger(cmd).Debug("Mutation failed", "kind", string(result.Kind), "stage", string(result.Stage), "error", result.Err)
		}
		return errors.New(result.Message)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
