package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/objectkey"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// PublicBaseURL replaces the bucket URL in returned image URLs, e.g. a CDN origin
	PublicBaseURL string

	// DisableACL skips the public-read canned ACL for buckets with ACLs disabled
	DisableACL bool

	// PartSize is the multipart chunk size in bytes (default: manager.DefaultUploadPartSize)
	PartSize int64

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist

	KeyGenerator objectkey.Generator // objectkey.Default() when nil
}

// client is the subset of *s3.Client the backend uses.
type client interface {
	manager.UploadAPIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Backend is an S3-compatible implementation of the gallery.BlobStore interface
type Backend struct {
	client    client
	uploader  *manager.Uploader
	bucket    string
	urlPrefix string
	keys      objectkey.Generator
	config    Config
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	backend, err := newWithClient(config, s3.NewFromConfig(awsCfg, s3Options...))
	if err != nil {
		return nil, err
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

func newWithClient(config Config, c client) (*Backend, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = objectkey.Default()
	}

	prefix, err := objectURLPrefix(config)
	if err != nil {
		return nil, err
	}

	uploader := manager.NewUploader(c, func(u *manager.Uploader) {
		if config.PartSize > 0 {
			u.PartSize = config.PartSize
		}
	})

	return &Backend{
		client:    c,
		uploader:  uploader,
		bucket:    config.Bucket,
		urlPrefix: prefix,
		keys:      config.KeyGenerator,
		config:    config,
	}, nil
}

// objectURLPrefix returns the URL that object keys are appended to.
func objectURLPrefix(config Config) (string, error) {
	if config.PublicBaseURL != "" {
		return strings.TrimSuffix(config.PublicBaseURL, "/"), nil
	}
	if config.Endpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", config.Bucket, config.Region), nil
	}

	endpoint, err := url.Parse(config.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q", config.Endpoint)
	}
	base := strings.TrimSuffix(endpoint.Path, "/")
	if config.UsePathStyle {
		return fmt.Sprintf("%s://%s%s/%s", endpoint.Scheme, endpoint.Host, base, config.Bucket), nil
	}
	return fmt.Sprintf("%s://%s.%s%s", endpoint.Scheme, config.Bucket, endpoint.Host, base), nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	// Handle multiple error types for MinIO compatibility
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) && !isAPIError(err, "BadRequest", "NoSuchBucket", "NotFound") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}

	// Add location constraint for regions other than us-east-1
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		if isAPIError(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Put uploads the content under a key derived from name. Multipart requests
// go through the transfer manager, which splits large bodies into parts.
func (b *Backend) Put(ctx context.Context, name string, reader io.Reader, opts gallery.PutOptions) (*gallery.PutResult, error) {
	key := b.keys.GenerateKey(name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.Access == gallery.AccessPublic && !b.config.DisableACL {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	b.applySSE(input)

	var err error
	if opts.Multipart {
		_, err = b.uploader.Upload(ctx, input)
	} else {
		if opts.Size > 0 {
			input.ContentLength = aws.Int64(opts.Size)
		}
		_, err = b.client.PutObject(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &gallery.PutResult{URL: b.URL(key), Key: key}, nil
}

// Delete deletes the object addressed by imageURL
func (b *Backend) Delete(ctx context.Context, imageURL string) error {
	key, err := b.keyFromURL(imageURL)
	if err != nil {
		return err
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) || isAPIError(err, "NoSuchKey", "NotFound") {
			return gallery.ErrBlobNotFound
		}
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// URL returns the public URL for key
func (b *Backend) URL(key string) string {
	return b.urlPrefix + "/" + key
}

func (b *Backend) keyFromURL(imageURL string) (string, error) {
	key, ok := strings.CutPrefix(imageURL, b.urlPrefix+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %s", gallery.ErrInvalidBlobURL, imageURL)
	}
	return key, nil
}

// applySSE adds server-side encryption if enabled
func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

func isAPIError(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
