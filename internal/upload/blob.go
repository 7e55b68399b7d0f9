package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrBlobNotFound is returned by Open and Delete for unknown keys.
var ErrBlobNotFound = errors.New("blob not found")

// Blob stores the generic file library. Keys are random names, never
// user-supplied.
type Blob interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Location is what gets recorded as the file path of a stored key.
	Location(key string) string
}

// ── Filesystem ───────────────────────────────────────────────────────────────

type FSBlob struct {
	root string
}

func NewFSBlob(root string) *FSBlob { return &FSBlob{root: root} }

func (b *FSBlob) path(key string) string { return filepath.Join(b.root, CleanName(key)) }

func (b *FSBlob) Location(key string) string { return filepath.ToSlash(b.path(key)) }

func (b *FSBlob) Put(ctx context.Context, key string, r io.Reader, _ string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return 0, fmt.Errorf("blob: create dir: %w", err)
	}
	f, err := os.OpenFile(b.path(key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("blob: create %s: %w", key, err)
	}
	n, err := writeAndClose(f, r)
	if err != nil {
		_ = os.Remove(b.path(key))
		return 0, fmt.Errorf("blob: write %s: %w", key, err)
	}
	return n, nil
}

func (b *FSBlob) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

func (b *FSBlob) Delete(_ context.Context, key string) error {
	err := os.Remove(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}

// ── S3 ───────────────────────────────────────────────────────────────────────

type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // optional, for MinIO and other S3-compatible services
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Prefix       string
}

// s3API is the subset of *s3.Client used here.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type uploaderAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Blob struct {
	client   s3API
	uploader uploaderAPI
	bucket   string
	prefix   string
}

// NewS3Blob builds a client from static credentials when given, else from the
// default AWS credential chain.
func NewS3Blob(ctx context.Context, cfg S3Config) (*S3Blob, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Blob{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (b *S3Blob) key(key string) string {
	if b.prefix == "" {
		return CleanName(key)
	}
	return b.prefix + "/" + CleanName(key)
}

func (b *S3Blob) Location(key string) string { return "s3://" + b.bucket + "/" + b.key(key) }

func (b *S3Blob) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	cr := &countingReader{r: r}
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
		Body:   cr,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return 0, fmt.Errorf("failed to upload object: %w", err)
	}
	return cr.n, nil
}

func (b *S3Blob) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	return out.Body, nil
}

func (b *S3Blob) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
