// Package s3 implements S3-based blob storage.
//
// Payloads are stored as one S3 object per handle, under an optional key
// prefix. Small payloads are uploaded with a single PutObject; streamed
// writes use S3 multipart uploads so large payloads never need to be
// buffered in full. Works against Amazon S3 and compatible services
// (MinIO, Localstack).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// S3BlobStore implements blob.Store backed by an S3 bucket.
//
// Thread Safety:
// The AWS SDK client is safe for concurrent use. Handles are random UUIDs,
// so concurrent writers never target the same object key.
type S3BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	partSize  int64
}

// S3BlobStoreConfig holds configuration for creating an S3 blob store.
type S3BlobStoreConfig struct {
	// Client is the configured AWS S3 client (required).
	Client *s3.Client

	// Bucket is the S3 bucket name (required).
	Bucket string

	// KeyPrefix is prepended to every object key. Optional; use it to
	// share a bucket with other data.
	KeyPrefix string

	// PartSize is the multipart upload part size in bytes.
	// Defaults to 10MB. S3 requires parts between 5MB and 5GB.
	PartSize int64
}

// NewS3BlobStore creates an S3 blob store and verifies bucket access.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3BlobStore: Initialized S3 blob store
//   - error: Returns error if configuration is invalid or the bucket is
//     not accessible
func NewS3BlobStore(ctx context.Context, cfg S3BlobStoreConfig) (*S3BlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = 10 * 1024 * 1024
	}

	// S3 limits multipart parts to 5MB-5GB.
	if partSize < 5*1024*1024 {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > 5*1024*1024*1024 {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3BlobStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
	}, nil
}

// objectKey returns the full S3 object key for a handle.
func (s *S3BlobStore) objectKey(handle blob.Handle) string {
	if s.keyPrefix != "" {
		return s.keyPrefix + string(handle)
	}
	return string(handle)
}

// Put stores a complete payload with a single PutObject call.
//
// The handle is readable as soon as Put returns: S3 PutObject is atomic,
// a failed upload leaves no object behind.
func (s *S3BlobStore) Put(ctx context.Context, data []byte) (blob.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := blob.NewHandle()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(handle)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	return handle, nil
}

// Open returns a reader streaming the object body from S3.
//
// The caller is responsible for closing the returned ReadCloser.
func (s *S3BlobStore) Open(ctx context.Context, handle blob.Handle) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(handle)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("open %s: %w", handle, blob.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return result.Body, nil
}

// Size returns the object size via HeadObject without downloading the body.
func (s *S3BlobStore) Size(ctx context.Context, handle blob.Handle) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(handle)),
	})
	if err != nil {
		// HeadObject reports a missing key as NotFound, not NoSuchKey.
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, fmt.Errorf("size %s: %w", handle, blob.ErrBlobNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, nil
	}
	return uint64(*result.ContentLength), nil
}

// Delete removes the object. S3 DeleteObject succeeds on missing keys, so
// deleting a dangling handle is naturally a no-op.
func (s *S3BlobStore) Delete(ctx context.Context, handle blob.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(handle)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// List returns every committed handle by paginating over the key prefix.
//
// In-progress multipart uploads are not listed by ListObjectsV2, so this
// only ever reports committed payloads.
func (s *S3BlobStore) List(ctx context.Context) ([]blob.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var handles []blob.Handle

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			key := *obj.Key
			if s.keyPrefix != "" {
				if len(key) <= len(s.keyPrefix) {
					continue
				}
				key = key[len(s.keyPrefix):]
			}

			handles = append(handles, blob.Handle(key))
		}
	}

	return handles, nil
}

// Healthcheck verifies the bucket is reachable.
func (s *S3BlobStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q not accessible: %w", s.bucket, err)
	}

	return nil
}

// Close is a no-op: the S3 client needs no shutdown.
func (s *S3BlobStore) Close() error {
	return nil
}
