// Package s3 implements S3-based blob storage.
//
// This file contains the streamed writer. Writes are buffered up to the
// configured part size; the first flush starts a multipart upload, and
// Commit completes it. Payloads that fit in a single buffer skip multipart
// entirely and commit with one PutObject.
package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// NewWriter begins a streamed write.
//
// The handle is generated up front so the multipart upload (if one is
// needed) targets the final object key. S3 keeps multipart parts invisible
// until CompleteMultipartUpload, so readers never observe a partial
// payload.
func (s *S3BlobStore) NewWriter(ctx context.Context) (blob.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &s3Writer{
		store:  s,
		ctx:    ctx,
		handle: blob.NewHandle(),
	}, nil
}

// s3Writer is a streamed write buffering parts in memory.
//
// uploadID is empty until the buffered data first exceeds the part size;
// until then a Commit uses a single PutObject instead of multipart.
type s3Writer struct {
	store *S3BlobStore

	// ctx is the NewWriter context. Write carries no context of its own,
	// so mid-stream part uploads honor the caller's deadline through it.
	ctx context.Context

	handle blob.Handle

	buf            bytes.Buffer
	uploadID       string
	completedParts []types.CompletedPart
	partNumber     int32
	closed         bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, blob.ErrWriterClosed
	}

	n, err := w.buf.Write(p)
	if err != nil {
		return n, err
	}

	// Flush full parts; keep the remainder buffered so the final part can
	// be smaller than the minimum part size.
	for int64(w.buf.Len()) >= w.store.partSize {
		if err := w.flushPart(w.ctx, int(w.store.partSize)); err != nil {
			return n, err
		}
	}

	return n, nil
}

// flushPart uploads size bytes from the front of the buffer as the next
// multipart part, starting the multipart upload on first use.
func (w *s3Writer) flushPart(ctx context.Context, size int) error {
	if w.uploadID == "" {
		result, err := w.store.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(w.store.bucket),
			Key:    aws.String(w.store.objectKey(w.handle)),
		})
		if err != nil {
			return fmt.Errorf("failed to create multipart upload: %w", err)
		}
		w.uploadID = aws.ToString(result.UploadId)
	}

	part := w.buf.Next(size)
	w.partNumber++
	partNumber := w.partNumber

	result, err := w.store.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.store.bucket),
		Key:        aws.String(w.store.objectKey(w.handle)),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(part),
	})
	if err != nil {
		return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	w.completedParts = append(w.completedParts, types.CompletedPart{
		ETag:       result.ETag,
		PartNumber: aws.Int32(partNumber),
	})

	return nil
}

// Commit finalizes the write and publishes the payload under the handle.
func (w *s3Writer) Commit(ctx context.Context) (blob.Handle, error) {
	if w.closed {
		return "", blob.ErrWriterClosed
	}
	w.closed = true

	if err := ctx.Err(); err != nil {
		w.abortUpload(context.Background())
		return "", err
	}

	// Small payload: no multipart upload was started, a single PutObject
	// publishes atomically.
	if w.uploadID == "" {
		_, err := w.store.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.store.bucket),
			Key:    aws.String(w.store.objectKey(w.handle)),
			Body:   bytes.NewReader(w.buf.Bytes()),
		})
		if err != nil {
			return "", fmt.Errorf("failed to put object: %w", err)
		}
		return w.handle, nil
	}

	// Upload the remaining buffered bytes as the final part.
	if w.buf.Len() > 0 {
		if err := w.flushPart(ctx, w.buf.Len()); err != nil {
			w.abortUpload(ctx)
			return "", err
		}
	}

	_, err := w.store.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.store.objectKey(w.handle)),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.completedParts,
		},
	})
	if err != nil {
		w.abortUpload(ctx)
		return "", fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	return w.handle, nil
}

// Abort discards the write, cleaning up any multipart upload in progress.
func (w *s3Writer) Abort(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.abortUpload(ctx)
	return nil
}

func (w *s3Writer) abortUpload(ctx context.Context) {
	if w.uploadID == "" {
		return
	}

	_, _ = w.store.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.store.objectKey(w.handle)),
		UploadId: aws.String(w.uploadID),
	})
	w.uploadID = ""
}
