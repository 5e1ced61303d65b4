// Package memory implements an in-memory blob store.
//
// All payloads live in a map guarded by a RWMutex. Intended for tests,
// development, and small ephemeral deployments; data is lost on restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// MemoryBlobStore implements blob.Store backed by process memory.
//
// Commit semantics: streamed writes accumulate in a private buffer owned by
// the Writer and are published into the shared map only on Commit, so a
// concurrent Open can never observe a partial payload.
//
// Thread Safety: all map access is protected by mu. Payloads are copied on
// Put and on publish so caller-owned buffers cannot race store state.
type MemoryBlobStore struct {
	mu     sync.RWMutex
	data   map[blob.Handle][]byte
	closed bool
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore(ctx context.Context) (*MemoryBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryBlobStore{
		data: make(map[blob.Handle][]byte),
	}, nil
}

// Put stores a complete payload and returns its new handle.
func (s *MemoryBlobStore) Put(ctx context.Context, data []byte) (blob.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := blob.NewHandle()

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.data[handle] = buf
	s.mu.Unlock()

	return handle, nil
}

// NewWriter begins a streamed write buffered in memory.
func (s *MemoryBlobStore) NewWriter(ctx context.Context) (blob.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &memoryWriter{store: s}, nil
}

// Open returns a reader over a copy-free view of the committed payload.
func (s *MemoryBlobStore) Open(ctx context.Context, handle blob.Handle) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[handle]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("open %s: %w", handle, blob.ErrBlobNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Size returns the committed payload size.
func (s *MemoryBlobStore) Size(ctx context.Context, handle blob.Handle) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	data, ok := s.data[handle]
	s.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("size %s: %w", handle, blob.ErrBlobNotFound)
	}

	return uint64(len(data)), nil
}

// Delete removes the payload. Deleting a missing handle is a no-op.
func (s *MemoryBlobStore) Delete(ctx context.Context, handle blob.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, handle)
	s.mu.Unlock()

	return nil
}

// List returns every committed handle.
func (s *MemoryBlobStore) List(ctx context.Context) ([]blob.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]blob.Handle, 0, len(s.data))
	for h := range s.data {
		handles = append(handles, h)
	}

	return handles, nil
}

// Healthcheck reports whether the store is usable.
func (s *MemoryBlobStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Close releases the payload map. The store is unusable afterward.
func (s *MemoryBlobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = make(map[blob.Handle][]byte)
	return nil
}

// memoryWriter buffers a streamed write until Commit publishes it.
type memoryWriter struct {
	store  *MemoryBlobStore
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, blob.ErrWriterClosed
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Commit(ctx context.Context) (blob.Handle, error) {
	if w.closed {
		return "", blob.ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.closed = true
	handle := blob.NewHandle()

	w.store.mu.Lock()
	w.store.data[handle] = w.buf.Bytes()
	w.store.mu.Unlock()

	return handle, nil
}

func (w *memoryWriter) Abort(ctx context.Context) error {
	w.closed = true
	w.buf.Reset()
	return nil
}
