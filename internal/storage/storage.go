package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains the blob-store abstraction backing document
// content. Implementations must avoid using local disk and rely on
// streaming I/O only.

// ErrNotExist is returned by Get, Exists and Delete-adjacent paths when the
// requested key has no object behind it. Callers distinguish a missing blob
// (recoverable inconsistency) from transport failures through this sentinel.
var ErrNotExist = errors.New("object does not exist")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// BlobStore is an opaque key-addressed byte store (S3-compatible object
// storage or equivalent). Methods use context and streaming readers; every
// operation is bounded by the implementation's configured timeout.
type BlobStore interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	// Returns ErrNotExist if no object lives at the key.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Exists reports whether an object lives at the key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes an object by key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
