package service

import "errors"

// Registry error kinds. Every failure leaving the service is one of these
// (possibly wrapped with detail), so the HTTP boundary can map errors to
// statuses deterministically instead of parsing strings.
var (
	// ErrIDRequired indicates a missing document id.
	ErrIDRequired = errors.New("id is required")

	// ErrEmptyUpload indicates a missing or zero-length upload payload.
	ErrEmptyUpload = errors.New("upload payload is empty")

	// ErrNotFound indicates the document does not exist or is soft-deleted.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidToken indicates no live document carries the supplied access
	// token. Deliberately indistinguishable from "token of a deleted
	// document" so callers cannot probe deletion state.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrTokenExpired indicates the token matched a live document but its
	// expiry deadline has passed.
	ErrTokenExpired = errors.New("access token has expired")

	// ErrBlobMissing indicates document metadata exists but the blob behind
	// it is gone (out-of-band deletion or storage inconsistency).
	ErrBlobMissing = errors.New("document content missing from storage")

	// ErrStorageWrite indicates the blob store rejected or failed a write.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrStorageRead indicates the blob store failed a read.
	ErrStorageRead = errors.New("storage read failed")

	// ErrConflict indicates the storage layer's access_token uniqueness
	// constraint fired.
	ErrConflict = errors.New("access token conflict")
)
