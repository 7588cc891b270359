package repository

import (
	"context"
	"errors"

	"docvault/internal/model"
)

// ErrDuplicateToken is returned by Create and Update when the access_token
// uniqueness constraint fires. The constraint is the correctness backstop
// against two concurrent operations picking the same token.
var ErrDuplicateToken = errors.New("duplicate access token")

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here — strictly persistence operations. Every lookup
// excludes soft-deleted rows; the access_token uniqueness constraint spans
// all rows (including soft-deleted ones) so tokens are never reissued.
type DocumentRepository interface {
	// Create inserts a new document record.
	// The caller provides required fields (ID, AccessToken, CreatedAt, ...).
	// Returns the stored document (may include values set by the DB).
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a live document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// FindByToken returns the live document whose current access_token equals
	// the supplied token.
	FindByToken(ctx context.Context, token string) (*model.Document, error)

	// List returns a paginated list of live documents, newest first, and the
	// total row count for the given filter.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Update persists the mutable fields (is_public, invoice_id, access_token,
	// token_expires_at) of a live document and returns the stored record.
	// Returns sql.ErrNoRows if the document does not exist or is soft-deleted.
	Update(ctx context.Context, doc *model.Document) (*model.Document, error)

	// SoftDelete marks a live document deleted. Returns sql.ErrNoRows if the
	// document does not exist or is already soft-deleted.
	SoftDelete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters plus the optional
// invoice filter.
type PageQuery struct {
	InvoiceID string
	Limit     int
	Offset    int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
