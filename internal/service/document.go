package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
	"docvault/internal/token"
)

// storagePrefix namespaces every document blob inside the bucket.
const storagePrefix = "documents"

// Pagination defaults shared with the invoice application's client.
const (
	DefaultPageSize = 15
	MaxPageSize     = 100
)

// Disposition tells the HTTP boundary whether content may render inline in a
// browser or must be offered as a download.
type Disposition string

const (
	DispositionInline     Disposition = "inline"
	DispositionAttachment Disposition = "attachment"
)

// inlineMimeTypes is the fixed allow-list of safely renderable content types.
// Everything else is served as an attachment so stored content can never
// execute as HTML or script in a browser context.
var inlineMimeTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/gif":       {},
	"application/pdf": {},
}

// DispositionFor returns the recommended content disposition for a MIME type.
func DispositionFor(mimeType string) Disposition {
	if _, ok := inlineMimeTypes[mimeType]; ok {
		return DispositionInline
	}
	return DispositionAttachment
}

// UploadInput carries an upload's bytes and client-supplied metadata.
// OriginalFilename is untrusted; it is used only for the stored display name
// and to derive the extension of the generated storage filename.
type UploadInput struct {
	Reader           io.Reader
	OriginalFilename string
	MimeType         string
	Size             int64
}

// CreateOptions are the optional fields accepted at upload time.
type CreateOptions struct {
	InvoiceID     string
	IsPublic      bool
	ExpiresInDays int // 0 = token never expires
}

// UpdatePatch is a partial update. Only these four concerns are mutable;
// nil pointers leave the current value untouched.
type UpdatePatch struct {
	IsPublic        *bool
	InvoiceID       *string
	RegenerateToken bool
	ExpiresInDays   *int
}

// ListFilter narrows a listing.
type ListFilter struct {
	InvoiceID string
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items    []model.Document `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// DocumentService is the document registry: it owns metadata records, token
// generation and expiry, and orchestrates every operation against the blob
// store. It never talks HTTP.
type DocumentService interface {
	// Create writes the upload to the blob store, generates a fresh access
	// token, and persists the record. No record is created if the blob write
	// fails; the blob is rolled back if the record insert fails.
	Create(ctx context.Context, upload UploadInput, opts CreateOptions) (*model.Document, error)

	// List returns live documents newest-first, optionally filtered by
	// invoice, using page/page_size pagination.
	List(ctx context.Context, filter ListFilter, page, pageSize int) (*DocumentListResult, error)

	// Get returns a single live document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Update applies a partial update. Token regeneration atomically replaces
	// the access token; the old token permanently stops resolving.
	Update(ctx context.Context, id string, patch UpdatePatch) (*model.Document, error)

	// Delete soft-deletes the record after a best-effort blob removal.
	Delete(ctx context.Context, id string) error

	// Resolve exchanges an access token for the document and its content
	// stream. The expiry check runs strictly before any blob access.
	Resolve(ctx context.Context, tok string) (*model.Document, io.ReadCloser, Disposition, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store  storage.BlobStore
	repo   repository.DocumentRepository
	tokens token.Source

	// tokenCache memoizes token → document lookups for a short TTL and is
	// explicitly invalidated on update and delete, so regeneration and
	// deletion take effect immediately. Nil when caching is disabled.
	tokenCache *gocache.Cache

	now func() time.Time
}

// NewDocumentService constructs a new DocumentService. A cacheTTL of zero or
// less disables the token-lookup cache.
func NewDocumentService(store storage.BlobStore, repo repository.DocumentRepository, tokens token.Source, cacheTTL time.Duration) DocumentService {
	var c *gocache.Cache
	if cacheTTL > 0 {
		c = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return &documentService{
		store:      store,
		repo:       repo,
		tokens:     tokens,
		tokenCache: c,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *documentService) Create(ctx context.Context, upload UploadInput, opts CreateOptions) (*model.Document, error) {
	// Size and type constraints are the boundary's job; the registry still
	// refuses payloads that cannot possibly be a document.
	if upload.Reader == nil || upload.Size <= 0 {
		return nil, ErrEmptyUpload
	}

	// Storage filename is independent of the untrusted original name: a fresh
	// UUID plus the original extension, so collisions cannot occur and the
	// caller cannot influence the blob key.
	ext := filepath.Ext(upload.OriginalFilename)
	genName := uuid.New().String() + ext
	key := filepath.ToSlash(filepath.Join(storagePrefix, genName))

	objInfo, err := s.store.Put(ctx, key, upload.Reader, storage.PutObjectOptions{
		Size:        upload.Size,
		ContentType: upload.MimeType,
		Metadata: map[string]string{
			"original-filename": upload.OriginalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	tok, err := s.tokens.Token()
	if err != nil {
		// Keep no orphan: the record was never written, remove the blob.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logWarn("rollback_delete_failed", map[string]any{"error": delErr.Error()})
		}
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	createdAt := s.now()
	var expiresAt *time.Time
	if opts.ExpiresInDays > 0 {
		t := createdAt.AddDate(0, 0, opts.ExpiresInDays)
		expiresAt = &t
	}

	doc := &model.Document{
		ID:               uuid.New().String(),
		OriginalFilename: upload.OriginalFilename,
		Filename:         genName,
		StoragePath:      objInfo.Key,
		MimeType:         upload.MimeType,
		Size:             upload.Size,
		Extension:        strings.TrimPrefix(ext, "."),
		InvoiceID:        opts.InvoiceID,
		AccessToken:      tok,
		TokenExpiresAt:   expiresAt,
		IsPublic:         opts.IsPublic,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		if errors.Is(err, repository.ErrDuplicateToken) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// List returns paginated live documents without exposing repository types.
func (s *documentService) List(ctx context.Context, filter ListFilter, page, pageSize int) (*DocumentListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	res, err := s.repo.List(ctx, repository.PageQuery{
		InvoiceID: filter.InvoiceID,
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{
		Items:    res.Items,
		Total:    res.Total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Get returns a live document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Update(ctx context.Context, id string, patch UpdatePatch) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	oldToken := doc.AccessToken

	if patch.IsPublic != nil {
		doc.IsPublic = *patch.IsPublic
	}
	if patch.InvoiceID != nil {
		doc.InvoiceID = *patch.InvoiceID
	}
	if patch.RegenerateToken {
		tok, err := s.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("generate access token: %w", err)
		}
		doc.AccessToken = tok
	}
	// Expiry recompute is independent of regeneration: a caller may extend a
	// token's lifetime without rotating it.
	if patch.ExpiresInDays != nil {
		t := s.now().AddDate(0, 0, *patch.ExpiresInDays)
		doc.TokenExpiresAt = &t
	}

	updated, err := s.repo.Update(ctx, doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repository.ErrDuplicateToken) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	// The old token must stop resolving the moment the update lands.
	if s.tokenCache != nil {
		s.tokenCache.Delete(oldToken)
		s.tokenCache.Delete(updated.AccessToken)
	}
	return updated, nil
}

// Delete soft-deletes the record. Blob removal is best-effort: an absent blob
// counts as removed, and other blob-store failures are logged without
// aborting the record deletion.
func (s *documentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if err := s.store.Delete(ctx, doc.StoragePath); err != nil && !errors.Is(err, storage.ErrNotExist) {
		s.logWarn("blob_delete_failed", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if s.tokenCache != nil {
		s.tokenCache.Delete(doc.AccessToken)
	}
	return nil
}

func (s *documentService) Resolve(ctx context.Context, tok string) (*model.Document, io.ReadCloser, Disposition, error) {
	if tok == "" {
		return nil, nil, "", ErrInvalidToken
	}

	doc, err := s.lookupByToken(ctx, tok)
	if err != nil {
		return nil, nil, "", err
	}

	// Expiry is checked before any blob access so an expired token costs no
	// storage round trip and cannot leak content-existence information.
	if doc.TokenExpired(s.now()) {
		return nil, nil, "", ErrTokenExpired
	}

	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, "", ErrBlobMissing
		}
		return nil, nil, "", fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	return doc, rc, DispositionFor(doc.MimeType), nil
}

func (s *documentService) lookupByToken(ctx context.Context, tok string) (*model.Document, error) {
	if s.tokenCache != nil {
		if v, ok := s.tokenCache.Get(tok); ok {
			return v.(*model.Document), nil
		}
	}
	doc, err := s.repo.FindByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if s.tokenCache != nil {
		s.tokenCache.SetDefault(tok, doc)
	}
	return doc, nil
}

func (s *documentService) logWarn(event string, fields map[string]any) {
	entry := map[string]any{
		"ts":    s.now().Format(time.RFC3339Nano),
		"level": "warn",
		"msg":   event,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if b, err := json.Marshal(entry); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
