package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, original_filename, filename, storage_path, mime_type, size, extension, invoice_id, access_token, token_expires_at, is_public, created_at, updated_at, deleted_at`

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanDocument(s interface{ Scan(dest ...any) error }) (*model.Document, error) {
	var (
		d         model.Document
		extension sql.NullString
		invoiceID sql.NullString
		expiresAt sql.NullTime
		deletedAt sql.NullTime
	)
	if err := s.Scan(
		&d.ID,
		&d.OriginalFilename,
		&d.Filename,
		&d.StoragePath,
		&d.MimeType,
		&d.Size,
		&extension,
		&invoiceID,
		&d.AccessToken,
		&expiresAt,
		&d.IsPublic,
		&d.CreatedAt,
		&d.UpdatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	d.Extension = extension.String
	d.InvoiceID = invoiceID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		d.TokenExpiresAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		d.DeletedAt = &t
	}
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, original_filename, filename, storage_path, mime_type, size, extension, invoice_id, access_token, token_expires_at, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OriginalFilename,
		doc.Filename,
		doc.StoragePath,
		doc.MimeType,
		doc.Size,
		nullString(doc.Extension),
		nullString(doc.InvoiceID),
		doc.AccessToken,
		nullTime(doc.TokenExpiresAt),
		doc.IsPublic,
		doc.CreatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", repository.ErrDuplicateToken, err)
		}
		return nil, err
	}
	return out, nil
}

// FindByID fetches a single live document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// FindByToken fetches the live document holding the given access token.
func (r *DocumentPostgres) FindByToken(ctx context.Context, token string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE access_token = $1 AND deleted_at IS NULL
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, token))
}

// List returns live documents using LIMIT/OFFSET pagination and a total count.
// Ordering is newest-first by creation time, ties broken by id descending, so
// pages stay stable as new documents arrive.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE deleted_at IS NULL AND ($1 = '' OR invoice_id = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, pq.InvoiceID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE deleted_at IS NULL AND ($1 = '' OR invoice_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.InvoiceID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Update persists the mutable fields of a live document and returns the
// stored record. Immutable fields (filename, size, mime_type, extension,
// storage_path) are never part of the statement.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		UPDATE documents
		SET is_public = $2, invoice_id = $3, access_token = $4, token_expires_at = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.IsPublic,
		nullString(doc.InvoiceID),
		doc.AccessToken,
		nullTime(doc.TokenExpiresAt),
		time.Now().UTC(),
	)
	out, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", repository.ErrDuplicateToken, err)
		}
		return nil, err
	}
	return out, nil
}

// SoftDelete marks a live document deleted, retaining the row for audit.
func (r *DocumentPostgres) SoftDelete(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, q, id, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
