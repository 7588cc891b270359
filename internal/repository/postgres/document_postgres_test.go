package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var documentCols = []string{
	"id", "original_filename", "filename", "storage_path", "mime_type", "size",
	"extension", "invoice_id", "access_token", "token_expires_at", "is_public",
	"created_at", "updated_at", "deleted_at",
}

func documentRow(doc *model.Document) *sqlmock.Rows {
	var expiresAt, deletedAt any
	if doc.TokenExpiresAt != nil {
		expiresAt = *doc.TokenExpiresAt
	}
	if doc.DeletedAt != nil {
		deletedAt = *doc.DeletedAt
	}
	return sqlmock.NewRows(documentCols).AddRow(
		doc.ID, doc.OriginalFilename, doc.Filename, doc.StoragePath,
		doc.MimeType, doc.Size, doc.Extension, doc.InvoiceID,
		doc.AccessToken, expiresAt, doc.IsPublic,
		doc.CreatedAt, doc.UpdatedAt, deletedAt,
	)
}

func testDocument() *model.Document {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, 7)
	return &model.Document{
		ID:               "8d6a0a38-9f2c-4f0f-9a51-3f3a2f1c2b01",
		OriginalFilename: "invoice.pdf",
		Filename:         "c0ffee.pdf",
		StoragePath:      "documents/c0ffee.pdf",
		MimeType:         "application/pdf",
		Size:             2048,
		Extension:        "pdf",
		InvoiceID:        "INV-1",
		AccessToken:      "tok-1",
		TokenExpiresAt:   &expires,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newMockRepo(t *testing.T) (*DocumentPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDocumentPostgres(db), mock
}

func TestDocumentPostgres_Create(t *testing.T) {
	t.Run("inserts and returns the stored row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()

		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(
				doc.ID, doc.OriginalFilename, doc.Filename, doc.StoragePath,
				doc.MimeType, doc.Size,
				sql.NullString{String: doc.Extension, Valid: true},
				sql.NullString{String: doc.InvoiceID, Valid: true},
				doc.AccessToken,
				sql.NullTime{Time: *doc.TokenExpiresAt, Valid: true},
				doc.IsPublic, doc.CreatedAt,
			).
			WillReturnRows(documentRow(doc))

		got, err := repo.Create(context.Background(), doc)

		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, doc.AccessToken, got.AccessToken)
		require.NotNil(t, got.TokenExpiresAt)
		assert.True(t, got.TokenExpiresAt.Equal(*doc.TokenExpiresAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicateToken", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()

		mock.ExpectQuery("INSERT INTO documents").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_access_token_key"})

		_, err := repo.Create(context.Background(), doc)

		assert.ErrorIs(t, err, repository.ErrDuplicateToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1 AND deleted_at IS NULL").
			WithArgs(doc.ID).
			WillReturnRows(documentRow(doc))

		got, err := repo.FindByID(context.Background(), doc.ID)

		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, doc.InvoiceID, got.InvoiceID)
		assert.Nil(t, got.DeletedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found surfaces sql.ErrNoRows", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1 AND deleted_at IS NULL").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(documentCols))

		_, err := repo.FindByID(context.Background(), "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null optional columns scan cleanly", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()
		doc.Extension = ""
		doc.InvoiceID = ""
		doc.TokenExpiresAt = nil

		rows := sqlmock.NewRows(documentCols).AddRow(
			doc.ID, doc.OriginalFilename, doc.Filename, doc.StoragePath,
			doc.MimeType, doc.Size, nil, nil,
			doc.AccessToken, nil, doc.IsPublic,
			doc.CreatedAt, doc.UpdatedAt, nil,
		)
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1").
			WithArgs(doc.ID).
			WillReturnRows(rows)

		got, err := repo.FindByID(context.Background(), doc.ID)

		require.NoError(t, err)
		assert.Empty(t, got.Extension)
		assert.Empty(t, got.InvoiceID)
		assert.Nil(t, got.TokenExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_FindByToken(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE access_token = \\$1 AND deleted_at IS NULL").
			WithArgs(doc.AccessToken).
			WillReturnRows(documentRow(doc))

		got, err := repo.FindByToken(context.Background(), doc.AccessToken)

		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token surfaces sql.ErrNoRows", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE access_token = \\$1 AND deleted_at IS NULL").
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(documentCols))

		_, err := repo.FindByToken(context.Background(), "nope")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_List(t *testing.T) {
	t.Run("returns page and total", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
			WithArgs("").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE deleted_at IS NULL").
			WithArgs("", 15, 0).
			WillReturnRows(documentRow(doc))

		res, err := repo.List(context.Background(), repository.PageQuery{Limit: 15, Offset: 0})

		require.NoError(t, err)
		assert.Equal(t, 42, res.Total)
		require.Len(t, res.Items, 1)
		assert.Equal(t, doc.ID, res.Items[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invoice filter is bound", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
			WithArgs("INV-9").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE deleted_at IS NULL").
			WithArgs("INV-9", 15, 30).
			WillReturnRows(sqlmock.NewRows(documentCols))

		res, err := repo.List(context.Background(), repository.PageQuery{InvoiceID: "INV-9", Limit: 15, Offset: 30})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.Empty(t, res.Items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_Update(t *testing.T) {
	t.Run("persists mutable fields and returns the row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()
		doc.AccessToken = "tok-2"

		mock.ExpectQuery("UPDATE documents").
			WithArgs(
				doc.ID, doc.IsPublic,
				sql.NullString{String: doc.InvoiceID, Valid: true},
				doc.AccessToken,
				sql.NullTime{Time: *doc.TokenExpiresAt, Valid: true},
				sqlmock.AnyArg(),
			).
			WillReturnRows(documentRow(doc))

		got, err := repo.Update(context.Background(), doc)

		require.NoError(t, err)
		assert.Equal(t, "tok-2", got.AccessToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("soft-deleted row surfaces sql.ErrNoRows", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()

		mock.ExpectQuery("UPDATE documents").
			WillReturnRows(sqlmock.NewRows(documentCols))

		_, err := repo.Update(context.Background(), doc)

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicateToken", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		doc := testDocument()

		mock.ExpectQuery("UPDATE documents").
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.Update(context.Background(), doc)

		assert.ErrorIs(t, err, repository.ErrDuplicateToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_SoftDelete(t *testing.T) {
	t.Run("marks the row deleted", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("UPDATE documents").
			WithArgs("doc-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SoftDelete(context.Background(), "doc-1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already deleted surfaces sql.ErrNoRows", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("UPDATE documents").
			WithArgs("doc-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SoftDelete(context.Background(), "doc-1")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
