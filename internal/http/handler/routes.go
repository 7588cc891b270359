package handler

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
)

// accessPath is the public retrieval route; the token-bearing URL returned to
// clients embeds it.
const accessPath = "/documents/access/"

// documentPayload pairs a document with its ready-to-use access URL.
// URL construction is a boundary concern: the registry never sees hosts.
type documentPayload struct {
	Document  *model.Document `json:"document"`
	AccessURL string          `json:"access_url"`
}

func accessURL(c *fiber.Ctx, token string) string {
	return c.BaseURL() + accessPath + token
}

// updateRequest is the JSON body of PUT/PATCH /documents/:id. Only these four
// fields are mutable; anything else in the body is ignored.
type updateRequest struct {
	IsPublic        *bool   `json:"is_public"`
	InvoiceID       *string `json:"invoice_id"`
	RegenerateToken bool    `json:"regenerate_token"`
	ExpiresInDays   *int    `json:"expires_in_days"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Everything
// except the token-access endpoint and the probes sits behind the API key.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, apiKey string) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	// Public retrieval path: bearer access by token, no API key.
	app.Get("/documents/access/:token", AccessDocument(docSvc))

	auth := middleware.APIKey(apiKey)
	app.Post("/documents", auth, UploadDocument(docSvc))
	app.Get("/documents", auth, ListDocuments(docSvc))
	app.Get("/documents/:id", auth, GetDocument(docSvc))
	app.Put("/documents/:id", auth, UpdateDocument(docSvc))
	app.Patch("/documents/:id", auth, UpdateDocument(docSvc))
	app.Delete("/documents/:id", auth, DeleteDocument(docSvc))
}

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "Dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a bare liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadDocument handles multipart uploads (field name: file). Optional form
// fields: invoice_id, is_public, expires_in_days (1-365).
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "A file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "The uploaded file is invalid")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		opts := service.CreateOptions{
			InvoiceID: c.FormValue("invoice_id"),
		}
		if v := c.FormValue("is_public"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "is_public must be a boolean")
			}
			opts.IsPublic = b
		}
		if v := c.FormValue("expires_in_days"); v != "" {
			days, err := strconv.Atoi(v)
			if err != nil || days < 1 || days > 365 {
				return writeError(c, fiber.StatusBadRequest, "expires_in_days must be an integer between 1 and 365")
			}
			opts.ExpiresInDays = days
		}

		doc, err := docSvc.Create(c.UserContext(), service.UploadInput{
			Reader:           f,
			OriginalFilename: fh.Filename,
			MimeType:         ct,
			Size:             fh.Size,
		}, opts)
		if err != nil {
			return translateServiceError(c, err, "Failed to upload document")
		}
		return writeSuccess(c, fiber.StatusCreated, "Document uploaded successfully", documentPayload{
			Document:  doc,
			AccessURL: accessURL(c, doc.AccessToken),
		})
	}
}

// ListDocuments returns a page of documents, optionally filtered by invoice_id.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := strconv.Atoi(c.Query("page", "1"))
		if err != nil || page < 1 {
			return writeError(c, fiber.StatusBadRequest, "page must be a positive integer")
		}
		pageSize, err := strconv.Atoi(c.Query("page_size", strconv.Itoa(service.DefaultPageSize)))
		if err != nil || pageSize < 1 {
			return writeError(c, fiber.StatusBadRequest, "page_size must be a positive integer")
		}

		res, err := docSvc.List(c.UserContext(), service.ListFilter{
			InvoiceID: c.Query("invoice_id"),
		}, page, pageSize)
		if err != nil {
			return translateServiceError(c, err, "Failed to list documents")
		}
		return writeSuccess(c, fiber.StatusOK, "", res)
	}
}

// GetDocument returns a single document with its access URL.
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "Invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			return translateServiceError(c, err, "Failed to fetch document")
		}
		return writeSuccess(c, fiber.StatusOK, "", documentPayload{
			Document:  doc,
			AccessURL: accessURL(c, doc.AccessToken),
		})
	}
}

// UpdateDocument applies a partial update to the mutable fields.
func UpdateDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "Invalid id format")
		}

		var req updateRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "Invalid request body")
		}
		if req.ExpiresInDays != nil && (*req.ExpiresInDays < 1 || *req.ExpiresInDays > 365) {
			return writeError(c, fiber.StatusBadRequest, "expires_in_days must be an integer between 1 and 365")
		}

		doc, err := docSvc.Update(c.UserContext(), id, service.UpdatePatch{
			IsPublic:        req.IsPublic,
			InvoiceID:       req.InvoiceID,
			RegenerateToken: req.RegenerateToken,
			ExpiresInDays:   req.ExpiresInDays,
		})
		if err != nil {
			return translateServiceError(c, err, "Failed to update document")
		}
		return writeSuccess(c, fiber.StatusOK, "Document updated successfully", documentPayload{
			Document:  doc,
			AccessURL: accessURL(c, doc.AccessToken),
		})
	}
}

// DeleteDocument soft-deletes a document after best-effort blob removal.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "Invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			return translateServiceError(c, err, "Failed to delete document")
		}
		return writeSuccess(c, fiber.StatusOK, "Document deleted successfully", nil)
	}
}

// AccessDocument is the unauthenticated retrieval path: it exchanges an
// access token for the raw content stream. Headers follow the registry's
// disposition recommendation; the original filename is quoted so arbitrary
// upload names cannot break the header.
func AccessDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := c.Params("token")

		doc, body, disposition, err := docSvc.Resolve(c.UserContext(), tok)
		if err != nil {
			return translateServiceError(c, err, "Failed to access document")
		}

		c.Set(fiber.HeaderContentType, doc.MimeType)
		c.Set(fiber.HeaderContentDisposition, string(disposition)+`; filename="`+sanitizeFilename(doc.OriginalFilename)+`"`)
		return c.SendStream(body, int(doc.Size))
	}
}

// sanitizeFilename strips characters that would terminate or mangle the
// Content-Disposition header value.
func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '"', '\\', '\r', '\n':
			continue
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
