package model

import "time"

// Lifecycle is the explicit document state derived from the soft-delete marker.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// Document represents a stored file and its access-control metadata.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	Filename         string     `json:"filename"`
	StoragePath      string     `json:"-"`
	MimeType         string     `json:"mime_type"`
	Size             int64      `json:"size"`
	Extension        string     `json:"extension,omitempty"`
	InvoiceID        string     `json:"invoice_id,omitempty"`
	AccessToken      string     `json:"access_token"`
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
	IsPublic         bool       `json:"is_public"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"-"`
}

// State reports the document lifecycle state.
func (d *Document) State() Lifecycle {
	if d.DeletedAt != nil {
		return LifecycleDeleted
	}
	return LifecycleActive
}

// TokenExpired reports whether the access token is expired at the given instant.
// A nil TokenExpiresAt means the token never expires. The deadline itself counts
// as expired: access is granted only while now < TokenExpiresAt.
func (d *Document) TokenExpired(now time.Time) bool {
	if d.TokenExpiresAt == nil {
		return false
	}
	return !now.Before(*d.TokenExpiresAt)
}
