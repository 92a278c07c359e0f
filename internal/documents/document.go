// Package documents persists uploaded identity documents: blob content in
// the storage system, metadata in the database.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is the stored metadata for one uploaded file.
type Document struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	DocumentType  string    `json:"document_type"`
	FileName      string    `json:"file_name"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	PageCount     *int      `json:"page_count,omitempty"`
	StorageKey    string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateCommand stores one uploaded document.
type CreateCommand struct {
	ApplicationID uuid.UUID
	DocumentType  string
	FileName      string
	ContentType   string
	Data          []byte
}
