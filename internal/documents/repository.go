package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/internal/storage"
	"github.com/veriflow-id/veriflow/pkg/repository"
)

// System manages uploaded document content and metadata together.
type System interface {
	// Save validates and stores an uploaded document. Returns ErrTooLarge
	// or ErrUnsupportedType for rejected uploads.
	Save(ctx context.Context, cmd CreateCommand) (*Document, error)

	// ListByApplication returns an application's documents in upload order.
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Document, error)

	// Find returns document metadata. Returns ErrNotFound if absent.
	Find(ctx context.Context, id uuid.UUID) (*Document, error)

	// Content returns a document's metadata and raw bytes.
	Content(ctx context.Context, id uuid.UUID) (*Document, []byte, error)

	// Delete removes a document's metadata and blob. Deleting a missing
	// document is a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
}

type system struct {
	db        *sql.DB
	blobs     storage.System
	maxUpload int64
	logger    *slog.Logger
}

// New creates the document system over a database and blob store.
func New(db *sql.DB, blobs storage.System, maxUpload int64, logger *slog.Logger) System {
	return &system{
		db:        db,
		blobs:     blobs,
		maxUpload: maxUpload,
		logger:    logger.With("system", "documents"),
	}
}

const documentColumns = `id, application_id, document_type, file_name, content_type, size_bytes, page_count, storage_key, created_at`

func scanDocument(s repository.Scanner) (Document, error) {
	var doc Document
	err := s.Scan(
		&doc.ID,
		&doc.ApplicationID,
		&doc.DocumentType,
		&doc.FileName,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.PageCount,
		&doc.StorageKey,
		&doc.CreatedAt,
	)
	return doc, err
}

func (s *system) Save(ctx context.Context, cmd CreateCommand) (*Document, error) {
	if err := ValidateFileName(cmd.FileName); err != nil {
		return nil, err
	}
	if int64(len(cmd.Data)) > s.maxUpload {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(cmd.Data))
	}

	pages, err := CountPages(cmd.FileName, cmd.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, err)
	}

	id := uuid.New()
	ext := strings.ToLower(filepath.Ext(cmd.FileName))
	key := fmt.Sprintf("%s/%s%s", cmd.ApplicationID, id, ext)

	if err := s.blobs.Store(ctx, key, cmd.Data); err != nil {
		return nil, fmt.Errorf("store document content: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO documents (id, application_id, document_type, file_name, content_type, size_bytes, page_count, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, documentColumns)

	doc, err := repository.QueryOne(ctx, s.db, query,
		[]any{id, cmd.ApplicationID, cmd.DocumentType, cmd.FileName, cmd.ContentType,
			int64(len(cmd.Data)), pages, key, time.Now().UTC()},
		scanDocument)
	if err != nil {
		if cleanupErr := s.blobs.Delete(context.WithoutCancel(ctx), key); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned blob", "key", key, "error", cleanupErr)
		}
		return nil, repository.MapError(err, ErrNotFound, err)
	}

	s.logger.Info("document stored",
		"id", doc.ID,
		"application_id", doc.ApplicationID,
		"size_bytes", doc.SizeBytes)

	return &doc, nil
}

func (s *system) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE application_id = $1
		ORDER BY created_at, id`, documentColumns)

	docs, err := repository.QueryMany(ctx, s.db, query, []any{applicationID}, scanDocument)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (s *system) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)

	doc, err := repository.QueryOne(ctx, s.db, query, []any{id}, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, err)
	}
	return &doc, nil
}

func (s *system) Content(ctx context.Context, id uuid.UUID) (*Document, []byte, error) {
	doc, err := s.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Retrieve(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve document content: %w", err)
	}
	return doc, data, nil
}

func (s *system) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("failed to delete blob", "key", doc.StorageKey, "error", err)
	}
	return nil
}
