package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memorySystem is an in-memory System for tests. Blob content is held
// alongside the metadata.
type memorySystem struct {
	mu        sync.Mutex
	maxUpload int64
	docs      map[uuid.UUID]*Document
	content   map[uuid.UUID][]byte
}

// NewMemorySystem creates an empty in-memory document system.
func NewMemorySystem(maxUpload int64) System {
	return &memorySystem{
		maxUpload: maxUpload,
		docs:      make(map[uuid.UUID]*Document),
		content:   make(map[uuid.UUID][]byte),
	}
}

func (s *memorySystem) Save(ctx context.Context, cmd CreateCommand) (*Document, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &Document{
		ID:            uuid.New(),
		ApplicationID: cmd.ApplicationID,
		DocumentType:  cmd.DocumentType,
		FileName:      cmd.FileName,
		ContentType:   cmd.ContentType,
		SizeBytes:     int64(len(cmd.Data)),
		PageCount:     pages,
		CreatedAt:     time.Now().UTC(),
	}
	doc.StorageKey = fmt.Sprintf("%s/%s", cmd.ApplicationID, doc.ID)

	s.docs[doc.ID] = doc
	s.content[doc.ID] = append([]byte(nil), cmd.Data...)

	c := *doc
	return &c, nil
}

func (s *memorySystem) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []Document
	for _, doc := range s.docs {
		if doc.ApplicationID == applicationID {
			docs = append(docs, *doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (s *memorySystem) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *doc
	return &c, nil
}

func (s *memorySystem) Content(ctx context.Context, id uuid.UUID) (*Document, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	c := *doc
	return &c, append([]byte(nil), s.content[id]...), nil
}

func (s *memorySystem) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	delete(s.content, id)
	return nil
}
