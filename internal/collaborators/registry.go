package collaborators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/veriflow-id/veriflow/pkg/repository"
)

// ErrRecordNotFound indicates no registry record exists for a document number.
var ErrRecordNotFound = errors.New("collaborators: registry record not found")

// Record is one row in the government registry.
type Record struct {
	DocumentNumber string `json:"document_number"`
	DocumentType   string `json:"document_type"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DateOfBirth    string `json:"date_of_birth"`
	Address        string `json:"address,omitempty"`
	IsValid        bool   `json:"is_valid"`
	IsFlagged      bool   `json:"is_flagged"`
	FlagReason     string `json:"flag_reason,omitempty"`
}

// RecordStore looks up registry records by document number.
type RecordStore interface {
	// FindByDocumentNumber returns ErrRecordNotFound when no record exists.
	FindByDocumentNumber(ctx context.Context, documentNumber string) (*Record, error)
}

// MemoryRecordStore is an in-memory RecordStore for tests.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRecordStore creates a record store preloaded with the given records.
func NewMemoryRecordStore(records ...Record) *MemoryRecordStore {
	store := &MemoryRecordStore{
		records: make(map[string]Record, len(records)),
	}
	for _, r := range records {
		store.records[r.DocumentNumber] = r
	}
	return store
}

// Put inserts or replaces a record.
func (s *MemoryRecordStore) Put(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.DocumentNumber] = record
}

func (s *MemoryRecordStore) FindByDocumentNumber(ctx context.Context, documentNumber string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[documentNumber]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &record, nil
}

// postgresRecordStore reads registry records from the mock_government_records table.
type postgresRecordStore struct {
	db *sql.DB
}

// NewPostgresRecordStore creates a PostgreSQL-backed record store.
func NewPostgresRecordStore(db *sql.DB) RecordStore {
	return &postgresRecordStore{db: db}
}

func (s *postgresRecordStore) FindByDocumentNumber(ctx context.Context, documentNumber string) (*Record, error) {
	query := `
		SELECT document_number, document_type, first_name, last_name,
		       date_of_birth, address, is_valid, is_flagged, flag_reason
		FROM mock_government_records
		WHERE document_number = $1`

	record, err := repository.QueryOne(ctx, s.db, query, []any{documentNumber},
		func(row repository.Scanner) (Record, error) {
			var (
				r          Record
				address    sql.NullString
				flagReason sql.NullString
			)
			err := row.Scan(
				&r.DocumentNumber,
				&r.DocumentType,
				&r.FirstName,
				&r.LastName,
				&r.DateOfBirth,
				&address,
				&r.IsValid,
				&r.IsFlagged,
				&flagReason,
			)
			r.Address = address.String
			r.FlagReason = flagReason.String
			return r, err
		})
	if err != nil {
		return nil, repository.MapError(err, ErrRecordNotFound, err)
	}

	return &record, nil
}

// Verifier implements GovernmentVerifier over a RecordStore. Lookup
// failures surface as errors so the workflow can distinguish an
// inconclusive check from a definite non-match.
type Verifier struct {
	records RecordStore
}

// NewVerifier creates a registry verifier.
func NewVerifier(records RecordStore) *Verifier {
	return &Verifier{records: records}
}

func (v *Verifier) Verify(ctx context.Context, identity Identity) (*MatchResult, error) {
	record, err := v.records.FindByDocumentNumber(ctx, identity.DocumentNumber)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return &MatchResult{
				Verified: false,
				Status:   MatchNotFound,
				Message:  fmt.Sprintf("no government record found for document number %s", identity.DocumentNumber),
			}, nil
		}
		return nil, fmt.Errorf("registry lookup: %w", err)
	}

	if !record.IsValid {
		reason := record.FlagReason
		if reason == "" {
			reason = "unknown reason"
		}
		return &MatchResult{
			Verified: false,
			Status:   MatchInvalid,
			Message:  fmt.Sprintf("document is not valid: %s", reason),
			Details:  map[string]any{"flag_reason": record.FlagReason},
		}, nil
	}

	if record.IsFlagged {
		return &MatchResult{
			Verified: false,
			Status:   MatchFlagged,
			Message:  fmt.Sprintf("document is flagged: %s", record.FlagReason),
			Details:  map[string]any{"flag_reason": record.FlagReason},
		}, nil
	}

	var mismatches []string
	if !strings.EqualFold(record.FirstName, identity.FirstName) ||
		!strings.EqualFold(record.LastName, identity.LastName) {
		mismatches = append(mismatches,
			fmt.Sprintf("name mismatch: expected %s %s", record.FirstName, record.LastName))
	}
	if record.DateOfBirth != identity.DateOfBirth {
		mismatches = append(mismatches,
			fmt.Sprintf("date of birth mismatch: expected %s", record.DateOfBirth))
	}
	if record.DocumentType != identity.DocumentType {
		mismatches = append(mismatches,
			fmt.Sprintf("document type mismatch: expected %s", record.DocumentType))
	}

	if len(mismatches) > 0 {
		return &MatchResult{
			Verified: false,
			Status:   MatchMismatch,
			Message:  "document data does not match government records",
			Details:  map[string]any{"mismatches": mismatches},
		}, nil
	}

	return &MatchResult{
		Verified: true,
		Status:   MatchVerified,
		Message:  "document verified against government registry",
	}, nil
}
