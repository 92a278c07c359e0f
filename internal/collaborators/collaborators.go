// Package collaborators defines the verification services the workflow
// engine drives: document field extraction, government registry matching,
// and fraud risk scoring. Each collaborator is an interface so tests and
// local development can swap implementations freely.
package collaborators

import (
	"context"

	"github.com/veriflow-id/veriflow/pkg/decode"
)

// Identity is the typed view of an application's extracted fields.
// Dates use YYYY-MM-DD strings.
type Identity struct {
	DocumentNumber string  `json:"document_number"`
	DocumentType   string  `json:"document_type"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	DateOfBirth    string  `json:"date_of_birth"`
	Address        string  `json:"address,omitempty"`
	ExpiryDate     string  `json:"expiry_date,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// IdentityFromFields converts loosely-typed extracted fields into an Identity.
func IdentityFromFields(fields map[string]any) (Identity, error) {
	return decode.FromMap[Identity](fields)
}

// Fields converts the identity back into its map representation.
func (i Identity) Fields() (map[string]any, error) {
	return decode.ToMap(i)
}

// Document types accepted for verification.
const (
	DocumentTypeIDCard   = "id_card"
	DocumentTypePassport = "passport"
)

// DocumentInput is one uploaded document handed to an Extractor.
type DocumentInput struct {
	Name         string
	ContentType  string
	DocumentType string
	Data         []byte
}

// Extraction is the result of running OCR over a single document.
type Extraction struct {
	Fields     map[string]any `json:"fields"`
	Confidence float64        `json:"confidence"`
	RawText    string         `json:"raw_text,omitempty"`
}

// Extractor pulls identity fields out of an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, doc DocumentInput) (*Extraction, error)
}

// MatchStatus is the registry's verdict on a document.
type MatchStatus string

// Registry match statuses.
const (
	MatchVerified MatchStatus = "verified"
	MatchNotFound MatchStatus = "not_found"
	MatchInvalid  MatchStatus = "invalid"
	MatchFlagged  MatchStatus = "flagged"
	MatchMismatch MatchStatus = "mismatch"
)

// MatchResult is the outcome of a government registry lookup.
type MatchResult struct {
	Verified bool           `json:"verified"`
	Status   MatchStatus    `json:"status"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// GovernmentVerifier checks an identity against the government registry.
// A non-nil error means the lookup itself failed and the result is
// inconclusive, which the workflow treats differently from a definite
// non-match.
type GovernmentVerifier interface {
	Verify(ctx context.Context, identity Identity) (*MatchResult, error)
}

// RiskLevel buckets a numeric risk score.
type RiskLevel string

// Risk levels, lowest to highest.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Indicator is one detected fraud signal.
type Indicator struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// RiskAssessment is the aggregated fraud check result.
type RiskAssessment struct {
	Score         float64     `json:"score"`
	Level         RiskLevel   `json:"level"`
	FraudDetected bool        `json:"fraud_detected"`
	Indicators    []Indicator `json:"indicators"`
}

// Acceptable reports whether the risk level permits approval.
func (r *RiskAssessment) Acceptable() bool {
	return r.Level == RiskLow || r.Level == RiskMedium
}

// FraudChecker scores an identity for fraud signals, factoring in the
// registry match result when available.
type FraudChecker interface {
	Check(ctx context.Context, identity Identity, match *MatchResult) (*RiskAssessment, error)
}
