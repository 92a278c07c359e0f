package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/veriflow-id/veriflow/internal/collaborators"
	"github.com/veriflow-id/veriflow/internal/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Function adapters for the collaborator interfaces.

type extractorFunc func(ctx context.Context, doc collaborators.DocumentInput) (*collaborators.Extraction, error)

func (f extractorFunc) Extract(ctx context.Context, doc collaborators.DocumentInput) (*collaborators.Extraction, error) {
	return f(ctx, doc)
}

type verifierFunc func(ctx context.Context, identity collaborators.Identity) (*collaborators.MatchResult, error)

func (f verifierFunc) Verify(ctx context.Context, identity collaborators.Identity) (*collaborators.MatchResult, error) {
	return f(ctx, identity)
}

type checkerFunc func(ctx context.Context, identity collaborators.Identity, match *collaborators.MatchResult) (*collaborators.RiskAssessment, error)

func (f checkerFunc) Check(ctx context.Context, identity collaborators.Identity, match *collaborators.MatchResult) (*collaborators.RiskAssessment, error) {
	return f(ctx, identity, match)
}

func noExtraction(ctx context.Context, doc collaborators.DocumentInput) (*collaborators.Extraction, error) {
	return nil, errors.New("extractor not wired for this test")
}

func noVerification(ctx context.Context, identity collaborators.Identity) (*collaborators.MatchResult, error) {
	return nil, errors.New("verifier not wired for this test")
}

func noCheck(ctx context.Context, identity collaborators.Identity, match *collaborators.MatchResult) (*collaborators.RiskAssessment, error) {
	return nil, errors.New("fraud checker not wired for this test")
}

func newExecutor(extract extractorFunc, verify verifierFunc, check checkerFunc, timeouts workflow.Timeouts) *workflow.Executor {
	return workflow.NewExecutor(extract, verify, check, timeouts, nil, testLogger())
}

func TestExtractDocumentsMergesResults(t *testing.T) {
	extract := func(ctx context.Context, doc collaborators.DocumentInput) (*collaborators.Extraction, error) {
		switch doc.Name {
		case "front.png":
			return &collaborators.Extraction{
				Fields: map[string]any{
					"first_name": "Amira",
					"last_name":  "Hassan",
					"address":    "",
				},
				Confidence: 0.95,
			}, nil
		case "back.png":
			return &collaborators.Extraction{
				Fields: map[string]any{
					"first_name": "Wrong",
					"address":    "12 Corniche Road",
				},
				Confidence: 0.8,
			}, nil
		}
		return nil, errors.New("unexpected document " + doc.Name)
	}

	executor := newExecutor(extract, noVerification, noCheck, workflow.DefaultTimeouts())

	fields, confidence, err := executor.ExtractDocuments(context.Background(), []collaborators.DocumentInput{
		{Name: "front.png"},
		{Name: "back.png"},
	})
	if err != nil {
		t.Fatalf("ExtractDocuments() error = %v", err)
	}

	// The first document wins on conflicts; later documents only fill gaps.
	if got := fields["first_name"]; got != "Amira" {
		t.Errorf("first_name = %v, want Amira", got)
	}
	if got := fields["address"]; got != "12 Corniche Road" {
		t.Errorf("address = %v, want filled from second document", got)
	}
	if confidence != 0.8 {
		t.Errorf("confidence = %v, want lowest across documents 0.8", confidence)
	}
	if got := fields["confidence"]; got != 0.8 {
		t.Errorf("fields[confidence] = %v, want 0.8", got)
	}
}

func TestExtractDocumentsNoInput(t *testing.T) {
	executor := newExecutor(noExtraction, noVerification, noCheck, workflow.DefaultTimeouts())

	_, _, err := executor.ExtractDocuments(context.Background(), nil)
	if !errors.Is(err, workflow.ErrCollaboratorFailure) {
		t.Errorf("ExtractDocuments() error = %v, want ErrCollaboratorFailure", err)
	}
}

func TestExtractDocumentsFailure(t *testing.T) {
	extract := func(ctx context.Context, doc collaborators.DocumentInput) (*collaborators.Extraction, error) {
		if doc.Name == "bad.png" {
			return nil, errors.New("unreadable scan")
		}
		return &collaborators.Extraction{Fields: map[string]any{}, Confidence: 0.9}, nil
	}

	executor := newExecutor(extract, noVerification, noCheck, workflow.DefaultTimeouts())

	_, _, err := executor.ExtractDocuments(context.Background(), []collaborators.DocumentInput{
		{Name: "good.png"},
		{Name: "bad.png"},
	})
	if !errors.Is(err, workflow.ErrCollaboratorFailure) {
		t.Errorf("ExtractDocuments() error = %v, want ErrCollaboratorFailure", err)
	}
}

func TestVerifyGovernmentPassthrough(t *testing.T) {
	want := &collaborators.MatchResult{Verified: true, Status: collaborators.MatchVerified}
	verify := func(ctx context.Context, identity collaborators.Identity) (*collaborators.MatchResult, error) {
		return want, nil
	}

	executor := newExecutor(noExtraction, verify, noCheck, workflow.DefaultTimeouts())

	match, err := executor.VerifyGovernment(context.Background(), collaborators.Identity{})
	if err != nil {
		t.Fatalf("VerifyGovernment() error = %v", err)
	}
	if match != want {
		t.Errorf("match = %v, want %v", match, want)
	}
}

func TestVerifyGovernmentLookupFailureIsInconclusive(t *testing.T) {
	verify := func(ctx context.Context, identity collaborators.Identity) (*collaborators.MatchResult, error) {
		return nil, errors.New("registry connection refused")
	}

	executor := newExecutor(noExtraction, verify, noCheck, workflow.DefaultTimeouts())

	match, err := executor.VerifyGovernment(context.Background(), collaborators.Identity{})
	if err != nil {
		t.Errorf("VerifyGovernment() error = %v, want nil", err)
	}
	if match != nil {
		t.Errorf("match = %v, want nil for inconclusive lookup", match)
	}
}

func TestVerifyGovernmentTimeout(t *testing.T) {
	verify := func(ctx context.Context, identity collaborators.Identity) (*collaborators.MatchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	timeouts := workflow.DefaultTimeouts()
	timeouts.Verify = 10 * time.Millisecond
	executor := newExecutor(noExtraction, verify, noCheck, timeouts)

	_, err := executor.VerifyGovernment(context.Background(), collaborators.Identity{})
	if !errors.Is(err, workflow.ErrCollaboratorFailure) {
		t.Errorf("VerifyGovernment() error = %v, want ErrCollaboratorFailure", err)
	}
}

func TestCheckFraudFailure(t *testing.T) {
	check := func(ctx context.Context, identity collaborators.Identity, match *collaborators.MatchResult) (*collaborators.RiskAssessment, error) {
		return nil, errors.New("rule engine unavailable")
	}

	executor := newExecutor(noExtraction, noVerification, check, workflow.DefaultTimeouts())

	_, err := executor.CheckFraud(context.Background(), collaborators.Identity{}, nil)
	if !errors.Is(err, workflow.ErrCollaboratorFailure) {
		t.Errorf("CheckFraud() error = %v, want ErrCollaboratorFailure", err)
	}
}
