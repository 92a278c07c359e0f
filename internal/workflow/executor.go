package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veriflow-id/veriflow/internal/collaborators"
)

// Timeouts bounds each collaborator call class.
type Timeouts struct {
	Extract time.Duration
	Verify  time.Duration
	Fraud   time.Duration
}

// DefaultTimeouts returns the standard two-minute bound per call class.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Extract: 120 * time.Second,
		Verify:  120 * time.Second,
		Fraud:   120 * time.Second,
	}
}

// Executor drives the external collaborators with bounded timeouts and
// translates their results for the engine. It never writes application
// state itself.
type Executor struct {
	extractor collaborators.Extractor
	verifier  collaborators.GovernmentVerifier
	fraud     collaborators.FraudChecker
	timeouts  Timeouts
	metrics   *Metrics
	logger    *slog.Logger
}

// NewExecutor creates a stage executor.
func NewExecutor(
	extractor collaborators.Extractor,
	verifier collaborators.GovernmentVerifier,
	fraud collaborators.FraudChecker,
	timeouts Timeouts,
	metrics *Metrics,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		extractor: extractor,
		verifier:  verifier,
		fraud:     fraud,
		timeouts:  timeouts,
		metrics:   metrics,
		logger:    logger.With("system", "executor"),
	}
}

// ExtractDocuments runs OCR over every uploaded document concurrently and
// merges the results. The first document is primary: later documents only
// fill fields the primary left empty. The reported confidence is the
// lowest across documents.
func (e *Executor) ExtractDocuments(ctx context.Context, docs []collaborators.DocumentInput) (map[string]any, float64, error) {
	if len(docs) == 0 {
		return nil, 0, fmt.Errorf("%w: no documents to extract", ErrCollaboratorFailure)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeouts.Extract)
	defer cancel()

	start := time.Now()
	results := make([]*collaborators.Extraction, len(docs))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		group.Go(func() error {
			extraction, err := e.extractor.Extract(groupCtx, doc)
			if err != nil {
				return fmt.Errorf("extract %q: %w", doc.Name, err)
			}
			results[i] = extraction
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		e.observe("ocr", start)
		return nil, 0, fmt.Errorf("%w: %s", ErrCollaboratorFailure, err)
	}
	e.observe("ocr", start)

	fields := make(map[string]any)
	confidence := 1.0
	for _, extraction := range results {
		for k, v := range extraction.Fields {
			if existing, ok := fields[k]; !ok || existing == "" || existing == nil {
				fields[k] = v
			}
		}
		if extraction.Confidence < confidence {
			confidence = extraction.Confidence
		}
	}
	fields["confidence"] = confidence

	return fields, confidence, nil
}

// VerifyGovernment checks the identity against the registry. A timeout
// returns ErrCollaboratorFailure so the caller can retry; any other
// lookup failure returns a nil result with ok=false, which the engine
// treats as inconclusive.
func (e *Executor) VerifyGovernment(ctx context.Context, identity collaborators.Identity) (*collaborators.MatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeouts.Verify)
	defer cancel()

	start := time.Now()
	match, err := e.verifier.Verify(ctx, identity)
	e.observe("government", start)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: government verification timed out", ErrCollaboratorFailure)
		}
		e.logger.Warn("government verification inconclusive", "error", err)
		return nil, nil
	}
	return match, nil
}

// CheckFraud scores the identity for fraud signals.
func (e *Executor) CheckFraud(ctx context.Context, identity collaborators.Identity, match *collaborators.MatchResult) (*collaborators.RiskAssessment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeouts.Fraud)
	defer cancel()

	start := time.Now()
	assessment, err := e.fraud.Check(ctx, identity, match)
	e.observe("fraud", start)

	if err != nil {
		return nil, fmt.Errorf("%w: fraud check: %s", ErrCollaboratorFailure, err)
	}
	return assessment, nil
}

func (e *Executor) observe(collaborator string, start time.Time) {
	if e.metrics != nil {
		e.metrics.CollaboratorSeconds.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
	}
}
