package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/internal/applications"
	"github.com/veriflow-id/veriflow/internal/collaborators"
	"github.com/veriflow-id/veriflow/internal/events"
)

// Engine is the verification state machine. All stage transitions for an
// application flow through it: triggers are serialized per application,
// persisted via the store's expected-stage check, and published to the
// broadcaster after each durable write.
type Engine struct {
	store       applications.Store
	executor    *Executor
	broadcaster *events.Broadcaster
	metrics     *Metrics
	logger      *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewEngine creates a workflow engine.
func NewEngine(
	store applications.Store,
	executor *Executor,
	broadcaster *events.Broadcaster,
	metrics *Metrics,
	logger *slog.Logger,
) *Engine {
	engine := &Engine{
		store:       store,
		executor:    executor,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger.With("system", "workflow"),
		inflight:    make(map[uuid.UUID]struct{}),
	}
	if metrics != nil {
		broadcaster.OnDrop(metrics.DroppedSubscribers.Inc)
	}
	return engine
}

// begin claims the single in-flight transition slot for an application.
func (e *Engine) begin(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inflight[id]; busy {
		if e.metrics != nil {
			e.metrics.RejectedTriggers.WithLabelValues("in_progress").Inc()
		}
		return ErrTransitionInProgress
	}
	e.inflight[id] = struct{}{}
	return nil
}

func (e *Engine) end(id uuid.UUID) {
	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()
}

// SubmitDocuments runs extraction over the uploaded documents and, on
// success, advances the application to user review. Submitting to an
// application already past extraction is a no-op returning current state.
func (e *Engine) SubmitDocuments(ctx context.Context, id uuid.UUID, docs []collaborators.DocumentInput) (*applications.Application, error) {
	if err := e.begin(id); err != nil {
		return nil, err
	}
	defer e.end(id)

	app, err := e.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if compareStages(app.Stage, applications.StageOCRProcessing) > 0 {
		return app, nil
	}

	fields, confidence, err := e.executor.ExtractDocuments(ctx, docs)
	if err != nil {
		e.publishRetry(app, applications.StageOCRProcessing, err)
		return nil, err
	}

	updated, err := e.store.AppendTransition(ctx, id, applications.TransitionCommand{
		ExpectedStage: applications.StageOCRProcessing,
		Stage:         applications.StageOCRProcessing,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageUserReview,
		Status:        applications.StatusDocumentsUploaded,
		Fields:        fields,
		Detail: map[string]any{
			"documents":  len(docs),
			"confidence": confidence,
		},
	})
	if err != nil {
		return nil, err
	}

	e.publishTransition(updated)
	return updated, nil
}

// Correct records user-supplied field corrections during review without
// advancing the stage. Each correction is a new history entry.
func (e *Engine) Correct(ctx context.Context, id uuid.UUID, fields map[string]any) (*applications.Application, error) {
	if err := e.begin(id); err != nil {
		return nil, err
	}
	defer e.end(id)

	app, err := e.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmp := compareStages(app.Stage, applications.StageUserReview); cmp != 0 {
		if cmp > 0 {
			return app, nil
		}
		return nil, fmt.Errorf("%w: corrections require stage %s, application is at %s",
			ErrOutOfOrderTrigger, applications.StageUserReview, app.Stage)
	}

	merged := mergeFields(app.ExtractedFields, fields)

	updated, err := e.store.AppendTransition(ctx, id, applications.TransitionCommand{
		ExpectedStage: applications.StageUserReview,
		Stage:         applications.StageUserReview,
		EntryStatus:   applications.EntryCorrected,
		NextStage:     applications.StageUserReview,
		Status:        app.Status,
		Fields:        merged,
		Detail:        map[string]any{"corrected_fields": keys(fields)},
	})
	if err != nil {
		return nil, err
	}

	e.publishTransition(updated)
	return updated, nil
}

// Confirm locks in the extracted fields and advances the application to
// government verification. Confirming an application already past review
// is a no-op returning current state.
func (e *Engine) Confirm(ctx context.Context, id uuid.UUID, fields map[string]any) (*applications.Application, error) {
	if err := e.begin(id); err != nil {
		return nil, err
	}
	defer e.end(id)

	app, err := e.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmp := compareStages(app.Stage, applications.StageUserReview); cmp != 0 {
		if cmp > 0 {
			return app, nil
		}
		return nil, fmt.Errorf("%w: confirmation requires stage %s, application is at %s",
			ErrOutOfOrderTrigger, applications.StageUserReview, app.Stage)
	}

	merged := mergeFields(app.ExtractedFields, fields)

	updated, err := e.store.AppendTransition(ctx, id, applications.TransitionCommand{
		ExpectedStage: applications.StageUserReview,
		Stage:         applications.StageUserReview,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageGovVerification,
		Status:        applications.StatusDocumentsUploaded,
		Fields:        merged,
		Detail:        map[string]any{"confirmed": true},
	})
	if err != nil {
		return nil, err
	}

	e.publishTransition(updated)
	return updated, nil
}

// Process runs the automatic verification chain: government verification,
// then fraud check, then decision. A failed government match branches to
// manual review and stops. Processing a terminal application is a no-op;
// an application still in upload or review stages fails with
// ErrOutOfOrderTrigger. Re-entry after a partial run resumes where the
// last durable transition left off.
func (e *Engine) Process(ctx context.Context, id uuid.UUID) (*applications.Application, error) {
	if err := e.begin(id); err != nil {
		return nil, err
	}
	defer e.end(id)

	app, err := e.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	// Manual review is not a completed run of the chain: the fraud and
	// decision stages are unreachable from it, so a repeat trigger is a
	// caller mistake rather than an idempotent no-op.
	if app.Stage == applications.StageManualReview {
		return nil, fmt.Errorf("%w: %s is not reachable from %s",
			ErrOutOfOrderTrigger, applications.StageFraudCheck, applications.StageManualReview)
	}
	if app.Stage == applications.StageDecision && app.Outcome != nil {
		return app, nil
	}
	if compareStages(app.Stage, applications.StageGovVerification) < 0 {
		return nil, fmt.Errorf("%w: processing requires stage %s, application is at %s",
			ErrOutOfOrderTrigger, applications.StageGovVerification, app.Stage)
	}

	identity, err := collaborators.IdentityFromFields(app.ExtractedFields)
	if err != nil {
		return nil, fmt.Errorf("decode extracted fields: %w", err)
	}

	if app.Stage == applications.StageGovVerification {
		app, err = e.runGovVerification(ctx, app, identity)
		if err != nil || app.Terminal() {
			return app, err
		}
	}

	var assessment *collaborators.RiskAssessment

	if app.Stage == applications.StageFraudCheck {
		app, assessment, err = e.runFraudCheck(ctx, app, identity)
		if err != nil {
			return app, err
		}
	}

	if app.Stage == applications.StageDecision && app.Outcome == nil {
		// Resuming a run that already persisted the fraud check: the
		// recorded assessment is authoritative, the collaborator is not
		// called again.
		if assessment == nil {
			assessment, err = persistedAssessment(app)
			if err != nil {
				return app, err
			}
		}
		app, err = e.runDecision(ctx, app, assessment)
		if err != nil {
			return app, err
		}
	}

	return app, nil
}

// runGovVerification executes the registry check. A verified match
// advances to fraud check; a definite non-match or an inconclusive lookup
// branches to manual review, which is a deliberate fail-closed policy.
func (e *Engine) runGovVerification(ctx context.Context, app *applications.Application, identity collaborators.Identity) (*applications.Application, error) {
	match, err := e.executor.VerifyGovernment(ctx, identity)
	if err != nil {
		e.publishRetry(app, applications.StageGovVerification, err)
		return app, err
	}

	if match == nil || !match.Verified {
		status := "inconclusive"
		reason := "government verification inconclusive"
		detail := map[string]any{"verification_status": status}
		if match != nil {
			status = string(match.Status)
			reason = match.Message
			detail["verification_status"] = status
			if match.Details != nil {
				detail["verification_details"] = match.Details
			}
		}

		outcome := applications.OutcomeManualReview
		updated, err := e.store.AppendTransition(ctx, app.ID, applications.TransitionCommand{
			ExpectedStage: applications.StageGovVerification,
			Stage:         applications.StageGovVerification,
			EntryStatus:   applications.EntryFailed,
			NextStage:     applications.StageManualReview,
			Status:        applications.StatusFailed,
			Outcome:       &outcome,
			OutcomeReason: &reason,
			Detail:        detail,
		})
		if err != nil {
			return app, err
		}

		e.logger.Info("application routed to manual review",
			"id", app.ID,
			"verification_status", status)
		e.publishTransition(updated)
		return updated, nil
	}

	updated, err := e.store.AppendTransition(ctx, app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageGovVerification,
		Stage:         applications.StageGovVerification,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageFraudCheck,
		Status:        applications.StatusProcessing,
		Detail:        map[string]any{"verification_status": string(match.Status)},
	})
	if err != nil {
		return app, err
	}

	e.publishTransition(updated)
	return updated, nil
}

func (e *Engine) runFraudCheck(ctx context.Context, app *applications.Application, identity collaborators.Identity) (*applications.Application, *collaborators.RiskAssessment, error) {
	assessment, err := e.executor.CheckFraud(ctx, identity, verifiedMatch())
	if err != nil {
		e.publishRetry(app, applications.StageFraudCheck, err)
		return app, nil, err
	}

	updated, err := e.store.AppendTransition(ctx, app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageFraudCheck,
		Stage:         applications.StageFraudCheck,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageDecision,
		Status:        applications.StatusProcessing,
		Detail: map[string]any{
			"risk_score":     assessment.Score,
			"risk_level":     string(assessment.Level),
			"fraud_detected": assessment.FraudDetected,
			"indicators":     len(assessment.Indicators),
		},
	})
	if err != nil {
		return app, nil, err
	}

	e.publishTransition(updated)
	return updated, assessment, nil
}

// runDecision folds the fraud signal into the terminal decision. Reaching
// this stage implies government verification passed, so approval turns on
// the risk level alone.
func (e *Engine) runDecision(ctx context.Context, app *applications.Application, assessment *collaborators.RiskAssessment) (*applications.Application, error) {
	outcome := applications.OutcomeApproved
	status := applications.StatusCompleted
	reason := fmt.Sprintf("government verification passed, fraud risk %s", assessment.Level)
	entryStatus := applications.EntryCompleted

	if !assessment.Acceptable() {
		outcome = applications.OutcomeRejected
		status = applications.StatusFailed
		reason = fmt.Sprintf("fraud risk %s (score %.2f)", assessment.Level, assessment.Score)
	}

	updated, err := e.store.AppendTransition(ctx, app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageDecision,
		Stage:         applications.StageDecision,
		EntryStatus:   entryStatus,
		NextStage:     applications.StageDecision,
		Status:        status,
		Outcome:       &outcome,
		OutcomeReason: &reason,
		Detail: map[string]any{
			"decision":   string(outcome),
			"risk_level": string(assessment.Level),
			"risk_score": assessment.Score,
		},
	})
	if err != nil {
		return app, err
	}

	e.logger.Info("application decided",
		"id", app.ID,
		"outcome", outcome,
		"risk_level", assessment.Level)
	e.publishTransition(updated)
	return updated, nil
}

// Subscribe attaches a stream listener and returns the current snapshot.
// The subscription is registered before the snapshot read, so a
// transition landing in between is observable on the stream and
// deduplicated by sequence number.
func (e *Engine) Subscribe(ctx context.Context, id uuid.UUID) (*applications.Application, *events.Subscription, error) {
	sub := e.broadcaster.Subscribe(id)

	app, err := e.store.Find(ctx, id)
	if err != nil {
		e.broadcaster.Unsubscribe(sub)
		return nil, nil, err
	}
	return app, sub, nil
}

// Unsubscribe detaches a stream listener.
func (e *Engine) Unsubscribe(sub *events.Subscription) {
	e.broadcaster.Unsubscribe(sub)
}

func (e *Engine) publishTransition(app *applications.Application) {
	last := app.StageHistory[len(app.StageHistory)-1]

	event := events.Event{
		ApplicationID: app.ID,
		Seq:           app.Seq(),
		Stage:         string(app.Stage),
		Status:        string(app.Status),
		EntryStage:    string(last.Stage),
		EntryStatus:   last.Status,
		At:            last.CreatedAt,
	}
	if app.Outcome != nil {
		event.Outcome = string(*app.Outcome)
	}

	if e.metrics != nil {
		e.metrics.Transitions.WithLabelValues(string(last.Stage), last.Status).Inc()
	}
	e.broadcaster.Publish(event)
}

// publishRetry announces a failed collaborator call without touching the
// stage history: the stage is unchanged and the trigger may be repeated.
func (e *Engine) publishRetry(app *applications.Application, stage applications.Stage, cause error) {
	e.broadcaster.Publish(events.Event{
		ApplicationID: app.ID,
		Seq:           app.Seq(),
		Stage:         string(app.Stage),
		Status:        string(app.Status),
		EntryStage:    string(stage),
		EntryStatus:   "retry",
		Detail:        map[string]any{"error": cause.Error()},
		At:            time.Now().UTC(),
	})
}

// persistedAssessment rebuilds the fraud assessment from the recorded
// fraud_check transition. The decision stage is only reachable after that
// transition was durably written, so a missing entry is a corrupt history.
func persistedAssessment(app *applications.Application) (*collaborators.RiskAssessment, error) {
	for i := len(app.StageHistory) - 1; i >= 0; i-- {
		entry := app.StageHistory[i]
		if entry.Stage != applications.StageFraudCheck || entry.Status != applications.EntryCompleted {
			continue
		}

		var detail struct {
			RiskScore     float64 `json:"risk_score"`
			RiskLevel     string  `json:"risk_level"`
			FraudDetected bool    `json:"fraud_detected"`
		}
		if err := json.Unmarshal(entry.Detail, &detail); err != nil {
			return nil, fmt.Errorf("decode fraud_check detail: %w", err)
		}

		return &collaborators.RiskAssessment{
			Score:         detail.RiskScore,
			Level:         collaborators.RiskLevel(detail.RiskLevel),
			FraudDetected: detail.FraudDetected,
		}, nil
	}

	return nil, fmt.Errorf("no completed %s transition recorded for %s",
		applications.StageFraudCheck, app.ID)
}

func verifiedMatch() *collaborators.MatchResult {
	return &collaborators.MatchResult{
		Verified: true,
		Status:   collaborators.MatchVerified,
	}
}

func mergeFields(base, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
