package applications_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/internal/applications"
	"github.com/veriflow-id/veriflow/pkg/pagination"
)

func TestCreateInitialState(t *testing.T) {
	store := applications.NewMemoryStore()

	app, err := store.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if app.Stage != applications.StageOCRProcessing {
		t.Errorf("Stage = %q, want %q", app.Stage, applications.StageOCRProcessing)
	}
	if app.Status != applications.StatusInitiated {
		t.Errorf("Status = %q, want %q", app.Status, applications.StatusInitiated)
	}
	if app.Outcome != nil {
		t.Errorf("Outcome = %v, want nil", *app.Outcome)
	}
	if len(app.StageHistory) != 0 {
		t.Errorf("len(StageHistory) = %d, want 0", len(app.StageHistory))
	}
	if app.Seq() != 0 {
		t.Errorf("Seq() = %d, want 0", app.Seq())
	}
}

func TestFindNotFound(t *testing.T) {
	store := applications.NewMemoryStore()

	_, err := store.Find(context.Background(), uuid.New())
	if !errors.Is(err, applications.ErrNotFound) {
		t.Errorf("Find() error = %v, want ErrNotFound", err)
	}
}

func TestAppendTransition(t *testing.T) {
	store := applications.NewMemoryStore()
	app, err := store.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := store.AppendTransition(context.Background(), app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageOCRProcessing,
		Stage:         applications.StageOCRProcessing,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageUserReview,
		Status:        applications.StatusDocumentsUploaded,
		Fields:        map[string]any{"first_name": "Amira"},
		Detail:        map[string]any{"documents": 2},
	})
	if err != nil {
		t.Fatalf("AppendTransition() error = %v", err)
	}

	if updated.Stage != applications.StageUserReview {
		t.Errorf("Stage = %q, want %q", updated.Stage, applications.StageUserReview)
	}
	if updated.Status != applications.StatusDocumentsUploaded {
		t.Errorf("Status = %q, want %q", updated.Status, applications.StatusDocumentsUploaded)
	}
	if got := updated.ExtractedFields["first_name"]; got != "Amira" {
		t.Errorf("ExtractedFields[first_name] = %v, want Amira", got)
	}
	if len(updated.StageHistory) != 1 {
		t.Fatalf("len(StageHistory) = %d, want 1", len(updated.StageHistory))
	}

	entry := updated.StageHistory[0]
	if entry.Stage != applications.StageOCRProcessing {
		t.Errorf("entry.Stage = %q, want %q", entry.Stage, applications.StageOCRProcessing)
	}
	if entry.Status != applications.EntryCompleted {
		t.Errorf("entry.Status = %q, want %q", entry.Status, applications.EntryCompleted)
	}

	var detail map[string]any
	if err := json.Unmarshal(entry.Detail, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail["documents"] != float64(2) {
		t.Errorf("detail[documents] = %v, want 2", detail["documents"])
	}
}

func TestAppendTransitionStageConflict(t *testing.T) {
	store := applications.NewMemoryStore()
	app, err := store.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = store.AppendTransition(context.Background(), app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageUserReview,
		Stage:         applications.StageUserReview,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageGovVerification,
		Status:        applications.StatusProcessing,
	})
	if !errors.Is(err, applications.ErrConflict) {
		t.Errorf("AppendTransition() error = %v, want ErrConflict", err)
	}

	// The failed command must leave the record untouched.
	current, err := store.Find(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if current.Stage != applications.StageOCRProcessing {
		t.Errorf("Stage = %q, want %q", current.Stage, applications.StageOCRProcessing)
	}
	if len(current.StageHistory) != 0 {
		t.Errorf("len(StageHistory) = %d, want 0", len(current.StageHistory))
	}
}

func TestAppendTransitionOutcomeSetOnce(t *testing.T) {
	store := applications.NewMemoryStore()
	app, err := store.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	outcome := applications.OutcomeManualReview
	reason := "government verification inconclusive"
	_, err = store.AppendTransition(context.Background(), app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageOCRProcessing,
		Stage:         applications.StageOCRProcessing,
		EntryStatus:   applications.EntryFailed,
		NextStage:     applications.StageManualReview,
		Status:        applications.StatusFailed,
		Outcome:       &outcome,
		OutcomeReason: &reason,
	})
	if err != nil {
		t.Fatalf("AppendTransition() error = %v", err)
	}

	second := applications.OutcomeApproved
	_, err = store.AppendTransition(context.Background(), app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageManualReview,
		Stage:         applications.StageManualReview,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageManualReview,
		Status:        applications.StatusCompleted,
		Outcome:       &second,
	})
	if !errors.Is(err, applications.ErrConflict) {
		t.Errorf("second outcome error = %v, want ErrConflict", err)
	}

	current, err := store.Find(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if current.Outcome == nil || *current.Outcome != applications.OutcomeManualReview {
		t.Errorf("Outcome = %v, want %q", current.Outcome, applications.OutcomeManualReview)
	}
	if current.OutcomeReason == nil || *current.OutcomeReason != reason {
		t.Errorf("OutcomeReason = %v, want %q", current.OutcomeReason, reason)
	}
}

func TestAppendTransitionHistoryOnlyGrows(t *testing.T) {
	store := applications.NewMemoryStore()
	app, err := store.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	steps := []applications.TransitionCommand{
		{
			ExpectedStage: applications.StageOCRProcessing,
			Stage:         applications.StageOCRProcessing,
			EntryStatus:   applications.EntryCompleted,
			NextStage:     applications.StageUserReview,
			Status:        applications.StatusDocumentsUploaded,
		},
		{
			ExpectedStage: applications.StageUserReview,
			Stage:         applications.StageUserReview,
			EntryStatus:   applications.EntryCorrected,
			NextStage:     applications.StageUserReview,
			Status:        applications.StatusDocumentsUploaded,
		},
		{
			ExpectedStage: applications.StageUserReview,
			Stage:         applications.StageUserReview,
			EntryStatus:   applications.EntryCompleted,
			NextStage:     applications.StageGovVerification,
			Status:        applications.StatusDocumentsUploaded,
		},
	}

	for i, cmd := range steps {
		updated, err := store.AppendTransition(context.Background(), app.ID, cmd)
		if err != nil {
			t.Fatalf("step %d: AppendTransition() error = %v", i, err)
		}
		if len(updated.StageHistory) != i+1 {
			t.Fatalf("step %d: len(StageHistory) = %d, want %d", i, len(updated.StageHistory), i+1)
		}
		if updated.Seq() != i+1 {
			t.Fatalf("step %d: Seq() = %d, want %d", i, updated.Seq(), i+1)
		}
	}

	transitions, err := store.Transitions(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("Transitions() error = %v", err)
	}
	if len(transitions) != len(steps) {
		t.Fatalf("len(transitions) = %d, want %d", len(transitions), len(steps))
	}
	for i, entry := range transitions {
		if entry.Stage != steps[i].Stage {
			t.Errorf("transition %d: Stage = %q, want %q", i, entry.Stage, steps[i].Stage)
		}
		if entry.Status != steps[i].EntryStatus {
			t.Errorf("transition %d: Status = %q, want %q", i, entry.Status, steps[i].EntryStatus)
		}
	}
}

func TestAppendTransitionNotFound(t *testing.T) {
	store := applications.NewMemoryStore()

	_, err := store.AppendTransition(context.Background(), uuid.New(), applications.TransitionCommand{
		ExpectedStage: applications.StageOCRProcessing,
		Stage:         applications.StageOCRProcessing,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageUserReview,
		Status:        applications.StatusDocumentsUploaded,
	})
	if !errors.Is(err, applications.ErrNotFound) {
		t.Errorf("AppendTransition() error = %v, want ErrNotFound", err)
	}
}

func TestListByUser(t *testing.T) {
	store := applications.NewMemoryStore()
	userID := uuid.New()

	var created []uuid.UUID
	for i := 0; i < 3; i++ {
		app, err := store.Create(context.Background(), userID)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		created = append(created, app.ID)
	}
	if _, err := store.Create(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := store.ListByUser(context.Background(), userID, pagination.PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}

	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("len(Data) = %d, want 2", len(result.Data))
	}
	if result.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", result.TotalPages)
	}
	for i, app := range result.Data {
		if app.ID != created[i] {
			t.Errorf("Data[%d].ID = %v, want %v (creation order)", i, app.ID, created[i])
		}
		if app.UserID != userID {
			t.Errorf("Data[%d].UserID = %v, want %v", i, app.UserID, userID)
		}
		if len(app.StageHistory) != 0 {
			t.Errorf("Data[%d] carries stage history in a list view", i)
		}
	}

	second, err := store.ListByUser(context.Background(), userID, pagination.PageRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("ListByUser() page 2 error = %v", err)
	}
	if len(second.Data) != 1 {
		t.Errorf("page 2 len(Data) = %d, want 1", len(second.Data))
	}
	if second.Data[0].ID != created[2] {
		t.Errorf("page 2 Data[0].ID = %v, want %v (creation order)", second.Data[0].ID, created[2])
	}
}

func TestFindReturnsCopies(t *testing.T) {
	store := applications.NewMemoryStore()
	app, err := store.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := store.AppendTransition(context.Background(), app.ID, applications.TransitionCommand{
		ExpectedStage: applications.StageOCRProcessing,
		Stage:         applications.StageOCRProcessing,
		EntryStatus:   applications.EntryCompleted,
		NextStage:     applications.StageUserReview,
		Status:        applications.StatusDocumentsUploaded,
		Fields:        map[string]any{"first_name": "Amira"},
	}); err != nil {
		t.Fatalf("AppendTransition() error = %v", err)
	}

	first, err := store.Find(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	first.ExtractedFields["first_name"] = "tampered"
	first.Stage = applications.StageDecision

	second, err := store.Find(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got := second.ExtractedFields["first_name"]; got != "Amira" {
		t.Errorf("ExtractedFields[first_name] = %v, want Amira", got)
	}
	if second.Stage != applications.StageUserReview {
		t.Errorf("Stage = %q, want %q", second.Stage, applications.StageUserReview)
	}
}
