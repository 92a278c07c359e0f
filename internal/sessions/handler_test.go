package sessions_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/internal/sessions"
	"github.com/veriflow-id/veriflow/pkg/routes"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := sessions.NewHandler(sessions.NewMemoryStore(), logger)

	return routes.Build(nil, []routes.Group{handler.Routes()})
}

func TestUpsertEndpointMerges(t *testing.T) {
	server := newTestServer(t)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/api/sessions/conv-1",
		strings.NewReader(`{"user_id":"`+userID.String()+`","flags":{"awaiting_confirmation":true}}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/api/sessions/conv-1",
		strings.NewReader(`{"workflow_stage_hint":"user_review"}`))
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("second upsert status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var session sessions.SessionState
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.UserID == nil || *session.UserID != userID {
		t.Errorf("UserID = %v, want %v preserved", session.UserID, userID)
	}
	if session.WorkflowStageHint != "user_review" {
		t.Errorf("WorkflowStageHint = %q, want user_review", session.WorkflowStageHint)
	}
	if got := session.Flags["awaiting_confirmation"]; got != true {
		t.Errorf("Flags[awaiting_confirmation] = %v, want true preserved", got)
	}
}

func TestUpsertEndpointRejectsBadBody(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/sessions/conv-1", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFindEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/sessions/conv-1", strings.NewReader(`{"flags":{"locale":"de"}}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/conv-1", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var session sessions.SessionState
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.SessionID != "conv-1" {
		t.Errorf("SessionID = %q, want conv-1", session.SessionID)
	}
}

func TestFindEndpointNotFound(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/conv-unknown", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
