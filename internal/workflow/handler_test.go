package workflow_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/internal/applications"
	"github.com/veriflow-id/veriflow/internal/collaborators"
	"github.com/veriflow-id/veriflow/internal/documents"
	"github.com/veriflow-id/veriflow/internal/events"
	"github.com/veriflow-id/veriflow/pkg/routes"

	"github.com/veriflow-id/veriflow/internal/workflow"
)

func newHandlerFixture(t *testing.T) (http.Handler, *engineFixture) {
	t.Helper()

	f := newEngineFixture(t, fixedExtractor(), verifiedVerifier(), staticChecker(collaborators.RiskLow, 0), workflow.DefaultTimeouts())
	handler := workflow.NewHandler(
		f.engine,
		documents.NewMemorySystem(1<<20),
		nil,
		1<<20,
		testLogger(),
	)
	return routes.Build(nil, []routes.Group{handler.Routes()}), f
}

func multipartUpload(t *testing.T, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("documents", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	server, f := newHandlerFixture(t)
	app := f.createApplication(t)

	body, contentType := multipartUpload(t, "front.png", bytes.Repeat([]byte{0x42}, 2048))
	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+app.ID.String()+"/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var updated applications.Application
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Stage != applications.StageUserReview {
		t.Errorf("Stage = %q, want %q", updated.Stage, applications.StageUserReview)
	}
}

func TestUploadEndpointRejectsEmptyForm(t *testing.T) {
	server, f := newHandlerFixture(t)
	app := f.createApplication(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+app.ID.String()+"/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUploadEndpointRejectsUnknownDocumentType(t *testing.T) {
	server, f := newHandlerFixture(t)
	app := f.createApplication(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("document_type", "drivers_license"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("documents", "front.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte{0x42})
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+app.ID.String()+"/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCorrectionsFeedConfirm(t *testing.T) {
	server, f := newHandlerFixture(t)
	app := f.createApplication(t)
	f.submit(t, app.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+app.ID.String()+"/corrections",
		strings.NewReader(`{"fields":{"first_name":"Amina"}}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("corrections status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// Corrections are already merged into the record, so an empty confirm
	// body locks them in.
	req = httptest.NewRequest(http.MethodPost, "/api/applications/"+app.ID.String()+"/confirm", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var confirmed applications.Application
	if err := json.NewDecoder(rec.Body).Decode(&confirmed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if confirmed.Stage != applications.StageGovVerification {
		t.Errorf("Stage = %q, want %q", confirmed.Stage, applications.StageGovVerification)
	}
	if got := confirmed.ExtractedFields["first_name"]; got != "Amina" {
		t.Errorf("ExtractedFields[first_name] = %v, want corrected Amina", got)
	}
}

func TestCorrectionsRequireFields(t *testing.T) {
	server, f := newHandlerFixture(t)
	app := f.createApplication(t)
	f.submit(t, app.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+app.ID.String()+"/corrections",
		strings.NewReader(`{"fields":{}}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestProcessEndpointStatusMapping(t *testing.T) {
	server, f := newHandlerFixture(t)
	app := f.createApplication(t)

	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+app.ID.String()+"/process", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/applications/"+uuid.NewString()+"/process", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown application status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

type sseEvent struct {
	Name string
	Data []byte
}

func readSSE(t *testing.T, reader *bufio.Reader) (sseEvent, bool) {
	t.Helper()

	var event sseEvent
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return event, false
		}
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(line, "event: "):
			event.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			event.Data = []byte(strings.TrimPrefix(line, "data: "))
		case line == "" && event.Name != "":
			return event, true
		}
	}
}

func TestStreamEndpoint(t *testing.T) {
	handler, f := newHandlerFixture(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	app := f.createApplication(t)
	f.submit(t, app.ID)
	f.confirm(t, app.ID)

	resp, err := http.Get(server.URL + "/api/applications/" + app.ID.String() + "/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	reader := bufio.NewReader(resp.Body)

	// The stream opens with a snapshot of the current state.
	init, ok := readSSE(t, reader)
	if !ok {
		t.Fatal("stream closed before init event")
	}
	if init.Name != "init" {
		t.Fatalf("first event = %q, want init", init.Name)
	}
	var snapshot struct {
		Seq         int                       `json:"seq"`
		Application *applications.Application `json:"application"`
	}
	if err := json.Unmarshal(init.Data, &snapshot); err != nil {
		t.Fatalf("decode init event: %v", err)
	}
	if snapshot.Seq != 2 {
		t.Errorf("init Seq = %d, want 2", snapshot.Seq)
	}

	// With the subscription attached, drive the chain to completion and
	// expect one transition event per stage, then stream close.
	if _, err := f.engine.Process(context.Background(), app.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	var received []events.Event
	for {
		raw, ok := readSSE(t, reader)
		if !ok {
			break
		}
		if raw.Name != "transition" {
			t.Errorf("event name = %q, want transition", raw.Name)
		}
		var event events.Event
		if err := json.Unmarshal(raw.Data, &event); err != nil {
			t.Fatalf("decode transition event: %v", err)
		}
		received = append(received, event)
	}

	if len(received) != 3 {
		t.Fatalf("len(received) = %d, want 3", len(received))
	}
	for i, event := range received {
		if want := snapshot.Seq + i + 1; event.Seq != want {
			t.Errorf("event %d: Seq = %d, want %d", i, event.Seq, want)
		}
	}
	if last := received[len(received)-1]; last.Outcome != string(applications.OutcomeApproved) {
		t.Errorf("final event Outcome = %q, want %q", last.Outcome, applications.OutcomeApproved)
	}
}

func TestStreamEndpointClosesOnTerminalSnapshot(t *testing.T) {
	handler, f := newHandlerFixture(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	app := f.createApplication(t)
	f.submit(t, app.ID)
	f.confirm(t, app.ID)
	if _, err := f.engine.Process(context.Background(), app.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	resp, err := http.Get(server.URL + "/api/applications/" + app.ID.String() + "/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	init, ok := readSSE(t, reader)
	if !ok || init.Name != "init" {
		t.Fatalf("first event = %q (ok=%v), want init", init.Name, ok)
	}

	// A terminal snapshot ends the stream right after init.
	if _, ok := readSSE(t, reader); ok {
		t.Error("stream stayed open after terminal snapshot")
	}
}
