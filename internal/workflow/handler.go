package workflow

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/internal/applications"
	"github.com/veriflow-id/veriflow/internal/collaborators"
	"github.com/veriflow-id/veriflow/internal/documents"
	"github.com/veriflow-id/veriflow/pkg/handlers"
	"github.com/veriflow-id/veriflow/pkg/routes"
)

// Handler exposes the workflow trigger endpoints and the live status stream.
type Handler struct {
	engine    *Engine
	documents documents.System
	metrics   *Metrics
	maxUpload int64
	logger    *slog.Logger
}

// NewHandler creates the workflow handler.
func NewHandler(
	engine *Engine,
	docs documents.System,
	metrics *Metrics,
	maxUpload int64,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		engine:    engine,
		documents: docs,
		metrics:   metrics,
		maxUpload: maxUpload,
		logger:    logger.With("handler", "workflow"),
	}
}

// Routes returns the workflow route group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/api/applications/{id}",
		Routes: []routes.Route{
			{Method: http.MethodPost, Pattern: "/documents", Handler: h.upload},
			{Method: http.MethodPost, Pattern: "/corrections", Handler: h.correct},
			{Method: http.MethodPost, Pattern: "/confirm", Handler: h.confirm},
			{Method: http.MethodPost, Pattern: "/process", Handler: h.process},
			{Method: http.MethodGet, Pattern: "/stream", Handler: h.stream},
		},
	}
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	// Bound the whole request body: every file plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*4)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	docType := r.FormValue("document_type")
	if docType == "" {
		docType = collaborators.DocumentTypeIDCard
	}
	if docType != collaborators.DocumentTypeIDCard && docType != collaborators.DocumentTypePassport {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("unknown document_type %q", docType))
		return
	}

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("no documents provided"))
		return
	}

	var inputs []collaborators.DocumentInput
	for _, header := range files {
		data, err := readUpload(header)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("read upload %q: %w", header.Filename, err))
			return
		}

		doc, err := h.documents.Save(r.Context(), documents.CreateCommand{
			ApplicationID: id,
			DocumentType:  docType,
			FileName:      header.Filename,
			ContentType:   header.Header.Get("Content-Type"),
			Data:          data,
		})
		if err != nil {
			handlers.RespondError(w, h.logger, documents.MapHTTPStatus(err), err)
			return
		}

		inputs = append(inputs, collaborators.DocumentInput{
			Name:         doc.FileName,
			ContentType:  doc.ContentType,
			DocumentType: doc.DocumentType,
			Data:         data,
		})
	}

	app, err := h.engine.SubmitDocuments(r.Context(), id, inputs)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, app)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

type fieldsRequest struct {
	Fields map[string]any `json:"fields"`
}

func (h *Handler) correct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	var req fieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Fields) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("fields required"))
		return
	}

	app, err := h.engine.Correct(r.Context(), id, req.Fields)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, app)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	var req fieldsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}

	// Corrections posted earlier are already merged into the record, so
	// an empty body confirms the fields as they stand.
	app, err := h.engine.Confirm(r.Context(), id, req.Fields)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, app)
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	app, err := h.engine.Process(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, app)
}

type initEvent struct {
	Seq         int                       `json:"seq"`
	Application *applications.Application `json:"application"`
}

// stream serves the live status stream over server-sent events. The
// subscription attaches before the snapshot read, and live events at or
// below the snapshot sequence are dropped, so clients see every
// transition exactly once.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	app, sub, err := h.engine.Subscribe(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer h.engine.Unsubscribe(sub)

	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	initSeq := app.Seq()
	writeSSE(w, "init", initEvent{Seq: initSeq, Application: app})
	flusher.Flush()

	if app.Terminal() && app.Outcome != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.C:
			if !open {
				return
			}
			name := "transition"
			if event.EntryStatus == "retry" {
				name = "retry"
			} else if event.Seq <= initSeq {
				continue
			}

			writeSSE(w, name, event)
			flusher.Flush()

			if event.Outcome != "" {
				return
			}
		}
	}
}

func writeSSE(w io.Writer, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
