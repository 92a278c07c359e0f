package documents

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/pkg/handlers"
	"github.com/veriflow-id/veriflow/pkg/routes"
)

// Handler exposes read endpoints for stored documents. Uploads flow
// through the workflow trigger endpoints.
type Handler struct {
	system System
	logger *slog.Logger
}

// NewHandler creates a document handler.
func NewHandler(system System, logger *slog.Logger) *Handler {
	return &Handler{
		system: system,
		logger: logger.With("handler", "documents"),
	}
}

// Routes returns the document route groups.
func (h *Handler) Routes() []routes.Group {
	return []routes.Group{
		{
			Prefix: "/api/applications/{id}/documents",
			Routes: []routes.Route{
				{Method: http.MethodGet, Pattern: "", Handler: h.list},
			},
		},
		{
			Prefix: "/api/documents/{id}",
			Routes: []routes.Route{
				{Method: http.MethodGet, Pattern: "", Handler: h.find},
				{Method: http.MethodGet, Pattern: "/content", Handler: h.content},
			},
		},
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	docs, err := h.system.ListByApplication(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, docs)
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid document id"))
		return
	}

	doc, err := h.system.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

func (h *Handler) content(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid document id"))
		return
	}

	doc, data, err := h.system.Content(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
