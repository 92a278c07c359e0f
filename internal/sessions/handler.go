package sessions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/veriflow-id/veriflow/pkg/handlers"
	"github.com/veriflow-id/veriflow/pkg/routes"
)

// Handler exposes the session state endpoints used by the conversational
// layer.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler creates a session handler.
func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("handler", "sessions"),
	}
}

// Routes returns the session route group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/api/sessions/{id}",
		Routes: []routes.Route{
			{Method: http.MethodPut, Pattern: "", Handler: h.upsert},
			{Method: http.MethodGet, Pattern: "", Handler: h.find},
		},
	}
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("session id required"))
		return
	}

	var cmd UpsertCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	session, err := h.store.Upsert(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("session id required"))
		return
	}

	session, err := h.store.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, session)
}
