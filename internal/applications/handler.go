package applications

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/veriflow-id/veriflow/pkg/handlers"
	"github.com/veriflow-id/veriflow/pkg/pagination"
	"github.com/veriflow-id/veriflow/pkg/routes"
)

// Handler exposes application CRUD endpoints. Workflow trigger endpoints
// live in the workflow package.
type Handler struct {
	store  Store
	pages  pagination.Config
	logger *slog.Logger
}

// NewHandler creates an application handler.
func NewHandler(store Store, pages pagination.Config, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		pages:  pages,
		logger: logger.With("handler", "applications"),
	}
}

// Routes returns the application route group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/api/applications",
		Routes: []routes.Route{
			{Method: http.MethodPost, Pattern: "", Handler: h.create},
			{Method: http.MethodGet, Pattern: "", Handler: h.list},
			{Method: http.MethodGet, Pattern: "/{id}", Handler: h.find},
			{Method: http.MethodGet, Pattern: "/{id}/transitions", Handler: h.transitions},
		},
	}
}

type createRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.UserID == uuid.Nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("user_id required"))
		return
	}

	app, err := h.store.Create(r.Context(), req.UserID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.logger.Info("application created", "id", app.ID, "user_id", app.UserID)
	handlers.RespondJSON(w, http.StatusCreated, app)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid user_id"))
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pages)

	result, err := h.store.ListByUser(r.Context(), userID, page)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	app, err := h.store.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, app)
}

func (h *Handler) transitions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid application id"))
		return
	}

	history, err := h.store.Transitions(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, history)
}
