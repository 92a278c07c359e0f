package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/veriflow-id/veriflow/pkg/routes"
)

func stamp(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func TestBuild(t *testing.T) {
	handler := routes.Build(
		[]routes.Route{
			{Method: http.MethodGet, Pattern: "/healthz", Handler: stamp("ok")},
		},
		[]routes.Group{
			{
				Prefix: "/api/items",
				Routes: []routes.Route{
					{Method: http.MethodGet, Pattern: "", Handler: stamp("list")},
					{Method: http.MethodGet, Pattern: "/{id}", Handler: stamp("find")},
					{Method: http.MethodPost, Pattern: "", Handler: stamp("create")},
				},
				Children: []routes.Group{
					{
						Prefix: "/{id}/notes",
						Routes: []routes.Route{
							{Method: http.MethodGet, Pattern: "", Handler: stamp("notes")},
						},
					},
				},
			},
		},
	)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"root route", http.MethodGet, "/healthz", http.StatusOK, "ok"},
		{"group route", http.MethodGet, "/api/items", http.StatusOK, "list"},
		{"group route with parameter", http.MethodGet, "/api/items/42", http.StatusOK, "find"},
		{"group route by method", http.MethodPost, "/api/items", http.StatusOK, "create"},
		{"nested group", http.MethodGet, "/api/items/42/notes", http.StatusOK, "notes"},
		{"wrong method", http.MethodDelete, "/healthz", http.StatusMethodNotAllowed, ""},
		{"unknown path", http.MethodGet, "/missing", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
