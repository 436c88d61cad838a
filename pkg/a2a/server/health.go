package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterHealthEndpoints registers liveness endpoints on r. They answer as
// long as the process serves HTTP, whatever the state of the agent client.
func RegisterHealthEndpoints(r chi.Router) {
	handler := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
	r.Get("/health", handler)
	r.Get("/healthz", handler)
}
