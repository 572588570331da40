package observability

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RunStatus is the snapshot served on /status.
type RunStatus struct {
	State  string        `json:"state"`
	Models []ModelStatus `json:"models"`
}

// ModelStatus is one model's live view.
type ModelStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// StatusSource provides the live run snapshot.
type StatusSource interface {
	Status() RunStatus
}

// NewHandler wires the status and metrics endpoints.
func NewHandler(src StatusSource, m *Metrics) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.Status()); err != nil {
			http.Error(w, "encode status", http.StatusInternalServerError)
		}
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}
