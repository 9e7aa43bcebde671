package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/mailworker/internal/scheduler"
	"github.com/shaharia-lab/mailworker/internal/storage"
)

// JobLister reports the latest run of each maintenance job.
type JobLister interface {
	Runs() []scheduler.Run
}

// Server holds all dependencies for the REST API handlers.
type Server struct {
	deliveries storage.DeliveryStore
	jobs       JobLister
	logger     *slog.Logger
}

// New creates a new API Server. jobs may be nil when no scheduler runs.
func New(deliveries storage.DeliveryStore, jobs JobLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deliveries: deliveries, jobs: jobs, logger: logger}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Delivery log
	r.Get("/deliveries", s.handleListDeliveries)
	r.Get("/deliveries/{notificationId}", s.handleGetDeliveries)

	r.Get("/jobs", s.handleListJobs)
	r.Get("/version", s.handleVersion)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
