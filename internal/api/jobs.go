package api

import (
	"net/http"

	"github.com/shaharia-lab/mailworker/internal/scheduler"
)

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	runs := []scheduler.Run{}
	if s.jobs != nil {
		runs = s.jobs.Runs()
	}
	writeJSON(w, http.StatusOK, runs)
}
