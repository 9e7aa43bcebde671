package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// handleListDeliveries returns recent delivery log entries, newest first.
// Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	entries, err := s.deliveries.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list delivery log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list delivery log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetDeliveries returns the lifecycle of one notification in the order
// it happened.
func (s *Server) handleGetDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "notificationId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "notificationId must be a UUID")
		return
	}

	entries, err := s.deliveries.ListByNotification(r.Context(), id.String())
	if err != nil {
		s.logger.Error("failed to load delivery log", "notification_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load delivery log")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "no deliveries recorded for notification")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
