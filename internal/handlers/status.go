package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"yt-dataset-harvester/internal/checkpoint"
	"yt-dataset-harvester/internal/models"
)

type LedgerLister interface {
	ListByRunDate(ctx context.Context, runDate string) ([]models.LedgerEntry, error)
}

type StatusHandler struct {
	store   *StatusStore
	runDir  string
	runDate string
	ledger  LedgerLister
}

// NewStatusHandler serves the state of one run directory. ledger may be nil when
// no database is configured.
func NewStatusHandler(store *StatusStore, runDir, runDate string, ledger LedgerLister) *StatusHandler {
	return &StatusHandler{store: store, runDir: runDir, runDate: runDate, ledger: ledger}
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *StatusHandler) Checkpoints(w http.ResponseWriter, r *http.Request) {
	entries, err := checkpoint.Scan(h.runDir)
	if err != nil {
		log.Printf("failed to scan %s: %v", h.runDir, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read checkpoint directory", r))
		return
	}

	next, partial := checkpoint.ResumePoint(entries)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_dir":      h.runDir,
		"batches":      entries,
		"resume_batch": next,
		"partial":      partial,
	})
}

func (h *StatusHandler) Batches(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("LEDGER_DISABLED", "No database configured", r))
		return
	}

	runDate := r.URL.Query().Get("run_date")
	if runDate == "" {
		runDate = h.runDate
	}

	entries, err := h.ledger.ListByRunDate(r.Context(), runDate)
	if err != nil {
		log.Printf("failed to list batches for %s: %v", runDate, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_date": runDate,
		"batches":  entries,
	})
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}
