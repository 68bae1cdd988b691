package ledger

import (
	"encoding/json"
	"net/http"

	"github.com/edunext/lead-relay/pkg/logging"
)

// Handler serves the operator failure report.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates a report handler over the given store.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// ReportResponse is the payload for the read endpoint.
type ReportResponse struct {
	Count   int     `json:"count"`
	Entries []Entry `json:"entries"`
}

// GetReport handles GET /admin/report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list failure ledger", "error", err)
		http.Error(w, "failed to read report", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ReportResponse{Count: len(entries), Entries: entries})
}

// ClearReport handles DELETE /admin/report and POST /admin/report/clear.
func (h *Handler) ClearReport(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.logger.Error("failed to clear failure ledger", "error", err)
		http.Error(w, "failed to clear report", http.StatusInternalServerError)
		return
	}
	h.logger.Info("failure ledger cleared")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}
