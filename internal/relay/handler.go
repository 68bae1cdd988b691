package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edunext/lead-relay/internal/lead"
	"github.com/edunext/lead-relay/internal/observability/metrics"
	"github.com/edunext/lead-relay/internal/zone"
	"github.com/edunext/lead-relay/pkg/logging"
)

const maxBodyBytes = 1 << 20

// Handler accepts batch submissions and detaches processing from the
// request/response cycle.
type Handler struct {
	zones         *zone.Registry
	processor     *Processor
	metrics       *metrics.RelayMetrics
	logger        *logging.Logger
	ledgerBackend string
	startedAt     time.Time
}

// NewHandler creates the submission/status handler.
func NewHandler(zones *zone.Registry, processor *Processor, m *metrics.RelayMetrics, ledgerBackend string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		zones:         zones,
		processor:     processor,
		metrics:       m,
		logger:        logger,
		ledgerBackend: ledgerBackend,
		startedAt:     time.Now(),
	}
}

// AcceptedResponse acknowledges a batch before any record-level work starts.
type AcceptedResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Zone   string `json:"zone"`
}

// Submit handles POST /relay/{zone}. The body may be a single lead object or
// an array of them. The 202 acknowledgment only means the batch was accepted;
// per-record outcomes land in the failure report.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "zone")
	dest, ok := h.zones.Lookup(key)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown zone %q", key), http.StatusNotFound)
		return
	}

	raws, err := decodeBatch(r)
	if err != nil {
		h.logger.Warn("rejected malformed batch", "zone", dest.Key, "error", err)
		http.Error(w, "body must be a lead object or an array of lead objects", http.StatusBadRequest)
		return
	}

	h.metrics.ObserveBatchAccepted(dest.Key)
	h.logger.Info("batch accepted", "zone", dest.Key, "count", len(raws))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(AcceptedResponse{
		Status: "accepted",
		Count:  len(raws),
		Zone:   dest.Name,
	})

	// Detach from the request: the request context dies with the response,
	// so the batch runs on a fresh context to completion. There is no
	// cancellation for in-flight batches.
	go h.processor.Process(context.Background(), dest, raws)
}

// decodeBatch accepts either a single raw record or an array of them. Array
// elements are decoded independently: a malformed element becomes a record
// that fails validation instead of vetoing its batchmates.
func decodeBatch(r *http.Request) ([]lead.RawRecord, error) {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _ = body.Close() }()

	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("relay: decode body: %w", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err == nil {
		batch := make([]lead.RawRecord, len(elements))
		for i, el := range elements {
			batch[i] = lead.DecodeRaw(el)
		}
		return batch, nil
	}

	var single lead.RawRecord
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("relay: body is neither object nor array: %w", err)
	}
	return []lead.RawRecord{single}, nil
}

// StatusResponse reports liveness and configuration readiness.
type StatusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Zones         []string `json:"zones"`
	LedgerBackend string   `json:"ledger_backend"`
}

// Status handles GET /status. Read-only.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatusResponse{
		Status:        "online",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Zones:         h.zones.Keys(),
		LedgerBackend: h.ledgerBackend,
	})
}
