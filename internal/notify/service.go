package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edunext/lead-relay/pkg/logging"
)

// FailureAlerter batches transport failures into at most one digest email
// per window so a flapping CRM does not flood the operator inbox.
type FailureAlerter struct {
	sender EmailSender
	to     string
	window time.Duration
	logger *logging.Logger

	mu       sync.Mutex
	lastSent time.Time
	pending  map[string]int // zone -> failures since last digest
	samples  map[string]string
}

// AlerterConfig holds configuration for the failure alerter.
type AlerterConfig struct {
	To     string
	Window time.Duration
}

// NewFailureAlerter creates a digest alerter. Returns nil when disabled
// (no sender or no recipient), which callers treat as "no alerts".
func NewFailureAlerter(sender EmailSender, cfg AlerterConfig, logger *logging.Logger) *FailureAlerter {
	if sender == nil || cfg.To == "" {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailureAlerter{
		sender:  sender,
		to:      cfg.To,
		window:  cfg.Window,
		logger:  logger,
		pending: make(map[string]int),
		samples: make(map[string]string),
	}
}

// ObserveTransportFailure records one failed delivery. If the window has
// elapsed since the last digest, a new one is sent asynchronously.
func (a *FailureAlerter) ObserveTransportFailure(zone, detail string) {
	if a == nil {
		return
	}

	a.mu.Lock()
	a.pending[zone]++
	if _, ok := a.samples[zone]; !ok {
		a.samples[zone] = detail
	}
	due := time.Since(a.lastSent) >= a.window
	var digest string
	if due {
		digest = a.buildDigestLocked()
		a.lastSent = time.Now()
		a.pending = make(map[string]int)
		a.samples = make(map[string]string)
	}
	a.mu.Unlock()

	if !due {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msg := EmailMessage{
			To:      a.to,
			Subject: "Lead relay: CRM delivery failures",
			Body:    digest,
		}
		if err := a.sender.Send(ctx, msg); err != nil {
			a.logger.Error("failed to send failure digest", "error", err)
		}
	}()
}

func (a *FailureAlerter) buildDigestLocked() string {
	body := "Delivery failures since the last digest:\n"
	for zone, count := range a.pending {
		body += fmt.Sprintf("  zone %s: %d failed (first error: %s)\n", zone, count, a.samples[zone])
	}
	body += "\nSee /admin/report for the full ledger."
	return body
}
