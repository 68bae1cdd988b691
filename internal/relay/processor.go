package relay

import (
	"context"
	"time"

	"github.com/edunext/lead-relay/internal/crm"
	"github.com/edunext/lead-relay/internal/lead"
	"github.com/edunext/lead-relay/internal/ledger"
	"github.com/edunext/lead-relay/internal/observability/metrics"
	"github.com/edunext/lead-relay/internal/zone"
	"github.com/edunext/lead-relay/pkg/logging"
)

// Record outcome labels used for metrics.
const (
	outcomeDelivered         = "delivered"
	outcomeValidationFailure = "validation_failure"
	outcomeBatchDuplicate    = "batch_duplicate"
	outcomeRemoteDuplicate   = "remote_duplicate"
	outcomeTransportFailure  = "transport_failure"
)

// FailureAlerter is notified of transport failures so an operator digest can
// be sent. Implementations must not block.
type FailureAlerter interface {
	ObserveTransportFailure(zone, detail string)
}

// ProcessorConfig wires the processor's collaborators.
type ProcessorConfig struct {
	Sink     crm.Sink
	Ledger   ledger.Store
	Metrics  *metrics.RelayMetrics
	Alerter  FailureAlerter
	Throttle time.Duration
	// MediumTag overrides the default medium stamped on records that arrive
	// without one. Empty means lead.DefaultMedium.
	MediumTag string
	Logger    *logging.Logger
}

// Processor drives each record of a batch through
// normalize → dedup → forward, archiving every non-delivery in the ledger.
type Processor struct {
	sink     crm.Sink
	ledger   ledger.Store
	metrics  *metrics.RelayMetrics
	alerter  FailureAlerter
	throttle time.Duration
	medium   string
	logger   *logging.Logger
}

// NewProcessor creates a batch processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Sink == nil {
		panic("relay: sink required")
	}
	if cfg.Ledger == nil {
		panic("relay: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	medium := cfg.MediumTag
	if medium == "" {
		medium = lead.DefaultMedium
	}
	return &Processor{
		sink:     cfg.Sink,
		ledger:   cfg.Ledger,
		metrics:  cfg.Metrics,
		alerter:  cfg.Alerter,
		throttle: cfg.Throttle,
		medium:   medium,
		logger:   logger,
	}
}

// Process relays one batch to its destination. Records are handled in
// submission order; a failing record never aborts the rest of the batch.
// Duplicate suppression is scoped to this call only: the seen-set starts
// empty and is discarded with the batch.
func (p *Processor) Process(ctx context.Context, dest zone.Destination, raws []lead.RawRecord) {
	if ctx == nil {
		ctx = context.Background()
	}
	seen := make(map[string]struct{}, len(raws))
	delivered := 0

	for i, raw := range raws {
		rec, err := lead.NormalizeWithMedium(raw, p.medium)
		if err != nil {
			p.record(ctx, dest, raw, ledger.ValidationReason(err.Error()), outcomeValidationFailure)
			continue
		}

		if _, dup := seen[rec.Contact]; dup {
			// No network call for in-batch duplicates.
			p.record(ctx, dest, raw, ledger.ReasonBatchDuplicate, outcomeBatchDuplicate)
			continue
		}
		seen[rec.Contact] = struct{}{}

		start := time.Now()
		outcome := p.sink.Forward(ctx, rec, dest)
		p.metrics.ObserveForwardLatency(dest.Key, time.Since(start).Seconds())

		switch outcome.Status {
		case crm.StatusDelivered:
			delivered++
			p.metrics.ObserveRecord(dest.Key, outcomeDelivered)
		case crm.StatusRemoteDuplicate:
			p.record(ctx, dest, raw, ledger.ReasonRemoteDuplicate, outcomeRemoteDuplicate)
		case crm.StatusTransportFailure:
			p.record(ctx, dest, raw, ledger.TransportReason(outcome.Detail), outcomeTransportFailure)
			if p.alerter != nil {
				p.alerter.ObserveTransportFailure(dest.Key, outcome.Detail)
			}
		}

		if p.throttle > 0 && i < len(raws)-1 {
			time.Sleep(p.throttle)
		}
	}

	p.logger.Info("batch processed",
		"zone", dest.Key,
		"records", len(raws),
		"delivered", delivered,
	)
}

func (p *Processor) record(ctx context.Context, dest zone.Destination, raw lead.RawRecord, reason, outcome string) {
	entry := ledger.Entry{Zone: dest.Key, Reason: reason, Raw: raw}
	if err := p.ledger.Append(ctx, entry); err != nil {
		p.logger.Error("failed to archive undelivered record", "zone", dest.Key, "reason", reason, "error", err)
	}
	p.metrics.ObserveRecord(dest.Key, outcome)
}
