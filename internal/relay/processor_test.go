package relay

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edunext/lead-relay/internal/crm"
	"github.com/edunext/lead-relay/internal/lead"
	"github.com/edunext/lead-relay/internal/ledger"
	"github.com/edunext/lead-relay/internal/zone"
	"github.com/edunext/lead-relay/pkg/logging"
)

type stubSink struct {
	mu       sync.Mutex
	calls    []lead.Record
	outcomes []crm.Outcome
}

func (s *stubSink) Forward(ctx context.Context, rec lead.Record, dest zone.Destination) crm.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rec)
	if len(s.outcomes) == 0 {
		return crm.Outcome{Status: crm.StatusDelivered}
	}
	out := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return out
}

func (s *stubSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newProcessor(sink crm.Sink, store ledger.Store) *Processor {
	return NewProcessor(ProcessorConfig{
		Sink:   sink,
		Ledger: store,
		Logger: logging.Default(),
	})
}

func centralDest() zone.Destination {
	return zone.Destination{Key: "central", Name: "Central Region", Endpoint: "https://crm.example.com/central"}
}

func TestProcessDeliversValidRecords(t *testing.T) {
	sink := &stubSink{}
	store := ledger.NewMemoryStore(100)
	proc := newProcessor(sink, store)

	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
		{StudentName: "Ravi Kumar", StudentContact: "9123456789"},
	})

	if sink.callCount() != 2 {
		t.Fatalf("expected 2 forwards, got %d", sink.callCount())
	}
	entries, _ := store.List(context.Background())
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger on success, got %d entries", len(entries))
	}
}

func TestProcessBatchDuplicateMakesOneCall(t *testing.T) {
	sink := &stubSink{}
	store := ledger.NewMemoryStore(100)
	proc := newProcessor(sink, store)

	// Same canonical contact in three different spellings.
	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
		{StudentName: "Asha V", StudentContact: "+91 98765-43210"},
		{StudentName: "A Verma", StudentContact: "09876543210"},
	})

	if sink.callCount() != 1 {
		t.Fatalf("expected exactly 1 forward for duplicates, got %d", sink.callCount())
	}

	entries, _ := store.List(context.Background())
	if len(entries) != 2 {
		t.Fatalf("expected 2 duplicate entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Reason != ledger.ReasonBatchDuplicate {
			t.Errorf("expected %q, got %q", ledger.ReasonBatchDuplicate, entry.Reason)
		}
		if entry.Zone != "central" {
			t.Errorf("expected zone central, got %q", entry.Zone)
		}
	}
	// First occurrence wins: the forwarded record is the first spelling.
	if sink.calls[0].Name != "Asha Verma" {
		t.Errorf("expected first occurrence forwarded, got %q", sink.calls[0].Name)
	}
}

func TestProcessValidationFailureNeverForwarded(t *testing.T) {
	sink := &stubSink{}
	store := ledger.NewMemoryStore(100)
	proc := newProcessor(sink, store)

	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "X", StudentContact: "9876543210"},   // name too short
		{StudentName: "Asha Verma", StudentContact: "123"}, // too few digits
		{StudentName: "Ravi Kumar", StudentContact: "9123456789"},
	})

	if sink.callCount() != 1 {
		t.Fatalf("expected only the valid record forwarded, got %d calls", sink.callCount())
	}

	entries, _ := store.List(context.Background())
	if len(entries) != 2 {
		t.Fatalf("expected 2 validation entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Reason, "Validation: ") {
			t.Errorf("expected validation reason, got %q", entry.Reason)
		}
	}
	// The original raw record is archived, not the canonical one.
	if entries[0].Raw.StudentName != "X" {
		t.Errorf("expected raw record archived, got %+v", entries[0].Raw)
	}
}

func TestProcessRemoteDuplicateRecorded(t *testing.T) {
	sink := &stubSink{outcomes: []crm.Outcome{{Status: crm.StatusRemoteDuplicate}}}
	store := ledger.NewMemoryStore(100)
	proc := newProcessor(sink, store)

	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
	})

	entries, _ := store.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Reason != ledger.ReasonRemoteDuplicate {
		t.Errorf("expected %q, got %q", ledger.ReasonRemoteDuplicate, entries[0].Reason)
	}
}

func TestProcessTransportFailureIsolated(t *testing.T) {
	sink := &stubSink{outcomes: []crm.Outcome{
		{Status: crm.StatusTransportFailure, Detail: "status 500: boom"},
		{Status: crm.StatusDelivered},
	}}
	store := ledger.NewMemoryStore(100)
	proc := newProcessor(sink, store)

	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
		{StudentName: "Ravi Kumar", StudentContact: "9123456789"},
	})

	// The failing record did not abort the batch.
	if sink.callCount() != 2 {
		t.Fatalf("expected both records forwarded, got %d", sink.callCount())
	}

	entries, _ := store.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Reason != "External Error: status 500: boom" {
		t.Errorf("unexpected reason %q", entries[0].Reason)
	}
}

type timingSink struct {
	mu    sync.Mutex
	times []time.Time
}

func (s *timingSink) Forward(ctx context.Context, rec lead.Record, dest zone.Destination) crm.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times = append(s.times, time.Now())
	return crm.Outcome{Status: crm.StatusDelivered}
}

func TestProcessThrottleSpacesForwards(t *testing.T) {
	const throttle = 50 * time.Millisecond
	sink := &timingSink{}
	proc := NewProcessor(ProcessorConfig{
		Sink:     sink,
		Ledger:   ledger.NewMemoryStore(100),
		Throttle: throttle,
		Logger:   logging.Default(),
	})

	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
		{StudentName: "Ravi Kumar", StudentContact: "9123456789"},
	})

	if len(sink.times) != 2 {
		t.Fatalf("expected 2 forwards, got %d", len(sink.times))
	}
	if gap := sink.times[1].Sub(sink.times[0]); gap < throttle {
		t.Errorf("expected forwards at least %s apart, got %s", throttle, gap)
	}
}

func TestProcessNoTrailingThrottle(t *testing.T) {
	// With a single forward there is nothing to pace, so the throttle must
	// not delay completion. The ledger-only record ahead of it must not
	// trigger a sleep either.
	const throttle = 300 * time.Millisecond
	sink := &stubSink{}
	proc := NewProcessor(ProcessorConfig{
		Sink:     sink,
		Ledger:   ledger.NewMemoryStore(100),
		Throttle: throttle,
		Logger:   logging.Default(),
	})

	start := time.Now()
	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "X", StudentContact: "9876543210"}, // validation failure
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
	})
	elapsed := time.Since(start)

	if sink.callCount() != 1 {
		t.Fatalf("expected 1 forward, got %d", sink.callCount())
	}
	if elapsed >= throttle {
		t.Errorf("expected batch to finish without sleeping, took %s", elapsed)
	}
}

func TestProcessAppliesConfiguredMediumTag(t *testing.T) {
	sink := &stubSink{}
	proc := NewProcessor(ProcessorConfig{
		Sink:      sink,
		Ledger:    ledger.NewMemoryStore(100),
		MediumTag: "campaign-summer",
		Logger:    logging.Default(),
	})

	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
		{StudentName: "Ravi Kumar", StudentContact: "9123456789", Medium: "referral"},
	})

	if sink.callCount() != 2 {
		t.Fatalf("expected 2 forwards, got %d", sink.callCount())
	}
	if sink.calls[0].Medium != "campaign-summer" {
		t.Errorf("expected configured medium default, got %q", sink.calls[0].Medium)
	}
	if sink.calls[1].Medium != "referral" {
		t.Errorf("expected submitted medium kept, got %q", sink.calls[1].Medium)
	}
}

type recordingAlerter struct {
	mu    sync.Mutex
	zones []string
}

func (a *recordingAlerter) ObserveTransportFailure(zone, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.zones = append(a.zones, zone)
}

func TestProcessNotifiesAlerterOnTransportFailure(t *testing.T) {
	alerter := &recordingAlerter{}
	sink := &stubSink{outcomes: []crm.Outcome{
		{Status: crm.StatusTransportFailure, Detail: "timeout"},
		{Status: crm.StatusRemoteDuplicate},
	}}
	proc := NewProcessor(ProcessorConfig{
		Sink:    sink,
		Ledger:  ledger.NewMemoryStore(100),
		Alerter: alerter,
		Logger:  logging.Default(),
	})

	proc.Process(context.Background(), centralDest(), []lead.RawRecord{
		{StudentName: "Asha Verma", StudentContact: "9876543210"},
		{StudentName: "Ravi Kumar", StudentContact: "9123456789"},
	})

	alerter.mu.Lock()
	defer alerter.mu.Unlock()
	// Remote duplicates are expected outcomes, not alerts.
	if len(alerter.zones) != 1 || alerter.zones[0] != "central" {
		t.Fatalf("expected one transport-failure alert, got %v", alerter.zones)
	}
}
