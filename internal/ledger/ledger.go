package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edunext/lead-relay/internal/lead"
)

// DefaultCap bounds ledger memory when no cap is configured.
const DefaultCap = 1000

// Failure reasons recorded against undelivered records.
const (
	ReasonBatchDuplicate  = "BatchDuplicate"
	ReasonRemoteDuplicate = "Duplicate in CRM"

	validationPrefix = "Validation: "
	transportPrefix  = "External Error: "
)

// ValidationReason builds the ledger reason for a rejected record.
func ValidationReason(message string) string {
	return validationPrefix + message
}

// TransportReason builds the ledger reason for a failed delivery.
func TransportReason(detail string) string {
	return transportPrefix + detail
}

// Entry archives one record that was not delivered, together with why.
// The original raw record is kept, not the canonical one, so the partner
// dispute ("refund") report shows exactly what was submitted.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Zone      string         `json:"zone"`
	Reason    string         `json:"reason"`
	Raw       lead.RawRecord `json:"raw"`
}

// Store is the failure ledger: a bounded FIFO of entries. Once the cap is
// reached each append evicts exactly the oldest entry. Implementations must
// be safe for concurrent use by multiple in-flight batches.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
}

// stamp fills the generated fields of an entry before persistence.
func stamp(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return entry
}

// MemoryStore keeps the ledger in process memory. This is the reference
// backend; a restart loses the report.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

// NewMemoryStore creates a bounded in-memory ledger.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &MemoryStore{cap: capacity}
}

var _ Store = (*MemoryStore)(nil)

// Append adds entry at the tail, evicting the oldest entry when full.
func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	entry = stamp(entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if len(s.entries) > s.cap {
		overflow := len(s.entries) - s.cap
		s.entries = append(s.entries[:0:0], s.entries[overflow:]...)
	}
	return nil
}

// List returns all entries in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Clear empties the ledger. No-op when already empty.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	return nil
}
