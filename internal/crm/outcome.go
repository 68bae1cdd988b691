package crm

// Status classifies the result of one forwarding attempt.
type Status int

const (
	// StatusDelivered means the destination accepted the record.
	StatusDelivered Status = iota
	// StatusRemoteDuplicate means the destination reported the record as
	// already present (HTTP 409 or a "duplicate" response body).
	StatusRemoteDuplicate
	// StatusTransportFailure covers connection errors, timeouts, and any
	// other non-2xx response.
	StatusTransportFailure
)

// Outcome is the classified result of forwarding one record. Detail carries
// diagnostic text for transport failures.
type Outcome struct {
	Status Status
	Detail string
}

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusRemoteDuplicate:
		return "remote_duplicate"
	case StatusTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}
