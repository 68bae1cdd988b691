package lead

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Defaults substituted for absent optional fields before forwarding.
const (
	SentinelEmail = "noemail@lead-relay.invalid"
	NotSpecified  = "Not Specified"
	DefaultCourse = "General Inquiry"
	DefaultMedium = "partner-api"
	MinNameLength = 2
	ContactDigits = 10
)

// FlexString decodes a JSON string or number into a string. Partners send
// contact numbers in both shapes.
type FlexString string

// UnmarshalJSON accepts strings, numbers, and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("lead: contact must be a string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// RawRecord is a lead exactly as submitted by the partner. No invariants.
type RawRecord struct {
	StudentName      string     `json:"student_name"`
	StudentEmail     string     `json:"student_email,omitempty"`
	StudentContact   FlexString `json:"student_contact"`
	City             string     `json:"city,omitempty"`
	InterestedCity   string     `json:"interested_city,omitempty"`
	InterestedCourse string     `json:"interested_course,omitempty"`
	Medium           string     `json:"medium,omitempty"`

	// decodeErr remembers a failed element decode so validation can reject
	// this record without vetoing the rest of its batch.
	decodeErr error
}

// DecodeRaw unmarshals one batch element best-effort: fields that decoded
// before the error are kept, and the error itself surfaces later as a
// validation failure instead of failing the whole batch.
func DecodeRaw(data []byte) RawRecord {
	var raw RawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		raw.decodeErr = err
	}
	return raw
}

// Record is the validated, normalized form of a RawRecord. Contact is always
// exactly ten digits; it doubles as the in-batch identity key.
type Record struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	City             string `json:"city"`
	InterestedCity   string `json:"interested_city"`
	InterestedCourse string `json:"interested_course"`
	Medium           string `json:"medium"`
}
