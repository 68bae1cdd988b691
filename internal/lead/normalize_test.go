package lead

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeContact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ten digits", "9876543210", "9876543210"},
		{"country code with punctuation", "+91 98765-43210", "9876543210"},
		{"trunk prefix", "09876543210", "9876543210"},
		{"spaces and parens", "(987) 654 3210", "9876543210"},
		{"long international", "0091-98765-43210", "9876543210"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeContact(tt.input)
			if err != nil {
				t.Fatalf("NormalizeContact(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeContact(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeContactTooShort(t *testing.T) {
	_, err := NormalizeContact("98765-4321")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Field != "student_contact" {
		t.Errorf("expected field student_contact, got %s", verr.Field)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	raw := RawRecord{
		StudentName:    "  Asha Verma  ",
		StudentContact: "+91 98765 43210",
	}

	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if rec.Name != "Asha Verma" {
		t.Errorf("expected trimmed name, got %q", rec.Name)
	}
	if rec.Contact != "9876543210" {
		t.Errorf("expected canonical contact, got %q", rec.Contact)
	}
	if rec.Email != SentinelEmail {
		t.Errorf("expected sentinel email, got %q", rec.Email)
	}
	if rec.City != NotSpecified || rec.InterestedCity != NotSpecified {
		t.Errorf("expected city defaults, got %q / %q", rec.City, rec.InterestedCity)
	}
	if rec.InterestedCourse != DefaultCourse {
		t.Errorf("expected course default, got %q", rec.InterestedCourse)
	}
	if rec.Medium != DefaultMedium {
		t.Errorf("expected medium default, got %q", rec.Medium)
	}
}

func TestNormalizeInvalidEmailFallsBack(t *testing.T) {
	raw := RawRecord{
		StudentName:    "Asha Verma",
		StudentEmail:   "not-an-email",
		StudentContact: "9876543210",
	}
	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if rec.Email != SentinelEmail {
		t.Errorf("expected sentinel email for invalid address, got %q", rec.Email)
	}
}

func TestNormalizeValidEmailKept(t *testing.T) {
	raw := RawRecord{
		StudentName:    "Asha Verma",
		StudentEmail:   "asha@example.com",
		StudentContact: "9876543210",
	}
	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if rec.Email != "asha@example.com" {
		t.Errorf("expected email preserved, got %q", rec.Email)
	}
}

func TestNormalizeRejectsShortName(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRecord
	}{
		{"missing name", RawRecord{StudentContact: "9876543210"}},
		{"one character", RawRecord{StudentName: "A", StudentContact: "9876543210"}},
		{"whitespace only", RawRecord{StudentName: "   ", StudentContact: "9876543210"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != "student_name" {
				t.Errorf("expected field student_name, got %s", verr.Field)
			}
		})
	}
}

func TestNormalizeWithMediumOverride(t *testing.T) {
	raw := RawRecord{StudentName: "Asha Verma", StudentContact: "9876543210"}

	rec, err := NormalizeWithMedium(raw, "campaign-summer")
	if err != nil {
		t.Fatalf("NormalizeWithMedium returned error: %v", err)
	}
	if rec.Medium != "campaign-summer" {
		t.Errorf("expected configured medium default, got %q", rec.Medium)
	}

	// A submitted medium beats the configured default.
	raw.Medium = "referral"
	rec, err = NormalizeWithMedium(raw, "campaign-summer")
	if err != nil {
		t.Fatalf("NormalizeWithMedium returned error: %v", err)
	}
	if rec.Medium != "referral" {
		t.Errorf("expected submitted medium kept, got %q", rec.Medium)
	}

	// Blank override falls back to the stock tag.
	raw.Medium = ""
	rec, err = NormalizeWithMedium(raw, "  ")
	if err != nil {
		t.Fatalf("NormalizeWithMedium returned error: %v", err)
	}
	if rec.Medium != DefaultMedium {
		t.Errorf("expected stock medium for blank override, got %q", rec.Medium)
	}
}

func TestDecodeRawMalformedFailsValidation(t *testing.T) {
	raw := DecodeRaw([]byte(`{"student_name":"Asha Verma","student_contact":true}`))

	_, err := Normalize(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError for malformed element, got %v", err)
	}
	if verr.Field != "record" {
		t.Errorf("expected field record, got %s", verr.Field)
	}
}

func TestDecodeRawValidElement(t *testing.T) {
	raw := DecodeRaw([]byte(`{"student_name":"Asha Verma","student_contact":"9876543210"}`))

	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if rec.Contact != "9876543210" {
		t.Errorf("expected decoded contact, got %q", rec.Contact)
	}
}

func TestFlexStringDecodesNumbers(t *testing.T) {
	var raw RawRecord
	body := []byte(`{"student_name":"Asha Verma","student_contact":919876543210}`)
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw.StudentContact != "919876543210" {
		t.Fatalf("expected numeric contact preserved as string, got %q", raw.StudentContact)
	}

	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if rec.Contact != "9876543210" {
		t.Errorf("expected last ten digits, got %q", rec.Contact)
	}
}

func TestFlexStringDecodesNull(t *testing.T) {
	var raw RawRecord
	body := []byte(`{"student_name":"Asha Verma","student_contact":null}`)
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw.StudentContact != "" {
		t.Fatalf("expected empty contact for null, got %q", raw.StudentContact)
	}
}
