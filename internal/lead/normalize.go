package lead

import (
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError reports which raw field failed validation and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lead: %s: %s", e.Field, e.Message)
}

// Normalize validates raw and produces its canonical form using the stock
// medium tag. It is a pure function: no network, no storage, no mutation of
// raw.
func Normalize(raw RawRecord) (Record, error) {
	return NormalizeWithMedium(raw, DefaultMedium)
}

// NormalizeWithMedium is Normalize with a deployment-configured default for
// the medium field. An empty mediumDefault falls back to DefaultMedium.
func NormalizeWithMedium(raw RawRecord, mediumDefault string) (Record, error) {
	if strings.TrimSpace(mediumDefault) == "" {
		mediumDefault = DefaultMedium
	}

	if raw.decodeErr != nil {
		return Record{}, &ValidationError{
			Field:   "record",
			Message: fmt.Sprintf("malformed record: %v", raw.decodeErr),
		}
	}

	name := strings.TrimSpace(raw.StudentName)
	if len(name) < MinNameLength {
		return Record{}, &ValidationError{
			Field:   "student_name",
			Message: fmt.Sprintf("name must be at least %d characters", MinNameLength),
		}
	}

	contact, err := NormalizeContact(string(raw.StudentContact))
	if err != nil {
		return Record{}, err
	}

	email := strings.TrimSpace(raw.StudentEmail)
	if email == "" {
		email = SentinelEmail
	} else if _, err := mail.ParseAddress(email); err != nil {
		email = SentinelEmail
	}

	return Record{
		Name:             name,
		Email:            email,
		Contact:          contact,
		City:             defaultIfEmpty(raw.City, NotSpecified),
		InterestedCity:   defaultIfEmpty(raw.InterestedCity, NotSpecified),
		InterestedCourse: defaultIfEmpty(raw.InterestedCourse, DefaultCourse),
		Medium:           defaultIfEmpty(raw.Medium, mediumDefault),
	}, nil
}

// NormalizeContact strips every non-digit character and keeps the last ten
// digits, so country and trunk prefixes never change a lead's identity.
func NormalizeContact(value string) (string, error) {
	digits := sanitizeDigits(value)
	if len(digits) < ContactDigits {
		return "", &ValidationError{
			Field:   "student_contact",
			Message: fmt.Sprintf("contact must contain at least %d digits", ContactDigits),
		}
	}
	return digits[len(digits)-ContactDigits:], nil
}

func sanitizeDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func defaultIfEmpty(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
