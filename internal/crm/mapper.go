package crm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edunext/lead-relay/internal/lead"
)

// Canonical field names accepted in a field map.
const (
	FieldName             = "name"
	FieldEmail            = "email"
	FieldContact          = "contact"
	FieldCity             = "city"
	FieldInterestedCity   = "interested_city"
	FieldInterestedCourse = "interested_course"
	FieldMedium           = "medium"
	FieldSource           = "source"
)

// FieldMap translates canonical record fields to the destination's payload
// field names. Destinations disagree on naming (email vs student_email,
// mobile vs phone), so the mapping lives in configuration, not code.
type FieldMap map[string]string

// DefaultFieldMap passes canonical names through, with the contact exposed
// as "mobile".
func DefaultFieldMap() FieldMap {
	return FieldMap{
		FieldName:             "name",
		FieldEmail:            "email",
		FieldContact:          "mobile",
		FieldCity:             "city",
		FieldInterestedCity:   "interested_city",
		FieldInterestedCourse: "course",
		FieldMedium:           "medium",
		FieldSource:           "source",
	}
}

// ParseFieldMap reads a JSON object of canonical→destination field names and
// fills any omitted entries from the defaults.
func ParseFieldMap(rawJSON string) (FieldMap, error) {
	fm := DefaultFieldMap()
	rawJSON = strings.TrimSpace(rawJSON)
	if rawJSON == "" {
		return fm, nil
	}
	var overrides map[string]string
	if err := json.Unmarshal([]byte(rawJSON), &overrides); err != nil {
		return nil, fmt.Errorf("crm: invalid field map JSON: %w", err)
	}
	for canonical, destName := range overrides {
		if _, known := fm[canonical]; !known {
			return nil, fmt.Errorf("crm: unknown canonical field %q in field map", canonical)
		}
		if strings.TrimSpace(destName) == "" {
			return nil, fmt.Errorf("crm: empty destination name for field %q", canonical)
		}
		fm[canonical] = destName
	}
	return fm, nil
}

// Payload builds the destination JSON body for one canonical record.
// sourceTag identifies the partner/zone on the receiving side.
func (fm FieldMap) Payload(rec lead.Record, sourceTag string) map[string]string {
	return map[string]string{
		fm[FieldName]:             rec.Name,
		fm[FieldEmail]:            rec.Email,
		fm[FieldContact]:          rec.Contact,
		fm[FieldCity]:             rec.City,
		fm[FieldInterestedCity]:   rec.InterestedCity,
		fm[FieldInterestedCourse]: rec.InterestedCourse,
		fm[FieldMedium]:           rec.Medium,
		fm[FieldSource]:           sourceTag,
	}
}
