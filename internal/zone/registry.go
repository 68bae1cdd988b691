package zone

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Destination is a named downstream CRM forwarding target.
type Destination struct {
	Key      string `json:"-"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// Registry maps zone keys to destinations. Built once at startup, read-only
// afterwards, so lookups need no locking.
type Registry struct {
	zones map[string]Destination
}

// Parse builds a registry from a JSON object of the form
// {"central":{"name":"Central Region","endpoint":"https://crm.example.com/leads"}}.
func Parse(rawJSON string) (*Registry, error) {
	rawJSON = strings.TrimSpace(rawJSON)
	if rawJSON == "" {
		return nil, fmt.Errorf("zone: zone map is empty")
	}

	var decoded map[string]Destination
	if err := json.Unmarshal([]byte(rawJSON), &decoded); err != nil {
		return nil, fmt.Errorf("zone: invalid zone map JSON: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("zone: zone map has no entries")
	}

	zones := make(map[string]Destination, len(decoded))
	for key, dest := range decoded {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, fmt.Errorf("zone: zone map contains an empty key")
		}
		if strings.TrimSpace(dest.Name) == "" {
			dest.Name = key
		}
		if _, err := url.ParseRequestURI(dest.Endpoint); err != nil {
			return nil, fmt.Errorf("zone: %s has an invalid endpoint: %w", key, err)
		}
		dest.Key = key
		zones[key] = dest
	}
	return &Registry{zones: zones}, nil
}

// Lookup returns the destination configured for key.
func (r *Registry) Lookup(key string) (Destination, bool) {
	dest, ok := r.zones[strings.ToLower(strings.TrimSpace(key))]
	return dest, ok
}

// Len reports the number of configured zones.
func (r *Registry) Len() int {
	return len(r.zones)
}

// Keys returns the configured zone keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.zones))
	for key := range r.zones {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
