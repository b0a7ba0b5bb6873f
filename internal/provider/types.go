package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Params are the enrichment inputs for one person.
type Params struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Profile string `json:"profile,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Metadata is echoed back by the provider and carries the correlation id.
type Metadata struct {
	PersonID int64  `json:"person_id"`
	Email    string `json:"email,omitempty"`
}

// UnmarshalJSON accepts person_id as a number or a numeric string.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		PersonID json.RawMessage `json:"person_id"`
		Email    string          `json:"email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Email = raw.Email
	m.PersonID = 0
	if len(raw.PersonID) == 0 || string(raw.PersonID) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.PersonID, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw.PersonID, &s); err != nil {
			return fmt.Errorf("invalid person_id %s", raw.PersonID)
		}
		n = json.Number(s)
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid person_id %q: %w", n, err)
	}
	m.PersonID = id
	return nil
}

// RequestItem is one entry of a bulk request.
type RequestItem struct {
	Params   Params   `json:"params"`
	Metadata Metadata `json:"metadata"`
}

// ResponseItem is one entry of a bulk response. Order is not guaranteed to match the request.
type ResponseItem struct {
	Status   int            `json:"status"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata Metadata       `json:"metadata"`
	Error    *ItemError     `json:"error,omitempty"`
}

// ItemError describes why a single item was not enriched.
type ItemError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// String returns the named field of Data when it is a non-empty string.
func (i ResponseItem) String(field string) string {
	if i.Data == nil {
		return ""
	}
	if v, ok := i.Data[field].(string); ok {
		return v
	}
	return ""
}

type bulkRequest struct {
	Requests []RequestItem `json:"requests"`
}
