package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EnrichmentKind classifies audit rows by the provider endpoint that was called.
type EnrichmentKind string

const (
	EnrichmentKindPerson EnrichmentKind = "Person"
)

// AuditOutcome records how an enrichment batch settled.
type AuditOutcome string

const (
	AuditOutcomeSucceeded   AuditOutcome = "succeeded"
	AuditOutcomeFailed      AuditOutcome = "failed"
	AuditOutcomeInterrupted AuditOutcome = "interrupted"
)

// EnrichmentAudit is the durable trail of one provider call. It is written before
// dispatch and settled exactly once.
type EnrichmentAudit struct {
	ID              int64           `json:"id"`
	BatchID         uuid.UUID       `json:"batch_id"`
	Kind            EnrichmentKind  `json:"kind"`
	UploadID        int64           `json:"upload_id"`
	RequestPayload  json.RawMessage `json:"request_payload"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	Outcome         *AuditOutcome   `json:"outcome,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	SettledAt       *time.Time      `json:"settled_at,omitempty"`
}

// Settled reports whether the audit already recorded an outcome.
func (a EnrichmentAudit) Settled() bool {
	return a.SettledAt != nil
}

// EnrichmentResult holds provider-derived attributes for a successfully enriched person.
type EnrichmentResult struct {
	ID             int64     `json:"id"`
	PersonID       int64     `json:"person_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Position       string    `json:"position"`
	LinkedinURL    string    `json:"linkedin_url"`
	CompanyName    string    `json:"company_name"`
	CompanyAddress string    `json:"company_address"`
	Gender         string    `json:"gender"`
	CreatedAt      time.Time `json:"created_at"`
}
