package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnrichmentStatus is the enrichment lifecycle of a person record. Values are stored verbatim.
type EnrichmentStatus string

const (
	EnrichmentStatusPending    EnrichmentStatus = "Pending"
	EnrichmentStatusInProgress EnrichmentStatus = "InProgress"
	EnrichmentStatusCompleted  EnrichmentStatus = "Completed"
	EnrichmentStatusFailed     EnrichmentStatus = "Failed"
)

var enrichmentStatuses = []EnrichmentStatus{
	EnrichmentStatusPending,
	EnrichmentStatusInProgress,
	EnrichmentStatusCompleted,
	EnrichmentStatusFailed,
}

// ParseEnrichmentStatus matches a status name case-insensitively.
func ParseEnrichmentStatus(value string) (EnrichmentStatus, bool) {
	value = strings.TrimSpace(value)
	for _, status := range enrichmentStatuses {
		if strings.EqualFold(value, string(status)) {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions are allowed.
func (s EnrichmentStatus) Terminal() bool {
	return s == EnrichmentStatusCompleted || s == EnrichmentStatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s EnrichmentStatus) CanTransitionTo(next EnrichmentStatus) bool {
	switch s {
	case EnrichmentStatusPending:
		return next == EnrichmentStatusInProgress
	case EnrichmentStatusInProgress:
		return next == EnrichmentStatusCompleted || next == EnrichmentStatusFailed
	default:
		return false
	}
}

// Person is an executive or sales target committed from an upload.
type Person struct {
	ID                 int64            `json:"id"`
	FirstName          string           `json:"first_name"`
	LastName           string           `json:"last_name"`
	FullName           string           `json:"full_name"`
	Email              string           `json:"email"`
	PhoneNumber        string           `json:"phone_number"`
	LinkedinProfileURL string           `json:"linkedin_profile_url"`
	Position           string           `json:"position"`
	Department         *string          `json:"department,omitempty"`
	EnrichmentStatus   EnrichmentStatus `json:"enrichment_status"`
	EnrichmentBatchID  *uuid.UUID       `json:"enrichment_batch_id,omitempty"`
	IntentScore        *float64         `json:"intent_score,omitempty"`
	UploadID           *int64           `json:"upload_id,omitempty"`
	OwnerCompanyID     int64            `json:"owner_company_id"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	DeletedAt          *time.Time       `json:"deleted_at,omitempty"`
}

// FullNameOf derives the stored full name.
func FullNameOf(firstName, lastName string) string {
	return firstName + " " + lastName
}

// NewPerson builds a pending person tied to an upload and its owning company.
func NewPerson(firstName, lastName, email, phone, linkedin, position string, uploadID, ownerCompanyID int64) Person {
	now := time.Now()
	upload := uploadID
	return Person{
		FirstName:          firstName,
		LastName:           lastName,
		FullName:           FullNameOf(firstName, lastName),
		Email:              email,
		PhoneNumber:        phone,
		LinkedinProfileURL: linkedin,
		Position:           position,
		EnrichmentStatus:   EnrichmentStatusPending,
		UploadID:           &upload,
		OwnerCompanyID:     ownerCompanyID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// PersonFilter narrows person listings. Zero values are ignored.
type PersonFilter struct {
	UploadID         int64
	OwnerCompanyID   int64
	Name             string
	Department       string
	Position         string
	Statuses         []EnrichmentStatus
	CreatedAtRange   TimeRange
	IntentScoreRange FloatRange
}

// StatusCounts summarizes enrichment progress for one upload.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Add increments the counter for status by n.
func (c *StatusCounts) Add(status EnrichmentStatus, n int) {
	switch status {
	case EnrichmentStatusPending:
		c.Pending += n
	case EnrichmentStatusInProgress:
		c.InProgress += n
	case EnrichmentStatusCompleted:
		c.Completed += n
	case EnrichmentStatusFailed:
		c.Failed += n
	}
}

// Total returns the number of persons counted.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Completed + c.Failed
}

// DuplicateKey identifies a person for duplicate detection.
type DuplicateKey struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}
