package domain

import (
	"time"
)

// Upload tracks a single file submission through its save/enrich lifecycle.
type Upload struct {
	ID             int64      `json:"id"`
	FileName       string     `json:"file_name"`
	StoredFilePath string     `json:"stored_file_path"`
	MimeType       string     `json:"mime_type"`
	Quantity       int        `json:"quantity"`
	IsSaved        bool       `json:"is_saved"`
	OwnerCompanyID int64      `json:"owner_company_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// NewUpload creates an unsaved upload record for a stored file.
func NewUpload(fileName, storedPath, mimeType string, quantity int, ownerCompanyID int64) Upload {
	now := time.Now()
	return Upload{
		FileName:       fileName,
		StoredFilePath: storedPath,
		MimeType:       mimeType,
		Quantity:       quantity,
		OwnerCompanyID: ownerCompanyID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// UploadFilter narrows upload listings. Zero values are ignored.
type UploadFilter struct {
	ID             int64
	FileName       string
	OwnerCompanyID int64
	// BusinessID limits results to companies of one business.
	BusinessID     int64
	IsSaved        *bool
	CreatedAtRange TimeRange
	IncludeDeleted bool
}
