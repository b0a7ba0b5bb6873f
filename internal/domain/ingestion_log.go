package domain

import (
	"time"
)

// IngestionLogEntry captures a rejected upload or a row level issue found while ingesting it.
type IngestionLogEntry struct {
	ID             int64     `json:"id"`
	OwnerCompanyID int64     `json:"owner_company_id"`
	UploadID       *int64    `json:"upload_id,omitempty"`
	FileName       string    `json:"file_name"`
	RowNumber      *int      `json:"row_number,omitempty"`
	ErrorMessage   string    `json:"error_message"`
	CreatedAt      time.Time `json:"created_at"`
}
