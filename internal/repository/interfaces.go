package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/leadstream/internal/domain"
)

// UploadRepository defines the interface for upload record operations.
// Reads exclude soft-deleted rows unless the filter asks for them.
type UploadRepository interface {
	Create(ctx context.Context, upload domain.Upload) (domain.Upload, error)
	GetByID(ctx context.Context, id int64) (domain.Upload, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (domain.Upload, error)
	List(ctx context.Context, filter domain.UploadFilter, page domain.Pagination) ([]domain.Upload, int, error)
	// MarkSaved flips is_saved to true and reports whether this call performed the flip.
	MarkSaved(ctx context.Context, id int64) (bool, error)
	SoftDelete(ctx context.Context, id int64) error
}

// PersonRepository defines the interface for person record operations.
type PersonRepository interface {
	CreateBatch(ctx context.Context, persons []domain.Person) (int64, error)
	ListByUpload(ctx context.Context, uploadID int64) ([]domain.Person, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Person, error)
	List(ctx context.Context, filter domain.PersonFilter, page domain.Pagination) ([]domain.Person, int, error)
	FindDuplicates(ctx context.Context, ownerCompanyID int64, keys []domain.DuplicateKey) ([]domain.DuplicateKey, error)
	// LockCompany serializes person inserts of one company until the surrounding
	// transaction ends.
	LockCompany(ctx context.Context, ownerCompanyID int64) error
	// ClaimPending moves every Pending person of the upload to InProgress under batchID
	// and returns the rows it moved. Rows claimed by a concurrent call are not returned.
	ClaimPending(ctx context.Context, uploadID int64, batchID uuid.UUID) ([]domain.Person, error)
	// TransitionBatch moves persons still InProgress in batchID to status. A nil ids slice
	// selects the whole batch.
	TransitionBatch(ctx context.Context, batchID uuid.UUID, ids []int64, status domain.EnrichmentStatus) (int64, error)
	CountByStatus(ctx context.Context, uploadIDs []int64) (map[int64]domain.StatusCounts, error)
}

// EnrichmentRepository stores enrichment audits and results.
type EnrichmentRepository interface {
	CreateAudit(ctx context.Context, audit domain.EnrichmentAudit) (domain.EnrichmentAudit, error)
	GetAudit(ctx context.Context, batchID uuid.UUID) (domain.EnrichmentAudit, error)
	// SettleAudit records the outcome once. It reports false when the audit was already settled.
	SettleAudit(ctx context.Context, batchID uuid.UUID, outcome domain.AuditOutcome, response json.RawMessage) (bool, error)
	ListUnsettled(ctx context.Context, createdBefore time.Time, limit int) ([]domain.EnrichmentAudit, error)
	InsertResults(ctx context.Context, results []domain.EnrichmentResult) (int64, error)
	ResultsByPersonIDs(ctx context.Context, personIDs []int64) (map[int64]domain.EnrichmentResult, error)
}

// OwnershipRepository resolves users, businesses and companies. It is read-only to the pipeline.
type OwnershipRepository interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetCompany(ctx context.Context, id int64) (domain.Company, error)
	// DefaultCompanyForUser returns the first company of the user's business.
	DefaultCompanyForUser(ctx context.Context, userID int64) (domain.Company, error)
}

// IngestionLogRepository stores ingestion errors for observability.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, ownerCompanyID int64, fileName string, limit int, offset int) ([]domain.IngestionLogEntry, error)
}

// Store groups the repositories and runs units of work. Repositories obtained from the
// Store passed to fn share one transaction.
type Store interface {
	Uploads() UploadRepository
	Persons() PersonRepository
	Enrichments() EnrichmentRepository
	Ownership() OwnershipRepository
	IngestionLogs() IngestionLogRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}
