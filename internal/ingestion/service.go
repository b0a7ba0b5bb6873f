// Package ingestion accepts person upload files, validates them and commits their rows.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository"
	"github.com/rpattn/leadstream/internal/storage"
	"github.com/rpattn/leadstream/internal/tabular"
)

// DefaultMaxUploadSize bounds a single upload.
const DefaultMaxUploadSize int64 = 10 << 20

// Service manages upload records and commits their rows as persons.
type Service struct {
	store     repository.Store
	files     storage.Store
	validator *Validator
	policy    DuplicatePolicy
	maxSize   int64
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDuplicatePolicy sets how rows matching stored persons are handled.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithMaxUploadSize caps the stored file size in bytes. Zero or less keeps the default.
func WithMaxUploadSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithAcceptedMimeTypes replaces the accepted MIME types.
func WithAcceptedMimeTypes(types []string) Option {
	return func(s *Service) {
		s.validator = NewValidator(types)
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new ingestion service.
func NewService(store repository.Store, files storage.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		files:     files,
		validator: NewValidator(nil),
		policy:    DuplicatePolicyReject,
		maxSize:   DefaultMaxUploadSize,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUploadRequest describes an uploaded file. UserID is required. OwnerCompanyID may be
// zero, in which case the user's default company is used.
type CreateUploadRequest struct {
	FileName       string
	MimeType       string
	Size           int64
	Data           io.Reader
	OwnerCompanyID int64
	UserID         int64
}

// UploadPage is one page of uploads.
type UploadPage struct {
	Data       []domain.Upload `json:"data"`
	Pagination domain.PageInfo `json:"pagination"`
}

// PersonPage is one page of persons.
type PersonPage struct {
	Data       []domain.Person `json:"data"`
	Pagination domain.PageInfo `json:"pagination"`
}

// CreateUpload stores the file, validates its contents and records an unsaved upload.
// The stored copy is removed when validation fails.
func (s *Service) CreateUpload(ctx context.Context, req CreateUploadRequest) (domain.Upload, error) {
	if req.Data == nil {
		return domain.Upload{}, &domain.MissingFileError{}
	}
	if req.Size > s.maxSize {
		return domain.Upload{}, &domain.TooLargeError{Limit: s.maxSize}
	}

	ownerCompanyID, err := s.resolveOwner(ctx, req)
	if err != nil {
		return domain.Upload{}, err
	}

	if err := s.validator.ValidateMediaType(req.MimeType); err != nil {
		s.logIngestionError(ctx, ownerCompanyID, req.FileName, nil, nil, err)
		return domain.Upload{}, err
	}

	limited := &limitedReader{r: req.Data, remaining: s.maxSize}
	stored, err := s.files.Put(ctx, storage.NewKey(req.FileName, s.now()), limited, req.Size, req.MimeType)
	if limited.exceeded {
		if stored != "" {
			s.removeStored(ctx, stored)
		}
		return domain.Upload{}, &domain.TooLargeError{Limit: s.maxSize}
	}
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to store upload: %w", err)
	}

	upload, err := s.recordUpload(ctx, req, stored, ownerCompanyID)
	if err != nil {
		s.removeStored(ctx, stored)
		var rowErr *domain.RowError
		var row *int
		if errors.As(err, &rowErr) {
			row = &rowErr.Row
		}
		if errors.Is(err, domain.ErrValidation) {
			s.logIngestionError(ctx, ownerCompanyID, req.FileName, nil, row, err)
		}
		return domain.Upload{}, err
	}

	s.logger.Info("upload created",
		zap.Int64("upload_id", upload.ID),
		zap.String("file_name", upload.FileName),
		zap.Int("quantity", upload.Quantity),
		zap.Int64("owner_company_id", upload.OwnerCompanyID),
	)
	return upload, nil
}

func (s *Service) recordUpload(ctx context.Context, req CreateUploadRequest, stored string, ownerCompanyID int64) (domain.Upload, error) {
	table, err := s.readTable(ctx, stored)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := s.validator.Validate(req.MimeType, table.Header, table.Rows); err != nil {
		return domain.Upload{}, err
	}
	if err := s.checkDuplicates(ctx, s.store.Persons(), ownerCompanyID, table.Rows); err != nil {
		return domain.Upload{}, err
	}

	upload := domain.NewUpload(req.FileName, stored, req.MimeType, len(table.Rows), ownerCompanyID)
	created, err := s.store.Uploads().Create(ctx, upload)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to create upload: %w", err)
	}
	return created, nil
}

// resolveOwner picks the upload's company. Uploads always need an identity, and an
// explicit company must belong to the caller's business.
func (s *Service) resolveOwner(ctx context.Context, req CreateUploadRequest) (int64, error) {
	if req.UserID <= 0 {
		return 0, domain.ErrUnauthenticated
	}
	if req.OwnerCompanyID != 0 {
		company, err := s.AuthorizeCompany(ctx, req.UserID, req.OwnerCompanyID)
		if err != nil {
			return 0, err
		}
		return company.ID, nil
	}

	company, err := s.store.Ownership().DefaultCompanyForUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, &domain.ForbiddenError{UserID: req.UserID}
		}
		return 0, fmt.Errorf("failed to resolve owner company: %w", err)
	}
	return company.ID, nil
}

// GetUpload returns a non-deleted upload.
func (s *Service) GetUpload(ctx context.Context, id int64) (domain.Upload, error) {
	return s.store.Uploads().GetByID(ctx, id)
}

// ListUploads returns one page of uploads, newest first.
func (s *Service) ListUploads(ctx context.Context, filter domain.UploadFilter, page domain.Pagination) (UploadPage, error) {
	page = page.Normalize()
	uploads, total, err := s.store.Uploads().List(ctx, filter, page)
	if err != nil {
		return UploadPage{}, err
	}
	if uploads == nil {
		uploads = []domain.Upload{}
	}
	return UploadPage{Data: uploads, Pagination: domain.NewPageInfo(page, total)}, nil
}

// DeleteUpload soft-deletes an upload. Its persons and stored file are kept.
func (s *Service) DeleteUpload(ctx context.Context, id int64) error {
	if err := s.store.Uploads().SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("upload deleted", zap.Int64("upload_id", id))
	return nil
}

// ListPersons returns one page of persons. Callers poll it for enrichment progress.
func (s *Service) ListPersons(ctx context.Context, filter domain.PersonFilter, page domain.Pagination) (PersonPage, error) {
	page = page.Normalize()
	persons, total, err := s.store.Persons().List(ctx, filter, page)
	if err != nil {
		return PersonPage{}, err
	}
	if persons == nil {
		persons = []domain.Person{}
	}
	return PersonPage{Data: persons, Pagination: domain.NewPageInfo(page, total)}, nil
}

// ListIngestionLogs returns recorded ingestion failures for a company, newest first.
func (s *Service) ListIngestionLogs(ctx context.Context, ownerCompanyID int64, fileName string, page domain.Pagination) ([]domain.IngestionLogEntry, error) {
	entries, err := s.store.IngestionLogs().List(ctx, ownerCompanyID, fileName, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.IngestionLogEntry{}
	}
	return entries, nil
}

// readTable parses the stored copy of an upload.
func (s *Service) readTable(ctx context.Context, stored string) (tabular.Table, error) {
	src := tabular.Source{
		Name: stored,
		Open: func() (io.ReadCloser, error) { return s.files.Open(ctx, stored) },
	}
	return tabular.ReadAll(src, tabular.DefaultOptions())
}

func (s *Service) removeStored(ctx context.Context, stored string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), stored); err != nil {
		s.logger.Warn("failed to remove stored upload", zap.String("path", stored), zap.Error(err))
	}
}

func (s *Service) logIngestionError(ctx context.Context, ownerCompanyID int64, fileName string, uploadID *int64, rowNumber *int, err error) {
	if err == nil || ownerCompanyID == 0 {
		return
	}
	entry := domain.IngestionLogEntry{
		OwnerCompanyID: ownerCompanyID,
		UploadID:       uploadID,
		FileName:       fileName,
		RowNumber:      rowNumber,
		ErrorMessage:   err.Error(),
	}
	if recErr := s.store.IngestionLogs().Record(context.WithoutCancel(ctx), entry); recErr != nil {
		s.logger.Warn("failed to record ingestion error", zap.Error(recErr))
	}
}

// limitedReader fails once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, domain.ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		l.exceeded = true
		return 0, domain.ErrTooLarge
	}
	l.remaining -= int64(n)
	return n, err
}
