package ingestion

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/domain"
)

// caller loads the acting user. A missing identity is ErrUnauthenticated and an unknown
// user is forbidden.
func (s *Service) caller(ctx context.Context, userID int64) (domain.User, error) {
	if userID <= 0 {
		return domain.User{}, domain.ErrUnauthenticated
	}
	user, err := s.store.Ownership().GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, &domain.ForbiddenError{UserID: userID}
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// AuthorizeCompany checks that the user's business owns the company.
func (s *Service) AuthorizeCompany(ctx context.Context, userID, companyID int64) (domain.Company, error) {
	user, err := s.caller(ctx, userID)
	if err != nil {
		return domain.Company{}, err
	}
	forbidden := &domain.ForbiddenError{UserID: userID, CompanyID: companyID}
	company, err := s.store.Ownership().GetCompany(ctx, companyID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Company{}, forbidden
	}
	if err != nil {
		return domain.Company{}, err
	}
	if !user.OwnsCompany(company) {
		s.logger.Warn("company access denied", zap.Int64("user_id", userID), zap.Int64("company_id", companyID))
		return domain.Company{}, forbidden
	}
	return company, nil
}

// AuthorizeUpload returns the upload when the user's business owns its company.
// Uploads of other businesses are forbidden, not hidden.
func (s *Service) AuthorizeUpload(ctx context.Context, userID, uploadID int64) (domain.Upload, error) {
	user, err := s.caller(ctx, userID)
	if err != nil {
		return domain.Upload{}, err
	}
	upload, err := s.store.Uploads().GetByID(ctx, uploadID)
	if err != nil {
		return domain.Upload{}, err
	}
	forbidden := &domain.ForbiddenError{UserID: userID, UploadID: upload.ID}
	company, err := s.store.Ownership().GetCompany(ctx, upload.OwnerCompanyID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Upload{}, forbidden
	}
	if err != nil {
		return domain.Upload{}, err
	}
	if !user.OwnsCompany(company) {
		s.logger.Warn("upload access denied",
			zap.Int64("user_id", userID),
			zap.Int64("upload_id", upload.ID),
			zap.Int64("company_id", company.ID),
		)
		return domain.Upload{}, forbidden
	}
	return upload, nil
}

// ScopeUploadFilter limits filter to the user's business. An explicit company must be
// owned by that business.
func (s *Service) ScopeUploadFilter(ctx context.Context, userID int64, filter domain.UploadFilter) (domain.UploadFilter, error) {
	user, err := s.caller(ctx, userID)
	if err != nil {
		return filter, err
	}
	if filter.OwnerCompanyID != 0 {
		if _, err := s.AuthorizeCompany(ctx, userID, filter.OwnerCompanyID); err != nil {
			return filter, err
		}
	}
	if user.BusinessID == 0 {
		return filter, &domain.ForbiddenError{UserID: userID}
	}
	filter.BusinessID = user.BusinessID
	return filter, nil
}
