package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository"
)

// SaveResult reports how many persons a save committed against how many the upload declared.
type SaveResult struct {
	InsertedCount int64 `json:"insertedCount"`
	ExpectedCount int   `json:"expectedCount"`
}

// Save re-reads the stored file, validates it again and commits its rows as Pending persons.
// The insert and the is_saved flip happen in one transaction under a row lock, so an upload
// is committed at most once.
func (s *Service) Save(ctx context.Context, uploadID int64) (SaveResult, error) {
	upload, err := s.store.Uploads().GetByID(ctx, uploadID)
	if err != nil {
		return SaveResult{}, err
	}
	if upload.IsSaved {
		return SaveResult{}, &domain.AlreadySavedError{UploadID: upload.ID}
	}

	table, err := s.readTable(ctx, upload.StoredFilePath)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to read stored upload: %w", err)
	}
	if err := s.validator.Validate(upload.MimeType, table.Header, table.Rows); err != nil {
		id := upload.ID
		s.logIngestionError(ctx, upload.OwnerCompanyID, upload.FileName, &id, nil, err)
		return SaveResult{}, err
	}

	persons := make([]domain.Person, len(table.Rows))
	for i, row := range table.Rows {
		persons[i] = personFromRow(row, upload.ID, upload.OwnerCompanyID)
	}

	result := SaveResult{ExpectedCount: upload.Quantity}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Uploads().GetByIDForUpdate(ctx, upload.ID)
		if err != nil {
			return err
		}
		if locked.IsSaved {
			return &domain.AlreadySavedError{UploadID: upload.ID}
		}
		// Saves of other uploads into the same company wait here, so the duplicate
		// check sees their committed rows.
		if s.policy != DuplicatePolicyIgnore {
			if err := tx.Persons().LockCompany(ctx, upload.OwnerCompanyID); err != nil {
				return err
			}
		}
		if err := s.checkDuplicates(ctx, tx.Persons(), upload.OwnerCompanyID, table.Rows); err != nil {
			return err
		}

		inserted, err := tx.Persons().CreateBatch(ctx, persons)
		if err != nil {
			return err
		}
		flipped, err := tx.Uploads().MarkSaved(ctx, upload.ID)
		if err != nil {
			return err
		}
		if !flipped {
			return &domain.AlreadySavedError{UploadID: upload.ID}
		}
		result.InsertedCount = inserted
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}

	if result.InsertedCount != int64(result.ExpectedCount) {
		s.logger.Warn("saved person count differs from upload quantity",
			zap.Int64("upload_id", upload.ID),
			zap.Int64("inserted", result.InsertedCount),
			zap.Int("expected", result.ExpectedCount),
		)
	}
	s.logger.Info("upload saved",
		zap.Int64("upload_id", upload.ID),
		zap.Int64("inserted", result.InsertedCount),
	)
	return result, nil
}
