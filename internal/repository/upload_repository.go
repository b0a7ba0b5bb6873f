package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/leadstream/internal/db"
	"github.com/rpattn/leadstream/internal/domain"
)

type uploadRepository struct {
	db         db.DBTX
	concurrent bool
}

const uploadColumns = `id, file_name, stored_file_path, mime_type, quantity, is_saved, owner_company_id, created_at, updated_at, deleted_at`

func scanUpload(row pgx.Row) (domain.Upload, error) {
	var u domain.Upload
	err := row.Scan(
		&u.ID,
		&u.FileName,
		&u.StoredFilePath,
		&u.MimeType,
		&u.Quantity,
		&u.IsSaved,
		&u.OwnerCompanyID,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.DeletedAt,
	)
	return u, err
}

func (r *uploadRepository) Create(ctx context.Context, upload domain.Upload) (domain.Upload, error) {
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO uploads (file_name, stored_file_path, mime_type, quantity, is_saved, owner_company_id)
		 VALUES ($1, $2, $3, $4, false, $5)
		 RETURNING `+uploadColumns,
		upload.FileName,
		upload.StoredFilePath,
		upload.MimeType,
		upload.Quantity,
		upload.OwnerCompanyID,
	)
	created, err := scanUpload(row)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to create upload: %w", err)
	}
	return created, nil
}

func (r *uploadRepository) GetByID(ctx context.Context, id int64) (domain.Upload, error) {
	return r.get(ctx, id, "")
}

func (r *uploadRepository) GetByIDForUpdate(ctx context.Context, id int64) (domain.Upload, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *uploadRepository) get(ctx context.Context, id int64, lock string) (domain.Upload, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+uploadColumns+` FROM uploads WHERE id = $1 AND `+notDeleted()+lock,
		id,
	)
	upload, err := scanUpload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Upload{}, &domain.NotFoundError{Resource: "upload", ID: id}
	}
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

func uploadWhere(filter domain.UploadFilter) *whereBuilder {
	w := &whereBuilder{}
	if !filter.IncludeDeleted {
		w.add(notDeleted())
	}
	if filter.ID != 0 {
		w.add("id = " + w.arg(filter.ID))
	}
	if filter.FileName != "" {
		w.add(`file_name ILIKE ` + w.arg("%"+escapeLike(filter.FileName)+"%"))
	}
	if filter.OwnerCompanyID != 0 {
		w.add("owner_company_id = " + w.arg(filter.OwnerCompanyID))
	}
	if filter.BusinessID != 0 {
		w.add("owner_company_id IN (SELECT id FROM companies WHERE business_id = " + w.arg(filter.BusinessID) + ")")
	}
	if filter.IsSaved != nil {
		w.add("is_saved = " + w.arg(*filter.IsSaved))
	}
	if filter.CreatedAtRange.From != nil {
		w.add("created_at >= " + w.arg(*filter.CreatedAtRange.From))
	}
	if filter.CreatedAtRange.To != nil {
		w.add("created_at <= " + w.arg(*filter.CreatedAtRange.To))
	}
	return w
}

func (r *uploadRepository) List(ctx context.Context, filter domain.UploadFilter, page domain.Pagination) ([]domain.Upload, int, error) {
	w := uploadWhere(filter)
	where := w.String()
	countArgs := append([]any(nil), w.args...)
	limit := w.arg(page.Limit())
	offset := w.arg(page.Offset())

	var (
		uploads []domain.Upload
		total   int
	)

	listFn := func(ctx context.Context) error {
		rows, err := r.db.Query(
			ctx,
			`SELECT `+uploadColumns+` FROM uploads`+where+` ORDER BY `+defaultOrder+` LIMIT `+limit+` OFFSET `+offset,
			w.args...,
		)
		if err != nil {
			return fmt.Errorf("failed to list uploads: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			upload, err := scanUpload(rows)
			if err != nil {
				return fmt.Errorf("failed to scan upload: %w", err)
			}
			uploads = append(uploads, upload)
		}
		return rows.Err()
	}
	countFn := func(ctx context.Context) error {
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM uploads`+where, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count uploads: %w", err)
		}
		return nil
	}
	if err := runQueries(ctx, r.concurrent, listFn, countFn); err != nil {
		return nil, 0, err
	}
	return uploads, total, nil
}

func (r *uploadRepository) MarkSaved(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE uploads SET is_saved = true, updated_at = now()
		 WHERE id = $1 AND is_saved = false AND `+notDeleted(),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark upload saved: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *uploadRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE uploads SET deleted_at = now(), updated_at = now() WHERE id = $1 AND `+notDeleted(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Resource: "upload", ID: id}
	}
	return nil
}
