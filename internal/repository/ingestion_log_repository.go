package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/leadstream/internal/db"
	"github.com/rpattn/leadstream/internal/domain"
)

type ingestionLogRepository struct {
	db db.DBTX
}

func (r *ingestionLogRepository) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	if r.db == nil {
		return fmt.Errorf("ingestion log repository not initialized")
	}

	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO ingestion_logs (owner_company_id, upload_id, file_name, row_number, error_message)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.OwnerCompanyID,
		entry.UploadID,
		entry.FileName,
		rowNumber,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion log: %w", err)
	}

	return nil
}

func (r *ingestionLogRepository) List(ctx context.Context, ownerCompanyID int64, fileName string, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("ingestion log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	w := &whereBuilder{}
	w.add("owner_company_id = " + w.arg(ownerCompanyID))
	if fileName != "" {
		w.add("file_name = " + w.arg(fileName))
	}
	limitArg := w.arg(limit)
	offsetArg := w.arg(offset)

	rows, err := r.db.Query(
		ctx,
		`SELECT id, owner_company_id, upload_id, file_name, row_number, error_message, created_at
		 FROM ingestion_logs`+w.String()+`
		 ORDER BY `+defaultOrder+`
		 LIMIT `+limitArg+` OFFSET `+offsetArg,
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.IngestionLogEntry{}
	for rows.Next() {
		var (
			entry     domain.IngestionLogEntry
			rowNumber pgtype.Int4
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.OwnerCompanyID,
			&entry.UploadID,
			&entry.FileName,
			&rowNumber,
			&entry.ErrorMessage,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan ingestion log: %w", scanErr)
		}

		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate ingestion logs: %w", rowsErr)
	}

	return logs, nil
}
