package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/leadstream/internal/db"
	"github.com/rpattn/leadstream/internal/domain"
)

type enrichmentRepository struct {
	db db.DBTX
}

const auditColumns = `id, batch_id, kind, upload_id, request_payload, response_payload, outcome, created_at, settled_at`

func scanAudit(row pgx.Row) (domain.EnrichmentAudit, error) {
	var (
		a        domain.EnrichmentAudit
		kind     string
		request  []byte
		response []byte
		outcome  *string
	)
	if err := row.Scan(&a.ID, &a.BatchID, &kind, &a.UploadID, &request, &response, &outcome, &a.CreatedAt, &a.SettledAt); err != nil {
		return domain.EnrichmentAudit{}, err
	}
	a.Kind = domain.EnrichmentKind(kind)
	a.RequestPayload = json.RawMessage(request)
	if response != nil {
		a.ResponsePayload = json.RawMessage(response)
	}
	if outcome != nil {
		o := domain.AuditOutcome(*outcome)
		a.Outcome = &o
	}
	return a, nil
}

func (r *enrichmentRepository) CreateAudit(ctx context.Context, audit domain.EnrichmentAudit) (domain.EnrichmentAudit, error) {
	if audit.Kind == "" {
		audit.Kind = domain.EnrichmentKindPerson
	}
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO enrichment_audits (batch_id, kind, upload_id, request_payload)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+auditColumns,
		audit.BatchID,
		string(audit.Kind),
		audit.UploadID,
		[]byte(audit.RequestPayload),
	)
	created, err := scanAudit(row)
	if err != nil {
		return domain.EnrichmentAudit{}, fmt.Errorf("failed to create enrichment audit: %w", err)
	}
	return created, nil
}

func (r *enrichmentRepository) GetAudit(ctx context.Context, batchID uuid.UUID) (domain.EnrichmentAudit, error) {
	row := r.db.QueryRow(ctx, `SELECT `+auditColumns+` FROM enrichment_audits WHERE batch_id = $1`, batchID)
	audit, err := scanAudit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EnrichmentAudit{}, &domain.NotFoundError{Resource: "enrichment audit"}
	}
	if err != nil {
		return domain.EnrichmentAudit{}, fmt.Errorf("failed to get enrichment audit: %w", err)
	}
	return audit, nil
}

func (r *enrichmentRepository) SettleAudit(ctx context.Context, batchID uuid.UUID, outcome domain.AuditOutcome, response json.RawMessage) (bool, error) {
	var payload any
	if len(response) > 0 {
		payload = []byte(response)
	}
	tag, err := r.db.Exec(
		ctx,
		`UPDATE enrichment_audits
		 SET response_payload = $2, outcome = $3, settled_at = now()
		 WHERE batch_id = $1 AND settled_at IS NULL`,
		batchID,
		payload,
		string(outcome),
	)
	if err != nil {
		return false, fmt.Errorf("failed to settle enrichment audit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *enrichmentRepository) ListUnsettled(ctx context.Context, createdBefore time.Time, limit int) ([]domain.EnrichmentAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		ctx,
		`SELECT `+auditColumns+`
		 FROM enrichment_audits
		 WHERE settled_at IS NULL AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		createdBefore,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled audits: %w", err)
	}
	defer rows.Close()

	var audits []domain.EnrichmentAudit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrichment audit: %w", err)
		}
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}

// InsertResults writes results in one round trip. A person that already has a result keeps it.
func (r *enrichmentRepository) InsertResults(ctx context.Context, results []domain.EnrichmentResult) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(
			`INSERT INTO enrichment_results
			   (person_id, full_name, email, position, linkedin_url, company_name, company_address, gender)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (person_id) DO NOTHING`,
			res.PersonID,
			res.FullName,
			res.Email,
			res.Position,
			res.LinkedinURL,
			res.CompanyName,
			res.CompanyAddress,
			res.Gender,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	var inserted int64
	for range results {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return inserted, fmt.Errorf("failed to insert enrichment result: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return inserted, fmt.Errorf("failed to close result batch: %w", err)
	}
	return inserted, nil
}

func (r *enrichmentRepository) ResultsByPersonIDs(ctx context.Context, personIDs []int64) (map[int64]domain.EnrichmentResult, error) {
	out := make(map[int64]domain.EnrichmentResult, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(
		ctx,
		`SELECT id, person_id, full_name, email, position, linkedin_url, company_name, company_address, gender, created_at
		 FROM enrichment_results
		 WHERE person_id = ANY($1::bigint[])`,
		personIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrichment results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res domain.EnrichmentResult
		if err := rows.Scan(
			&res.ID,
			&res.PersonID,
			&res.FullName,
			&res.Email,
			&res.Position,
			&res.LinkedinURL,
			&res.CompanyName,
			&res.CompanyAddress,
			&res.Gender,
			&res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan enrichment result: %w", err)
		}
		out[res.PersonID] = res
	}
	return out, rows.Err()
}
