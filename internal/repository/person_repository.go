package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/leadstream/internal/db"
	"github.com/rpattn/leadstream/internal/domain"
)

type personRepository struct {
	db         db.DBTX
	concurrent bool
}

const personColumns = `id, first_name, last_name, full_name, email, phone_number, linkedin_profile_url, position,
	department, enrichment_status, enrichment_batch_id, intent_score, upload_id, owner_company_id,
	created_at, updated_at, deleted_at`

var personCopyColumns = []string{
	"first_name",
	"last_name",
	"full_name",
	"email",
	"phone_number",
	"linkedin_profile_url",
	"position",
	"department",
	"enrichment_status",
	"upload_id",
	"owner_company_id",
}

func scanPerson(row pgx.Row) (domain.Person, error) {
	var (
		p      domain.Person
		status string
	)
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.FullName,
		&p.Email,
		&p.PhoneNumber,
		&p.LinkedinProfileURL,
		&p.Position,
		&p.Department,
		&status,
		&p.EnrichmentBatchID,
		&p.IntentScore,
		&p.UploadID,
		&p.OwnerCompanyID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)
	p.EnrichmentStatus = domain.EnrichmentStatus(status)
	return p, err
}

func collectPersons(rows pgx.Rows) ([]domain.Person, error) {
	defer rows.Close()
	var persons []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read persons: %w", err)
	}
	return persons, nil
}

// CreateBatch bulk inserts persons with COPY. The returned count is the number of rows copied.
func (r *personRepository) CreateBatch(ctx context.Context, persons []domain.Person) (int64, error) {
	if len(persons) == 0 {
		return 0, nil
	}
	source := pgx.CopyFromSlice(len(persons), func(i int) ([]any, error) {
		p := persons[i]
		status := p.EnrichmentStatus
		if status == "" {
			status = domain.EnrichmentStatusPending
		}
		return []any{
			p.FirstName,
			p.LastName,
			p.FullName,
			p.Email,
			p.PhoneNumber,
			p.LinkedinProfileURL,
			p.Position,
			p.Department,
			string(status),
			p.UploadID,
			p.OwnerCompanyID,
		}, nil
	})
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"persons"}, personCopyColumns, source)
	if err != nil {
		return 0, fmt.Errorf("failed to copy persons: %w", err)
	}
	return n, nil
}

func (r *personRepository) LockCompany(ctx context.Context, ownerCompanyID int64) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ownerCompanyID); err != nil {
		return fmt.Errorf("failed to lock company %d: %w", ownerCompanyID, err)
	}
	return nil
}

func (r *personRepository) ListByUpload(ctx context.Context, uploadID int64) ([]domain.Person, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+personColumns+` FROM persons WHERE upload_id = $1 AND `+notDeleted()+` ORDER BY id`,
		uploadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons by upload: %w", err)
	}
	return collectPersons(rows)
}

func (r *personRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.Person, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+personColumns+` FROM persons WHERE enrichment_batch_id = $1 ORDER BY id`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons by batch: %w", err)
	}
	return collectPersons(rows)
}

func personWhere(filter domain.PersonFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add(notDeleted())
	if filter.UploadID != 0 {
		w.add("upload_id = " + w.arg(filter.UploadID))
	}
	if filter.OwnerCompanyID != 0 {
		w.add("owner_company_id = " + w.arg(filter.OwnerCompanyID))
	}
	if filter.Name != "" {
		w.add("full_name ILIKE " + w.arg("%"+escapeLike(filter.Name)+"%"))
	}
	if filter.Department != "" {
		w.add("department ILIKE " + w.arg("%"+escapeLike(filter.Department)+"%"))
	}
	if filter.Position != "" {
		w.add("position ILIKE " + w.arg("%"+escapeLike(filter.Position)+"%"))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.add("enrichment_status = ANY(" + w.arg(statuses) + "::text[])")
	}
	if filter.CreatedAtRange.From != nil {
		w.add("created_at >= " + w.arg(*filter.CreatedAtRange.From))
	}
	if filter.CreatedAtRange.To != nil {
		w.add("created_at <= " + w.arg(*filter.CreatedAtRange.To))
	}
	if filter.IntentScoreRange.Min != nil {
		w.add("intent_score >= " + w.arg(*filter.IntentScoreRange.Min))
	}
	if filter.IntentScoreRange.Max != nil {
		w.add("intent_score <= " + w.arg(*filter.IntentScoreRange.Max))
	}
	return w
}

func (r *personRepository) List(ctx context.Context, filter domain.PersonFilter, page domain.Pagination) ([]domain.Person, int, error) {
	w := personWhere(filter)
	where := w.String()
	countArgs := append([]any(nil), w.args...)
	limit := w.arg(page.Limit())
	offset := w.arg(page.Offset())

	var (
		persons []domain.Person
		total   int
	)
	listFn := func(ctx context.Context) error {
		rows, err := r.db.Query(
			ctx,
			`SELECT `+personColumns+` FROM persons`+where+` ORDER BY `+defaultOrder+` LIMIT `+limit+` OFFSET `+offset,
			w.args...,
		)
		if err != nil {
			return fmt.Errorf("failed to list persons: %w", err)
		}
		persons, err = collectPersons(rows)
		return err
	}
	countFn := func(ctx context.Context) error {
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM persons`+where, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count persons: %w", err)
		}
		return nil
	}
	if err := runQueries(ctx, r.concurrent, listFn, countFn); err != nil {
		return nil, 0, err
	}
	return persons, total, nil
}

// FindDuplicates checks every key with one query joined against unnest'ed key arrays.
func (r *personRepository) FindDuplicates(ctx context.Context, ownerCompanyID int64, keys []domain.DuplicateKey) ([]domain.DuplicateKey, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	emails := make([]string, len(keys))
	names := make([]string, len(keys))
	for i, k := range keys {
		emails[i] = k.Email
		names[i] = k.FullName
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT DISTINCT p.email, p.full_name
		 FROM persons p
		 JOIN unnest($2::text[], $3::text[]) AS k(email, full_name)
		   ON p.email = k.email AND p.full_name = k.full_name
		 WHERE p.owner_company_id = $1 AND p.deleted_at IS NULL
		 ORDER BY p.email, p.full_name`,
		ownerCompanyID,
		emails,
		names,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate persons: %w", err)
	}
	defer rows.Close()

	var dups []domain.DuplicateKey
	for rows.Next() {
		var k domain.DuplicateKey
		if err := rows.Scan(&k.Email, &k.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}
		dups = append(dups, k)
	}
	return dups, rows.Err()
}

func (r *personRepository) ClaimPending(ctx context.Context, uploadID int64, batchID uuid.UUID) ([]domain.Person, error) {
	rows, err := r.db.Query(
		ctx,
		`UPDATE persons
		 SET enrichment_status = 'InProgress', enrichment_batch_id = $2, updated_at = now()
		 WHERE upload_id = $1 AND enrichment_status = 'Pending' AND `+notDeleted()+`
		 RETURNING `+personColumns,
		uploadID,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending persons: %w", err)
	}
	return collectPersons(rows)
}

func (r *personRepository) TransitionBatch(ctx context.Context, batchID uuid.UUID, ids []int64, status domain.EnrichmentStatus) (int64, error) {
	if !domain.EnrichmentStatusInProgress.CanTransitionTo(status) {
		return 0, fmt.Errorf("invalid transition from %s to %s", domain.EnrichmentStatusInProgress, status)
	}
	if ids != nil && len(ids) == 0 {
		return 0, nil
	}

	query := `UPDATE persons SET enrichment_status = $1, updated_at = now()
		 WHERE enrichment_batch_id = $2 AND enrichment_status = 'InProgress'`
	args := []any{string(status), batchID}
	if ids != nil {
		query += ` AND id = ANY($3::bigint[])`
		args = append(args, ids)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to transition persons to %s: %w", status, err)
	}
	return tag.RowsAffected(), nil
}

func (r *personRepository) CountByStatus(ctx context.Context, uploadIDs []int64) (map[int64]domain.StatusCounts, error) {
	counts := make(map[int64]domain.StatusCounts, len(uploadIDs))
	if len(uploadIDs) == 0 {
		return counts, nil
	}
	rows, err := r.db.Query(
		ctx,
		`SELECT upload_id, enrichment_status, count(*)
		 FROM persons
		 WHERE upload_id = ANY($1::bigint[]) AND `+notDeleted()+`
		 GROUP BY upload_id, enrichment_status`,
		uploadIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count persons by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			uploadID int64
			status   string
			n        int
		)
		if err := rows.Scan(&uploadID, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		c := counts[uploadID]
		c.Add(domain.EnrichmentStatus(status), n)
		counts[uploadID] = c
	}
	return counts, rows.Err()
}
