package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/leadstream/internal/domain"
)

func page[T any](items []T, p domain.Pagination) []T {
	offset, limit := p.Offset(), p.Limit()
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func newestFirst(a, b time.Time, ida, idb int64) int {
	if c := b.Compare(a); c != 0 {
		return c
	}
	return cmp.Compare(idb, ida)
}

func inRange(t time.Time, r domain.TimeRange) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

type uploadRepository struct{ v *view }

func (r *uploadRepository) Create(_ context.Context, upload domain.Upload) (domain.Upload, error) {
	err := r.v.do(func(st *state) error {
		st.nextUpload++
		upload.ID = st.nextUpload
		upload.IsSaved = false
		now := time.Now()
		upload.CreatedAt, upload.UpdatedAt = now, now
		st.uploads[upload.ID] = upload
		return nil
	})
	return upload, err
}

func (r *uploadRepository) GetByID(_ context.Context, id int64) (domain.Upload, error) {
	var upload domain.Upload
	err := r.v.do(func(st *state) error {
		u, ok := st.uploads[id]
		if !ok || u.DeletedAt != nil {
			return &domain.NotFoundError{Resource: "upload", ID: id}
		}
		upload = u
		return nil
	})
	return upload, err
}

func (r *uploadRepository) GetByIDForUpdate(ctx context.Context, id int64) (domain.Upload, error) {
	return r.GetByID(ctx, id)
}

func (r *uploadRepository) List(_ context.Context, filter domain.UploadFilter, p domain.Pagination) ([]domain.Upload, int, error) {
	var matched []domain.Upload
	err := r.v.do(func(st *state) error {
		for _, u := range st.uploads {
			if !filter.IncludeDeleted && u.DeletedAt != nil {
				continue
			}
			if filter.ID != 0 && u.ID != filter.ID {
				continue
			}
			if filter.FileName != "" && !containsFold(u.FileName, filter.FileName) {
				continue
			}
			if filter.OwnerCompanyID != 0 && u.OwnerCompanyID != filter.OwnerCompanyID {
				continue
			}
			if filter.BusinessID != 0 && st.companies[u.OwnerCompanyID].BusinessID != filter.BusinessID {
				continue
			}
			if filter.IsSaved != nil && u.IsSaved != *filter.IsSaved {
				continue
			}
			if !inRange(u.CreatedAt, filter.CreatedAtRange) {
				continue
			}
			matched = append(matched, u)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(matched, func(a, b domain.Upload) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return page(matched, p), len(matched), nil
}

func (r *uploadRepository) MarkSaved(_ context.Context, id int64) (bool, error) {
	var flipped bool
	err := r.v.do(func(st *state) error {
		u, ok := st.uploads[id]
		if !ok || u.DeletedAt != nil || u.IsSaved {
			return nil
		}
		u.IsSaved = true
		u.UpdatedAt = time.Now()
		st.uploads[id] = u
		flipped = true
		return nil
	})
	return flipped, err
}

func (r *uploadRepository) SoftDelete(_ context.Context, id int64) error {
	return r.v.do(func(st *state) error {
		u, ok := st.uploads[id]
		if !ok || u.DeletedAt != nil {
			return &domain.NotFoundError{Resource: "upload", ID: id}
		}
		now := time.Now()
		u.DeletedAt = &now
		u.UpdatedAt = now
		st.uploads[id] = u
		return nil
	})
}

type personRepository struct{ v *view }

func sortedPersons(st *state, keep func(domain.Person) bool) []domain.Person {
	var out []domain.Person
	for _, p := range st.persons {
		if keep(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Person) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *personRepository) CreateBatch(_ context.Context, persons []domain.Person) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		now := time.Now()
		for _, p := range persons {
			st.nextPerson++
			p.ID = st.nextPerson
			if p.EnrichmentStatus == "" {
				p.EnrichmentStatus = domain.EnrichmentStatusPending
			}
			p.CreatedAt, p.UpdatedAt = now, now
			st.persons[p.ID] = p
			n++
		}
		return nil
	})
	return n, err
}

// LockCompany is a no-op: transactions already run one at a time.
func (r *personRepository) LockCompany(_ context.Context, _ int64) error { return nil }

func (r *personRepository) ListByUpload(_ context.Context, uploadID int64) ([]domain.Person, error) {
	var out []domain.Person
	err := r.v.do(func(st *state) error {
		out = sortedPersons(st, func(p domain.Person) bool {
			return p.DeletedAt == nil && p.UploadID != nil && *p.UploadID == uploadID
		})
		return nil
	})
	return out, err
}

func (r *personRepository) ListByBatch(_ context.Context, batchID uuid.UUID) ([]domain.Person, error) {
	var out []domain.Person
	err := r.v.do(func(st *state) error {
		out = sortedPersons(st, func(p domain.Person) bool {
			return p.EnrichmentBatchID != nil && *p.EnrichmentBatchID == batchID
		})
		return nil
	})
	return out, err
}

func matchesPerson(p domain.Person, f domain.PersonFilter) bool {
	if p.DeletedAt != nil {
		return false
	}
	if f.UploadID != 0 && (p.UploadID == nil || *p.UploadID != f.UploadID) {
		return false
	}
	if f.OwnerCompanyID != 0 && p.OwnerCompanyID != f.OwnerCompanyID {
		return false
	}
	if f.Name != "" && !containsFold(p.FullName, f.Name) {
		return false
	}
	if f.Department != "" && (p.Department == nil || !containsFold(*p.Department, f.Department)) {
		return false
	}
	if f.Position != "" && !containsFold(p.Position, f.Position) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.EnrichmentStatus) {
		return false
	}
	if !inRange(p.CreatedAt, f.CreatedAtRange) {
		return false
	}
	if !f.IntentScoreRange.IsZero() {
		if p.IntentScore == nil {
			return false
		}
		if f.IntentScoreRange.Min != nil && *p.IntentScore < *f.IntentScoreRange.Min {
			return false
		}
		if f.IntentScoreRange.Max != nil && *p.IntentScore > *f.IntentScoreRange.Max {
			return false
		}
	}
	return true
}

func (r *personRepository) List(_ context.Context, filter domain.PersonFilter, p domain.Pagination) ([]domain.Person, int, error) {
	var matched []domain.Person
	err := r.v.do(func(st *state) error {
		matched = sortedPersons(st, func(person domain.Person) bool { return matchesPerson(person, filter) })
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(matched, func(a, b domain.Person) int { return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID) })
	return page(matched, p), len(matched), nil
}

func (r *personRepository) FindDuplicates(_ context.Context, ownerCompanyID int64, keys []domain.DuplicateKey) ([]domain.DuplicateKey, error) {
	wanted := make(map[domain.DuplicateKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	found := map[domain.DuplicateKey]struct{}{}
	err := r.v.do(func(st *state) error {
		for _, p := range st.persons {
			if p.DeletedAt != nil || p.OwnerCompanyID != ownerCompanyID {
				continue
			}
			k := domain.DuplicateKey{Email: p.Email, FullName: p.FullName}
			if _, ok := wanted[k]; ok {
				found[k] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var dups []domain.DuplicateKey
	for k := range found {
		dups = append(dups, k)
	}
	slices.SortFunc(dups, func(a, b domain.DuplicateKey) int {
		return cmp.Or(cmp.Compare(a.Email, b.Email), cmp.Compare(a.FullName, b.FullName))
	})
	return dups, nil
}

func (r *personRepository) ClaimPending(_ context.Context, uploadID int64, batchID uuid.UUID) ([]domain.Person, error) {
	var claimed []domain.Person
	err := r.v.do(func(st *state) error {
		pending := sortedPersons(st, func(p domain.Person) bool {
			return p.DeletedAt == nil && p.UploadID != nil && *p.UploadID == uploadID &&
				p.EnrichmentStatus == domain.EnrichmentStatusPending
		})
		now := time.Now()
		for _, p := range pending {
			id := batchID
			p.EnrichmentStatus = domain.EnrichmentStatusInProgress
			p.EnrichmentBatchID = &id
			p.UpdatedAt = now
			st.persons[p.ID] = p
			claimed = append(claimed, p)
		}
		return nil
	})
	return claimed, err
}

func (r *personRepository) TransitionBatch(_ context.Context, batchID uuid.UUID, ids []int64, status domain.EnrichmentStatus) (int64, error) {
	if !domain.EnrichmentStatusInProgress.CanTransitionTo(status) {
		return 0, fmt.Errorf("invalid transition from %s to %s", domain.EnrichmentStatusInProgress, status)
	}
	var n int64
	err := r.v.do(func(st *state) error {
		now := time.Now()
		for id, p := range st.persons {
			if p.EnrichmentBatchID == nil || *p.EnrichmentBatchID != batchID || p.EnrichmentStatus != domain.EnrichmentStatusInProgress {
				continue
			}
			if ids != nil && !slices.Contains(ids, id) {
				continue
			}
			p.EnrichmentStatus = status
			p.UpdatedAt = now
			st.persons[id] = p
			n++
		}
		return nil
	})
	return n, err
}

func (r *personRepository) CountByStatus(_ context.Context, uploadIDs []int64) (map[int64]domain.StatusCounts, error) {
	counts := make(map[int64]domain.StatusCounts, len(uploadIDs))
	err := r.v.do(func(st *state) error {
		for _, p := range st.persons {
			if p.DeletedAt != nil || p.UploadID == nil || !slices.Contains(uploadIDs, *p.UploadID) {
				continue
			}
			c := counts[*p.UploadID]
			c.Add(p.EnrichmentStatus, 1)
			counts[*p.UploadID] = c
		}
		return nil
	})
	return counts, err
}

type enrichmentRepository struct{ v *view }

func (r *enrichmentRepository) CreateAudit(_ context.Context, audit domain.EnrichmentAudit) (domain.EnrichmentAudit, error) {
	err := r.v.do(func(st *state) error {
		if _, exists := st.audits[audit.BatchID]; exists {
			return fmt.Errorf("failed to create enrichment audit: batch %s already exists", audit.BatchID)
		}
		st.nextAudit++
		audit.ID = st.nextAudit
		if audit.Kind == "" {
			audit.Kind = domain.EnrichmentKindPerson
		}
		audit.CreatedAt = time.Now()
		st.audits[audit.BatchID] = audit
		return nil
	})
	return audit, err
}

func (r *enrichmentRepository) GetAudit(_ context.Context, batchID uuid.UUID) (domain.EnrichmentAudit, error) {
	var audit domain.EnrichmentAudit
	err := r.v.do(func(st *state) error {
		a, ok := st.audits[batchID]
		if !ok {
			return &domain.NotFoundError{Resource: "enrichment audit"}
		}
		audit = a
		return nil
	})
	return audit, err
}

func (r *enrichmentRepository) SettleAudit(_ context.Context, batchID uuid.UUID, outcome domain.AuditOutcome, response json.RawMessage) (bool, error) {
	var settled bool
	err := r.v.do(func(st *state) error {
		a, ok := st.audits[batchID]
		if !ok || a.SettledAt != nil {
			return nil
		}
		now := time.Now()
		o := outcome
		a.Outcome = &o
		a.ResponsePayload = response
		a.SettledAt = &now
		st.audits[batchID] = a
		settled = true
		return nil
	})
	return settled, err
}

func (r *enrichmentRepository) ListUnsettled(_ context.Context, createdBefore time.Time, limit int) ([]domain.EnrichmentAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.EnrichmentAudit
	err := r.v.do(func(st *state) error {
		for _, a := range st.audits {
			if a.SettledAt == nil && a.CreatedAt.Before(createdBefore) {
				out = append(out, a)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.EnrichmentAudit) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *enrichmentRepository) InsertResults(_ context.Context, results []domain.EnrichmentResult) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		now := time.Now()
		for _, res := range results {
			if _, exists := st.results[res.PersonID]; exists {
				continue
			}
			st.nextResult++
			res.ID = st.nextResult
			res.CreatedAt = now
			st.results[res.PersonID] = res
			n++
		}
		return nil
	})
	return n, err
}

func (r *enrichmentRepository) ResultsByPersonIDs(_ context.Context, personIDs []int64) (map[int64]domain.EnrichmentResult, error) {
	out := make(map[int64]domain.EnrichmentResult, len(personIDs))
	err := r.v.do(func(st *state) error {
		for _, id := range personIDs {
			if res, ok := st.results[id]; ok {
				out[id] = res
			}
		}
		return nil
	})
	return out, err
}

type ownershipRepository struct{ v *view }

func (r *ownershipRepository) GetUser(_ context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return &domain.NotFoundError{Resource: "user", ID: id}
		}
		user = u
		return nil
	})
	return user, err
}

func (r *ownershipRepository) GetCompany(_ context.Context, id int64) (domain.Company, error) {
	var company domain.Company
	err := r.v.do(func(st *state) error {
		c, ok := st.companies[id]
		if !ok {
			return &domain.NotFoundError{Resource: "company", ID: id}
		}
		company = c
		return nil
	})
	return company, err
}

func (r *ownershipRepository) DefaultCompanyForUser(_ context.Context, userID int64) (domain.Company, error) {
	var company domain.Company
	err := r.v.do(func(st *state) error {
		u, ok := st.users[userID]
		if !ok || u.BusinessID == 0 {
			return &domain.NotFoundError{Resource: "company for user", ID: userID}
		}
		found := false
		for _, c := range st.companies {
			if c.BusinessID == u.BusinessID && (!found || c.ID < company.ID) {
				company = c
				found = true
			}
		}
		if !found {
			return &domain.NotFoundError{Resource: "company for user", ID: userID}
		}
		return nil
	})
	return company, err
}

type ingestionLogRepository struct{ v *view }

func (r *ingestionLogRepository) Record(_ context.Context, entry domain.IngestionLogEntry) error {
	return r.v.do(func(st *state) error {
		st.nextLog++
		entry.ID = st.nextLog
		entry.CreatedAt = time.Now()
		st.logs = append(st.logs, entry)
		return nil
	})
}

func (r *ingestionLogRepository) List(_ context.Context, ownerCompanyID int64, fileName string, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	offset = max(offset, 0)
	var out []domain.IngestionLogEntry
	err := r.v.do(func(st *state) error {
		for i := len(st.logs) - 1; i >= 0; i-- {
			e := st.logs[i]
			if e.OwnerCompanyID != ownerCompanyID || (fileName != "" && e.FileName != fileName) {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if offset >= len(out) {
		return []domain.IngestionLogEntry{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}
