package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository"
)

func seedUploadWithPersons(t *testing.T, s *Store, n int) domain.Upload {
	t.Helper()
	ctx := context.Background()
	_, companyID := s.SeedBusiness("Acme", "ops@acme.test", 1)
	upload, err := s.Uploads().Create(ctx, domain.NewUpload("people.csv", "uploads/people.csv", "text/csv", n, companyID))
	require.NoError(t, err)

	persons := make([]domain.Person, n)
	for i := range persons {
		persons[i] = domain.NewPerson("First", string(rune('A'+i)), "p@acme.test", "", "", "", upload.ID, companyID)
	}
	inserted, err := s.Persons().CreateBatch(ctx, persons)
	require.NoError(t, err)
	require.EqualValues(t, n, inserted)
	return upload
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	upload := seedUploadWithPersons(t, s, 2)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		flipped, err := tx.Uploads().MarkSaved(ctx, upload.ID)
		require.NoError(t, err)
		require.True(t, flipped)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Uploads().GetByID(ctx, upload.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSaved)
}

func TestMarkSavedFlipsOnce(t *testing.T) {
	s := NewStore()
	upload := seedUploadWithPersons(t, s, 1)
	ctx := context.Background()

	first, err := s.Uploads().MarkSaved(ctx, upload.ID)
	require.NoError(t, err)
	second, err := s.Uploads().MarkSaved(ctx, upload.ID)
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
}

func TestClaimPendingIsExclusive(t *testing.T) {
	s := NewStore()
	upload := seedUploadWithPersons(t, s, 5)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts []int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.Persons().ClaimPending(ctx, upload.ID, uuid.New())
			assert.NoError(t, err)
			mu.Lock()
			counts = append(counts, len(claimed))
			mu.Unlock()
		}()
	}
	wg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 5, total)
}

func TestTransitionBatchOnlyTouchesInProgressRows(t *testing.T) {
	s := NewStore()
	upload := seedUploadWithPersons(t, s, 3)
	ctx := context.Background()
	batch := uuid.New()

	claimed, err := s.Persons().ClaimPending(ctx, upload.ID, batch)
	require.NoError(t, err)
	require.Len(t, claimed, 3)

	n, err := s.Persons().TransitionBatch(ctx, batch, []int64{claimed[0].ID}, domain.EnrichmentStatusCompleted)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Persons().TransitionBatch(ctx, batch, nil, domain.EnrichmentStatusFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	counts, err := s.Persons().CountByStatus(ctx, []int64{upload.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCounts{Completed: 1, Failed: 2}, counts[upload.ID])

	_, err = s.Persons().TransitionBatch(ctx, batch, nil, domain.EnrichmentStatusPending)
	assert.Error(t, err)
}

func TestSoftDeletedUploadsAreHidden(t *testing.T) {
	s := NewStore()
	upload := seedUploadWithPersons(t, s, 1)
	ctx := context.Background()

	require.NoError(t, s.Uploads().SoftDelete(ctx, upload.ID))
	_, err := s.Uploads().GetByID(ctx, upload.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, total, err := s.Uploads().List(ctx, domain.UploadFilter{}, domain.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)

	list, _, err = s.Uploads().List(ctx, domain.UploadFilter{IncludeDeleted: true}, domain.Pagination{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, s.Uploads().SoftDelete(ctx, upload.ID), domain.ErrNotFound)
}

func TestSettleAuditOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	batch := uuid.New()

	_, err := s.Enrichments().CreateAudit(ctx, domain.EnrichmentAudit{BatchID: batch, UploadID: 1, RequestPayload: []byte(`[]`)})
	require.NoError(t, err)

	ok, err := s.Enrichments().SettleAudit(ctx, batch, domain.AuditOutcomeSucceeded, []byte(`[]`))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Enrichments().SettleAudit(ctx, batch, domain.AuditOutcomeFailed, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	audit, err := s.Enrichments().GetAudit(ctx, batch)
	require.NoError(t, err)
	require.NotNil(t, audit.Outcome)
	assert.Equal(t, domain.AuditOutcomeSucceeded, *audit.Outcome)
}

func TestDefaultCompanyForUser(t *testing.T) {
	s := NewStore()
	_, companyID := s.SeedBusiness("Acme", "ops@acme.test", 42)

	company, err := s.Ownership().DefaultCompanyForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, companyID, company.ID)

	_, err = s.Ownership().DefaultCompanyForUser(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
