package ingestion

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository/memory"
	"github.com/rpattn/leadstream/internal/storage"
)

const (
	testUserID = 7
	header     = "First Name,Last Name,Email,LinkedIn,Phone Number,Position\n"
)

type fixture struct {
	service   *Service
	store     *memory.Store
	files     *storage.LocalStore
	companyID int64
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	store := memory.NewStore()
	_, companyID := store.SeedBusiness("Acme", "ops@acme.test", testUserID)
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return fixture{
		service:   NewService(store, files, opts...),
		store:     store,
		files:     files,
		companyID: companyID,
	}
}

func csvRequest(body string) CreateUploadRequest {
	return CreateUploadRequest{
		FileName: "people.csv",
		MimeType: "text/csv",
		Size:     int64(len(body)),
		Data:     strings.NewReader(body),
		UserID:   testUserID,
	}
}

const threeValidRows = header +
	"Ada,Lovelace,ada@example.com,https://linkedin.com/in/ada,+44 1,CTO\n" +
	"Grace,Hopper,grace@example.com,,+1 2,Admiral\n" +
	"Alan,Turing,alan@example.com,linkedin.com/in/alan,,Researcher\n"

func TestCreateUploadThenSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	upload, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
	require.NoError(t, err)
	assert.Equal(t, 3, upload.Quantity)
	assert.False(t, upload.IsSaved)
	assert.Equal(t, f.companyID, upload.OwnerCompanyID)
	assert.True(t, strings.HasSuffix(upload.StoredFilePath, "-people.csv"))

	result, err := f.service.Save(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, SaveResult{InsertedCount: 3, ExpectedCount: 3}, result)

	persons, err := f.store.Persons().ListByUpload(ctx, upload.ID)
	require.NoError(t, err)
	require.Len(t, persons, 3)
	for _, p := range persons {
		assert.Equal(t, p.FirstName+" "+p.LastName, p.FullName)
		assert.Equal(t, domain.EnrichmentStatusPending, p.EnrichmentStatus)
		assert.Equal(t, f.companyID, p.OwnerCompanyID)
	}

	saved, err := f.service.GetUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.True(t, saved.IsSaved)

	_, err = f.service.Save(ctx, upload.ID)
	require.ErrorIs(t, err, domain.ErrAlreadySaved)

	persons, err = f.store.Persons().ListByUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Len(t, persons, 3)
}

func TestCreateUploadRejectsInvalidEmail(t *testing.T) {
	f := newFixture(t)
	body := header +
		"Ada,Lovelace,ada@example.com,,,CTO\n" +
		"Grace,Hopper,not-an-email,,,Admiral\n" +
		"Alan,Turing,alan@example.com,,,Researcher\n"

	_, err := f.service.CreateUpload(context.Background(), csvRequest(body))
	require.ErrorIs(t, err, domain.ErrInvalidRow)

	var rowErr *domain.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, "email", rowErr.Field)
	assert.Equal(t, "not-an-email", rowErr.Value)

	page, err := f.service.ListUploads(context.Background(), domain.UploadFilter{}, domain.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, page.Data)

	logs, err := f.service.ListIngestionLogs(context.Background(), f.companyID, "people.csv", domain.Pagination{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].RowNumber)
	assert.Equal(t, 2, *logs[0].RowNumber)
}

func TestCreateUploadValidationFailures(t *testing.T) {
	cases := map[string]struct {
		req  CreateUploadRequest
		want error
	}{
		"missing file": {
			req:  CreateUploadRequest{FileName: "x.csv", MimeType: "text/csv", UserID: testUserID},
			want: domain.ErrMissingFile,
		},
		"media type": {
			req: func() CreateUploadRequest {
				r := csvRequest(threeValidRows)
				r.MimeType = "image/png"
				return r
			}(),
			want: domain.ErrUnsupportedMediaType,
		},
		"header order": {
			req:  csvRequest("Last Name,First Name,Email,LinkedIn,Phone Number,Position\nA,B,a@b.co,,,\n"),
			want: domain.ErrInvalidSchema,
		},
		"header case": {
			req:  csvRequest("first name,Last Name,Email,LinkedIn,Phone Number,Position\nA,B,a@b.co,,,\n"),
			want: domain.ErrInvalidSchema,
		},
		"no data rows": {
			req:  csvRequest(header + "\n,,,,,\n"),
			want: domain.ErrEmptyUpload,
		},
		"bad linkedin": {
			req:  csvRequest(header + "A,B,a@b.co,not a url,,\n"),
			want: domain.ErrInvalidRow,
		},
		"malformed csv": {
			req:  csvRequest(header + "A,\"B,a@b.co,,,\n"),
			want: domain.ErrValidation,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.service.CreateUpload(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateUploadAcceptsMimeParameters(t *testing.T) {
	f := newFixture(t)
	req := csvRequest(threeValidRows)
	req.MimeType = "text/csv; charset=utf-8"

	_, err := f.service.CreateUpload(context.Background(), req)
	require.NoError(t, err)
}

func TestCreateUploadEnforcesSizeLimit(t *testing.T) {
	f := newFixture(t, WithMaxUploadSize(16))
	req := csvRequest(threeValidRows)
	req.Size = 0

	_, err := f.service.CreateUpload(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrTooLarge)
}

func TestCreateUploadOwnerResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := csvRequest(threeValidRows)
	req.UserID = 0
	_, err := f.service.CreateUpload(ctx, req)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, otherCompany := f.store.SeedBusiness("Globex", "ops@globex.test", 99)
	req = csvRequest(threeValidRows)
	req.OwnerCompanyID = otherCompany
	_, err = f.service.CreateUpload(ctx, req)
	require.ErrorIs(t, err, domain.ErrForbidden)

	req = csvRequest(threeValidRows)
	req.OwnerCompanyID = f.companyID
	upload, err := f.service.CreateUpload(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, f.companyID, upload.OwnerCompanyID)
}

func TestDuplicatePolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("reject", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
		require.NoError(t, err)
		_, err = f.service.Save(ctx, first.ID)
		require.NoError(t, err)

		_, err = f.service.CreateUpload(ctx, csvRequest(threeValidRows))
		require.ErrorIs(t, err, domain.ErrDuplicate)
		var dupErr *domain.DuplicateError
		require.ErrorAs(t, err, &dupErr)
		assert.Len(t, dupErr.Duplicates, 3)
	})

	t.Run("reject at save", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
		require.NoError(t, err)
		second, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
		require.NoError(t, err)

		_, err = f.service.Save(ctx, first.ID)
		require.NoError(t, err)
		_, err = f.service.Save(ctx, second.ID)
		require.ErrorIs(t, err, domain.ErrDuplicate)

		upload, err := f.service.GetUpload(ctx, second.ID)
		require.NoError(t, err)
		assert.False(t, upload.IsSaved)
	})

	for _, policy := range []DuplicatePolicy{DuplicatePolicyWarn, DuplicatePolicyIgnore} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, WithDuplicatePolicy(policy))
			first, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
			require.NoError(t, err)
			_, err = f.service.Save(ctx, first.ID)
			require.NoError(t, err)

			second, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
			require.NoError(t, err)
			result, err := f.service.Save(ctx, second.ID)
			require.NoError(t, err)
			assert.EqualValues(t, 3, result.InsertedCount)
		})
	}
}

func TestConcurrentSavesInsertOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upload, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		already   int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Save(ctx, upload.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, domain.ErrAlreadySaved):
				already++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, already)
	persons, err := f.store.Persons().ListByUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Len(t, persons, 3)
}

func TestDeleteUploadHidesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upload, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteUpload(ctx, upload.ID))

	_, err = f.service.GetUpload(ctx, upload.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, f.service.DeleteUpload(ctx, upload.ID), domain.ErrNotFound)
	_, err = f.service.Save(ctx, upload.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListUploadsPaginates(t *testing.T) {
	f := newFixture(t, WithDuplicatePolicy(DuplicatePolicyIgnore))
	ctx := context.Background()
	for range 5 {
		_, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
		require.NoError(t, err)
	}

	page, err := f.service.ListUploads(ctx, domain.UploadFilter{}, domain.Pagination{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, domain.PageInfo{Page: 2, PageSize: 2, Total: 5, TotalPages: 3}, page.Pagination)
	assert.Greater(t, page.Data[0].ID, page.Data[1].ID)
}

func TestAuthorizeUploadChecksBusiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const outsiderID = 99
	_, outsiderCompany := f.store.SeedBusiness("Globex", "ops@globex.test", outsiderID)
	upload, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
	require.NoError(t, err)

	got, err := f.service.AuthorizeUpload(ctx, testUserID, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.ID, got.ID)

	_, err = f.service.AuthorizeUpload(ctx, outsiderID, upload.ID)
	var forbidden *domain.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, upload.ID, forbidden.UploadID)

	_, err = f.service.AuthorizeUpload(ctx, 0, upload.ID)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.service.AuthorizeUpload(ctx, 404, upload.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.service.AuthorizeUpload(ctx, testUserID, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.service.AuthorizeCompany(ctx, testUserID, outsiderCompany)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.service.AuthorizeCompany(ctx, outsiderID, outsiderCompany)
	require.NoError(t, err)
}

func TestScopeUploadFilterLimitsListing(t *testing.T) {
	f := newFixture(t, WithDuplicatePolicy(DuplicatePolicyIgnore))
	ctx := context.Background()
	const outsiderID = 99
	_, outsiderCompany := f.store.SeedBusiness("Globex", "ops@globex.test", outsiderID)

	_, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
	require.NoError(t, err)
	req := csvRequest(threeValidRows)
	req.UserID = outsiderID
	theirs, err := f.service.CreateUpload(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, outsiderCompany, theirs.OwnerCompanyID)

	filter, err := f.service.ScopeUploadFilter(ctx, outsiderID, domain.UploadFilter{})
	require.NoError(t, err)
	page, err := f.service.ListUploads(ctx, filter, domain.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, theirs.ID, page.Data[0].ID)

	_, err = f.service.ScopeUploadFilter(ctx, outsiderID, domain.UploadFilter{OwnerCompanyID: f.companyID})
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.service.ScopeUploadFilter(ctx, 0, domain.UploadFilter{})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSaveRevalidatesStoredFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upload, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
	require.NoError(t, err)

	tampered := header + "Ada,Lovelace,bad,,,CTO\n"
	_, err = f.files.Put(ctx, upload.StoredFilePath, strings.NewReader(tampered), int64(len(tampered)), "text/csv")
	require.NoError(t, err)

	_, err = f.service.Save(ctx, upload.ID)
	require.ErrorIs(t, err, domain.ErrInvalidRow)
	var rowErr *domain.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 1, rowErr.Row)
	assert.Equal(t, "email", rowErr.Field)

	persons, err := f.store.Persons().ListByUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Empty(t, persons)
	got, err := f.service.GetUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSaved)
}

func TestSaveReportsQuantityDrift(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, WithLogger(zap.New(core)))
	ctx := context.Background()
	upload, err := f.service.CreateUpload(ctx, csvRequest(threeValidRows))
	require.NoError(t, err)
	require.Equal(t, 3, upload.Quantity)

	grown := threeValidRows + "Linus,Torvalds,linus@example.com,,,Maintainer\n"
	_, err = f.files.Put(ctx, upload.StoredFilePath, strings.NewReader(grown), int64(len(grown)), "text/csv")
	require.NoError(t, err)

	result, err := f.service.Save(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, SaveResult{InsertedCount: 4, ExpectedCount: 3}, result)

	drift := logs.FilterMessage("saved person count differs from upload quantity").All()
	require.Len(t, drift, 1)
	fields := drift[0].ContextMap()
	assert.EqualValues(t, 4, fields["inserted"])
	assert.EqualValues(t, 3, fields["expected"])
}
