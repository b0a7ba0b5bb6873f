package enrichment

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/provider"
)

func batchOf(ids ...int64) []domain.Person {
	out := make([]domain.Person, len(ids))
	for i, id := range ids {
		out[i] = domain.Person{ID: id, EnrichmentStatus: domain.EnrichmentStatusInProgress}
	}
	return out
}

func item(id int64, status int, data map[string]any) provider.ResponseItem {
	return provider.ResponseItem{Status: status, Data: data, Metadata: provider.Metadata{PersonID: id}}
}

func TestReconcileMatchesByCorrelationID(t *testing.T) {
	items := []provider.ResponseItem{
		item(3, http.StatusNotFound, nil),
		item(1, http.StatusOK, map[string]any{
			"full_name":                 "ada lovelace",
			"work_email":                "ada@engine.test",
			"job_title":                 "analyst",
			"linkedin_url":              "linkedin.com/in/ada",
			"company_name":              "Analytical Engines",
			"job_company_location_name": "London",
			"sex":                       "female",
		}),
		item(2, http.StatusOK, map[string]any{"email": "grace@navy.test", "work_email": "ignored@navy.test", "job_company_name": "Navy"}),
	}

	out := Reconcile(batchOf(1, 2, 3), items)

	assert.Equal(t, []int64{1, 2}, out.Completed)
	assert.Equal(t, []int64{3}, out.Failed)
	assert.Empty(t, out.Missing)
	assert.Empty(t, out.Unknown)
	require.Len(t, out.Results, 2)

	ada := out.Results[0]
	assert.Equal(t, domain.EnrichmentResult{
		PersonID:       1,
		FullName:       "ada lovelace",
		Email:          "ada@engine.test",
		Position:       "analyst",
		LinkedinURL:    "linkedin.com/in/ada",
		CompanyName:    "Analytical Engines",
		CompanyAddress: "London",
		Gender:         "female",
	}, ada)
	assert.Equal(t, "grace@navy.test", out.Results[1].Email)
	assert.Equal(t, "Navy", out.Results[1].CompanyName)
}

func TestReconcileUnknownMissingAndDuplicates(t *testing.T) {
	items := []provider.ResponseItem{
		item(1, http.StatusOK, map[string]any{"full_name": "first"}),
		item(1, http.StatusInternalServerError, nil),
		item(42, http.StatusOK, nil),
	}

	out := Reconcile(batchOf(1, 2), items)

	assert.Equal(t, []int64{1}, out.Completed)
	assert.Empty(t, out.Failed)
	assert.Equal(t, []int64{2}, out.Missing)
	require.Len(t, out.Unknown, 1)
	assert.EqualValues(t, 42, out.Unknown[0].Metadata.PersonID)
	assert.Equal(t, []int64{2}, out.FailedOrMissing())
	assert.Equal(t, "first", out.Results[0].FullName)
}

func TestReconcileNMSplit(t *testing.T) {
	const n = 10
	batch := make([]int64, n)
	var items []provider.ResponseItem
	for i := range n {
		id := int64(i + 1)
		batch[i] = id
		status := http.StatusOK
		if id%3 == 0 {
			status = http.StatusNotFound
		}
		items = append(items, item(id, status, nil))
	}

	out := Reconcile(batchOf(batch...), items)
	assert.Len(t, out.Completed, 7)
	assert.Len(t, out.Results, 7)
	assert.Len(t, out.Failed, 3)
}
