package enrichment

import (
	"net/http"
	"slices"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/provider"
)

// Outcome is the per-person classification of one provider response.
type Outcome struct {
	Completed []int64
	Failed    []int64
	Results   []domain.EnrichmentResult
	// Unknown holds items whose correlation id is not part of the batch.
	Unknown []provider.ResponseItem
	// Missing lists batch members the provider returned nothing for.
	Missing []int64
}

// FailedOrMissing returns every id that should end Failed.
func (o Outcome) FailedOrMissing() []int64 {
	ids := append(append([]int64(nil), o.Failed...), o.Missing...)
	slices.Sort(ids)
	return ids
}

// Reconcile matches response items to batch members by the person id in their metadata.
// Item order is ignored. When an id appears twice the first item wins.
func Reconcile(batch []domain.Person, items []provider.ResponseItem) Outcome {
	members := make(map[int64]struct{}, len(batch))
	for _, p := range batch {
		members[p.ID] = struct{}{}
	}

	var out Outcome
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		id := item.Metadata.PersonID
		if _, ok := members[id]; !ok {
			out.Unknown = append(out.Unknown, item)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if item.Status != http.StatusOK {
			out.Failed = append(out.Failed, id)
			continue
		}
		out.Completed = append(out.Completed, id)
		out.Results = append(out.Results, resultFrom(id, item))
	}

	for _, p := range batch {
		if _, ok := seen[p.ID]; !ok {
			out.Missing = append(out.Missing, p.ID)
		}
	}

	slices.Sort(out.Completed)
	slices.Sort(out.Failed)
	slices.Sort(out.Missing)
	slices.SortFunc(out.Results, func(a, b domain.EnrichmentResult) int {
		switch {
		case a.PersonID < b.PersonID:
			return -1
		case a.PersonID > b.PersonID:
			return 1
		}
		return 0
	})
	return out
}

func firstNonEmpty(item provider.ResponseItem, fields ...string) string {
	for _, f := range fields {
		if v := item.String(f); v != "" {
			return v
		}
	}
	return ""
}

func resultFrom(personID int64, item provider.ResponseItem) domain.EnrichmentResult {
	return domain.EnrichmentResult{
		PersonID:       personID,
		FullName:       firstNonEmpty(item, "full_name"),
		Email:          firstNonEmpty(item, "email", "work_email"),
		Position:       firstNonEmpty(item, "job_title"),
		LinkedinURL:    firstNonEmpty(item, "linkedin", "linkedin_url"),
		CompanyName:    firstNonEmpty(item, "job_company_name", "company_name"),
		CompanyAddress: firstNonEmpty(item, "job_company_location_name"),
		Gender:         firstNonEmpty(item, "sex"),
	}
}
