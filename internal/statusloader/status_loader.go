// Package statusloader batches per-upload enrichment status counts.
package statusloader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/repository"
)

// Counter is the repository capability the loader batches over.
type Counter interface {
	CountByStatus(ctx context.Context, uploadIDs []int64) (map[int64]domain.StatusCounts, error)
}

var _ Counter = (repository.PersonRepository)(nil)

type StatusLoader struct {
	Loader *dataloader.Loader
}

func NewStatusLoader(repo Counter) *StatusLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]int64, len(keys))
		for i, k := range keys {
			id, err := strconv.ParseInt(k.String(), 10, 64)
			if err != nil {
				return errorResults(len(keys), fmt.Errorf("invalid upload id %q: %w", k.String(), err))
			}
			ids[i] = id
		}

		counts, err := repo.CountByStatus(ctx, ids)
		if err != nil {
			return errorResults(len(keys), err)
		}

		// Results follow key order; uploads without persons get zero counts.
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: counts[id]}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn,
		dataloader.WithWait(2*time.Millisecond),
		dataloader.WithCache(dataloader.NewCache()),
	)
	return &StatusLoader{Loader: loader}
}

// Load returns the counts for one upload, batching with concurrent calls.
func (l *StatusLoader) Load(ctx context.Context, uploadID int64) (domain.StatusCounts, error) {
	data, err := l.Loader.Load(ctx, key(uploadID))()
	if err != nil {
		return domain.StatusCounts{}, err
	}
	counts, _ := data.(domain.StatusCounts)
	return counts, nil
}

// LoadMany returns counts for every upload in one batch, keyed by upload id.
func (l *StatusLoader) LoadMany(ctx context.Context, uploadIDs []int64) (map[int64]domain.StatusCounts, error) {
	if len(uploadIDs) == 0 {
		return map[int64]domain.StatusCounts{}, nil
	}
	keys := make(dataloader.Keys, len(uploadIDs))
	for i, id := range uploadIDs {
		keys[i] = key(id)
	}
	data, errs := l.Loader.LoadMany(ctx, keys)()
	out := make(map[int64]domain.StatusCounts, len(uploadIDs))
	for i, id := range uploadIDs {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if i < len(data) {
			counts, _ := data[i].(domain.StatusCounts)
			out[id] = counts
		}
	}
	return out, nil
}

func key(id int64) dataloader.Key {
	return dataloader.StringKey(strconv.FormatInt(id, 10))
}

func errorResults(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}
