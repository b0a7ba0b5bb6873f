package repository

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// defaultOrder is applied to every list query.
const defaultOrder = "created_at DESC, id DESC"

// notDeleted is the soft-delete predicate applied to every read of a soft-deletable table.
func notDeleted() string {
	return "deleted_at IS NULL"
}

// whereBuilder accumulates conditions and positional arguments for pgx.
type whereBuilder struct {
	conds []string
	args  []any
}

// arg registers v and returns its placeholder.
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// escapeLike escapes LIKE wildcards in a user supplied fragment.
func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}

// runQueries runs independent read queries. On a pool they run concurrently; a
// transaction connection only serves one query at a time so they run in order.
func runQueries(ctx context.Context, concurrent bool, fns ...func(context.Context) error) error {
	if !concurrent {
		for _, fn := range fns {
			if err := fn(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
