package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Query is a lazy, chainable cursor mirroring document-store ergonomics: it
// accumulates sort/limit/skip/populate intent and performs no I/O until
// One, All or Count runs. Execution is not cached; running the same cursor
// twice re-queries storage.
type Query[T any] struct {
	coll   *Collection[T]
	filter Filter
	sort   SortSpec
	limit  *uint64
	skip   uint64
	expand []string
}

// Sort replaces the cursor's sort specification.
func (q *Query[T]) Sort(s SortSpec) *Query[T] {
	q.sort = s
	return q
}

// SortBy appends one sort key. dir accepts the document-store direction
// spellings (1, -1, "asc", "desc"); an unrecognized direction surfaces as
// ErrUnsupported at execution time.
func (q *Query[T]) SortBy(field string, dir any) *Query[T] {
	d, err := ParseSortDir(dir)
	if err != nil {
		// Remember the bad direction; fail when the cursor executes.
		q.sort = append(q.sort, SortField{Field: field, Dir: 0})
		return q
	}
	q.sort = append(q.sort, SortField{Field: field, Dir: d})
	return q
}

// Limit caps the number of documents returned.
func (q *Query[T]) Limit(n uint64) *Query[T] {
	q.limit = &n
	return q
}

// Skip sets the page offset.
func (q *Query[T]) Skip(n uint64) *Query[T] {
	q.skip = n
	return q
}

// Populate requests reference expansion for the named field. The expansion
// runs as one extra batched round trip regardless of page size. An
// unregistered field surfaces as ErrUnsupported at execution time.
func (q *Query[T]) Populate(field string) *Query[T] {
	q.expand = append(q.expand, field)
	return q
}

// All executes the cursor and returns every matching document. When no
// explicit limit is set the collection's window cap still applies, so an
// unbounded cursor never pulls the whole table.
func (q *Query[T]) All(ctx context.Context) ([]*T, error) {
	for _, f := range q.sort {
		if f.Dir != SortAsc && f.Dir != SortDesc {
			return nil, unsupported("sort", f.Field)
		}
	}

	orderBy, deferred := splitSort(q.coll.table, q.sort)
	if len(deferred) > 0 && q.coll.resolve == nil {
		return nil, unsupported("sort", deferred[0].Field)
	}

	limit := q.limit
	if limit == nil {
		w := q.coll.maxWindow
		limit = &w
	}

	docs, err := q.coll.fetch(ctx, q.filter, orderBy, limit, q.skip)
	if err != nil {
		return nil, err
	}

	// Reference expansion: one batched lookup per populated field. A failure
	// in either round trip is fatal to the whole execution.
	querier := QuerierFromCtx(ctx, q.coll.db)
	for _, field := range q.expand {
		fn, ok := q.coll.populate[field]
		if !ok {
			return nil, unsupported("populate", field)
		}
		if err := fn(ctx, querier, docs); err != nil {
			return nil, err
		}
	}

	applySort(docs, deferred, q.coll.resolve)

	return docs, nil
}

// One executes the cursor with limit 1 and returns the first document, or
// domain.ErrNotFound when nothing matches.
func (q *Query[T]) One(ctx context.Context) (*T, error) {
	docs, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, MapError(pgx.ErrNoRows, q.coll.table.Entity, uuid.Nil)
	}
	return docs[0], nil
}

// Count returns the number of documents the cursor's filter matches,
// ignoring limit and skip.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	return q.coll.Count(ctx, q.filter)
}
