package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultMaxQueryWindow caps the rows a cursor fetches when the caller sets
// no explicit limit.
const DefaultMaxQueryWindow = 1000

// PopulateFunc expands one reference field across a page of documents with
// a single batched lookup, merging the results back by key.
type PopulateFunc[T any] func(ctx context.Context, q Querier, docs []*T) error

// FieldResolver maps a (possibly dotted) document field to its value on a
// materialized document. Used by deferred sorts and the aggregation
// emulator.
type FieldResolver[T any] func(doc *T, field string) (any, bool)

// Collection is the generic per-table document engine the entity façades
// are built on: it owns the table metadata, the row scanner, and the
// registered populate expanders, and serves reads, counts, deletes and
// aggregations in document idiom.
type Collection[T any] struct {
	db        DB
	table     Table
	scan      func(pgx.Rows) (*T, error)
	resolve   FieldResolver[T]
	populate  map[string]PopulateFunc[T]
	maxWindow uint64
}

// CollectionOption configures a Collection.
type CollectionOption[T any] func(*Collection[T])

// WithResolver installs the field resolver used by deferred sorts and
// in-memory aggregation grouping.
func WithResolver[T any](r FieldResolver[T]) CollectionOption[T] {
	return func(c *Collection[T]) { c.resolve = r }
}

// WithPopulate registers a reference-expansion function under a field name.
func WithPopulate[T any](field string, fn PopulateFunc[T]) CollectionOption[T] {
	return func(c *Collection[T]) { c.populate[field] = fn }
}

// WithMaxWindow overrides the default page-window cap.
func WithMaxWindow[T any](n uint64) CollectionOption[T] {
	return func(c *Collection[T]) {
		if n > 0 {
			c.maxWindow = n
		}
	}
}

// NewCollection creates a collection over the given table. scan reads one
// row into a materialized document.
func NewCollection[T any](db DB, table Table, scan func(pgx.Rows) (*T, error), opts ...CollectionOption[T]) *Collection[T] {
	c := &Collection[T]{
		db:        db,
		table:     table,
		scan:      scan,
		populate:  make(map[string]PopulateFunc[T]),
		maxWindow: DefaultMaxQueryWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Table returns the collection's table metadata.
func (c *Collection[T]) Table() Table { return c.table }

// Find returns a lazy cursor over the documents matching the filter.
// No I/O happens until the cursor executes.
func (c *Collection[T]) Find(f Filter) *Query[T] {
	return &Query[T]{coll: c, filter: f}
}

// FindOne returns the first document matching the filter, or
// domain.ErrNotFound when nothing matches.
func (c *Collection[T]) FindOne(ctx context.Context, f Filter) (*T, error) {
	return c.Find(f).One(ctx)
}

// FindByID returns the document with the given identity, or
// domain.ErrNotFound.
func (c *Collection[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	one := uint64(1)
	docs, err := c.fetch(ctx, Filter{"_id": id}, nil, &one, 0)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, MapError(pgx.ErrNoRows, c.table.Entity, id)
	}
	return docs[0], nil
}

// Count returns the number of documents matching the filter.
func (c *Collection[T]) Count(ctx context.Context, f Filter) (int64, error) {
	where, err := translateFilter(c.table, f)
	if err != nil {
		return 0, err
	}

	sb := squirrel.Select("count(*)").From(c.table.Name).PlaceholderFormat(squirrel.Dollar)
	if where != nil {
		sb = sb.Where(where)
	}

	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	q := QuerierFromCtx(ctx, c.db)
	if err := q.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, MapError(err, c.table.Entity, uuid.Nil)
	}
	return n, nil
}

// DeleteMany removes every document matching the filter and returns the
// number of rows deleted. An empty filter clears the whole collection.
func (c *Collection[T]) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	where, err := translateFilter(c.table, f)
	if err != nil {
		return 0, err
	}

	del := squirrel.Delete(c.table.Name).PlaceholderFormat(squirrel.Dollar)
	if where != nil {
		del = del.Where(where)
	}

	sqlStr, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete query: %w", err)
	}

	q := QuerierFromCtx(ctx, c.db)
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, MapError(err, c.table.Entity, uuid.Nil)
	}
	return tag.RowsAffected(), nil
}

// fetch runs one SELECT over the collection's table. limit nil means no
// LIMIT clause at all (used by the aggregation emulator, which must see
// every matching row).
func (c *Collection[T]) fetch(ctx context.Context, f Filter, orderBy []string, limit *uint64, skip uint64) ([]*T, error) {
	where, err := translateFilter(c.table, f)
	if err != nil {
		return nil, err
	}

	sb := squirrel.Select(c.table.Columns...).From(c.table.Name).PlaceholderFormat(squirrel.Dollar)
	if where != nil {
		sb = sb.Where(where)
	}
	for _, ob := range orderBy {
		sb = sb.OrderBy(ob)
	}
	if limit != nil {
		sb = sb.Limit(*limit)
	}
	if skip > 0 {
		sb = sb.Offset(skip)
	}

	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	q := QuerierFromCtx(ctx, c.db)
	rows, err := q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, MapError(err, c.table.Entity, uuid.Nil)
	}
	defer rows.Close()

	docs := make([]*T, 0, 16)
	for rows.Next() {
		doc, err := c.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c.table.Entity, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err, c.table.Entity, uuid.Nil)
	}

	return docs, nil
}
