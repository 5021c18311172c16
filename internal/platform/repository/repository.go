package repository

import (
	"context"
	"fmt"
	"net/url"
	"reflect"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/tenant"
)

// Options configures a Repository.
type Options struct {
	// Entity names the record kind in error messages, e.g. "task".
	Entity string
	// TenantScoped stamps and filters tenant_id from the request context.
	TenantScoped bool
	// AutoIncrement assigns Seq from Sequencer on create.
	AutoIncrement bool
	Sequencer     Sequencer
	// SearchFields are used by Lookup when the request omits qMatchWith.
	SearchFields []string
}

// WriteResult is the result shape shared by updates, deletes and bulk writes.
type WriteResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
	Deleted  int64 `json:"deleted"`
	Inserted int64 `json:"inserted"`
}

func (w *WriteResult) add(o WriteResult) {
	w.Matched += o.Matched
	w.Modified += o.Modified
	w.Deleted += o.Deleted
	w.Inserted += o.Inserted
}

// Repository is a tenant-scoped CRUD, pagination and bulk-write contract
// over one collection.
type Repository[T any] struct {
	db         *gorm.DB
	collection string
	opts       Options
	fields     *fields
}

// New builds a Repository for the collection bound in reg. It fails when
// the collection is not registered or when opts require capabilities the
// model does not embed.
func New[T any](reg *Registry, collection string, opts Options) (*Repository[T], error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrNoBinding)
	}
	b, ok := reg.Binding(collection)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoBinding, collection)
	}
	if reflect.TypeOf(b.Model) != reflect.TypeOf(new(T)) {
		return nil, fmt.Errorf("%w: %q is %T, want %T", ErrModelMismatch, collection, b.Model, new(T))
	}

	f, err := parseFields(b.DB, new(T))
	if err != nil {
		return nil, err
	}
	if opts.TenantScoped {
		if _, ok := any(new(T)).(TenantStamper); !ok || !f.has(ColumnTenantID) {
			return nil, fmt.Errorf("%w: %q", ErrNotTenantScoped, collection)
		}
	}
	if opts.AutoIncrement {
		if _, ok := any(new(T)).(Sequenced); !ok || opts.Sequencer == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotSequenced, collection)
		}
	}
	if opts.Entity == "" {
		opts.Entity = collection
	}
	for _, s := range opts.SearchFields {
		if _, err := f.column(s); err != nil {
			return nil, fmt.Errorf("search field %q of %q: %w", s, collection, err)
		}
	}

	return &Repository[T]{db: b.DB, collection: collection, opts: opts, fields: f}, nil
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string { return r.collection }

// Entity returns the record kind used in error messages.
func (r *Repository[T]) Entity() string { return r.opts.Entity }

func (r *Repository[T]) withDB(db *gorm.DB) *Repository[T] {
	c := *r
	c.db = db
	return &c
}

func (r *Repository[T]) translate(err error) error {
	return apperr.FromStorage(err, r.opts.Entity)
}

// model returns a query over the collection scoped to the active tenant.
func (r *Repository[T]) model(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx).Model(new(T))
	if id, ok := r.tenantID(ctx); ok {
		q = q.Where(clause.Eq{Column: clause.Column{Name: ColumnTenantID}, Value: id})
	}
	return q
}

func (r *Repository[T]) tenantID(ctx context.Context) (string, bool) {
	if !r.opts.TenantScoped {
		return "", false
	}
	return tenant.FromContext(ctx)
}

// scoped applies the tenant scope and f to a query over the collection.
func (r *Repository[T]) scoped(ctx context.Context, f Filter) (*gorm.DB, error) {
	exprs, err := f.expressions(r.fields.column)
	if err != nil {
		return nil, err
	}
	q := r.model(ctx)
	if len(exprs) > 0 {
		q = q.Clauses(clause.Where{Exprs: exprs})
	}
	return q, nil
}

// mentions reports whether f has a condition on column.
func (r *Repository[T]) mentions(f Filter, column string) bool {
	for _, c := range f.Conditions {
		if col, err := r.fields.column(c.Field); err == nil && col == column {
			return true
		}
	}
	return false
}

func (r *Repository[T]) stamp(ctx context.Context, item *T) {
	if id, ok := r.tenantID(ctx); ok {
		any(item).(TenantStamper).SetTenantID(id)
	}
}

func (r *Repository[T]) order(q *gorm.DB, sort []SortField) (*gorm.DB, error) {
	if len(sort) == 0 {
		return q.Order(clause.OrderByColumn{Column: clause.Column{Name: r.fields.primary}, Desc: true}), nil
	}
	for _, s := range sort {
		col, err := r.fields.column(s.Field)
		if err != nil {
			return nil, err
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: s.Desc})
	}
	return q, nil
}

func (r *Repository[T]) project(q *gorm.DB, sel []string) (*gorm.DB, error) {
	if len(sel) == 0 {
		return q, nil
	}
	cols := make([]string, 0, len(sel)+1)
	cols = append(cols, r.fields.primary)
	for _, s := range sel {
		col, err := r.fields.column(s)
		if err != nil {
			return nil, err
		}
		if col != r.fields.primary {
			cols = append(cols, col)
		}
	}
	return q.Select(cols), nil
}

// Create inserts item, stamping the tenant and assigning the next sequence
// value when configured.
func (r *Repository[T]) Create(ctx context.Context, item *T) error {
	r.stamp(ctx, item)
	if r.opts.AutoIncrement {
		n, err := r.opts.Sequencer.Next(ctx, r.collection, 1)
		if err != nil {
			return apperr.Internal(err)
		}
		any(item).(Sequenced).SetSeq(n)
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

// Find returns all records matching q. Paging fields are honoured only when
// Limit is set.
func (r *Repository[T]) Find(ctx context.Context, q Query) ([]T, error) {
	db, err := r.scoped(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	if db, err = r.order(db, q.Sort); err != nil {
		return nil, err
	}
	if db, err = r.project(db, q.Select); err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
		if q.Page > 1 {
			db = db.Offset((q.Page - 1) * q.Limit)
		}
	}

	var out []T
	if err := db.Find(&out).Error; err != nil {
		return nil, r.translate(err)
	}
	return out, nil
}

// FindOne returns the first record matching f, or a NotFound error.
func (r *Repository[T]) FindOne(ctx context.Context, f Filter) (*T, error) {
	db, err := r.scoped(ctx, f)
	if err != nil {
		return nil, err
	}
	var out T
	if err := db.Order(clause.OrderByColumn{Column: clause.Column{Name: r.fields.primary}}).Take(&out).Error; err != nil {
		return nil, r.translate(err)
	}
	return &out, nil
}

// FindByID returns the record with the given primary key.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return r.FindOne(ctx, Eq(r.fields.primary, id))
}

// UpdateOne applies patch to the first record matching f.
func (r *Repository[T]) UpdateOne(ctx context.Context, f Filter, patch map[string]any) (WriteResult, error) {
	cols, err := r.resolvePatch(patch)
	if err != nil {
		return WriteResult{}, err
	}
	return r.updateOne(ctx, f, cols)
}

// UpdateMany applies patch to every record matching f.
func (r *Repository[T]) UpdateMany(ctx context.Context, f Filter, patch map[string]any) (WriteResult, error) {
	cols, err := r.resolvePatch(patch)
	if err != nil {
		return WriteResult{}, err
	}
	return r.updateMany(ctx, f, cols)
}

// UpdateByID applies patch to the record with the given id and returns it.
func (r *Repository[T]) UpdateByID(ctx context.Context, id any, patch map[string]any) (*T, error) {
	return r.updateByID(ctx, id, patch, Filter{})
}

func (r *Repository[T]) updateByID(ctx context.Context, id any, patch map[string]any, extra Filter) (*T, error) {
	cols, err := r.resolvePatch(patch)
	if err != nil {
		return nil, err
	}
	f := Eq(r.fields.primary, id).Merge(extra)
	res, err := r.updateMany(ctx, f, cols)
	if err != nil {
		return nil, err
	}
	if res.Matched == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("%s not found", r.opts.Entity))
	}
	return r.FindOne(ctx, f)
}

// protected columns cannot be written through a client patch.
func (r *Repository[T]) protected(col string) bool {
	switch col {
	case r.fields.primary, ColumnTenantID, ColumnIsDeleted, ColumnDeletedAt, ColumnSeq, "created_at", "updated_at":
		return true
	}
	return false
}

// ResolvePatch maps patch keys (JSON, Go or column names) to columns and
// drops protected ones, exactly as the update methods do before writing.
func (r *Repository[T]) ResolvePatch(patch map[string]any) (map[string]any, error) {
	return r.resolvePatch(patch)
}

func (r *Repository[T]) resolvePatch(patch map[string]any) (map[string]any, error) {
	cols := make(map[string]any, len(patch))
	for k, v := range patch {
		col, err := r.fields.column(k)
		if err != nil {
			return nil, err
		}
		if r.protected(col) {
			continue
		}
		cols[col] = v
	}
	if len(cols) == 0 {
		return nil, apperr.Validation("no updatable fields supplied")
	}
	return cols, nil
}

func (r *Repository[T]) updateOne(ctx context.Context, f Filter, cols map[string]any) (WriteResult, error) {
	id, ok, err := r.firstID(ctx, f)
	if err != nil || !ok {
		return WriteResult{}, err
	}
	return r.updateMany(ctx, Eq(r.fields.primary, id), cols)
}

func (r *Repository[T]) updateMany(ctx context.Context, f Filter, cols map[string]any) (WriteResult, error) {
	db, err := r.scoped(ctx, f)
	if err != nil {
		return WriteResult{}, err
	}
	res := db.Updates(cols)
	if res.Error != nil {
		return WriteResult{}, r.translate(res.Error)
	}
	return WriteResult{Matched: res.RowsAffected, Modified: res.RowsAffected}, nil
}

// DeleteOne physically removes the first record matching f.
func (r *Repository[T]) DeleteOne(ctx context.Context, f Filter) (WriteResult, error) {
	id, ok, err := r.firstID(ctx, f)
	if err != nil || !ok {
		return WriteResult{}, err
	}
	return r.DeleteMany(ctx, Eq(r.fields.primary, id))
}

// DeleteByID physically removes the record with the given id.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) (WriteResult, error) {
	res, err := r.DeleteMany(ctx, Eq(r.fields.primary, id))
	if err != nil {
		return res, err
	}
	if res.Deleted == 0 {
		return res, apperr.NotFound(fmt.Sprintf("%s not found", r.opts.Entity))
	}
	return res, nil
}

// DeleteMany physically removes every record matching f.
func (r *Repository[T]) DeleteMany(ctx context.Context, f Filter) (WriteResult, error) {
	db, err := r.scoped(ctx, f)
	if err != nil {
		return WriteResult{}, err
	}
	res := db.Delete(new(T))
	if res.Error != nil {
		return WriteResult{}, r.translate(res.Error)
	}
	return WriteResult{Matched: res.RowsAffected, Deleted: res.RowsAffected}, nil
}

// Count returns the number of records matching f.
func (r *Repository[T]) Count(ctx context.Context, f Filter) (int64, error) {
	db, err := r.scoped(ctx, f)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, r.translate(err)
	}
	return n, nil
}

// Exists reports whether any record matches f.
func (r *Repository[T]) Exists(ctx context.Context, f Filter) (bool, error) {
	_, ok, err := r.firstID(ctx, f)
	return ok, err
}

// firstID returns the primary key of the first record matching f.
func (r *Repository[T]) firstID(ctx context.Context, f Filter) (any, bool, error) {
	db, err := r.scoped(ctx, f)
	if err != nil {
		return nil, false, err
	}
	var rows []T
	if err := db.Select(r.fields.primary).
		Order(clause.OrderByColumn{Column: clause.Column{Name: r.fields.primary}}).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, false, r.translate(err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return r.primaryValue(ctx, &rows[0]), true, nil
}

// primaryValue reads the primary key of item.
func (r *Repository[T]) primaryValue(ctx context.Context, item *T) any {
	v, _ := r.fields.schema.PrioritizedPrimaryField.ValueOf(ctx, reflect.ValueOf(item).Elem())
	return v
}

// Distinct returns the distinct values of field among records matching f.
func (r *Repository[T]) Distinct(ctx context.Context, field string, f Filter) ([]any, error) {
	col, err := r.fields.column(field)
	if err != nil {
		return nil, err
	}
	db, err := r.scoped(ctx, f)
	if err != nil {
		return nil, err
	}
	rows, err := db.Distinct(col).Order(clause.OrderByColumn{Column: clause.Column{Name: col}}).Rows()
	if err != nil {
		return nil, r.translate(err)
	}
	defer func() { _ = rows.Close() }()

	out := []any{}
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, r.translate(err)
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, r.translate(err)
	}
	return out, nil
}

// Paginate returns one page of records matching q. Count and fetch run
// concurrently against the same filter.
func (r *Repository[T]) Paginate(ctx context.Context, q Query) (*Page[T], error) {
	q, err := q.normalizePaging()
	if err != nil {
		return nil, err
	}

	var (
		items []T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.Count(gctx, q.Filter)
		total = n
		return err
	})
	g.Go(func() error {
		out, err := r.Find(gctx, q)
		items = out
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewPage(items, total, q.Page, q.Limit), nil
}

// ParseLookup builds a Query from request query parameters without running it.
func (r *Repository[T]) ParseLookup(params url.Values) (Query, error) {
	return r.fields.parseLookup(params, r.opts.SearchFields)
}

// Lookup parses request query parameters and paginates the result.
func (r *Repository[T]) Lookup(ctx context.Context, params url.Values) (*Page[T], error) {
	q, err := r.ParseLookup(params)
	if err != nil {
		return nil, err
	}
	return r.Paginate(ctx, q)
}
