package repository

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"mosaic_backend/internal/platform/apperr"
)

// SoftDelete decorates a Repository so deleted records stay in storage.
// Default reads and counts see only live records, deletes write a
// tombstone, and Restore is the only way back.
type SoftDelete[T any] struct {
	base *Repository[T]
	now  func() time.Time
}

// NewSoftDelete wraps base. The model must embed SoftDeletable.
func NewSoftDelete[T any](base *Repository[T]) (*SoftDelete[T], error) {
	if base == nil {
		return nil, fmt.Errorf("%w: nil repository", ErrNotSoftDeletable)
	}
	if _, ok := any(new(T)).(softDeleter); !ok || !base.fields.has(ColumnIsDeleted) || !base.fields.has(ColumnDeletedAt) {
		return nil, fmt.Errorf("%w: %q", ErrNotSoftDeletable, base.collection)
	}
	return &SoftDelete[T]{base: base, now: time.Now}, nil
}

// Base returns the undecorated repository. Its deletes are physical.
func (s *SoftDelete[T]) Base() *Repository[T] { return s.base }

// Entity returns the record kind used in error messages.
func (s *SoftDelete[T]) Entity() string { return s.base.Entity() }

// live confines f to records without a tombstone. The condition is added
// even when f names is_deleted itself, so a caller filter (or a lookup
// query string) can narrow the live set but never widen it.
func (s *SoftDelete[T]) live(f Filter) Filter {
	return f.And(ColumnIsDeleted, OpEq, false)
}

func onlyDeleted(f Filter) Filter {
	return Eq(ColumnIsDeleted, true).Merge(f)
}

func (s *SoftDelete[T]) liveQuery(q Query) Query {
	q.Filter = s.live(q.Filter)
	return q
}

func (s *SoftDelete[T]) Create(ctx context.Context, item *T) error {
	return s.base.Create(ctx, item)
}

func (s *SoftDelete[T]) BulkCreate(ctx context.Context, items []*T) (WriteResult, error) {
	return s.base.BulkCreate(ctx, items)
}

func (s *SoftDelete[T]) Find(ctx context.Context, q Query) ([]T, error) {
	return s.base.Find(ctx, s.liveQuery(q))
}

func (s *SoftDelete[T]) FindOne(ctx context.Context, f Filter) (*T, error) {
	return s.base.FindOne(ctx, s.live(f))
}

func (s *SoftDelete[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return s.base.FindOne(ctx, s.live(Eq(s.base.fields.primary, id)))
}

func (s *SoftDelete[T]) Count(ctx context.Context, f Filter) (int64, error) {
	return s.base.Count(ctx, s.live(f))
}

func (s *SoftDelete[T]) Exists(ctx context.Context, f Filter) (bool, error) {
	return s.base.Exists(ctx, s.live(f))
}

func (s *SoftDelete[T]) Distinct(ctx context.Context, field string, f Filter) ([]any, error) {
	return s.base.Distinct(ctx, field, s.live(f))
}

func (s *SoftDelete[T]) Paginate(ctx context.Context, q Query) (*Page[T], error) {
	return s.base.Paginate(ctx, s.liveQuery(q))
}

func (s *SoftDelete[T]) ParseLookup(params url.Values) (Query, error) {
	return s.base.ParseLookup(params)
}

func (s *SoftDelete[T]) Lookup(ctx context.Context, params url.Values) (*Page[T], error) {
	q, err := s.base.ParseLookup(params)
	if err != nil {
		return nil, err
	}
	return s.Paginate(ctx, q)
}

// Aggregate prepends a live-records match unless a Match stage already
// constrains is_deleted.
func (s *SoftDelete[T]) Aggregate(ctx context.Context, p Pipeline) ([]map[string]any, error) {
	for _, st := range p {
		if m, ok := st.(Match); ok && s.base.mentions(m.Filter, ColumnIsDeleted) {
			return s.base.Aggregate(ctx, p)
		}
	}
	out := make(Pipeline, 0, len(p)+1)
	out = append(out, Match{Filter: Eq(ColumnIsDeleted, false)})
	out = append(out, p...)
	return s.base.Aggregate(ctx, out)
}

func (s *SoftDelete[T]) UpdateOne(ctx context.Context, f Filter, patch map[string]any) (WriteResult, error) {
	return s.base.UpdateOne(ctx, s.live(f), patch)
}

func (s *SoftDelete[T]) UpdateMany(ctx context.Context, f Filter, patch map[string]any) (WriteResult, error) {
	return s.base.UpdateMany(ctx, s.live(f), patch)
}

func (s *SoftDelete[T]) UpdateByID(ctx context.Context, id any, patch map[string]any) (*T, error) {
	return s.base.updateByID(ctx, id, patch, Eq(ColumnIsDeleted, false))
}

func (s *SoftDelete[T]) ResolvePatch(patch map[string]any) (map[string]any, error) {
	return s.base.ResolvePatch(patch)
}

func (s *SoftDelete[T]) BulkUpdate(ctx context.Context, specs []UpdateSpec) (WriteResult, error) {
	ops := make([]WriteModel[T], 0, len(specs))
	for _, sp := range specs {
		ops = append(ops, UpdateOneModel[T](sp.Filter, sp.Patch))
	}
	return s.BulkWrite(ctx, ops)
}

func (s *SoftDelete[T]) tombstone() map[string]any {
	return map[string]any{ColumnIsDeleted: true, ColumnDeletedAt: s.now().UTC()}
}

// DeleteOne marks the first live record matching f as deleted. The error is
// ErrSoftDeleted when a record was marked and NotFound when none matched.
func (s *SoftDelete[T]) DeleteOne(ctx context.Context, f Filter) (WriteResult, error) {
	res, err := s.base.updateOne(ctx, s.live(f), s.tombstone())
	if err != nil {
		return res, err
	}
	if res.Matched == 0 {
		return res, apperr.NotFound(fmt.Sprintf("%s not found", s.base.opts.Entity))
	}
	return res, ErrSoftDeleted
}

// DeleteMany marks every live record matching f as deleted.
func (s *SoftDelete[T]) DeleteMany(ctx context.Context, f Filter) (WriteResult, error) {
	res, err := s.base.updateMany(ctx, s.live(f), s.tombstone())
	if err != nil {
		return res, err
	}
	return res, ErrSoftDeleted
}

// DeleteByID marks the record with id as deleted. A missing or already
// deleted record is NotFound.
func (s *SoftDelete[T]) DeleteByID(ctx context.Context, id any) (WriteResult, error) {
	res, err := s.base.updateMany(ctx, s.live(Eq(s.base.fields.primary, id)), s.tombstone())
	if err != nil {
		return res, err
	}
	if res.Matched == 0 {
		return res, apperr.NotFound(fmt.Sprintf("%s not found", s.base.opts.Entity))
	}
	return res, ErrSoftDeleted
}

// BulkWrite converts deletes into tombstone updates and confines the other
// filtered operations to live records. It returns ErrSoftDeleted alongside
// the result when any delete was converted.
func (s *SoftDelete[T]) BulkWrite(ctx context.Context, ops []WriteModel[T]) (WriteResult, error) {
	converted := false
	out := make([]WriteModel[T], 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case KindDeleteOne:
			op = WriteModel[T]{Kind: KindUpdateOne, Filter: op.Filter, Patch: s.tombstone(), columns: true}
			converted = true
		case KindDeleteMany:
			op = WriteModel[T]{Kind: KindUpdateMany, Filter: op.Filter, Patch: s.tombstone(), columns: true}
			converted = true
		}
		if op.Kind != KindInsertOne {
			op.Filter = s.live(op.Filter)
		}
		out = append(out, op)
	}

	res, err := s.base.BulkWrite(ctx, out)
	if err != nil {
		return res, err
	}
	if converted {
		return res, ErrSoftDeleted
	}
	return res, nil
}

// Restore clears the tombstone on every deleted record matching f.
func (s *SoftDelete[T]) Restore(ctx context.Context, f Filter) (WriteResult, error) {
	return s.base.updateMany(ctx, onlyDeleted(f), map[string]any{ColumnIsDeleted: false, ColumnDeletedAt: nil})
}

// RestoreByID restores one record and returns it.
func (s *SoftDelete[T]) RestoreByID(ctx context.Context, id any) (*T, error) {
	res, err := s.Restore(ctx, Eq(s.base.fields.primary, id))
	if err != nil {
		return nil, err
	}
	if res.Matched == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("deleted %s not found", s.base.opts.Entity))
	}
	return s.base.FindByID(ctx, id)
}

// FindWithDeleted reads live and deleted records alike.
func (s *SoftDelete[T]) FindWithDeleted(ctx context.Context, q Query) ([]T, error) {
	return s.base.Find(ctx, q)
}

// FindDeleted reads only deleted records.
func (s *SoftDelete[T]) FindDeleted(ctx context.Context, q Query) ([]T, error) {
	q.Filter = onlyDeleted(q.Filter)
	return s.base.Find(ctx, q)
}

// PaginateDeleted pages through deleted records.
func (s *SoftDelete[T]) PaginateDeleted(ctx context.Context, q Query) (*Page[T], error) {
	q.Filter = onlyDeleted(q.Filter)
	return s.base.Paginate(ctx, q)
}

func (s *SoftDelete[T]) CountWithDeleted(ctx context.Context, f Filter) (int64, error) {
	return s.base.Count(ctx, f)
}

func (s *SoftDelete[T]) CountDeleted(ctx context.Context, f Filter) (int64, error) {
	return s.base.Count(ctx, onlyDeleted(f))
}

func (s *SoftDelete[T]) FindByIDWithDeleted(ctx context.Context, id any) (*T, error) {
	return s.base.FindByID(ctx, id)
}

// IsSoftDeleted reports whether the record with id carries a tombstone.
func (s *SoftDelete[T]) IsSoftDeleted(ctx context.Context, id any) (bool, error) {
	if _, err := s.base.FindByID(ctx, id); err != nil {
		return false, err
	}
	return s.base.Exists(ctx, onlyDeleted(Eq(s.base.fields.primary, id)))
}
