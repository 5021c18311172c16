package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mosaic_backend/internal/platform/apperr"
)

const bulkBatchSize = 200

// WriteKind names one operation in a BulkWrite batch.
type WriteKind string

const (
	KindInsertOne  WriteKind = "insertOne"
	KindUpdateOne  WriteKind = "updateOne"
	KindUpdateMany WriteKind = "updateMany"
	KindDeleteOne  WriteKind = "deleteOne"
	KindDeleteMany WriteKind = "deleteMany"
	KindReplaceOne WriteKind = "replaceOne"
)

// WriteModel is one operation in a BulkWrite batch. Document is used by
// insert and replace, Patch by updates, Filter by everything but insert.
type WriteModel[T any] struct {
	Kind     WriteKind
	Filter   Filter
	Patch    map[string]any
	Document *T

	// columns marks Patch as already resolved to columns, bypassing the
	// protected-column check. Used for tombstone updates.
	columns bool
}

func InsertOneModel[T any](doc *T) WriteModel[T] {
	return WriteModel[T]{Kind: KindInsertOne, Document: doc}
}

func UpdateOneModel[T any](f Filter, patch map[string]any) WriteModel[T] {
	return WriteModel[T]{Kind: KindUpdateOne, Filter: f, Patch: patch}
}

func UpdateManyModel[T any](f Filter, patch map[string]any) WriteModel[T] {
	return WriteModel[T]{Kind: KindUpdateMany, Filter: f, Patch: patch}
}

func DeleteOneModel[T any](f Filter) WriteModel[T] {
	return WriteModel[T]{Kind: KindDeleteOne, Filter: f}
}

func DeleteManyModel[T any](f Filter) WriteModel[T] {
	return WriteModel[T]{Kind: KindDeleteMany, Filter: f}
}

func ReplaceOneModel[T any](f Filter, doc *T) WriteModel[T] {
	return WriteModel[T]{Kind: KindReplaceOne, Filter: f, Document: doc}
}

// UpdateSpec is one filter/patch pair for BulkUpdate.
type UpdateSpec struct {
	Filter Filter         `json:"filter"`
	Patch  map[string]any `json:"update"`
}

// reserve assigns a contiguous range of sequence values to items. It must
// run outside any transaction on the repository's connection.
func (r *Repository[T]) reserve(ctx context.Context, items []*T) error {
	if !r.opts.AutoIncrement || len(items) == 0 {
		return nil
	}
	first, err := r.opts.Sequencer.Next(ctx, r.collection, int64(len(items)))
	if err != nil {
		return apperr.Internal(err)
	}
	for i, item := range items {
		any(item).(Sequenced).SetSeq(first + int64(i))
	}
	return nil
}

func (r *Repository[T]) insert(ctx context.Context, items []*T) error {
	for _, item := range items {
		r.stamp(ctx, item)
	}
	if err := r.db.WithContext(ctx).CreateInBatches(items, bulkBatchSize).Error; err != nil {
		return r.translate(err)
	}
	return nil
}

// BulkCreate inserts items in one transaction, assigning sequential Seq
// values from a single reserved range.
func (r *Repository[T]) BulkCreate(ctx context.Context, items []*T) (WriteResult, error) {
	if len(items) == 0 {
		return WriteResult{}, nil
	}
	if err := r.reserve(ctx, items); err != nil {
		return WriteResult{}, err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.withDB(tx).insert(ctx, items)
	})
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Inserted: int64(len(items))}, nil
}

// BulkUpdate applies each patch to the first record matching its filter.
func (r *Repository[T]) BulkUpdate(ctx context.Context, specs []UpdateSpec) (WriteResult, error) {
	ops := make([]WriteModel[T], 0, len(specs))
	for _, s := range specs {
		ops = append(ops, UpdateOneModel[T](s.Filter, s.Patch))
	}
	return r.BulkWrite(ctx, ops)
}

// BulkWrite runs ops in order inside one transaction. Filters are tenant
// scoped and inserted documents are tenant stamped.
func (r *Repository[T]) BulkWrite(ctx context.Context, ops []WriteModel[T]) (WriteResult, error) {
	var inserts []*T
	for i, op := range ops {
		switch op.Kind {
		case KindInsertOne:
			if op.Document == nil {
				return WriteResult{}, apperr.Validation(fmt.Sprintf("operation %d: document is required", i))
			}
			inserts = append(inserts, op.Document)
		case KindReplaceOne:
			if op.Document == nil {
				return WriteResult{}, apperr.Validation(fmt.Sprintf("operation %d: document is required", i))
			}
		case KindUpdateOne, KindUpdateMany, KindDeleteOne, KindDeleteMany:
		default:
			return WriteResult{}, apperr.Validation(fmt.Sprintf("operation %d: unsupported kind %q", i, op.Kind))
		}
	}
	if err := r.reserve(ctx, inserts); err != nil {
		return WriteResult{}, err
	}

	var total WriteResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txr := r.withDB(tx)
		for _, op := range ops {
			res, err := txr.apply(ctx, op)
			if err != nil {
				return err
			}
			total.add(res)
		}
		return nil
	})
	if err != nil {
		return WriteResult{}, err
	}
	return total, nil
}

func (r *Repository[T]) apply(ctx context.Context, op WriteModel[T]) (WriteResult, error) {
	switch op.Kind {
	case KindInsertOne:
		if err := r.insert(ctx, []*T{op.Document}); err != nil {
			return WriteResult{}, err
		}
		return WriteResult{Inserted: 1}, nil
	case KindUpdateOne:
		if op.columns {
			return r.updateOne(ctx, op.Filter, op.Patch)
		}
		return r.UpdateOne(ctx, op.Filter, op.Patch)
	case KindUpdateMany:
		if op.columns {
			return r.updateMany(ctx, op.Filter, op.Patch)
		}
		return r.UpdateMany(ctx, op.Filter, op.Patch)
	case KindDeleteOne:
		return r.DeleteOne(ctx, op.Filter)
	case KindDeleteMany:
		return r.DeleteMany(ctx, op.Filter)
	case KindReplaceOne:
		return r.replaceOne(ctx, op.Filter, op.Document)
	}
	return WriteResult{}, apperr.Validation(fmt.Sprintf("unsupported kind %q", op.Kind))
}

// replaceOne overwrites every writable column of the first record matching
// f with doc. Identity, tenant, sequence and tombstone columns are kept.
func (r *Repository[T]) replaceOne(ctx context.Context, f Filter, doc *T) (WriteResult, error) {
	id, ok, err := r.firstID(ctx, f)
	if err != nil || !ok {
		return WriteResult{}, err
	}

	omit := []string{r.fields.primary, "created_at"}
	for _, col := range []string{ColumnTenantID, ColumnSeq, ColumnIsDeleted, ColumnDeletedAt} {
		if r.fields.has(col) {
			omit = append(omit, col)
		}
	}
	res := r.db.WithContext(ctx).Model(new(T)).
		Where(clause.Eq{Column: clause.Column{Name: r.fields.primary}, Value: id}).
		Select("*").Omit(omit...).Updates(doc)
	if res.Error != nil {
		return WriteResult{}, r.translate(res.Error)
	}
	return WriteResult{Matched: 1, Modified: res.RowsAffected}, nil
}
