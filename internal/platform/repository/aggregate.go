package repository

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm/clause"

	"mosaic_backend/internal/platform/apperr"
)

// Stage is one step of an aggregation Pipeline.
type Stage interface {
	stage()
}

// Pipeline is an ordered list of stages. Match stages must precede Group.
type Pipeline []Stage

// Match filters the input rows.
type Match struct{ Filter Filter }

// Group groups rows by the given fields and computes named accumulators.
type Group struct {
	By     []string
	Fields map[string]Accumulator
}

// SortBy orders the output by group keys, accumulator names or columns.
type SortBy []SortField

// Limit caps the number of output rows.
type Limit int

// Skip drops the first n output rows.
type Skip int

func (Match) stage()  {}
func (Group) stage()  {}
func (SortBy) stage() {}
func (Limit) stage()  {}
func (Skip) stage()   {}

// AccOp is an aggregate function.
type AccOp string

const (
	AccSum   AccOp = "sum"
	AccAvg   AccOp = "avg"
	AccMin   AccOp = "min"
	AccMax   AccOp = "max"
	AccCount AccOp = "count"
)

// Accumulator applies Op to Field within a group. Field is ignored for count.
type Accumulator struct {
	Op    AccOp
	Field string
}

func Sum(field string) Accumulator { return Accumulator{Op: AccSum, Field: field} }
func Avg(field string) Accumulator { return Accumulator{Op: AccAvg, Field: field} }
func Min(field string) Accumulator { return Accumulator{Op: AccMin, Field: field} }
func Max(field string) Accumulator { return Accumulator{Op: AccMax, Field: field} }
func Count() Accumulator           { return Accumulator{Op: AccCount} }

var aliasPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Aggregate runs p and returns one map per output row. The tenant match is
// applied automatically; an explicit match on another tenant is forbidden.
func (r *Repository[T]) Aggregate(ctx context.Context, p Pipeline) ([]map[string]any, error) {
	var (
		match   Filter
		group   *Group
		sorts   []SortField
		limit   int
		skip    int
		aliases = map[string]bool{}
	)
	for _, s := range p {
		switch st := s.(type) {
		case Match:
			if group != nil {
				return nil, apperr.Validation("match stage after group is not supported")
			}
			match = match.Merge(st.Filter)
		case Group:
			if group != nil {
				return nil, apperr.Validation("only one group stage is supported")
			}
			g := st
			group = &g
		case SortBy:
			sorts = append(sorts, st...)
		case Limit:
			if st < 1 {
				return nil, apperr.Validation("limit stage must be positive")
			}
			limit = int(st)
		case Skip:
			if st < 0 {
				return nil, apperr.Validation("skip stage must not be negative")
			}
			skip = int(st)
		default:
			return nil, apperr.Validation(fmt.Sprintf("unsupported stage %T", s))
		}
	}

	if err := r.checkTenantMatch(ctx, match); err != nil {
		return nil, err
	}
	q, err := r.scoped(ctx, match)
	if err != nil {
		return nil, err
	}

	if group != nil {
		var (
			parts []string
			vars  []any
		)
		for _, by := range group.By {
			col, err := r.fields.column(by)
			if err != nil {
				return nil, err
			}
			parts = append(parts, "?")
			vars = append(vars, clause.Column{Name: col})
			q = q.Group(col)
			aliases[col] = true
			aliases[by] = true
		}

		names := make([]string, 0, len(group.Fields))
		for name := range group.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !aliasPattern.MatchString(name) {
				return nil, apperr.Validation(fmt.Sprintf("invalid accumulator name %q", name))
			}
			acc := group.Fields[name]
			if acc.Op == AccCount {
				parts = append(parts, "COUNT(*) AS ?")
				vars = append(vars, clause.Column{Name: name})
			} else {
				fn, ok := map[AccOp]string{AccSum: "SUM", AccAvg: "AVG", AccMin: "MIN", AccMax: "MAX"}[acc.Op]
				if !ok {
					return nil, apperr.Validation(fmt.Sprintf("unsupported accumulator %q", acc.Op))
				}
				col, err := r.fields.column(acc.Field)
				if err != nil {
					return nil, err
				}
				parts = append(parts, fn+"(?) AS ?")
				vars = append(vars, clause.Column{Name: col}, clause.Column{Name: name})
			}
			aliases[name] = true
		}
		if len(parts) == 0 {
			return nil, apperr.Validation("group stage needs keys or accumulators")
		}
		q = q.Select(strings.Join(parts, ", "), vars...)
	}

	for _, s := range sorts {
		name := s.Field
		switch {
		case group != nil && aliases[name]:
			if col, err := r.fields.column(name); err == nil && aliases[col] {
				name = col
			}
		case group != nil:
			return nil, apperr.Validation(fmt.Sprintf("cannot sort grouped output by %q", s.Field))
		default:
			col, err := r.fields.column(name)
			if err != nil {
				return nil, err
			}
			name = col
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: name}, Desc: s.Desc})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if skip > 0 {
		q = q.Offset(skip)
	}

	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return nil, r.translate(err)
	}
	for _, row := range rows {
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

// checkTenantMatch rejects a match on a tenant other than the caller's.
func (r *Repository[T]) checkTenantMatch(ctx context.Context, f Filter) error {
	id, ok := r.tenantID(ctx)
	if !ok {
		return nil
	}
	for _, c := range f.Conditions {
		col, err := r.fields.column(c.Field)
		if err != nil || col != ColumnTenantID {
			continue
		}
		if c.Op != OpEq && c.Op != "" {
			return apperr.Forbidden("tenant filter must be an equality match")
		}
		if v, _ := c.Value.(string); v != id {
			return apperr.Forbidden("cannot aggregate across tenants")
		}
	}
	return nil
}
