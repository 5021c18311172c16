package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"mosaic_backend/internal/platform/apperr"
)

// Op is a comparison operator in a filter condition.
type Op string

const (
	OpEq     Op = "eq"
	OpNe     Op = "ne"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
	OpIn     Op = "in"
	OpNin    Op = "nin"
	OpLike   Op = "like"
	OpExists Op = "exists"
)

var validOps = map[Op]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpIn: {}, OpNin: {}, OpLike: {}, OpExists: {},
}

// Condition compares one field with a value.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Search is a case-insensitive substring match OR-ed across fields.
type Search struct {
	Term   string
	Fields []string
}

// Filter is a conjunction of conditions plus an optional free-text search.
// The zero value matches everything.
type Filter struct {
	Conditions []Condition
	Search     *Search
}

// Where starts a filter with one condition.
func Where(field string, op Op, value any) Filter {
	return Filter{}.And(field, op, value)
}

// Eq is shorthand for Where(field, OpEq, value).
func Eq(field string, value any) Filter {
	return Where(field, OpEq, value)
}

// And returns a copy of f with an extra condition.
func (f Filter) And(field string, op Op, value any) Filter {
	conds := make([]Condition, len(f.Conditions), len(f.Conditions)+1)
	copy(conds, f.Conditions)
	f.Conditions = append(conds, Condition{Field: field, Op: op, Value: value})
	return f
}

// Merge returns the conjunction of f and g. g's search wins when both set one.
func (f Filter) Merge(g Filter) Filter {
	out := Filter{Conditions: make([]Condition, 0, len(f.Conditions)+len(g.Conditions)), Search: f.Search}
	out.Conditions = append(out.Conditions, f.Conditions...)
	out.Conditions = append(out.Conditions, g.Conditions...)
	if g.Search != nil {
		out.Search = g.Search
	}
	return out
}

// IsEmpty reports whether f has no conditions and no search.
func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0 && (f.Search == nil || f.Search.Term == "")
}

// expressions converts f into gorm clause expressions. resolve maps a field
// name to its column.
func (f Filter) expressions(resolve func(string) (string, error)) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(f.Conditions)+1)
	for _, c := range f.Conditions {
		col, err := resolve(c.Field)
		if err != nil {
			return nil, err
		}
		e, err := c.expression(col)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}

	if f.Search != nil && strings.TrimSpace(f.Search.Term) != "" && len(f.Search.Fields) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(f.Search.Term))) + "%"
		ors := make([]clause.Expression, 0, len(f.Search.Fields))
		for _, field := range f.Search.Fields {
			col, err := resolve(field)
			if err != nil {
				return nil, err
			}
			ors = append(ors, clause.Expr{
				SQL:  `LOWER(?) LIKE ? ESCAPE '\'`,
				Vars: []any{clause.Column{Name: col}, pattern},
			})
		}
		exprs = append(exprs, clause.Or(ors...))
	}
	return exprs, nil
}

func (c Condition) expression(col string) (clause.Expression, error) {
	column := clause.Column{Name: col}
	switch c.Op {
	case OpEq, "":
		if c.Value == nil {
			return clause.Expr{SQL: "? IS NULL", Vars: []any{column}}, nil
		}
		return clause.Eq{Column: column, Value: c.Value}, nil
	case OpNe:
		if c.Value == nil {
			return clause.Expr{SQL: "? IS NOT NULL", Vars: []any{column}}, nil
		}
		return clause.Neq{Column: column, Value: c.Value}, nil
	case OpGt:
		return clause.Gt{Column: column, Value: c.Value}, nil
	case OpGte:
		return clause.Gte{Column: column, Value: c.Value}, nil
	case OpLt:
		return clause.Lt{Column: column, Value: c.Value}, nil
	case OpLte:
		return clause.Lte{Column: column, Value: c.Value}, nil
	case OpIn, OpNin:
		values, ok := c.Value.([]any)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("%s.%s expects a list", c.Field, c.Op))
		}
		in := clause.IN{Column: column, Values: values}
		if c.Op == OpNin {
			return clause.Not(in), nil
		}
		return in, nil
	case OpLike:
		s, ok := c.Value.(string)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("%s.like expects a string", c.Field))
		}
		return clause.Expr{
			SQL:  `LOWER(?) LIKE ? ESCAPE '\'`,
			Vars: []any{column, "%" + escapeLike(strings.ToLower(s)) + "%"},
		}, nil
	case OpExists:
		exists, ok := c.Value.(bool)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("%s.exists expects a boolean", c.Field))
		}
		if exists {
			return clause.Expr{SQL: "? IS NOT NULL", Vars: []any{column}}, nil
		}
		return clause.Expr{SQL: "? IS NULL", Vars: []any{column}}, nil
	default:
		return nil, apperr.Validation(fmt.Sprintf("unsupported operator %q", c.Op))
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
