package repository

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"mosaic_backend/internal/platform/apperr"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
	MaxLimit     = 250
)

// Reserved lookup parameters; every other key is a filter.
const (
	ParamPage      = "page"
	ParamLimit     = "limit"
	ParamSort      = "sort"
	ParamFields    = "fields"
	ParamSearch    = "q"
	ParamMatchWith = "qMatchWith"
)

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// ParseSort parses "-priority,title" into sort fields.
func ParseSort(s string) []SortField {
	var out []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			out = append(out, SortField{Field: part[1:], Desc: true})
			continue
		}
		out = append(out, SortField{Field: strings.TrimPrefix(part, "+")})
	}
	return out
}

// Query describes a read: filter, paging, ordering and projection.
// Limit 0 on Find means no limit; Paginate applies DefaultLimit.
type Query struct {
	Filter Filter
	Page   int
	Limit  int
	Sort   []SortField
	Select []string
}

// normalizePaging validates and defaults page/limit for pagination.
func (q Query) normalizePaging() (Query, error) {
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Page < 1 {
		return q, apperr.Validation("page must be a positive integer")
	}
	if q.Limit < 1 {
		return q, apperr.Validation("limit must be a positive integer")
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q, nil
}

// parseLookup builds a Query from flat query parameters:
//
//	q=term&qMatchWith=title,description   case-insensitive search
//	status=todo                           equality
//	status.in=todo,doing                  list operators (in, nin)
//	priority.gte=3                        comparison operators
//	fields=title,status                   projection
//	page=2&limit=50&sort=-priority        paging and ordering
//
// Values are coerced to the column type of the field they filter.
func (f *fields) parseLookup(params url.Values, defaultSearch []string) (Query, error) {
	var q Query

	if v := params.Get(ParamPage); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, apperr.Validation("page must be a positive integer")
		}
		q.Page = n
	}
	if v := params.Get(ParamLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, apperr.Validation("limit must be a positive integer")
		}
		q.Limit = n
	}
	q.Sort = ParseSort(params.Get(ParamSort))
	for _, s := range strings.Split(params.Get(ParamFields), ",") {
		if s = strings.TrimSpace(s); s != "" {
			q.Select = append(q.Select, s)
		}
	}

	if term := strings.TrimSpace(params.Get(ParamSearch)); term != "" {
		searchFields := defaultSearch
		if mw := params.Get(ParamMatchWith); mw != "" {
			searchFields = nil
			for _, s := range strings.Split(mw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					searchFields = append(searchFields, s)
				}
			}
		}
		if len(searchFields) == 0 {
			return q, apperr.Validation("qMatchWith is required for search")
		}
		q.Filter.Search = &Search{Term: term, Fields: searchFields}
	}

	for key, values := range params {
		switch key {
		case ParamPage, ParamLimit, ParamSort, ParamFields, ParamSearch, ParamMatchWith:
			continue
		}
		if len(values) == 0 {
			continue
		}
		raw := values[len(values)-1]

		name, op := key, OpEq
		if i := strings.LastIndex(key, "."); i > 0 {
			name, op = key[:i], Op(key[i+1:])
			if _, ok := validOps[op]; !ok {
				return q, apperr.Validation(fmt.Sprintf("unsupported operator %q", op))
			}
		}

		field, err := f.lookup(name)
		if err != nil {
			return q, err
		}

		var value any
		switch op {
		case OpIn, OpNin:
			parts := strings.Split(raw, ",")
			list := make([]any, 0, len(parts))
			for _, p := range parts {
				v, err := coerce(field, strings.TrimSpace(p))
				if err != nil {
					return q, err
				}
				list = append(list, v)
			}
			value = list
		case OpLike:
			value = raw
		case OpExists:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return q, apperr.Validation(fmt.Sprintf("%s expects a boolean", key))
			}
			value = b
		default:
			if value, err = coerce(field, raw); err != nil {
				return q, err
			}
		}
		q.Filter = q.Filter.And(field.DBName, op, value)
	}

	return q, nil
}
