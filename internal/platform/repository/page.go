package repository

import (
	"net/url"
	"strconv"
)

// Page is the single pagination result shape.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
	NextPage   *int  `json:"nextPage"`
	PrevPage   *int  `json:"prevPage"`
}

// NewPage computes the page metadata for items out of total.
func NewPage[T any](items []T, total int64, page, limit int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	p := &Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
	if p.HasNext {
		n := page + 1
		p.NextPage = &n
	}
	if p.HasPrev {
		n := page - 1
		p.PrevPage = &n
	}
	return p
}

// Links holds query-string fragments for the neighbouring pages.
type Links struct {
	Prev *string `json:"prev"`
	Next *string `json:"next"`
}

// PageLinks renders prev/next fragments ("?limit=25&page=3") for p,
// carrying over the other parameters in base.
func PageLinks[T any](p *Page[T], base url.Values) Links {
	link := func(page int) *string {
		v := url.Values{}
		for k, vals := range base {
			if k == ParamPage || k == ParamLimit {
				continue
			}
			v[k] = vals
		}
		v.Set(ParamLimit, strconv.Itoa(p.Limit))
		v.Set(ParamPage, strconv.Itoa(page))
		s := "?" + v.Encode()
		return &s
	}

	var l Links
	if p.PrevPage != nil {
		l.Prev = link(*p.PrevPage)
	}
	if p.NextPage != nil {
		l.Next = link(*p.NextPage)
	}
	return l
}
