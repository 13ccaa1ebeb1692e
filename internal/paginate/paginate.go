// Package paginate turns a sorted composition into a bounded, counted page.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/pipeline"
)

// Request bounds. Pages past MaxPage are clamped to it so the skip offset cannot overflow;
// such a page is past the end of any real result and comes back empty.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MaxPage      = math.MaxInt / MaxLimit
)

// ErrUnordered is returned for compositions without a sort stage; their page boundaries
// would not be stable across requests.
var ErrUnordered = errors.New("paginate: composition has no sort stage")

// Request is a normalized page request.
type Request struct {
	Page  int
	Limit int
}

// NewRequest normalizes non-positive values to the defaults and caps the page and limit.
func NewRequest(page, limit int) Request {
	if page <= 0 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Request{Page: page, Limit: limit}
}

// Parse normalizes raw query values. Non-numeric input falls back to the defaults and
// numbers too large for an int are treated as the largest page.
func Parse(page, limit string) Request {
	p, err := strconv.Atoi(page)
	if errors.Is(err, strconv.ErrRange) && p > 0 {
		p = MaxPage
	} else if err != nil {
		p = DefaultPage
	}
	l, err := strconv.Atoi(limit)
	if err != nil {
		l = DefaultLimit
	}
	return NewRequest(p, l)
}

// Skip is the number of rows before the requested page.
func (r Request) Skip() int {
	r = NewRequest(r.Page, r.Limit)
	return (r.Page - 1) * r.Limit
}

// Page is one window of a result set.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPage computes the page metadata for items drawn from total rows.
func NewPage[T any](items []T, req Request, total int64) Page[T] {
	req = NewRequest(req.Page, req.Limit)
	if items == nil {
		items = []T{}
	}
	pages := (total + int64(req.Limit) - 1) / int64(req.Limit)
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalItems: total,
		TotalPages: pages,
		HasNext:    int64(req.Page) < pages,
		HasPrev:    req.Page > 1,
	}
}

type window struct {
	Items []docstore.Document `json:"items"`
	Total int64               `json:"total"`
}

// Run windows the composition built by b and executes it as a single aggregate.
// b itself is left untouched.
func Run[T any](ctx context.Context, store docstore.Store, b *pipeline.Builder, req Request) (Page[T], error) {
	req = NewRequest(req.Page, req.Limit)
	if !b.Sorted() {
		return Page[T]{}, ErrUnordered
	}

	plan, err := b.Clone().Window(req.Skip(), req.Limit).Build()
	if err != nil {
		return Page[T]{}, err
	}
	rows, err := store.Aggregate(ctx, plan)
	if err != nil {
		return Page[T]{}, err
	}
	if len(rows) != 1 {
		return Page[T]{}, fmt.Errorf("paginate %s: expected one window row, got %d", plan.Collection, len(rows))
	}

	var w window
	if err := docstore.Decode(rows[0], &w); err != nil {
		return Page[T]{}, err
	}
	items, err := docstore.DecodeAll[T](w.Items)
	if err != nil {
		return Page[T]{}, err
	}
	return NewPage(items, req, w.Total), nil
}
