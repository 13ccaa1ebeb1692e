package paginate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/pipeline"
)

func TestNewRequestNormalizes(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Request
	}{
		{name: "defaults", page: 0, limit: 0, want: Request{Page: 1, Limit: 10}},
		{name: "negative", page: -3, limit: -1, want: Request{Page: 1, Limit: 10}},
		{name: "kept", page: 4, limit: 25, want: Request{Page: 4, Limit: 25}},
		{name: "capped", page: 2, limit: 1000, want: Request{Page: 2, Limit: MaxLimit}},
		{name: "huge page", page: math.MaxInt, limit: 10, want: Request{Page: MaxPage, Limit: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRequest(tt.page, tt.limit); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}

	if got := Parse("abc", ""); got != (Request{Page: 1, Limit: 10}) {
		t.Fatalf("expected defaults for non-numeric input, got %+v", got)
	}
	if got := Parse("3", "7"); got != (Request{Page: 3, Limit: 7}) {
		t.Fatalf("expected parsed values, got %+v", got)
	}
	if got := Parse("99999999999999999999999", "10"); got.Page != MaxPage {
		t.Fatalf("expected out-of-range page to clamp, got %+v", got)
	}
	if skip := Parse("9223372036854775807", "100").Skip(); skip < 0 {
		t.Fatalf("skip overflowed: %d", skip)
	}
}

func TestNewPageMetadata(t *testing.T) {
	tests := []struct {
		total             int64
		page              int
		wantPages         int64
		wantNext, wantPrv bool
	}{
		{total: 0, page: 1, wantPages: 0},
		{total: 10, page: 1, wantPages: 1},
		{total: 11, page: 1, wantPages: 2, wantNext: true},
		{total: 11, page: 2, wantPages: 2, wantPrv: true},
		{total: 35, page: 2, wantPages: 4, wantNext: true, wantPrv: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("total=%d page=%d", tt.total, tt.page), func(t *testing.T) {
			p := NewPage[int](nil, Request{Page: tt.page, Limit: 10}, tt.total)
			if p.TotalPages != tt.wantPages || p.HasNext != tt.wantNext || p.HasPrev != tt.wantPrv {
				t.Fatalf("unexpected page metadata: %+v", p)
			}
			if p.Items == nil {
				t.Fatal("expected empty items slice, got nil")
			}
		})
	}
}

var schema = pipeline.Schema{"items": {"_id", "n"}}

func seed(t *testing.T, n int) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore()
	for i := 0; i < n; i++ {
		// every third row shares n so the _id tie-breaker decides their order
		doc := docstore.Document{"_id": fmt.Sprintf("id-%02d", i), "n": i / 3}
		if err := store.Create(context.Background(), "items", doc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

type item struct {
	ID string `json:"_id"`
	N  int    `json:"n"`
}

func TestRunWalksPagesWithoutDuplicates(t *testing.T) {
	store := seed(t, 23)
	b := pipeline.From(schema, "items").Sort(pipeline.Desc("n"))

	seen := map[string]bool{}
	var pages int64 = 1
	for page := 1; int64(page) <= pages; page++ {
		got, err := Run[item](context.Background(), store, b, NewRequest(page, 5))
		if err != nil {
			t.Fatalf("Run page %d returned error: %v", page, err)
		}
		pages = got.TotalPages
		if got.TotalItems != 23 || got.TotalPages != 5 {
			t.Fatalf("unexpected totals: %+v", got)
		}
		if len(got.Items) > 5 {
			t.Fatalf("page %d has %d items", page, len(got.Items))
		}
		for _, it := range got.Items {
			if seen[it.ID] {
				t.Fatalf("item %s repeated on page %d", it.ID, page)
			}
			seen[it.ID] = true
		}
		if page == 5 && len(got.Items) != 3 {
			t.Fatalf("expected remainder of 3 on the last page, got %d", len(got.Items))
		}
	}
	if len(seen) != 23 {
		t.Fatalf("expected every item exactly once, saw %d", len(seen))
	}
}

func TestRunPastTheEndIsEmpty(t *testing.T) {
	store := seed(t, 4)
	for _, req := range []Request{NewRequest(9, 10), Parse("9223372036854775807", "10"), Parse("99999999999999999999", "100")} {
		got, err := Run[item](context.Background(), store, pipeline.From(schema, "items").Sort(pipeline.Asc("n")), req)
		if err != nil {
			t.Fatalf("Run(%+v) returned error: %v", req, err)
		}
		if len(got.Items) != 0 || got.TotalItems != 4 || got.HasNext || !got.HasPrev {
			t.Fatalf("unexpected page for %+v: %+v", req, got)
		}
	}
}

func TestRunRequiresSort(t *testing.T) {
	store := seed(t, 1)
	_, err := Run[item](context.Background(), store, pipeline.From(schema, "items"), NewRequest(1, 10))
	if !errors.Is(err, ErrUnordered) {
		t.Fatalf("expected ErrUnordered, got %v", err)
	}
}
