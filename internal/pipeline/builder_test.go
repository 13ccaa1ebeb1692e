package pipeline

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testSchema = Schema{
	"videos": {"_id", "title", "owner", "views", "isPublished", "createdAt"},
	"users":  {"_id", "username", "avatar"},
	"likes":  {"_id", "likedBy", "target", "targetKind"},
}

func TestBuildAcceptsFieldsIntroducedByEarlierStages(t *testing.T) {
	plan, err := From(testSchema, "videos").
		Filter(Eq{Field: "isPublished", Value: true}).
		Join(Join{From: "likes", LocalKey: "_id", ForeignKey: "target", As: "likes",
			Pipeline: []Stage{Filter{Pred: Eq{Field: "targetKind", Value: "video"}}, Project{Fields: []string{"likedBy"}}}}).
		Join(Join{From: "users", LocalKey: "owner", ForeignKey: "_id", As: "owner"}).
		Compute("likesCount", Count{Path: "likes"}).
		Compute("isLiked", Flag("likes.likedBy", "u1")).
		Compute("owner", First{Path: "owner"}).
		Sort(Desc("createdAt")).
		Project("_id", "title", "owner.username", "owner.avatar.url", "likesCount", "isLiked").
		Window(0, 10).
		Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if plan.Collection != "videos" {
		t.Fatalf("expected videos collection, got %q", plan.Collection)
	}
	if len(plan.Stages) != 9 {
		t.Fatalf("expected 9 stages, got %d", len(plan.Stages))
	}
}

func TestBuildAppendsIDTieBreaker(t *testing.T) {
	plan, err := From(testSchema, "videos").Sort(Desc("views")).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	got := plan.Stages[0].(Sort).Keys
	want := []SortKey{{Field: "views", Desc: true}, {Field: "_id"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected sort keys (-want +got):\n%s", diff)
	}

	plan, err = From(testSchema, "videos").Sort(Desc("_id")).Build()
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if keys := plan.Stages[0].(Sort).Keys; len(keys) != 1 {
		t.Fatalf("expected existing _id key to be kept alone, got %v", keys)
	}
}

func TestBuildDoesNotMutateBuilderStages(t *testing.T) {
	b := From(testSchema, "videos").Sort(Desc("views"))
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if keys := b.stages[0].(Sort).Keys; len(keys) != 1 {
		t.Fatalf("builder stage mutated: %v", keys)
	}
}

func TestBuildRejectsInvalidStages(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{
			name:    "unknown collection",
			builder: From(testSchema, "missing"),
		},
		{
			name:    "unknown filter field",
			builder: From(testSchema, "videos").Filter(Eq{Field: "likesCount", Value: 1}),
		},
		{
			name:    "field removed by projection",
			builder: From(testSchema, "videos").Project("title").Sort(Desc("views")),
		},
		{
			name:    "unknown join collection",
			builder: From(testSchema, "videos").Join(Join{From: "nope", LocalKey: "_id", ForeignKey: "_id", As: "x"}),
		},
		{
			name:    "unknown foreign key",
			builder: From(testSchema, "videos").Join(Join{From: "users", LocalKey: "owner", ForeignKey: "owner", As: "x"}),
		},
		{
			name: "sub-pipeline checked against foreign schema",
			builder: From(testSchema, "videos").Join(Join{From: "users", LocalKey: "owner", ForeignKey: "_id", As: "x",
				Pipeline: []Stage{Filter{Pred: Eq{Field: "title", Value: "a"}}}}),
		},
		{
			name:    "malformed path",
			builder: From(testSchema, "videos").Filter(Eq{Field: "title'; drop", Value: 1}),
		},
		{
			name:    "window not last",
			builder: From(testSchema, "videos").Window(0, 10).Sort(Desc("views")),
		},
		{
			name:    "window bounds",
			builder: From(testSchema, "videos").Window(0, 0),
		},
		{
			name: "window inside join",
			builder: From(testSchema, "videos").Join(Join{From: "users", LocalKey: "owner", ForeignKey: "_id", As: "x",
				Pipeline: []Stage{Window{Limit: 1}}}),
		},
		{
			name:    "compute references unknown field",
			builder: From(testSchema, "videos").Compute("n", Count{Path: "likes"}),
		},
		{
			name:    "nil predicate",
			builder: From(testSchema, "videos").Filter(nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if !errors.Is(err, ErrInvalidStage) {
				t.Fatalf("expected ErrInvalidStage, got %v", err)
			}
		})
	}
}

func TestSorted(t *testing.T) {
	if From(testSchema, "videos").Filter(Eq{Field: "owner", Value: "u"}).Sorted() {
		t.Fatal("expected unsorted builder")
	}
	if !From(testSchema, "videos").Sort(Desc("views")).Sorted() {
		t.Fatal("expected sorted builder")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	base := From(testSchema, "videos").Sort(Desc("views"))
	clone := base.Clone().Window(0, 5)
	if len(base.stages) != 1 || len(clone.stages) != 2 {
		t.Fatalf("clone shares stages: base=%d clone=%d", len(base.stages), len(clone.stages))
	}
}
