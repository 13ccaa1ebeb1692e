package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// ErrInvalidStage reports a stage that cannot run against the row shape it receives.
var ErrInvalidStage = errors.New("invalid pipeline stage")

// Schema lists the top-level fields of every collection a plan may touch.
type Schema map[string][]string

var segmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidPath reports whether every segment of path is a plain identifier.
func ValidPath(path string) bool {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return false
	}
	for _, s := range segs {
		if !segmentPattern.MatchString(s) {
			return false
		}
	}
	return true
}

// Builder accumulates stages for one root collection.
type Builder struct {
	schema     Schema
	collection string
	stages     []Stage
}

// From starts a composition rooted at collection.
func From(schema Schema, collection string) *Builder {
	return &Builder{schema: schema, collection: collection}
}

// Filter keeps the rows matching p.
func (b *Builder) Filter(p Predicate) *Builder { return b.add(Filter{Pred: p}) }

// Join attaches the matching rows of another collection under j.As.
func (b *Builder) Join(j Join) *Builder { return b.add(j) }

// Unwind emits one row per element of the array at field.
func (b *Builder) Unwind(field string) *Builder { return b.add(Unwind{Field: field}) }

// Compute adds a derived field name evaluated from e.
func (b *Builder) Compute(name string, e Expr) *Builder { return b.add(Compute{Name: name, Expr: e}) }

// Sort orders rows by keys. Missing values sort last.
func (b *Builder) Sort(keys ...SortKey) *Builder { return b.add(Sort{Keys: keys}) }

// Project narrows rows to fields; dotted paths build nested objects.
func (b *Builder) Project(fields ...string) *Builder { return b.add(Project{Fields: fields}) }

// Window collapses the rows into one {items, total} row holding limit rows after skip.
func (b *Builder) Window(skip, limit int) *Builder { return b.add(Window{Skip: skip, Limit: limit}) }

func (b *Builder) add(s Stage) *Builder {
	b.stages = append(b.stages, s)
	return b
}

// Collection returns the root collection.
func (b *Builder) Collection() string { return b.collection }

// Sorted reports whether the composition orders its top-level rows.
func (b *Builder) Sorted() bool {
	return slices.ContainsFunc(b.stages, func(s Stage) bool {
		_, ok := s.(Sort)
		return ok
	})
}

// Clone returns an independent copy, so a base composition can be extended more than once.
func (b *Builder) Clone() *Builder {
	return &Builder{schema: b.schema, collection: b.collection, stages: slices.Clone(b.stages)}
}

// Build validates the composition and returns the plan. Sort stages gain an ascending _id
// tie-breaker whenever _id is part of the row shape and not already a key, so orderings
// are total.
func (b *Builder) Build() (Plan, error) {
	stages, err := b.schema.check(b.collection, b.stages, true)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Collection: b.collection, Stages: stages}, nil
}

type shape map[string]struct{}

func (s shape) has(path string) bool {
	_, ok := s[rootOf(path)]
	return ok
}

func (sc Schema) check(collection string, stages []Stage, top bool) ([]Stage, error) {
	fields, ok := sc[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", ErrInvalidStage, collection)
	}
	cur := shape{}
	for _, f := range fields {
		cur[f] = struct{}{}
	}

	out := make([]Stage, 0, len(stages))
	for i, st := range stages {
		if st == nil {
			return nil, fmt.Errorf("%w: nil stage %d on %s", ErrInvalidStage, i, collection)
		}
		fail := func(format string, args ...any) error {
			return fmt.Errorf("%w: %s stage %d on %s: %s", ErrInvalidStage, st.stageName(), i, collection, fmt.Sprintf(format, args...))
		}
		need := func(paths ...string) error {
			for _, p := range paths {
				if !ValidPath(p) {
					return fail("malformed field %q", p)
				}
				if !cur.has(p) {
					return fail("unknown field %q", p)
				}
			}
			return nil
		}

		switch s := st.(type) {
		case Filter:
			if s.Pred == nil {
				return nil, fail("missing predicate")
			}
			if err := need(s.Pred.fields()...); err != nil {
				return nil, err
			}
		case Join:
			if _, ok := sc[s.From]; !ok {
				return nil, fail("unknown collection %q", s.From)
			}
			if err := need(s.LocalKey); err != nil {
				return nil, err
			}
			if !ValidPath(s.ForeignKey) || !slices.Contains(sc[s.From], rootOf(s.ForeignKey)) {
				return nil, fail("unknown foreign key %q in %s", s.ForeignKey, s.From)
			}
			if !segmentPattern.MatchString(s.As) {
				return nil, fail("malformed join alias %q", s.As)
			}
			sub, err := sc.check(s.From, s.Pipeline, false)
			if err != nil {
				return nil, fmt.Errorf("join %q: %w", s.As, err)
			}
			s.Pipeline = sub
			st = s
			cur[s.As] = struct{}{}
		case Unwind:
			if err := need(s.Field); err != nil {
				return nil, err
			}
		case Compute:
			if s.Expr == nil {
				return nil, fail("missing expression")
			}
			if !segmentPattern.MatchString(s.Name) {
				return nil, fail("malformed field %q", s.Name)
			}
			if err := need(s.Expr.paths()...); err != nil {
				return nil, err
			}
			cur[s.Name] = struct{}{}
		case Sort:
			if len(s.Keys) == 0 {
				return nil, fail("no sort keys")
			}
			for _, k := range s.Keys {
				if err := need(k.Field); err != nil {
					return nil, err
				}
			}
			if cur.has(IDField) && !slices.ContainsFunc(s.Keys, func(k SortKey) bool { return k.Field == IDField }) {
				s.Keys = append(slices.Clone(s.Keys), Asc(IDField))
			}
			st = s
		case Project:
			if len(s.Fields) == 0 {
				return nil, fail("empty projection")
			}
			if err := need(s.Fields...); err != nil {
				return nil, err
			}
			next := shape{}
			for _, f := range s.Fields {
				next[rootOf(f)] = struct{}{}
			}
			cur = next
		case Window:
			if !top || i != len(stages)-1 {
				return nil, fail("window must be the final top-level stage")
			}
			if s.Skip < 0 || s.Limit <= 0 {
				return nil, fail("bad bounds skip=%d limit=%d", s.Skip, s.Limit)
			}
			cur = shape{WindowItems: {}, WindowTotal: {}}
		default:
			return nil, fail("unsupported stage %T", st)
		}
		out = append(out, st)
	}
	return out, nil
}
