package pipeline

// Predicate selects rows. The set of predicates is closed.
type Predicate interface {
	fields() []string
}

// Eq matches rows whose Field equals Value.
type Eq struct {
	Field string
	Value any
}

// In matches rows whose Field equals one of Values.
type In struct {
	Field  string
	Values []any
}

// Has matches rows where Value is reachable through Path. Arrays met along the path are
// traversed, so Has{Path: "likes.likedBy"} tests membership across every joined like and
// Has{Path: "videos"} tests membership in an array of ids.
type Has struct {
	Path  string
	Value any
}

// Search matches rows where any of Fields contains Text, ignoring case.
type Search struct {
	Fields []string
	Text   string
}

// And matches rows satisfying every predicate. An empty And matches everything.
type And []Predicate

// Or matches rows satisfying at least one predicate. An empty Or matches nothing.
type Or []Predicate

// Not inverts Pred.
type Not struct {
	Pred Predicate
}

func (p Eq) fields() []string     { return []string{p.Field} }
func (p In) fields() []string     { return []string{p.Field} }
func (p Has) fields() []string    { return []string{p.Path} }
func (p Search) fields() []string { return p.Fields }
func (p Not) fields() []string    { return p.Pred.fields() }

func (p And) fields() []string {
	var out []string
	for _, sub := range p {
		out = append(out, sub.fields()...)
	}
	return out
}

func (p Or) fields() []string {
	var out []string
	for _, sub := range p {
		out = append(out, sub.fields()...)
	}
	return out
}

// Expr computes a value from the current row. The set of expressions is closed.
type Expr interface {
	paths() []string
}

// Count is the length of the array at Path, or 0 when it is not an array.
type Count struct{ Path string }

// First is the first element of the array at Path, or null.
type First struct{ Path string }

// Sum adds every number reachable through Path, traversing arrays.
type Sum struct{ Path string }

// Ref copies the value at Path.
type Ref struct{ Path string }

// Cond yields Then when If holds for the row, Else otherwise.
type Cond struct {
	If   Predicate
	Then any
	Else any
}

func (e Count) paths() []string { return []string{e.Path} }
func (e First) paths() []string { return []string{e.Path} }
func (e Sum) paths() []string   { return []string{e.Path} }
func (e Ref) paths() []string   { return []string{e.Path} }
func (e Cond) paths() []string  { return e.If.fields() }

// Flag is the common membership test: true when value is reachable through path.
func Flag(path string, value any) Cond {
	return Cond{If: Has{Path: path, Value: value}, Then: true, Else: false}
}
