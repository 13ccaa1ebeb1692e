// Package pipeline describes view compositions as an ordered list of typed stages.
//
// A Plan is data only: the docstore engines interpret it. Stages run strictly in order and
// each consumes the row shape produced by the previous one.
package pipeline

import "strings"

// Stage is one step of a composition. The set of stages is closed.
type Stage interface {
	stageName() string
}

// Filter keeps the rows matching Pred.
type Filter struct {
	Pred Predicate
}

// Join attaches the rows of From whose ForeignKey equals the row's LocalKey as an array named As.
// When LocalKey resolves to an array every row whose ForeignKey is a member of it matches.
// Pipeline runs over the matched foreign rows before they are attached.
type Join struct {
	From       string
	LocalKey   string
	ForeignKey string
	As         string
	Pipeline   []Stage
}

// Unwind emits one row per element of the array Field; rows with an empty or missing array are dropped.
type Unwind struct {
	Field string
}

// Compute sets the top-level field Name to the value of Expr.
type Compute struct {
	Name string
	Expr Expr
}

// SortKey orders rows by Field. Missing values sort last in either direction.
type SortKey struct {
	Field string
	Desc  bool
}

// Sort orders rows by Keys, left to right.
type Sort struct {
	Keys []SortKey
}

// Project replaces each row with the listed fields. Dotted paths build nested objects.
type Project struct {
	Fields []string
}

// Window collapses the result into a single row {items, total}: items holds at most Limit rows
// after skipping Skip, total counts every row. It must be the final stage.
type Window struct {
	Skip  int
	Limit int
}

func (Filter) stageName() string  { return "filter" }
func (Join) stageName() string    { return "join" }
func (Unwind) stageName() string  { return "unwind" }
func (Compute) stageName() string { return "compute" }
func (Sort) stageName() string    { return "sort" }
func (Project) stageName() string { return "project" }
func (Window) stageName() string  { return "window" }

// Asc and Desc build sort keys.
func Asc(field string) SortKey  { return SortKey{Field: field} }
func Desc(field string) SortKey { return SortKey{Field: field, Desc: true} }

// Plan is a validated composition rooted at Collection.
type Plan struct {
	Collection string
	Stages     []Stage
}

// WindowItems and WindowTotal name the fields of the row produced by Window.
const (
	WindowItems = "items"
	WindowTotal = "total"
)

// IDField is the primary key present on every stored document.
const IDField = "_id"

// SplitPath splits a dotted path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func rootOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
