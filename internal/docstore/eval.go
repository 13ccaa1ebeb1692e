package docstore

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vidtube/backend/internal/pipeline"
)

// The evaluator below mirrors the PostgreSQL compiler in compile.go: paths navigate objects
// only (like #>), Has/Sum traverse arrays (like lax jsonpath), missing values sort last and
// values of different JSON types order null < string < number < boolean < array < object.

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func lookup(v any, segs []string) (any, bool) {
	cur := v
	for _, s := range segs {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func flatten(vals []any) []any {
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func reach(v any, segs []string) []any {
	vals := []any{v}
	for _, s := range segs {
		var next []any
		for _, x := range flatten(vals) {
			if m, ok := asMap(x); ok {
				if y, ok := m[s]; ok {
					next = append(next, y)
				}
			}
		}
		vals = next
	}
	return flatten(vals)
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case float64, int, int64:
		return 2
	case bool:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case nil:
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case []any:
		y := b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := compareValues(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(x), len(y))
	}
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	}
	ea, _ := json.Marshal(a)
	eb, _ := json.Marshal(b)
	return strings.Compare(string(ea), string(eb))
}

func equalValues(a, b any) bool {
	return compareValues(a, b) == 0
}

func containsValue(list []any, v any) bool {
	return slices.ContainsFunc(list, func(x any) bool { return equalValues(x, v) })
}

func match(row any, p pipeline.Predicate) (bool, error) {
	if p == nil {
		return true, nil
	}
	switch q := p.(type) {
	case pipeline.Eq:
		want, err := Normalize(q.Value)
		if err != nil {
			return false, err
		}
		got, ok := lookup(row, pipeline.SplitPath(q.Field))
		return ok && equalValues(got, want), nil
	case pipeline.In:
		got, ok := lookup(row, pipeline.SplitPath(q.Field))
		if !ok {
			return false, nil
		}
		for _, v := range q.Values {
			want, err := Normalize(v)
			if err != nil {
				return false, err
			}
			if equalValues(got, want) {
				return true, nil
			}
		}
		return false, nil
	case pipeline.Has:
		want, err := Normalize(q.Value)
		if err != nil {
			return false, err
		}
		return containsValue(reach(row, pipeline.SplitPath(q.Path)), want), nil
	case pipeline.Search:
		needle := strings.ToLower(q.Text)
		for _, f := range q.Fields {
			got, ok := lookup(row, pipeline.SplitPath(f))
			if s, isStr := got.(string); ok && isStr && strings.Contains(strings.ToLower(s), needle) {
				return true, nil
			}
		}
		return false, nil
	case pipeline.And:
		for _, sub := range q {
			ok, err := match(row, sub)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case pipeline.Or:
		for _, sub := range q {
			ok, err := match(row, sub)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case pipeline.Not:
		ok, err := match(row, q.Pred)
		return !ok, err
	default:
		return false, fmt.Errorf("%w: unsupported predicate %T", pipeline.ErrInvalidStage, p)
	}
}

func evalExpr(row map[string]any, e pipeline.Expr) (any, error) {
	switch x := e.(type) {
	case pipeline.Count:
		v, _ := lookup(row, pipeline.SplitPath(x.Path))
		if arr, ok := v.([]any); ok {
			return float64(len(arr)), nil
		}
		return float64(0), nil
	case pipeline.First:
		v, _ := lookup(row, pipeline.SplitPath(x.Path))
		if arr, ok := v.([]any); ok && len(arr) > 0 {
			return arr[0], nil
		}
		return nil, nil
	case pipeline.Sum:
		var total float64
		for _, v := range reach(row, pipeline.SplitPath(x.Path)) {
			if n, ok := toFloat(v); ok {
				total += n
			}
		}
		return total, nil
	case pipeline.Ref:
		v, _ := lookup(row, pipeline.SplitPath(x.Path))
		return v, nil
	case pipeline.Cond:
		ok, err := match(row, x.If)
		if err != nil {
			return nil, err
		}
		if ok {
			return Normalize(x.Then)
		}
		return Normalize(x.Else)
	default:
		return nil, fmt.Errorf("%w: unsupported expression %T", pipeline.ErrInvalidStage, e)
	}
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func cloneDoc(d Document) Document {
	return Document(cloneValue(d).(map[string]any))
}

// setPath writes v at segs inside a copy of row. Missing or non-object parents leave row
// unchanged, matching jsonb_set.
func setPath(row map[string]any, segs []string, v any) map[string]any {
	out := make(map[string]any, len(row)+1)
	for k, val := range row {
		out[k] = val
	}
	if len(segs) == 1 {
		out[segs[0]] = v
		return out
	}
	child, ok := asMap(row[segs[0]])
	if !ok {
		return out
	}
	out[segs[0]] = setPath(child, segs[1:], v)
	return out
}

func deletePath(row map[string]any, segs []string) map[string]any {
	out := make(map[string]any, len(row))
	for k, val := range row {
		out[k] = val
	}
	if len(segs) == 1 {
		delete(out, segs[0])
		return out
	}
	child, ok := asMap(row[segs[0]])
	if !ok {
		return out
	}
	out[segs[0]] = deletePath(child, segs[1:])
	return out
}

func applyPatch(doc Document, p Patch) (Document, error) {
	row := map[string]any(cloneDoc(doc))
	for _, path := range p.Unset {
		row = deletePath(row, pipeline.SplitPath(path))
	}
	for _, path := range sortedKeys(p.Pull) {
		segs := pipeline.SplitPath(path)
		cur, _ := lookup(row, segs)
		arr, ok := cur.([]any)
		if !ok {
			continue
		}
		want, err := Normalize(p.Pull[path])
		if err != nil {
			return nil, err
		}
		kept := make([]any, 0, len(arr))
		for _, v := range arr {
			if !equalValues(v, want) {
				kept = append(kept, v)
			}
		}
		row = setPath(row, segs, kept)
	}
	for _, path := range sortedKeys(p.AddToSet) {
		segs := pipeline.SplitPath(path)
		want, err := Normalize(p.AddToSet[path])
		if err != nil {
			return nil, err
		}
		cur, _ := lookup(row, segs)
		arr, _ := cur.([]any)
		if !containsValue(arr, want) {
			arr = append(slices.Clone(arr), want)
		}
		if arr == nil {
			arr = []any{}
		}
		row = setPath(row, segs, arr)
	}
	for _, path := range sortedKeys(p.Inc) {
		segs := pipeline.SplitPath(path)
		cur, _ := lookup(row, segs)
		n, _ := toFloat(cur)
		row = setPath(row, segs, n+float64(p.Inc[path]))
	}
	for _, path := range sortedKeys(p.Set) {
		v, err := Normalize(p.Set[path])
		if err != nil {
			return nil, err
		}
		row = setPath(row, pipeline.SplitPath(path), v)
	}
	return Document(row), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

type projNode struct {
	name     string
	whole    bool
	children []*projNode
}

func projectionTree(fields []string) []*projNode {
	var roots []*projNode
	for _, f := range fields {
		level := &roots
		segs := pipeline.SplitPath(f)
		for i, s := range segs {
			idx := slices.IndexFunc(*level, func(n *projNode) bool { return n.name == s })
			if idx < 0 {
				*level = append(*level, &projNode{name: s})
				idx = len(*level) - 1
			}
			node := (*level)[idx]
			if i == len(segs)-1 {
				node.whole = true
			}
			level = &node.children
		}
	}
	return roots
}

func project(row map[string]any, nodes []*projNode) map[string]any {
	out := make(map[string]any, len(nodes))
	for _, n := range nodes {
		v := row[n.name]
		if n.whole || len(n.children) == 0 {
			out[n.name] = v
			continue
		}
		if m, ok := asMap(v); ok {
			out[n.name] = project(m, n.children)
		} else {
			out[n.name] = nil
		}
	}
	return out
}
