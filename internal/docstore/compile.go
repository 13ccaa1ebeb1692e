package docstore

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/vidtube/backend/internal/pipeline"
)

// compiler turns plans, predicates and patches into SQL over (doc jsonb, ord bigint) row sets.
// Every stage wraps the previous one as a derived table with a fresh alias; ord carries the
// row order between stages and the outermost query sorts by it. Field paths are validated
// identifiers and are inlined as text[] literals; values always travel as parameters.
type compiler struct {
	tables func(collection string) (string, error)
	n      int
}

func (c *compiler) alias(prefix string) string {
	c.n++
	return fmt.Sprintf("%s%d", prefix, c.n)
}

func pathLiteral(path string) (string, error) {
	if !pipeline.ValidPath(path) {
		return "", fmt.Errorf("%w: malformed field %q", pipeline.ErrInvalidStage, path)
	}
	return "'{" + strings.Join(pipeline.SplitPath(path), ",") + "}'", nil
}

// jsonPath builds a lax jsonpath that unwraps arrays at every step.
func jsonPath(path string) (string, error) {
	if !pipeline.ValidPath(path) {
		return "", fmt.Errorf("%w: malformed field %q", pipeline.ErrInvalidStage, path)
	}
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range pipeline.SplitPath(path) {
		fmt.Fprintf(&b, ".%q[*]", seg)
	}
	return b.String(), nil
}

func (c *compiler) plan(p pipeline.Plan) (sq.Sqlizer, error) {
	table, err := c.tables(p.Collection)
	if err != nil {
		return nil, err
	}
	t := c.alias("t")
	root := sq.Expr(fmt.Sprintf("SELECT %[1]s.doc, row_number() OVER (ORDER BY %[1]s.id COLLATE \"C\") AS ord FROM %[2]s %[1]s", t, table))
	body, err := c.stages(root, p.Stages)
	if err != nil {
		return nil, err
	}
	return sq.Expr("SELECT q.doc::text FROM (?) q ORDER BY q.ord", body), nil
}

func (c *compiler) stages(cur sq.Sqlizer, stages []pipeline.Stage) (sq.Sqlizer, error) {
	for _, st := range stages {
		s := c.alias("s")
		row := s + ".doc"
		switch stage := st.(type) {
		case pipeline.Filter:
			pred, err := c.pred(row, stage.Pred)
			if err != nil {
				return nil, err
			}
			cur = sq.Expr(fmt.Sprintf("SELECT %[1]s.doc, %[1]s.ord FROM (?) %[1]s WHERE ?", s), cur, pred)
		case pipeline.Join:
			sub, err := c.join(s, stage)
			if err != nil {
				return nil, err
			}
			cur = sq.Expr(fmt.Sprintf("SELECT %[1]s.doc || jsonb_build_object(?::text, ?) AS doc, %[1]s.ord FROM (?) %[1]s", s), stage.As, sub, cur)
		case pipeline.Unwind:
			lit, err := pathLiteral(stage.Field)
			if err != nil {
				return nil, err
			}
			e := c.alias("e")
			cur = sq.Expr(fmt.Sprintf(
				"SELECT jsonb_set(%[1]s.doc, %[2]s, %[3]s.value) AS doc, row_number() OVER (ORDER BY %[1]s.ord, %[3]s.idx) AS ord "+
					"FROM (?) %[1]s CROSS JOIN LATERAL jsonb_array_elements(CASE WHEN jsonb_typeof(%[1]s.doc #> %[2]s) = 'array' "+
					"THEN %[1]s.doc #> %[2]s ELSE '[]'::jsonb END) WITH ORDINALITY AS %[3]s(value, idx)", s, lit, e), cur)
		case pipeline.Compute:
			val, err := c.expr(row, stage.Expr)
			if err != nil {
				return nil, err
			}
			cur = sq.Expr(fmt.Sprintf("SELECT %[1]s.doc || jsonb_build_object(?::text, ?) AS doc, %[1]s.ord FROM (?) %[1]s", s), stage.Name, val, cur)
		case pipeline.Sort:
			keys := make([]string, 0, len(stage.Keys)+1)
			for _, k := range stage.Keys {
				lit, err := pathLiteral(k.Field)
				if err != nil {
					return nil, err
				}
				dir := "ASC"
				if k.Desc {
					dir = "DESC"
				}
				// Strings order bytewise under "C" so both engines page identically whatever the
				// database collation; other types fall through to jsonb ordering.
				keys = append(keys,
					fmt.Sprintf(`(CASE WHEN jsonb_typeof(%[1]s #> %[2]s) = 'string' THEN %[1]s #>> %[2]s END) COLLATE "C" %[3]s NULLS LAST`, row, lit, dir),
					fmt.Sprintf("%s #> %s %s NULLS LAST", row, lit, dir))
			}
			keys = append(keys, s+".ord")
			cur = sq.Expr(fmt.Sprintf("SELECT %[1]s.doc, row_number() OVER (ORDER BY %[2]s) AS ord FROM (?) %[1]s", s, strings.Join(keys, ", ")), cur)
		case pipeline.Project:
			obj, err := projection(row, projectionTree(stage.Fields))
			if err != nil {
				return nil, err
			}
			cur = sq.Expr(fmt.Sprintf("SELECT %[2]s AS doc, %[1]s.ord FROM (?) %[1]s", s, obj), cur)
		case pipeline.Window:
			r, w := c.alias("r"), c.alias("w")
			cur = sq.Expr(fmt.Sprintf(
				"WITH %[1]s AS (?) SELECT jsonb_build_object('items', COALESCE((SELECT jsonb_agg(%[2]s.doc ORDER BY %[2]s.ord) "+
					"FROM (SELECT doc, ord FROM %[1]s ORDER BY ord LIMIT ? OFFSET ?) %[2]s), '[]'::jsonb), "+
					"'total', (SELECT count(*) FROM %[1]s)) AS doc, 1::bigint AS ord", r, w), cur, stage.Limit, stage.Skip)
		default:
			return nil, fmt.Errorf("%w: unsupported stage %T", pipeline.ErrInvalidStage, st)
		}
	}
	return cur, nil
}

// join compiles a correlated scalar subquery aggregating the matching foreign rows of the
// outer row aliased outer. An array local key matches by membership.
func (c *compiler) join(outer string, j pipeline.Join) (sq.Sqlizer, error) {
	table, err := c.tables(j.From)
	if err != nil {
		return nil, err
	}
	local, err := pathLiteral(j.LocalKey)
	if err != nil {
		return nil, err
	}
	foreign, err := pathLiteral(j.ForeignKey)
	if err != nil {
		return nil, err
	}
	f, p := c.alias("f"), c.alias("p")
	// array keys keep the order of the local array; scalar keys fall back to id order
	position := fmt.Sprintf(
		"(SELECT min(%[1]s.idx) FROM jsonb_array_elements(CASE WHEN jsonb_typeof(%[2]s.doc #> %[3]s) = 'array' "+
			"THEN %[2]s.doc #> %[3]s ELSE '[]'::jsonb END) WITH ORDINALITY AS %[1]s(value, idx) WHERE %[1]s.value = %[4]s.doc #> %[5]s)",
		p, outer, local, f, foreign)
	base := sq.Expr(fmt.Sprintf(
		"SELECT %[1]s.doc, row_number() OVER (ORDER BY %[6]s NULLS FIRST, %[1]s.id COLLATE \"C\") AS ord FROM %[2]s %[1]s WHERE "+
			"CASE WHEN jsonb_typeof(%[3]s.doc #> %[4]s) = 'array' THEN (%[3]s.doc #> %[4]s) @> jsonb_build_array(%[1]s.doc #> %[5]s) "+
			"ELSE %[1]s.doc #> %[5]s = %[3]s.doc #> %[4]s END", f, table, outer, local, foreign, position))
	sub, err := c.stages(base, j.Pipeline)
	if err != nil {
		return nil, err
	}
	a := c.alias("j")
	return sq.Expr(fmt.Sprintf("(SELECT COALESCE(jsonb_agg(%[1]s.doc ORDER BY %[1]s.ord), '[]'::jsonb) FROM (?) %[1]s)", a), sub), nil
}

func (c *compiler) pred(row string, p pipeline.Predicate) (sq.Sqlizer, error) {
	if p == nil {
		return sq.Expr("TRUE"), nil
	}
	switch q := p.(type) {
	case pipeline.Eq:
		lit, err := pathLiteral(q.Field)
		if err != nil {
			return nil, err
		}
		val, err := encodeJSON(q.Value)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("COALESCE(%s #> %s = ?::text::jsonb, false)", row, lit), val), nil
	case pipeline.In:
		lit, err := pathLiteral(q.Field)
		if err != nil {
			return nil, err
		}
		if len(q.Values) == 0 {
			return sq.Expr("FALSE"), nil
		}
		args := make([]any, len(q.Values))
		for i, v := range q.Values {
			if args[i], err = encodeJSON(v); err != nil {
				return nil, err
			}
		}
		holders := strings.TrimSuffix(strings.Repeat("?::text::jsonb, ", len(args)), ", ")
		return sq.Expr(fmt.Sprintf("COALESCE(%s #> %s IN (%s), false)", row, lit, holders), args...), nil
	case pipeline.Has:
		path, err := jsonPath(q.Path)
		if err != nil {
			return nil, err
		}
		val, err := encodeJSON(q.Value)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("COALESCE(jsonb_path_exists(%s, ?::jsonpath, jsonb_build_object('v', ?::text::jsonb)), false)", row),
			path+" ? (@ == $v)", val), nil
	case pipeline.Search:
		pattern := "%" + escapeLike(q.Text) + "%"
		var or sq.Or
		for _, f := range q.Fields {
			lit, err := pathLiteral(f)
			if err != nil {
				return nil, err
			}
			or = append(or, sq.Expr(fmt.Sprintf("COALESCE(%s #>> %s ILIKE ?, false)", row, lit), pattern))
		}
		return or, nil
	case pipeline.And:
		var and sq.And
		for _, sub := range q {
			s, err := c.pred(row, sub)
			if err != nil {
				return nil, err
			}
			and = append(and, s)
		}
		return and, nil
	case pipeline.Or:
		var or sq.Or
		for _, sub := range q {
			s, err := c.pred(row, sub)
			if err != nil {
				return nil, err
			}
			or = append(or, s)
		}
		return or, nil
	case pipeline.Not:
		s, err := c.pred(row, q.Pred)
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT (?)", s), nil
	default:
		return nil, fmt.Errorf("%w: unsupported predicate %T", pipeline.ErrInvalidStage, p)
	}
}

func (c *compiler) expr(row string, e pipeline.Expr) (sq.Sqlizer, error) {
	switch x := e.(type) {
	case pipeline.Count:
		lit, err := pathLiteral(x.Path)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("to_jsonb(CASE WHEN jsonb_typeof(%[1]s #> %[2]s) = 'array' THEN jsonb_array_length(%[1]s #> %[2]s) ELSE 0 END)", row, lit)), nil
	case pipeline.First:
		lit, err := pathLiteral(x.Path)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("((%s #> %s) -> 0)", row, lit)), nil
	case pipeline.Sum:
		path, err := jsonPath(x.Path)
		if err != nil {
			return nil, err
		}
		v := c.alias("v")
		return sq.Expr(fmt.Sprintf("(SELECT to_jsonb(COALESCE(sum((%[2]s #>> '{}')::numeric), 0)) FROM jsonb_path_query(%[1]s, ?::jsonpath) AS %[2]s WHERE jsonb_typeof(%[2]s) = 'number')", row, v), path), nil
	case pipeline.Ref:
		lit, err := pathLiteral(x.Path)
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("(%s #> %s)", row, lit)), nil
	case pipeline.Cond:
		pred, err := c.pred(row, x.If)
		if err != nil {
			return nil, err
		}
		then, err := encodeJSON(x.Then)
		if err != nil {
			return nil, err
		}
		els, err := encodeJSON(x.Else)
		if err != nil {
			return nil, err
		}
		return sq.Expr("CASE WHEN ? THEN ?::text::jsonb ELSE ?::text::jsonb END", pred, then, els), nil
	default:
		return nil, fmt.Errorf("%w: unsupported expression %T", pipeline.ErrInvalidStage, e)
	}
}

func projection(parent string, nodes []*projNode) (string, error) {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if !pipeline.ValidPath(n.name) {
			return "", fmt.Errorf("%w: malformed field %q", pipeline.ErrInvalidStage, n.name)
		}
		child := fmt.Sprintf("(%s -> '%s')", parent, n.name)
		if n.whole || len(n.children) == 0 {
			parts = append(parts, fmt.Sprintf("'%s', %s", n.name, child))
			continue
		}
		nested, err := projection(child, n.children)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("'%s', CASE WHEN jsonb_typeof(%s) = 'object' THEN %s END", n.name, child, nested))
	}
	return "jsonb_build_object(" + strings.Join(parts, ", ") + ")", nil
}

// patch compiles p into an expression over t.doc. Reads always use the stored value.
func (c *compiler) patch(p Patch) (sq.Sqlizer, error) {
	var cur sq.Sqlizer = sq.Expr("t.doc")
	for _, path := range p.Unset {
		lit, err := pathLiteral(path)
		if err != nil {
			return nil, err
		}
		cur = sq.Expr(fmt.Sprintf("(? #- %s)", lit), cur)
	}
	for _, path := range sortedKeys(p.Pull) {
		lit, err := pathLiteral(path)
		if err != nil {
			return nil, err
		}
		val, err := encodeJSON(p.Pull[path])
		if err != nil {
			return nil, err
		}
		cur = sq.Expr(fmt.Sprintf(
			"CASE WHEN jsonb_typeof(t.doc #> %[1]s) = 'array' THEN jsonb_set(?, %[1]s, COALESCE((SELECT jsonb_agg(x.value ORDER BY x.idx) "+
				"FROM jsonb_array_elements(t.doc #> %[1]s) WITH ORDINALITY AS x(value, idx) WHERE x.value <> ?::text::jsonb), '[]'::jsonb)) ELSE ? END", lit),
			cur, val, cur)
	}
	for _, path := range sortedKeys(p.AddToSet) {
		lit, err := pathLiteral(path)
		if err != nil {
			return nil, err
		}
		val, err := encodeJSON(p.AddToSet[path])
		if err != nil {
			return nil, err
		}
		cur = sq.Expr(fmt.Sprintf(
			"jsonb_set(?, %[1]s, CASE WHEN COALESCE(t.doc #> %[1]s, '[]'::jsonb) @> jsonb_build_array(?::text::jsonb) "+
				"THEN COALESCE(t.doc #> %[1]s, '[]'::jsonb) ELSE COALESCE(t.doc #> %[1]s, '[]'::jsonb) || jsonb_build_array(?::text::jsonb) END, true)", lit),
			cur, val, val)
	}
	for _, path := range sortedKeys(p.Inc) {
		lit, err := pathLiteral(path)
		if err != nil {
			return nil, err
		}
		cur = sq.Expr(fmt.Sprintf("jsonb_set(?, %[1]s, to_jsonb(COALESCE((t.doc #>> %[1]s)::numeric, 0) + ?::bigint), true)", lit), cur, p.Inc[path])
	}
	for _, path := range sortedKeys(p.Set) {
		lit, err := pathLiteral(path)
		if err != nil {
			return nil, err
		}
		val, err := encodeJSON(p.Set[path])
		if err != nil {
			return nil, err
		}
		cur = sq.Expr(fmt.Sprintf("jsonb_set(?, %s, ?::text::jsonb, true)", lit), cur, val)
	}
	return cur, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
