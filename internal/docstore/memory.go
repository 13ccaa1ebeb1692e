package docstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/vidtube/backend/internal/pipeline"
)

// MemoryStore keeps every collection in process memory. It honors the same unique indexes as
// the PostgreSQL engine and evaluates plans stage by stage over a consistent snapshot.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	indexes     map[string][]Index
}

// NewMemoryStore constructs an empty store enforcing the provided unique indexes.
func NewMemoryStore(indexes ...Index) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]Document),
		indexes:     make(map[string][]Index),
	}
	for _, idx := range indexes {
		s.indexes[idx.Collection] = append(s.indexes[idx.Collection], idx)
	}
	return s
}

// Find returns every document of collection matching filter, in _id order.
func (s *MemoryStore) Find(ctx context.Context, collection string, filter pipeline.Predicate) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.sortedLocked(collection) {
		ok, err := match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cloneDoc(doc))
		}
	}
	return out, nil
}

// FindOne returns the first matching document or ErrNotFound.
func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter pipeline.Predicate) (Document, error) {
	docs, err := s.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FindByID returns the document with id or ErrNotFound.
func (s *MemoryStore) FindByID(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

// Create inserts doc. Duplicate ids and unique index violations report ErrConflict.
func (s *MemoryStore) Create(ctx context.Context, collection string, doc Document) error {
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("create %s: document has no id", collection)
	}
	normalized, err := Normalize(doc)
	if err != nil {
		return err
	}
	stored := Document(normalized.(map[string]any))

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return ErrConflict
	}
	if err := s.checkUniqueLocked(collection, stored); err != nil {
		return err
	}
	coll[id] = stored
	return nil
}

// UpdateByID applies patch atomically and returns the updated document.
func (s *MemoryStore) UpdateByID(ctx context.Context, collection, id string, patch Patch) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	updated, err := s.patchLocked(collection, doc, patch)
	if err != nil {
		return nil, err
	}
	return cloneDoc(updated), nil
}

// UpdateMany applies patch to every match and reports how many documents changed.
func (s *MemoryStore) UpdateMany(ctx context.Context, collection string, filter pipeline.Predicate, patch Patch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, doc := range s.sortedLocked(collection) {
		ok, err := match(doc, filter)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		if _, err := s.patchLocked(collection, doc, patch); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// DeleteByID removes the document and returns it as it was.
func (s *MemoryStore) DeleteByID(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.collections[collection], id)
	return doc, nil
}

// DeleteMany removes every match and reports how many were removed.
func (s *MemoryStore) DeleteMany(ctx context.Context, collection string, filter pipeline.Predicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, doc := range s.collections[collection] {
		ok, err := match(doc, filter)
		if err != nil {
			return n, err
		}
		if ok {
			delete(s.collections[collection], id)
			n++
		}
	}
	return n, nil
}

// Count reports how many documents match filter.
func (s *MemoryStore) Count(ctx context.Context, collection string, filter pipeline.Predicate) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, doc := range s.collections[collection] {
		ok, err := match(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Aggregate runs plan under a read lock so every join observes the same snapshot.
func (s *MemoryStore) Aggregate(ctx context.Context, plan pipeline.Plan) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rowsLocked(plan.Collection)
	out, err := s.runLocked(ctx, rows, plan.Stages)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(out))
	for i, r := range out {
		docs[i] = Document(r)
	}
	return docs, nil
}

func (s *MemoryStore) runLocked(ctx context.Context, rows []map[string]any, stages []pipeline.Stage) ([]map[string]any, error) {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		switch stage := st.(type) {
		case pipeline.Filter:
			rows, err = filterRows(rows, stage.Pred)
		case pipeline.Join:
			rows, err = s.joinLocked(ctx, rows, stage)
		case pipeline.Unwind:
			rows = unwindRows(rows, pipeline.SplitPath(stage.Field))
		case pipeline.Compute:
			for i, r := range rows {
				v, evalErr := evalExpr(r, stage.Expr)
				if evalErr != nil {
					return nil, evalErr
				}
				rows[i] = setPath(r, []string{stage.Name}, v)
			}
		case pipeline.Sort:
			sortRows(rows, stage.Keys)
		case pipeline.Project:
			tree := projectionTree(stage.Fields)
			for i, r := range rows {
				rows[i] = project(r, tree)
			}
		case pipeline.Window:
			rows = windowRows(rows, stage)
		default:
			err = fmt.Errorf("%w: unsupported stage %T", pipeline.ErrInvalidStage, st)
		}
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (s *MemoryStore) joinLocked(ctx context.Context, rows []map[string]any, j pipeline.Join) ([]map[string]any, error) {
	foreign := s.sortedLocked(j.From)
	local := pipeline.SplitPath(j.LocalKey)
	key := pipeline.SplitPath(j.ForeignKey)

	for i, r := range rows {
		lv, lok := lookup(r, local)
		var matched []map[string]any
		if arr, isArr := lv.([]any); lok && isArr {
			// array keys keep the order of the local array
			taken := make([]bool, len(foreign))
			for _, want := range arr {
				for k, f := range foreign {
					if fv, fok := lookup(f, key); fok && !taken[k] && equalValues(fv, want) {
						taken[k] = true
						matched = append(matched, cloneValue(f).(map[string]any))
					}
				}
			}
		} else if lok {
			for _, f := range foreign {
				if fv, fok := lookup(f, key); fok && equalValues(lv, fv) {
					matched = append(matched, cloneValue(f).(map[string]any))
				}
			}
		}
		sub, err := s.runLocked(ctx, matched, j.Pipeline)
		if err != nil {
			return nil, err
		}
		list := make([]any, len(sub))
		for k, m := range sub {
			list[k] = m
		}
		rows[i] = setPath(r, []string{j.As}, list)
	}
	return rows, nil
}

func filterRows(rows []map[string]any, p pipeline.Predicate) ([]map[string]any, error) {
	out := rows[:0:0]
	for _, r := range rows {
		ok, err := match(r, p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func unwindRows(rows []map[string]any, segs []string) []map[string]any {
	var out []map[string]any
	for _, r := range rows {
		v, _ := lookup(r, segs)
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		for _, el := range arr {
			out = append(out, setPath(r, segs, el))
		}
	}
	return out
}

func sortRows(rows []map[string]any, keys []pipeline.SortKey) {
	slices.SortStableFunc(rows, func(a, b map[string]any) int {
		for _, k := range keys {
			segs := pipeline.SplitPath(k.Field)
			av, aok := lookup(a, segs)
			bv, bok := lookup(b, segs)
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return 1
			case !bok:
				return -1
			}
			c := compareValues(av, bv)
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func windowRows(rows []map[string]any, w pipeline.Window) []map[string]any {
	total := len(rows)
	start := min(w.Skip, total)
	end := min(start+w.Limit, total)
	items := make([]any, 0, end-start)
	for _, r := range rows[start:end] {
		items = append(items, r)
	}
	return []map[string]any{{
		pipeline.WindowItems: items,
		pipeline.WindowTotal: float64(total),
	}}
}

func (s *MemoryStore) sortedLocked(collection string) []Document {
	coll := s.collections[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Document, len(ids))
	for i, id := range ids {
		out[i] = coll[id]
	}
	return out
}

func (s *MemoryStore) rowsLocked(collection string) []map[string]any {
	docs := s.sortedLocked(collection)
	rows := make([]map[string]any, len(docs))
	for i, d := range docs {
		rows[i] = cloneValue(d).(map[string]any)
	}
	return rows
}

func (s *MemoryStore) patchLocked(collection string, doc Document, patch Patch) (Document, error) {
	updated, err := applyPatch(doc, patch)
	if err != nil {
		return nil, err
	}
	updated[pipeline.IDField] = doc.ID()
	if err := s.checkUniqueLocked(collection, updated); err != nil {
		return nil, err
	}
	s.collections[collection][doc.ID()] = updated
	return updated, nil
}

func (s *MemoryStore) checkUniqueLocked(collection string, doc Document) error {
	for _, idx := range s.indexes[collection] {
		key, ok := indexKey(doc, idx.Fields)
		if !ok {
			continue
		}
		for id, other := range s.collections[collection] {
			if id == doc.ID() {
				continue
			}
			if otherKey, ok := indexKey(other, idx.Fields); ok && otherKey == key {
				return ErrConflict
			}
		}
	}
	return nil
}

func indexKey(doc Document, fields []string) (string, bool) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := doc[f]
		if !ok || v == nil {
			return "", false
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x00"), true
}

var _ Store = (*MemoryStore)(nil)
