package docstore

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/pipeline"
)

// Pool is the subset of pgxpool.Pool the store needs.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// PostgresStore keeps each collection in its own (id TEXT PRIMARY KEY, doc JSONB) table.
type PostgresStore struct {
	pool   Pool
	tables map[string]string
	psql   sq.StatementBuilderType
}

// NewPostgresStore constructs a store over the provided pool. Only the listed collections
// may be addressed.
func NewPostgresStore(pool Pool, collections []string) *PostgresStore {
	tables := make(map[string]string, len(collections))
	for _, c := range collections {
		tables[c] = pgx.Identifier{c}.Sanitize()
	}
	return &PostgresStore{
		pool:   pool,
		tables: tables,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *PostgresStore) table(collection string) (string, error) {
	t, ok := s.tables[collection]
	if !ok {
		return "", fmt.Errorf("%w: unknown collection %q", pipeline.ErrInvalidStage, collection)
	}
	return t, nil
}

func (s *PostgresStore) compiler() *compiler {
	return &compiler{tables: s.table}
}

// Find returns every document of collection matching filter, in _id order.
func (s *PostgresStore) Find(ctx context.Context, collection string, filter pipeline.Predicate) ([]Document, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	where, err := s.compiler().pred("t.doc", filter)
	if err != nil {
		return nil, err
	}
	query, args, err := s.psql.Select("t.doc::text").From(table + " AS t").Where(where).OrderBy(`t.id COLLATE "C"`).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find %s: %w", collection, err)
	}
	return s.queryDocs(ctx, "find "+collection, query, args)
}

// FindOne returns the first matching document or ErrNotFound.
func (s *PostgresStore) FindOne(ctx context.Context, collection string, filter pipeline.Predicate) (Document, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	where, err := s.compiler().pred("t.doc", filter)
	if err != nil {
		return nil, err
	}
	query, args, err := s.psql.Select("t.doc::text").From(table + " AS t").Where(where).OrderBy(`t.id COLLATE "C"`).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find one %s: %w", collection, err)
	}
	return s.queryDoc(ctx, "find one "+collection, query, args)
}

// FindByID returns the document with id or ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, collection, id string) (Document, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	query, args, err := s.psql.Select("doc::text").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find %s by id: %w", collection, err)
	}
	return s.queryDoc(ctx, "find "+collection+" by id", query, args)
}

// Create inserts doc. Duplicate ids and unique index violations report ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, collection string, doc Document) error {
	table, err := s.table(collection)
	if err != nil {
		return err
	}
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("create %s: document has no id", collection)
	}
	body, err := encodeJSON(doc)
	if err != nil {
		return err
	}
	query, args, err := s.psql.Insert(table).Columns("id", "doc").Values(id, sq.Expr("?::text::jsonb", body)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", collection, err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return mapError("insert "+collection, err)
	}
	return nil
}

// UpdateByID applies patch atomically and returns the updated document.
func (s *PostgresStore) UpdateByID(ctx context.Context, collection, id string, patch Patch) (Document, error) {
	if patch.empty() {
		return s.FindByID(ctx, collection, id)
	}
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	set, err := s.compiler().patch(patch)
	if err != nil {
		return nil, err
	}
	query, args, err := s.psql.Update(table+" AS t").Set("doc", set).Where(sq.Eq{"t.id": id}).Suffix("RETURNING t.doc::text").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update %s: %w", collection, err)
	}
	return s.queryDoc(ctx, "update "+collection, query, args)
}

// UpdateMany applies patch to every match and reports how many documents changed.
func (s *PostgresStore) UpdateMany(ctx context.Context, collection string, filter pipeline.Predicate, patch Patch) (int64, error) {
	if patch.empty() {
		return 0, nil
	}
	table, err := s.table(collection)
	if err != nil {
		return 0, err
	}
	c := s.compiler()
	set, err := c.patch(patch)
	if err != nil {
		return 0, err
	}
	where, err := c.pred("t.doc", filter)
	if err != nil {
		return 0, err
	}
	query, args, err := s.psql.Update(table+" AS t").Set("doc", set).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update %s: %w", collection, err)
	}
	return s.exec(ctx, "update "+collection, query, args)
}

// DeleteByID removes the document and returns it as it was.
func (s *PostgresStore) DeleteByID(ctx context.Context, collection, id string) (Document, error) {
	table, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	query, args, err := s.psql.Delete(table).Where(sq.Eq{"id": id}).Suffix("RETURNING doc::text").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete %s: %w", collection, err)
	}
	return s.queryDoc(ctx, "delete "+collection, query, args)
}

// DeleteMany removes every match and reports how many were removed.
func (s *PostgresStore) DeleteMany(ctx context.Context, collection string, filter pipeline.Predicate) (int64, error) {
	table, err := s.table(collection)
	if err != nil {
		return 0, err
	}
	where, err := s.compiler().pred("t.doc", filter)
	if err != nil {
		return 0, err
	}
	query, args, err := s.psql.Delete(table + " AS t").Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete %s: %w", collection, err)
	}
	return s.exec(ctx, "delete "+collection, query, args)
}

// Count reports how many documents match filter.
func (s *PostgresStore) Count(ctx context.Context, collection string, filter pipeline.Predicate) (int64, error) {
	table, err := s.table(collection)
	if err != nil {
		return 0, err
	}
	where, err := s.compiler().pred("t.doc", filter)
	if err != nil {
		return 0, err
	}
	query, args, err := s.psql.Select("count(*)").From(table + " AS t").Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count %s: %w", collection, err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var n int64
	if err := conn.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError("count "+collection, err)
	}
	return n, nil
}

// Aggregate compiles plan into a single statement.
func (s *PostgresStore) Aggregate(ctx context.Context, plan pipeline.Plan) ([]Document, error) {
	stmt, err := s.compiler().plan(plan)
	if err != nil {
		return nil, err
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build aggregate %s: %w", plan.Collection, err)
	}
	query, err = sq.Dollar.ReplacePlaceholders(query)
	if err != nil {
		return nil, fmt.Errorf("build aggregate %s: %w", plan.Collection, err)
	}
	return s.queryDocs(ctx, "aggregate "+plan.Collection, query, args)
}

func (s *PostgresStore) queryDocs(ctx context.Context, op, query string, args []any) ([]Document, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		doc, err := decodeJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return docs, nil
}

func (s *PostgresStore) queryDoc(ctx context.Context, op, query string, args []any) (Document, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var raw string
	if err := conn.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return nil, mapError(op, err)
	}
	return decodeJSON(raw)
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(op, err)
	}
	return tag.RowsAffected(), nil
}

func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ Store = (*PostgresStore)(nil)
