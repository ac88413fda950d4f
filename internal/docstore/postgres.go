package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps documents in a single `documents` table with a
// per-row version. Commits lock the rows an attempt read, compare versions
// and apply the buffered writes in one database transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The schema comes from migrations.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	if s.pool == nil {
		return ErrUnavailable
	}
	tx := newBufferedTx(s.load)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *PostgresStore) load(ctx context.Context, ref Ref) (Fields, int64, error) {
	const query = `SELECT data, version FROM documents WHERE collection=$1 AND id=$2`
	var (
		raw     []byte
		version int64
	)
	if err := s.pool.QueryRow(ctx, query, ref.Collection, ref.ID).Scan(&raw, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, mapPostgresError(err)
	}
	fields, err := unmarshalFields(raw)
	if err != nil {
		return nil, 0, err
	}
	return fields, version, nil
}

func (s *PostgresStore) commit(ctx context.Context, btx *bufferedTx) error {
	if len(btx.order) == 0 {
		return nil
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapPostgresError(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const lockQuery = `SELECT version FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`
	for _, ref := range btx.sortedReads() {
		seen := btx.reads[ref]
		var current int64
		err := tx.QueryRow(ctx, lockQuery, ref.Collection, ref.ID).Scan(&current)
		exists := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return mapPostgresError(err)
		}
		if exists != seen.exists || (exists && current != seen.version) {
			return ErrConflict
		}
	}

	for _, w := range btx.order {
		if err := applyPostgresWrite(ctx, tx, w, btx.mustInsert(w)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func applyPostgresWrite(ctx context.Context, tx pgx.Tx, w *pendingWrite, insert bool) error {
	if w.delete {
		const query = `DELETE FROM documents WHERE collection=$1 AND id=$2`
		if _, err := tx.Exec(ctx, query, w.ref.Collection, w.ref.ID); err != nil {
			return mapPostgresError(err)
		}
		return nil
	}

	raw, err := json.Marshal(w.fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", w.ref, err)
	}

	query := `
        INSERT INTO documents (collection, id, data, version)
        VALUES ($1, $2, $3::jsonb, 1)
        ON CONFLICT (collection, id) DO UPDATE
            SET data = EXCLUDED.data, version = documents.version + 1, updated_at = NOW()`
	if insert {
		query = `
        INSERT INTO documents (collection, id, data, version)
        VALUES ($1, $2, $3::jsonb, 1)`
	}
	if _, err := tx.Exec(ctx, query, w.ref.Collection, w.ref.ID, string(raw)); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, ErrUnavailable
	}
	fields, _, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Document{Ref: ref, Fields: fields}, nil
}

// Query matches filters with jsonb containment so values keep their JSON types.
func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, ErrUnavailable
	}

	clauses := []string{"collection=$1"}
	args := []any{q.Collection}
	if len(q.Where) > 0 {
		match := make(map[string]any, len(q.Where))
		for _, f := range q.Where {
			match[f.Field] = f.Value
		}
		raw, err := json.Marshal(match)
		if err != nil {
			return nil, fmt.Errorf("encode filter: %w", err)
		}
		args = append(args, string(raw))
		clauses = append(clauses, fmt.Sprintf("data @> $%d::jsonb", len(args)))
	}

	query := fmt.Sprintf(`SELECT id, data FROM documents WHERE %s ORDER BY id`, strings.Join(clauses, " AND "))
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, mapPostgresError(err)
		}
		fields, err := unmarshalFields(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, Document{Ref: NewRef(q.Collection, id), Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return result, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ref Ref) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if s.pool == nil {
		return ErrUnavailable
	}
	const query = `DELETE FROM documents WHERE collection=$1 AND id=$2`
	if _, err := s.pool.Exec(ctx, query, ref.Collection, ref.ID); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return ErrUnavailable
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close is a no-op; the pool belongs to persistence.Postgres.
func (s *PostgresStore) Close() error {
	return nil
}

func unmarshalFields(raw []byte) (Fields, error) {
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	return fields, nil
}

// mapPostgresError folds serialization failures and unique violations into
// ErrConflict and connection-level failures into ErrUnavailable.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505", pgErr.Code == "40001", pgErr.Code == "40P01":
			return ErrConflict
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"),
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
