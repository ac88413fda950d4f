package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       TEXT NOT NULL,
    version    INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    PRIMARY KEY (collection, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS documents_ticket_number_idx
    ON documents (json_extract(data, '$.ticketNumber'))
    WHERE collection = 'tickets';
`

// SQLiteStore is the embedded rendition of the versioned-row scheme. All
// access goes through a single connection, so commits are serialized.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	tx := newBufferedTx(s.load)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *SQLiteStore) load(ctx context.Context, ref Ref) (Fields, int64, error) {
	var (
		raw     string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM documents WHERE collection = ? AND id = ?`,
		ref.Collection, ref.ID,
	).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, mapSQLiteError(err)
	}
	fields, err := unmarshalFields([]byte(raw))
	if err != nil {
		return nil, 0, err
	}
	return fields, version, nil
}

func (s *SQLiteStore) commit(ctx context.Context, btx *bufferedTx) error {
	if len(btx.order) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteError(err)
	}
	defer tx.Rollback()

	for _, ref := range btx.sortedReads() {
		seen := btx.reads[ref]
		var current int64
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM documents WHERE collection = ? AND id = ?`,
			ref.Collection, ref.ID,
		).Scan(&current)
		exists := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return mapSQLiteError(err)
		}
		if exists != seen.exists || (exists && current != seen.version) {
			return ErrConflict
		}
	}

	for _, w := range btx.order {
		if err := applySQLiteWrite(ctx, tx, w, btx.mustInsert(w)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

func applySQLiteWrite(ctx context.Context, tx *sql.Tx, w *pendingWrite, insert bool) error {
	if w.delete {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`,
			w.ref.Collection, w.ref.ID,
		); err != nil {
			return mapSQLiteError(err)
		}
		return nil
	}

	raw, err := json.Marshal(w.fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", w.ref, err)
	}
	query := `INSERT INTO documents (collection, id, data, version) VALUES (?, ?, ?, 1)
        ON CONFLICT (collection, id) DO UPDATE SET
            data = excluded.data,
            version = documents.version + 1,
            updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`
	if insert {
		query = `INSERT INTO documents (collection, id, data, version) VALUES (?, ?, ?, 1)`
	}
	if _, err := tx.ExecContext(ctx, query, w.ref.Collection, w.ref.ID, string(raw)); err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	fields, _, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Document{Ref: ref, Fields: fields}, nil
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)
	args := []any{q.Collection}
	for _, f := range q.Where {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, ` AND json_extract(data, '$.%s') = ?`, f.Field)
		args = append(args, v)
	}
	b.WriteString(` ORDER BY id`)
	if q.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT %d`, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, mapSQLiteError(err)
		}
		fields, err := unmarshalFields([]byte(raw))
		if err != nil {
			return nil, err
		}
		result = append(result, Document{Ref: NewRef(q.Collection, id), Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return result, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ref Ref) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		ref.Collection, ref.ID,
	); err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return ErrConflict
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if strings.Contains(err.Error(), "sql: database is closed") {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
