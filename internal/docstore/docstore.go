// Package docstore is a small document-store abstraction with optimistic
// transactions. Backends: in-memory, Postgres, SQLite and Firestore.
//
// A transaction function passed to RunTransaction is executed exactly once per
// call. If a document it read changed before commit, RunTransaction returns
// ErrConflict and nothing is written; retrying is the caller's job and each
// retry re-executes the whole function against fresh reads.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when a commit lost an optimistic-concurrency race.
	ErrConflict = errors.New("docstore: transaction conflict")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("docstore: store unavailable")
)

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// NewRef builds a Ref.
func NewRef(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

// Fields is the JSON-shaped body of a document.
type Fields map[string]any

// Document is a stored document and its address.
type Document struct {
	Ref    Ref
	Fields Fields
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Where      []Filter
	Limit      int
}

// Tx is the view of the store inside a transaction attempt. Writes are
// buffered and only become visible to others after a successful commit.
type Tx interface {
	Get(ctx context.Context, ref Ref) (*Document, error)
	Set(ref Ref, fields Fields) error
	Create(collection string, fields Fields) (Ref, error)
	Delete(ref Ref) error
}

// TxFunc is the body of a transaction attempt.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is implemented by every backend.
type Store interface {
	RunTransaction(ctx context.Context, fn TxFunc) error
	Get(ctx context.Context, ref Ref) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Delete(ctx context.Context, ref Ref) error
	Ping(ctx context.Context) error
	Close() error
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateQuery(q Query) error {
	if q.Collection == "" {
		return fmt.Errorf("docstore: query without collection")
	}
	for _, f := range q.Where {
		if !fieldNamePattern.MatchString(f.Field) {
			return fmt.Errorf("docstore: invalid filter field %q", f.Field)
		}
	}
	return nil
}

func validateRef(ref Ref) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("docstore: incomplete reference %q", ref.String())
	}
	return nil
}
