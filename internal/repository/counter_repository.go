package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tdhs/helpdesk-service/internal/docstore"
)

// CountersCollection holds one document per sequence.
const CountersCollection = "counters"

// CounterRepository reads and writes sequence counters. Reads and writes go
// through the caller's transaction; the repository never retries.
type CounterRepository interface {
	ReadCount(ctx context.Context, tx docstore.Tx, key string) (int64, error)
	WriteCount(ctx context.Context, tx docstore.Tx, key string, value int64) error
	Peek(ctx context.Context, key string) (int64, error)
}

type counterRepository struct {
	store docstore.Store
}

// NewCounterRepository returns a docstore-backed implementation.
func NewCounterRepository(store docstore.Store) CounterRepository {
	return &counterRepository{store: store}
}

// ReadCount returns the stored count. An absent counter reads as 0.
func (r *counterRepository) ReadCount(ctx context.Context, tx docstore.Tx, key string) (int64, error) {
	doc, err := tx.Get(ctx, docstore.NewRef(CountersCollection, key))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return countFromFields(key, doc.Fields)
}

// WriteCount sets the counter, creating it when absent.
func (r *counterRepository) WriteCount(_ context.Context, tx docstore.Tx, key string, value int64) error {
	if value < 0 {
		return fmt.Errorf("counter %s: negative value %d", key, value)
	}
	return tx.Set(docstore.NewRef(CountersCollection, key), docstore.Fields{"count": value})
}

// Peek reads the counter outside a transaction.
func (r *counterRepository) Peek(ctx context.Context, key string) (int64, error) {
	doc, err := r.store.Get(ctx, docstore.NewRef(CountersCollection, key))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return countFromFields(key, doc.Fields)
}

func countFromFields(key string, fields docstore.Fields) (int64, error) {
	switch v := fields["count"].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, fmt.Errorf("counter %s: invalid count %v", key, v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("counter %s: unexpected count type %T", key, v)
	}
}
