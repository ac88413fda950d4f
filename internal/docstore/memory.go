package docstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

type memoryRecord struct {
	fields  Fields
	version int64
}

// MemoryStore keeps documents in process memory. Every write stamps the
// document with a store-wide version; commits validate the versions observed
// by the attempt's reads.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryRecord
	clock       int64
	closed      bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]memoryRecord)}
}

func (s *MemoryStore) lookup(ref Ref) (memoryRecord, bool) {
	docs, ok := s.collections[ref.Collection]
	if !ok {
		return memoryRecord{}, false
	}
	rec, ok := docs[ref.ID]
	return rec, ok
}

// RunTransaction executes fn once and commits its buffered writes.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx := newBufferedTx(s.load)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) load(_ context.Context, ref Ref) (Fields, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, 0, ErrUnavailable
	}
	rec, ok := s.lookup(ref)
	if !ok {
		return nil, 0, ErrNotFound
	}
	fields, err := cloneFields(rec.fields)
	if err != nil {
		return nil, 0, err
	}
	return fields, rec.version, nil
}

func (s *MemoryStore) commit(tx *bufferedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}

	for ref, seen := range tx.reads {
		rec, exists := s.lookup(ref)
		if exists != seen.exists || (exists && rec.version != seen.version) {
			return ErrConflict
		}
	}
	for _, w := range tx.order {
		if tx.mustInsert(w) {
			if _, exists := s.lookup(w.ref); exists {
				return ErrConflict
			}
		}
	}

	for _, w := range tx.order {
		if w.delete {
			delete(s.collections[w.ref.Collection], w.ref.ID)
			continue
		}
		docs, ok := s.collections[w.ref.Collection]
		if !ok {
			docs = make(map[string]memoryRecord)
			s.collections[w.ref.Collection] = docs
		}
		s.clock++
		docs[w.ref.ID] = memoryRecord{fields: w.fields, version: s.clock}
	}
	return nil
}

// Get reads a document outside any transaction.
func (s *MemoryStore) Get(_ context.Context, ref Ref) (*Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}
	rec, ok := s.lookup(ref)
	if !ok {
		return nil, ErrNotFound
	}
	fields, err := cloneFields(rec.fields)
	if err != nil {
		return nil, err
	}
	return &Document{Ref: ref, Fields: fields}, nil
}

// Query returns documents whose fields equal every filter value, ordered by id.
func (s *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	wanted := make([]any, len(q.Where))
	for i, f := range q.Where {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		wanted[i] = v
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	ids := make([]string, 0, len(s.collections[q.Collection]))
	for id := range s.collections[q.Collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var result []Document
	for _, id := range ids {
		rec := s.collections[q.Collection][id]
		match := true
		for i, f := range q.Where {
			if !reflect.DeepEqual(rec.fields[f.Field], wanted[i]) {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		fields, err := cloneFields(rec.fields)
		if err != nil {
			return nil, err
		}
		result = append(result, Document{Ref: NewRef(q.Collection, id), Fields: fields})
		if q.Limit > 0 && len(result) >= q.Limit {
			break
		}
	}
	return result, nil
}

// Delete removes a document; deleting a missing document is not an error.
func (s *MemoryStore) Delete(_ context.Context, ref Ref) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnavailable
	}
	delete(s.collections[ref.Collection], ref.ID)
	return nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(context.Context) error {
	return s.checkOpen()
}

// Close makes every later call fail with ErrUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrUnavailable
	}
	return nil
}
