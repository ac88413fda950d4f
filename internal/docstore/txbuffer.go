package docstore

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
)

// readState is what an attempt observed for a document: its version and
// whether it existed at all.
type readState struct {
	version int64
	exists  bool
}

type pendingWrite struct {
	ref    Ref
	fields Fields
	create bool
	delete bool
}

// loadFunc reads the committed state of a document for a transaction attempt.
// It returns ErrNotFound for absent documents.
type loadFunc func(ctx context.Context, ref Ref) (Fields, int64, error)

// bufferedTx records the versions an attempt reads and buffers its writes
// until the backend commits them.
type bufferedTx struct {
	load    loadFunc
	newID   func() string
	reads   map[Ref]readState
	pending map[Ref]*pendingWrite
	order   []*pendingWrite
}

func newBufferedTx(load loadFunc) *bufferedTx {
	return &bufferedTx{
		load:    load,
		newID:   uuid.NewString,
		reads:   make(map[Ref]readState),
		pending: make(map[Ref]*pendingWrite),
	}
}

func (t *bufferedTx) Get(ctx context.Context, ref Ref) (*Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if w, ok := t.pending[ref]; ok {
		if w.delete {
			return nil, ErrNotFound
		}
		fields, err := cloneFields(w.fields)
		if err != nil {
			return nil, err
		}
		return &Document{Ref: ref, Fields: fields}, nil
	}

	fields, version, err := t.load(ctx, ref)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	exists := err == nil
	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = readState{version: version, exists: exists}
	}
	if !exists {
		return nil, ErrNotFound
	}
	return &Document{Ref: ref, Fields: fields}, nil
}

func (t *bufferedTx) Set(ref Ref, fields Fields) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	cloned, err := cloneFields(fields)
	if err != nil {
		return err
	}
	t.buffer(&pendingWrite{ref: ref, fields: cloned})
	return nil
}

func (t *bufferedTx) Create(collection string, fields Fields) (Ref, error) {
	ref := NewRef(collection, t.newID())
	if err := validateRef(ref); err != nil {
		return Ref{}, err
	}
	cloned, err := cloneFields(fields)
	if err != nil {
		return Ref{}, err
	}
	t.buffer(&pendingWrite{ref: ref, fields: cloned, create: true})
	return ref, nil
}

func (t *bufferedTx) Delete(ref Ref) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	t.buffer(&pendingWrite{ref: ref, delete: true})
	return nil
}

func (t *bufferedTx) buffer(w *pendingWrite) {
	if prev, ok := t.pending[w.ref]; ok {
		if prev.create && !w.delete {
			w.create = true
		}
		*prev = *w
		return
	}
	t.pending[w.ref] = w
	t.order = append(t.order, w)
}

// mustInsert reports whether a write has to be a plain insert: the document
// is new, or the attempt saw it absent. A concurrent insert of the same
// document then fails the commit instead of being overwritten.
func (t *bufferedTx) mustInsert(w *pendingWrite) bool {
	if w.create {
		return true
	}
	state, read := t.reads[w.ref]
	return read && !state.exists
}

// sortedReads returns the read set in a stable order so row locks are always
// taken in the same sequence.
func (t *bufferedTx) sortedReads() []Ref {
	refs := make([]Ref, 0, len(t.reads))
	for ref := range t.reads {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].String() < refs[j].String()
	})
	return refs
}
