package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore runs on Cloud Firestore. Each RunTransaction call is a single
// Firestore transaction attempt; Firestore's own retry loop is disabled so the
// caller owns the retry bound.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps a Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		btx := newBufferedTx(func(ctx context.Context, ref Ref) (Fields, int64, error) {
			snap, err := ftx.Get(s.client.Collection(ref.Collection).Doc(ref.ID))
			if err != nil {
				return nil, 0, mapFirestoreError(err)
			}
			return Fields(snap.Data()), snap.UpdateTime.UnixNano(), nil
		})
		btx.newID = func() string {
			return s.client.Collection("_").NewDoc().ID
		}
		if err := fn(ctx, btx); err != nil {
			return err
		}
		for _, w := range btx.order {
			doc := s.client.Collection(w.ref.Collection).Doc(w.ref.ID)
			var err error
			switch {
			case w.delete:
				err = ftx.Delete(doc)
			case btx.mustInsert(w):
				err = ftx.Create(doc, map[string]any(w.fields))
			default:
				err = ftx.Set(doc, map[string]any(w.fields))
			}
			if err != nil {
				return err
			}
		}
		return nil
	}, firestore.MaxAttempts(1))
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	snap, err := s.client.Collection(ref.Collection).Doc(ref.ID).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err)
	}
	return &Document{Ref: ref, Fields: Fields(snap.Data())}, nil
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Where {
		query = query.Where(f.Field, "==", f.Value)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err)
	}
	result := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		result = append(result, Document{
			Ref:    NewRef(q.Collection, snap.Ref.ID),
			Fields: Fields(snap.Data()),
		})
	}
	return result, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, ref Ref) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	_, err := s.client.Collection(ref.Collection).Doc(ref.ID).Delete(ctx)
	return mapFirestoreError(err)
}

// Ping issues a cheap read; a missing document still proves connectivity.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection("counters").Doc("_ping").Get(ctx)
	if err == nil || status.Code(err) == codes.NotFound {
		return nil
	}
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func mapFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.Aborted, codes.AlreadyExists, codes.FailedPrecondition:
		return ErrConflict
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
