package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/tdhs/helpdesk-service/internal/docstore"
	"github.com/tdhs/helpdesk-service/internal/domain"
)

// UsersCollection holds staff identities.
const UsersCollection = "users"

// ErrUserExists is returned by Create when the id is already taken.
var ErrUserExists = errors.New("user already exists")

// UserRepository defines persistence access for staff users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUID(ctx context.Context, uid string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetForUpdate(ctx context.Context, tx docstore.Tx, id string) (*domain.User, error)
	List(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type userRepository struct {
	store docstore.Store
}

// NewUserRepository returns a docstore-backed implementation.
func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{store: store}
}

// Create stores user under user.ID, or under a generated id when it is empty.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	fields, err := docstore.Encode(user)
	if err != nil {
		return err
	}
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if user.ID == "" {
			ref, err := tx.Create(UsersCollection, fields)
			if err != nil {
				return err
			}
			user.ID = ref.ID
			return nil
		}
		ref := docstore.NewRef(UsersCollection, user.ID)
		if _, err := tx.Get(ctx, ref); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return tx.Set(ref, fields)
	})
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	fields, err := docstore.Encode(user)
	if err != nil {
		return err
	}
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		ref := docstore.NewRef(UsersCollection, user.ID)
		if _, err := tx.Get(ctx, ref); err != nil {
			return err
		}
		return tx.Set(ref, fields)
	})
}

// Delete removes the user document. A missing user is ErrNotFound.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		ref := docstore.NewRef(UsersCollection, id)
		if _, err := tx.Get(ctx, ref); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.store.Get(ctx, docstore.NewRef(UsersCollection, id))
	if err != nil {
		return nil, err
	}
	return decodeUser(*doc)
}

func (r *userRepository) GetForUpdate(ctx context.Context, tx docstore.Tx, id string) (*domain.User, error) {
	doc, err := tx.Get(ctx, docstore.NewRef(UsersCollection, id))
	if err != nil {
		return nil, err
	}
	return decodeUser(*doc)
}

func (r *userRepository) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	return r.findOne(ctx, "uid", uid)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

// List returns users ordered by name, optionally restricted to one role.
func (r *userRepository) List(ctx context.Context, role domain.Role) ([]domain.User, error) {
	q := docstore.Query{Collection: UsersCollection}
	if role != "" {
		q.Where = []docstore.Filter{{Field: "role", Value: string(role)}}
	}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *userRepository) findOne(ctx context.Context, field, value string) (*domain.User, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: UsersCollection,
		Where:      []docstore.Filter{{Field: field, Value: value}},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return decodeUser(docs[0])
}

func decodeUser(doc docstore.Document) (*domain.User, error) {
	var u domain.User
	if err := docstore.Decode(doc.Fields, &u); err != nil {
		return nil, err
	}
	u.ID = doc.Ref.ID
	return &u, nil
}
