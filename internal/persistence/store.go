package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/docstore"
)

// Backend is an opened document store plus whatever must be released with it.
type Backend struct {
	Store    docstore.Store
	Postgres *Postgres
	Firebase *Firebase
}

// Close releases the store and its connections.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	if b.Store != nil {
		_ = b.Store.Close()
	}
	b.Postgres.Close()
}

// OpenStore opens the backend selected by cfg.Store.Backend. The Firebase app
// is created when either the Firestore backend or Firebase sign-in needs it.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	b := &Backend{}
	if cfg.Store.Backend == config.StoreBackendFirestore || cfg.Auth.Provider == config.AuthProviderFirebase {
		fb, err := NewFirebase(ctx, cfg.Firebase, logger)
		if err != nil {
			return nil, err
		}
		b.Firebase = fb
	}

	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		b.Store = docstore.NewMemoryStore()
	case config.StoreBackendSQLite:
		store, err := docstore.NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			b.Close()
			return nil, err
		}
		logger.Info("opened sqlite document store", zap.String("path", cfg.SQLite.Path))
		b.Store = store
	case config.StoreBackendPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Postgres = pg
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				b.Close()
				return nil, err
			}
		}
		b.Store = docstore.NewPostgresStore(pg.PoolHandle())
	case config.StoreBackendFirestore:
		client, err := b.Firebase.Firestore(ctx)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Store = docstore.NewFirestoreStore(client)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return b, nil
}
