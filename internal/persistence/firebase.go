package persistence

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tdhs/helpdesk-service/internal/config"
)

// Firebase holds the Firebase app shared by the Firestore store and the ID
// token verifier.
type Firebase struct {
	App *firebase.App
}

// NewFirebase initializes the app. Credentials come from inline JSON, a key
// file, or the ambient application default credentials, in that order.
func NewFirebase(ctx context.Context, cfg config.FirebaseConfig, logger *zap.Logger) (*Firebase, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	logger.Info("firebase app initialized", zap.String("project_id", cfg.ProjectID))
	return &Firebase{App: app}, nil
}

// Firestore opens a Firestore client. The caller owns and closes it.
func (f *Firebase) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := f.App.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	return client, nil
}

// Auth returns the Firebase Authentication client.
func (f *Firebase) Auth(ctx context.Context) (*fbauth.Client, error) {
	client, err := f.App.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return client, nil
}
