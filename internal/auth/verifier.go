package auth

import (
	"context"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Identity is what a verified token says about its bearer. Exactly one of
// UserID (document id) or UID (identity provider id) is set.
type Identity struct {
	UserID string
	UID    string
}

// Verifier checks bearer tokens.
type Verifier interface {
	VerifyToken(ctx context.Context, raw string) (Identity, error)
}

// FirebaseVerifier accepts Firebase ID tokens.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier wraps a Firebase Auth client.
func NewFirebaseVerifier(client *firebaseauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, raw string) (Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UID: token.UID}, nil
}
