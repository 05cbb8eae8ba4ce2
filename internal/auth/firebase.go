package auth

import (
	"context"
	"fmt"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// idTokenVerifier is the part of the Firebase Auth client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Firebase verifies Firebase ID tokens issued to the client apps.
type Firebase struct {
	client idTokenVerifier
}

func NewFirebase(client *firebaseauth.Client) *Firebase {
	return &Firebase{client: client}
}

func (f *Firebase) Verify(ctx context.Context, token string) (Identity, error) {
	decoded, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if decoded.UID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UID: decoded.UID}, nil
}
