package providers

import (
	"context"
	"fmt"
)

var _ AuthProvider = &StaticAuthProvider{}

// StaticAuthProvider accepts a fixed set of tokens. It is meant for local
// development where no Firebase project is configured.
type StaticAuthProvider struct {
	users map[string]string
}

// NewStaticAuthProvider creates a provider from a token to user id mapping.
func NewStaticAuthProvider(users map[string]string) *StaticAuthProvider {
	copied := make(map[string]string, len(users))
	for token, uid := range users {
		copied[token] = uid
	}
	return &StaticAuthProvider{users: copied}
}

func (p *StaticAuthProvider) VerifyToken(_ context.Context, idToken string) (*TokenClaims, error) {
	uid, ok := p.users[idToken]
	if !ok {
		return nil, fmt.Errorf("%w: unknown static token", ErrInvalidToken)
	}
	return &TokenClaims{UID: uid}, nil
}
