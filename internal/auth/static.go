package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidToken is returned when a token is unknown or malformed.
var ErrInvalidToken = errors.New("invalid token")

// StaticVerifier maps fixed tokens to identities. Used in tests and in
// development deployments without an identity provider.
type StaticVerifier struct {
	mu       sync.RWMutex
	tokens   map[string]Identity
	VerifyFn func(ctx context.Context, rawToken string) (*Identity, error) // overrides lookup when set
}

// NewStaticVerifier creates an empty StaticVerifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{
		tokens: make(map[string]Identity),
	}
}

// AddToken registers a token for the given identity.
func (v *StaticVerifier) AddToken(token string, identity Identity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[token] = identity
}

// Verify resolves the token from the registered set.
func (v *StaticVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if v.VerifyFn != nil {
		return v.VerifyFn(ctx, rawToken)
	}

	v.mu.RLock()
	identity, ok := v.tokens[rawToken]
	v.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidToken
	}

	out := identity
	return &out, nil
}
