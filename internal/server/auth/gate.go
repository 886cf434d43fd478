package auth

import (
	"context"
	"fmt"
)

// RevocationChecker answers whether a token was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TokenVerifier turns a token into an Identity.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// Gate is the single entry point protected operations call.
type Gate struct {
	revocations RevocationChecker
	tokens      TokenVerifier
}

func NewGate(revocations RevocationChecker, tokens TokenVerifier) *Gate {
	return &Gate{revocations: revocations, tokens: tokens}
}

// Authenticate resolves token to an Identity. The revocation lookup always
// runs first, so a revoked token is reported as ErrRevoked even if it has
// also expired. A failing lookup yields ErrUnavailable.
func (g *Gate) Authenticate(ctx context.Context, token string) (Identity, error) {
	revoked, err := g.revocations.IsRevoked(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if revoked {
		return Identity{}, ErrRevoked
	}
	return g.tokens.Verify(token)
}
