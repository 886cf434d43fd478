// Package auth implements credential hashing, signed session tokens and
// the gate every protected operation calls to turn a bearer token into an
// Identity.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const maxPasswordBytes = 72

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
	// DummyDigest is a valid digest no password matches. Login compares
	// against it for unknown users so both failure paths cost the same.
	DummyDigest() string
}

// BcryptHasher is a Hasher backed by bcrypt. At most `workers` hash
// computations run at once; callers beyond that wait for a slot or for
// their context to end.
type BcryptHasher struct {
	cost  int
	slots *semaphore.Weighted
	dummy string
}

// NewBcryptHasher validates cost and precomputes the dummy digest.
func NewBcryptHasher(cost, workers int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("hash workers must be positive, got %d", workers)
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("dummy seed: %w", err)
	}
	// bcrypt reads at most 72 bytes, so 32 random bytes never collide with a
	// real password in practice.
	dummy, err := bcrypt.GenerateFromPassword(seed, cost)
	if err != nil {
		return nil, fmt.Errorf("dummy digest: %w", err)
	}

	return &BcryptHasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(workers)),
		dummy: string(dummy),
	}, nil
}

func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: waiting for hasher: %w", ErrUnavailable, err)
	}
	defer h.slots.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is a
// mismatch, not an error; the error is only set when ctx ends while waiting
// for a slot, and then wraps both ErrUnavailable and the context error.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if len(plaintext) > maxPasswordBytes {
		return false, nil
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("%w: waiting for hasher: %w", ErrUnavailable, err)
	}
	defer h.slots.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil, nil
}

func (h *BcryptHasher) DummyDigest() string { return h.dummy }
