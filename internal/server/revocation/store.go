// Package revocation remembers logged-out tokens until they expire.
//
// Tokens are keyed by Fingerprint, the SHA-256 of the exact token string,
// so the raw bearer credential is never persisted.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Store records and answers revocations.
type Store interface {
	// Revoke is idempotent. expiresAt is the token's own expiry and bounds
	// how long the record must be kept.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Fingerprint returns the hex SHA-256 of token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
