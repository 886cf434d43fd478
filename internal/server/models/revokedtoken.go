package models

import "time"

// RevokedToken records a logged-out token by fingerprint. ExpiresAt is the
// token's own expiry; after it the row only matters to garbage collection.
type RevokedToken struct {
	Fingerprint string
	RevokedAt   time.Time
	ExpiresAt   time.Time
}
