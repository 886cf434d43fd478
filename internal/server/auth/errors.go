package auth

import "errors"

// Rejections. These are expected outcomes reported to the caller, never
// process-fatal.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrBadSignature       = errors.New("token signature is invalid")
	ErrExpired            = errors.New("token has expired")
	ErrMalformedClaims    = errors.New("token claims are malformed")
	ErrRevoked            = errors.New("token has been revoked")
)

// ErrPasswordTooLong is returned for plaintexts bcrypt would truncate.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// ErrUnavailable marks an infrastructure failure (store unreachable and
// the like). It is never a verdict about the presented credentials.
var ErrUnavailable = errors.New("authentication backend unavailable")

// IsTokenRejection reports whether err is one of the token rejections a
// protected boundary answers with "invalid or expired token".
func IsTokenRejection(err error) bool {
	return errors.Is(err, ErrBadSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMalformedClaims) ||
		errors.Is(err, ErrRevoked)
}
