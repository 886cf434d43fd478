package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimsVersion is the only claims layout Verify accepts.
const ClaimsVersion = 1

// DefaultTokenTTL is the access token lifetime when none is configured.
const DefaultTokenTTL = 30 * time.Minute

// Claims is the fixed payload of a session token: ver, sub, iat, exp, jti.
type Claims struct {
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// Identity is what a verified token proves about its bearer.
type Identity struct {
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

// TokenConfig configures a TokenManager. Secret is copied at construction.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	// Leeway extends every token's expiry during verification to absorb
	// clock skew between issuer and verifier.
	Leeway time.Duration
}

// TokenOption customises a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now as the manager's clock.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenManager(cfg TokenConfig, opts ...TokenOption) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("token ttl must not be negative, got %s", cfg.TTL)
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("token leeway must not be negative, got %s", cfg.Leeway)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTokenTTL
	}

	m := &TokenManager{
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    cfg.TTL,
		leeway: cfg.Leeway,
		now:    time.Now,
		// Claims are checked by hand after the signature, see Verify.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL is the lifetime Issue gives tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Leeway is how long past exp Verify still accepts a token. Anything that
// must outlive a token, such as its revocation record, has to cover it.
func (m *TokenManager) Leeway() time.Duration { return m.leeway }

// Issue signs a token for subject with the configured lifetime.
func (m *TokenManager) Issue(subject string) (string, error) {
	return m.IssueWithTTL(subject, m.ttl)
}

// IssueWithTTL signs a token for subject that expires ttl from now. A zero
// ttl yields a token that is already expired.
func (m *TokenManager) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrMalformedClaims)
	}

	now := m.now()
	claims := Claims{
		Version: ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryFor(now, ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// expiryFor returns now+ttl rounded up to a whole second, since exp is
// encoded in seconds and truncating it would shorten the lifetime by up to
// a second. A non-positive ttl is not rounded, so such a token is expired
// on arrival.
func expiryFor(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if ttl <= 0 {
		return exp
	}
	if whole := exp.Truncate(time.Second); whole.Before(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

// Verify checks the signature, then expiry, then subject, then version.
// Nothing from the payload is interpreted before the signature holds.
func (m *TokenManager) Verify(token string) (Identity, error) {
	var claims Claims

	_, err := m.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	if claims.ExpiresAt == nil {
		return Identity{}, fmt.Errorf("%w: missing exp", ErrMalformedClaims)
	}
	if !m.now().Before(claims.ExpiresAt.Add(m.leeway)) {
		return Identity{}, ErrExpired
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing sub", ErrMalformedClaims)
	}
	if claims.IssuedAt == nil {
		return Identity{}, fmt.Errorf("%w: missing iat", ErrMalformedClaims)
	}
	if claims.Version != ClaimsVersion {
		return Identity{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedClaims, claims.Version)
	}

	return Identity{
		Username:  claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		TokenID:   claims.ID,
	}, nil
}
