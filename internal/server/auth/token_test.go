package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-0123456789")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestManager(t *testing.T, clock *fakeClock, leeway time.Duration) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{Secret: testSecret, TTL: 30 * time.Minute, Leeway: leeway}, WithClock(clock.Now))
	require.NoError(t, err)
	return m
}

func signRaw(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func TestTokenManager_RoundTrip(t *testing.T) {
	clock := newClock()
	m := newTestManager(t, clock, 0)

	tok, err := m.Issue("alice")
	require.NoError(t, err)

	id, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.True(t, id.IssuedAt.Equal(clock.t))
	assert.True(t, id.ExpiresAt.Equal(clock.t.Add(30*time.Minute)))
	assert.NotEmpty(t, id.TokenID)
}

func TestTokenManager_UniqueTokenIDs(t *testing.T) {
	m := newTestManager(t, newClock(), 0)

	t1, err := m.Issue("alice")
	require.NoError(t, err)
	t2, err := m.Issue("alice")
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2, "same subject and instant must still give distinct tokens")
}

func TestTokenManager_DefaultTTL(t *testing.T) {
	m, err := NewTokenManager(TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, m.TTL())
}

func TestTokenManager_ZeroTTLIsExpired(t *testing.T) {
	m := newTestManager(t, newClock(), 0)

	tok, err := m.IssueWithTTL("alice", 0)
	require.NoError(t, err)

	_, err = m.Verify(tok)
	require.ErrorIs(t, err, ErrExpired)
}

func TestTokenManager_ExpiresAfterClockAdvance(t *testing.T) {
	clock := newClock()
	m := newTestManager(t, clock, 0)

	tok, err := m.IssueWithTTL("alice", time.Second)
	require.NoError(t, err)

	_, err = m.Verify(tok)
	require.NoError(t, err)

	clock.Advance(999 * time.Millisecond)
	_, err = m.Verify(tok)
	require.NoError(t, err)

	clock.Advance(time.Millisecond)
	_, err = m.Verify(tok)
	require.ErrorIs(t, err, ErrExpired, "expiry instant itself is expired")

	clock.Advance(time.Hour)
	_, err = m.Verify(tok)
	require.ErrorIs(t, err, ErrExpired, "expired stays expired")
}

func TestTokenManager_Leeway(t *testing.T) {
	clock := newClock()
	m := newTestManager(t, clock, 30*time.Second)

	tok, err := m.IssueWithTTL("alice", time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute + 29*time.Second)
	_, err = m.Verify(tok)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = m.Verify(tok)
	require.ErrorIs(t, err, ErrExpired)
}

func TestTokenManager_SubSecondIssueKeepsFullLifetime(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 900_000_000, time.UTC)}
	m := newTestManager(t, clock, 0)

	tok, err := m.IssueWithTTL("alice", time.Second)
	require.NoError(t, err)

	clock.Advance(1050 * time.Millisecond)
	id, err := m.Verify(tok)
	require.NoError(t, err, "a one second token must live at least one second")
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC), id.ExpiresAt.UTC())

	clock.Advance(50 * time.Millisecond)
	_, err = m.Verify(tok)
	require.ErrorIs(t, err, ErrExpired)

	zero, err := m.IssueWithTTL("alice", 0)
	require.NoError(t, err)
	_, err = m.Verify(zero)
	require.ErrorIs(t, err, ErrExpired)
}

func TestTokenManager_EveryBitFlipIsBadSignature(t *testing.T) {
	m := newTestManager(t, newClock(), 0)

	tok, err := m.Issue("alice")
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(tok)
			b[i] ^= 1 << bit

			id, err := m.Verify(string(b))
			if !errors.Is(err, ErrBadSignature) {
				t.Fatalf("byte %d bit %d: want ErrBadSignature, got identity %+v err %v", i, bit, id, err)
			}
		}
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	clock := newClock()
	other, err := NewTokenManager(TokenConfig{Secret: []byte("another-secret")}, WithClock(clock.Now))
	require.NoError(t, err)

	tok, err := other.Issue("alice")
	require.NoError(t, err)

	_, err = newTestManager(t, clock, 0).Verify(tok)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	clock := newClock()
	m := newTestManager(t, clock, 0)
	claims := Claims{
		Version: ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			IssuedAt:  jwt.NewNumericDate(clock.t),
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = m.Verify(hs512)
	require.ErrorIs(t, err, ErrBadSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(none)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestTokenManager_Garbage(t *testing.T) {
	m := newTestManager(t, newClock(), 0)

	for _, tok := range []string{"", "not.a.jwt", "a.b", "....", "Bearer x"} {
		_, err := m.Verify(tok)
		require.ErrorIs(t, err, ErrBadSignature, "token %q", tok)
	}
}

func TestTokenManager_ClaimChecks(t *testing.T) {
	clock := newClock()
	m := newTestManager(t, clock, 0)
	iat := jwt.NewNumericDate(clock.t)
	exp := jwt.NewNumericDate(clock.t.Add(time.Hour))
	past := jwt.NewNumericDate(clock.t.Add(-time.Hour))

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   error
	}{
		{name: "valid", claims: jwt.MapClaims{"ver": 1, "sub": "alice", "iat": iat, "exp": exp}},
		{name: "missing exp", claims: jwt.MapClaims{"ver": 1, "sub": "alice", "iat": iat}, want: ErrMalformedClaims},
		{name: "missing sub", claims: jwt.MapClaims{"ver": 1, "iat": iat, "exp": exp}, want: ErrMalformedClaims},
		{name: "empty sub", claims: jwt.MapClaims{"ver": 1, "sub": "", "iat": iat, "exp": exp}, want: ErrMalformedClaims},
		{name: "missing iat", claims: jwt.MapClaims{"ver": 1, "sub": "alice", "exp": exp}, want: ErrMalformedClaims},
		{name: "missing version", claims: jwt.MapClaims{"sub": "alice", "iat": iat, "exp": exp}, want: ErrMalformedClaims},
		{name: "future version", claims: jwt.MapClaims{"ver": 2, "sub": "alice", "iat": iat, "exp": exp}, want: ErrMalformedClaims},
		{name: "expiry checked before subject", claims: jwt.MapClaims{"ver": 1, "iat": iat, "exp": past}, want: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(signRaw(t, tt.claims))
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenManager_IssueEmptySubject(t *testing.T) {
	m := newTestManager(t, newClock(), 0)

	_, err := m.Issue("")
	require.ErrorIs(t, err, ErrMalformedClaims)
}

func TestNewTokenManager_Invalid(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	require.Error(t, err)

	_, err = NewTokenManager(TokenConfig{Secret: testSecret, TTL: -time.Second})
	require.Error(t, err)

	_, err = NewTokenManager(TokenConfig{Secret: testSecret, Leeway: -time.Second})
	require.Error(t, err)
}

func TestNewTokenManager_SecretIsCopied(t *testing.T) {
	secret := []byte("mutable-secret")
	m, err := NewTokenManager(TokenConfig{Secret: secret})
	require.NoError(t, err)

	tok, err := m.Issue("alice")
	require.NoError(t, err)

	secret[0] ^= 0xff
	_, err = m.Verify(tok)
	require.NoError(t, err)
}

func TestIsTokenRejection(t *testing.T) {
	for _, err := range []error{ErrBadSignature, ErrExpired, ErrMalformedClaims, ErrRevoked} {
		assert.True(t, IsTokenRejection(err))
		assert.True(t, IsTokenRejection(errors.Join(errors.New("ctx"), err)))
	}
	for _, err := range []error{nil, ErrUnavailable, ErrInvalidCredentials, ErrUsernameTaken, errors.New("x")} {
		assert.False(t, IsTokenRejection(err))
	}
}
