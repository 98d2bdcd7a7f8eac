package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestJWTer(clock *fakeClock) *JWTer {
	j := NewJWTer([]byte("test-secret-key-with-enough-bytes!!"), "tour-booking", time.Hour)
	j.Now = clock.Now
	return j
}

func TestJWTer_IssueVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	j := newTestJWTer(clock)

	tok, err := j.Issue("user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(tok, "."))

	claims, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.True(t, clock.Now().Equal(claims.Issued()))
	assert.True(t, clock.Now().Add(time.Hour).Equal(claims.Expires()))
	assert.NotEmpty(t, claims.ID)
}

func TestJWTer_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	j := newTestJWTer(clock)

	tok, err := j.Issue("user-1")
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)
	_, err = j.Verify(tok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExpired))
	assert.Equal(t, KindExpired, KindOf(err))
}

func TestJWTer_LeewayExtendsExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	j := newTestJWTer(clock)
	j.Leeway = time.Minute

	tok, err := j.Issue("user-1")
	require.NoError(t, err)

	clock.Advance(time.Hour + 30*time.Second)
	_, err = j.Verify(tok)
	assert.NoError(t, err)
}

func TestJWTer_WrongSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	j := newTestJWTer(clock)
	other := newTestJWTer(clock)
	other.Secret = []byte("another-secret-key-with-enough-bytes")

	tok, err := other.Issue("user-1")
	require.NoError(t, err)

	_, err = j.Verify(tok)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestJWTer_TamperedToken(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	j := newTestJWTer(clock)

	tok, err := j.Issue("user-1")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	forged := NewJWTer(j.Secret, j.Issuer, j.TTL)
	forged.Now = clock.Now
	other, err := forged.Issue("admin-1")
	require.NoError(t, err)
	// 换 payload 保留原签名
	swapped := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

	_, err = j.Verify(swapped)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	// 翻转签名里的一位
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = j.Verify(parts[0] + "." + parts[1] + "." + string(sig))
	assert.Error(t, err)
}

func TestJWTer_Malformed(t *testing.T) {
	j := newTestJWTer(&fakeClock{t: time.Now()})

	for _, raw := range []string{"", "abc", "a.b", "a.b.c", "loggedout"} {
		_, err := j.Verify(raw)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestJWTer_MissingClaims(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	j := newTestJWTer(clock)

	sign := func(c jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.Secret)
		require.NoError(t, err)
		return s
	}
	now := clock.Now()

	noSub := sign(jwt.RegisteredClaims{Issuer: j.Issuer, IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})
	_, err := j.Verify(noSub)
	assert.ErrorIs(t, err, ErrMalformed)

	noIat := sign(jwt.RegisteredClaims{Subject: "u", Issuer: j.Issuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})
	_, err = j.Verify(noIat)
	assert.ErrorIs(t, err, ErrMalformed)

	noExp := sign(jwt.RegisteredClaims{Subject: "u", Issuer: j.Issuer, IssuedAt: jwt.NewNumericDate(now)})
	_, err = j.Verify(noExp)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestJWTer_RejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	j := newTestJWTer(clock)
	now := clock.Now()

	c := jwt.RegisteredClaims{Subject: "u", Issuer: j.Issuer, IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.Verify(none)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString(j.Secret)
	require.NoError(t, err)
	_, err = j.Verify(hs512)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}
