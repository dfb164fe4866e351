package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: "test-secret-123", TTL: time.Hour, Issuer: "taskd"})
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{Secret: "short", TTL: time.Hour})
	assert.Error(t, err)

	_, err = NewService(Config{Secret: "long-enough-secret", TTL: 0})
	assert.Error(t, err)
}

func TestGenerateVerify_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	raw, exp, err := svc.Generate("user-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour), exp)

	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "taskd", claims.Issuer)
	assert.Equal(t, fixed, claims.IssuedAt.Time.UTC())
}

func TestGenerate_RequiresSubject(t *testing.T) {
	_, _, err := newTestService(t).Generate("", "a@example.com")
	assert.Error(t, err)
}

func TestVerify_Failures(t *testing.T) {
	svc := newTestService(t)
	valid, _, err := svc.Generate("user-1", "a@example.com")
	require.NoError(t, err)

	other, err := NewService(Config{Secret: "another-secret-456", TTL: time.Hour, Issuer: "taskd"})
	require.NoError(t, err)
	foreign, _, err := other.Generate("user-1", "a@example.com")
	require.NoError(t, err)

	wrongIssuer, err := NewService(Config{Secret: "test-secret-123", TTL: time.Hour, Issuer: "someone-else"})
	require.NoError(t, err)
	misissued, _, err := wrongIssuer.Generate("user-1", "a@example.com")
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "taskd",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"wrong secret":   foreign,
		"wrong issuer":   misissued,
		"tampered":       tampered,
		"alg none":       unsigned,
		"two segments":   parts[0] + "." + parts[1],
		"trailing space": valid + " ",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := svc.Verify(raw)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	raw, _, err := svc.Generate("user-1", "a@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestDecode(t *testing.T) {
	svc := newTestService(t)
	raw, _, err := svc.Generate("user-9", "z@example.com")
	require.NoError(t, err)

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.UserID())
	assert.Equal(t, "z@example.com", claims.Email)

	_, err = Decode("###")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
