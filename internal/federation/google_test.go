package federation

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pina-onboarding/internal/domain"
)

func newTestVerifier(t *testing.T) (*GoogleVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kf := func(*jwt.Token) (any, error) { return &key.PublicKey, nil }
	return newGoogleVerifier(kf, "client-1"), key
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, mutate func(*googleClaims)) string {
	t.Helper()
	now := time.Now()
	claims := googleClaims{
		Email:         "new@x.com",
		EmailVerified: true,
		GivenName:     "A",
		FamilyName:    "B",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "g123",
			Audience:  jwt.ClaimStrings{"client-1"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(&claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestGoogleVerifier_Verify(t *testing.T) {
	v, key := newTestVerifier(t)

	profile, err := v.Verify(context.Background(), signIDToken(t, key, nil))
	require.NoError(t, err)
	assert.Equal(t, Profile{
		Provider:   domain.ProviderGoogle,
		ProviderID: "g123",
		Email:      "new@x.com",
		FullName:   "A B",
	}, profile)
}

func TestGoogleVerifier_Rejects(t *testing.T) {
	v, key := newTestVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cases := map[string]struct {
		token string
		want  error
	}{
		"empty":         {"", ErrInvalidIDToken},
		"wrong key":     {signIDToken(t, other, nil), ErrInvalidIDToken},
		"wrong aud":     {signIDToken(t, key, func(c *googleClaims) { c.Audience = jwt.ClaimStrings{"other"} }), ErrInvalidIDToken},
		"wrong issuer":  {signIDToken(t, key, func(c *googleClaims) { c.Issuer = "evil.example.com" }), ErrInvalidIDToken},
		"expired":       {signIDToken(t, key, func(c *googleClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }), ErrInvalidIDToken},
		"unverified":    {signIDToken(t, key, func(c *googleClaims) { c.EmailVerified = false }), ErrEmailNotVerified},
		"missing email": {signIDToken(t, key, func(c *googleClaims) { c.Email = "" }), ErrEmailNotVerified},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestNewGoogleVerifier_RequiresClientID(t *testing.T) {
	_, err := NewGoogleVerifier(context.Background(), "http://127.0.0.1:1/certs", "", nil)
	assert.Error(t, err)
}
