package entitlement

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier(Config{Secret: []byte("s3cret")})

	for _, tier := range quiz.Tiers {
		token, err := v.Issue("device-1", tier)
		require.NoError(t, err)

		got, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier(Config{Secret: []byte("a")}).Issue("d", quiz.TierPro)
	require.NoError(t, err)

	_, err = NewVerifier(Config{Secret: []byte("b")}).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	v := NewVerifier(Config{Secret: []byte("s"), TTL: time.Minute})
	v.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := v.Issue("d", quiz.TierAdvanced)
	require.NoError(t, err)

	v.now = time.Now
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestProWinsOverAdvanced(t *testing.T) {
	secret := []byte("s")
	claims := Claims{
		Tier:         "advanced",
		Entitlements: []string{"advanced", "pro"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	got, err := NewVerifier(Config{Secret: secret}).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, quiz.TierPro, got)
}

func TestVerifyUnknownTier(t *testing.T) {
	secret := []byte("s")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Tier: "platinum"}).SignedString(secret)
	require.NoError(t, err)

	_, err = NewVerifier(Config{Secret: secret}).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
