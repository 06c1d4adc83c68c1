package entitlement

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

// Claims carried by an entitlement token issued by the billing side.
type Claims struct {
	Tier         string   `json:"tier,omitempty"`
	Entitlements []string `json:"entitlements,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid entitlement token")
	ErrExpiredToken = errors.New("entitlement token expired")
)

// Config holds entitlement signing configuration.
type Config struct {
	Secret []byte
	TTL    time.Duration // default: 30 days
	Issuer string
}

// Verifier maps signed entitlement tokens to subscription tiers.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewVerifier(cfg Config) *Verifier {
	if cfg.TTL == 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "thinkb-billing"
	}
	return &Verifier{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Issue mints a token granting tier to subject.
func (v *Verifier) Issue(subject string, tier quiz.Tier) (string, error) {
	now := v.now()
	claims := Claims{
		Tier: string(tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify validates the token and returns the tier it grants.
// An entitlements list wins over the tier claim, and pro wins over advanced.
func (v *Verifier) Verify(tokenString string) (quiz.Tier, error) {
	if len(v.secret) == 0 {
		return "", ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	switch {
	case slices.Contains(claims.Entitlements, string(quiz.TierPro)):
		return quiz.TierPro, nil
	case slices.Contains(claims.Entitlements, string(quiz.TierAdvanced)):
		return quiz.TierAdvanced, nil
	case claims.Tier == "":
		return quiz.TierNormal, nil
	}
	tier, err := quiz.ParseTier(claims.Tier)
	if err != nil {
		return "", ErrInvalidToken
	}
	return tier, nil
}
