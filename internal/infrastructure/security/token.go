package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

const DefaultTokenTTL = 30 * time.Minute

var ErrEmptySecret = errors.New("jwt secret must not be empty")

// JWTIssuer signs HS256 access tokens carrying the username as subject.
// The secret is fixed for the lifetime of the issuer; replacing it
// invalidates every outstanding token.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type Option func(*JWTIssuer)

// WithIssuer sets the iss claim and requires it on verification.
func WithIssuer(iss string) Option {
	return func(j *JWTIssuer) { j.issuer = iss }
}

// WithClock replaces time.Now, for issuing and for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(j *JWTIssuer) { j.now = now }
}

func NewJWTIssuer(secret []byte, ttl time.Duration, opts ...Option) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	j := &JWTIssuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// TTL is the lifetime given to every issued token.
func (j *JWTIssuer) TTL() time.Duration { return j.ttl }

// Issue mints a token for subject. The returned claims are exactly what
// Verify will report for the token; timestamps have second precision.
func (j *JWTIssuer) Issue(subject string) (string, domain.TokenClaims, error) {
	if subject == "" {
		return "", domain.TokenClaims{}, fmt.Errorf("%w: empty subject", domain.ErrInvalidInput)
	}

	now := j.now().Truncate(time.Second)
	claims := domain.TokenClaims{
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(j.ttl),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   claims.Subject,
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := t.SignedString(j.secret)
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, algorithm and expiry. Expired tokens yield
// domain.ErrTokenExpired; anything else wrong yields domain.ErrTokenInvalid.
func (j *JWTIssuer) Verify(token string) (domain.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	var rc jwt.RegisteredClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &rc, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.TokenClaims{}, domain.ErrTokenExpired
		}
		return domain.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if rc.Subject == "" || rc.IssuedAt == nil {
		return domain.TokenClaims{}, fmt.Errorf("%w: missing subject or iat", domain.ErrTokenInvalid)
	}

	return domain.TokenClaims{
		Subject:   rc.Subject,
		IssuedAt:  rc.IssuedAt.Time,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
