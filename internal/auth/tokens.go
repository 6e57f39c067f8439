package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/contacts-be/internal/apperr"
)

// Token scopes carried in the "scope" claim. Email tokens carry none.
const (
	ScopeAccess  = "access_token"
	ScopeRefresh = "refresh_token"
)

const (
	DefaultTokenTTL = 15 * time.Minute
	EmailTokenTTL   = 7 * 24 * time.Hour
)

// Claims defines the JWT claims structure.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the access, refresh and email tokens.
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer for an HMAC algorithm (HS256, HS384 or HS512).
// A nil now defaults to time.Now.
func NewTokenIssuer(secret, algorithm string, now func() time.Time) (*TokenIssuer, error) {
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if secret == "" {
		return nil, errors.New("secret key must not be empty")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), method: method, now: now}, nil
}

// IssueAccessToken creates an access token for subject. A zero ttl means 15 minutes.
func (t *TokenIssuer) IssueAccessToken(subject string, ttl time.Duration) (string, error) {
	return t.issue(subject, ScopeAccess, orDefault(ttl))
}

// IssueRefreshToken creates a refresh token for subject. A zero ttl means 15 minutes.
func (t *TokenIssuer) IssueRefreshToken(subject string, ttl time.Duration) (string, error) {
	return t.issue(subject, ScopeRefresh, orDefault(ttl))
}

// IssueEmailToken creates a 7-day token without a scope, used for email confirmation.
func (t *TokenIssuer) IssueEmailToken(subject string) (string, error) {
	return t.issue(subject, "", EmailTokenTTL)
}

// DecodeRefreshToken returns the subject of a valid refresh token.
func (t *TokenIssuer) DecodeRefreshToken(token string) (string, error) {
	claims, err := t.Parse(token)
	if err != nil {
		return "", err
	}
	if claims.Scope != ScopeRefresh {
		return "", apperr.ErrInvalidScope
	}
	return claims.Subject, nil
}

// EmailFromToken returns the subject of a valid email token.
func (t *TokenIssuer) EmailFromToken(token string) (string, error) {
	claims, err := t.Parse(token)
	if err != nil || claims.Subject == "" {
		return "", apperr.ErrUnprocessableToken
	}
	return claims.Subject, nil
}

// Parse verifies signature, algorithm and expiry and returns the claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, apperr.ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) issue(subject, scope string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
}

func orDefault(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return DefaultTokenTTL
	}
	return ttl
}
