package auth

import (
	"context"
	"errors"
	"time"

	"github.com/isdelr/contacts-be/internal/apperr"
	"github.com/isdelr/contacts-be/internal/cache"
	"github.com/isdelr/contacts-be/internal/models"
	"github.com/rs/zerolog/log"
)

// IdentityTTL bounds how long a cached identity may be served.
const IdentityTTL = 900 * time.Second

// UserStore is the backing store consulted on an identity cache miss.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// CachedUser is the identity snapshot kept in the cache. Credentials are not cached.
type CachedUser struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Avatar    *string   `json:"avatar,omitempty"`
	Confirmed bool      `json:"confirmed"`
}

func snapshotOf(u *models.User) CachedUser {
	return CachedUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Avatar:    u.Avatar,
		Confirmed: u.Confirmed,
	}
}

func (c CachedUser) user() *models.User {
	return &models.User{
		ID:        c.ID,
		Username:  c.Username,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
		Avatar:    c.Avatar,
		Confirmed: c.Confirmed,
	}
}

// Service resolves bearer tokens to users, reading through the identity cache.
type Service struct {
	tokens *TokenIssuer
	users  UserStore
	cache  cache.Cache[CachedUser]
}

// NewService creates a new Service.
func NewService(tokens *TokenIssuer, users UserStore, identities cache.Cache[CachedUser]) *Service {
	return &Service{tokens: tokens, users: users, cache: identities}
}

// Tokens exposes the issuer used by the service.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// ResolveCurrentUser returns the user an access token was issued to.
func (s *Service) ResolveCurrentUser(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil || claims.Scope != ScopeAccess || claims.Subject == "" {
		return nil, apperr.ErrUnauthorized
	}
	email := claims.Subject

	cached, ok, err := s.cache.Get(ctx, email)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Identity cache read failed")
	}
	if ok {
		return cached.user(), nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, email, snapshotOf(user), IdentityTTL); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Identity cache write failed")
	}
	return user, nil
}

// InvalidateUser drops the cached identity for email.
func (s *Service) InvalidateUser(ctx context.Context, email string) {
	if err := s.cache.Delete(ctx, email); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Identity cache invalidation failed")
	}
}
