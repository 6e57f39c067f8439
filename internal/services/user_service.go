package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/contacts-be/internal/apperr"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/isdelr/contacts-be/internal/mail"
	"github.com/isdelr/contacts-be/internal/models"
	"github.com/isdelr/contacts-be/internal/repository"
	"github.com/isdelr/contacts-be/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	MsgEmailConfirmed        = "Email confirmed"
	MsgEmailAlreadyConfirmed = "Your email is already confirmed"
	MsgCheckEmail            = "Check your email for confirmation."
)

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Signup(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, user *models.User) error
	ConfirmEmail(ctx context.Context, token string) (string, error)
	RequestEmail(ctx context.Context, email, baseURL string) (string, error)
	SendConfirmation(ctx context.Context, user *models.User, baseURL string) error
	UpdateAvatar(ctx context.Context, user *models.User, contentType string, body io.Reader, size int64) (*models.User, error)
}

// TokenTTLs holds the lifetimes handed to the token issuer.
type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
}

// UserService provides business logic for accounts and sessions.
type UserService struct {
	users  repository.UserRepository
	auth   *auth.Service
	images storage.ImageStore
	mailer mail.Sender
	ttls   TokenTTLs
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserRepository, authSvc *auth.Service, images storage.ImageStore, mailer mail.Sender, ttls TokenTTLs) *UserService {
	return &UserService{users: users, auth: authSvc, images: images, mailer: mailer, ttls: ttls}
}

// Signup creates a new account with a hashed password.
func (s *UserService) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperr.ErrConflict
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.Create(ctx, repository.NewUser{Username: username, Email: email, PasswordHash: hash})
}

// Login verifies credentials and starts a session. Unconfirmed accounts cannot log in.
func (s *UserService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("%w: invalid email", apperr.ErrUnauthorized)
		}
		return TokenPair{}, err
	}
	if !user.Confirmed {
		return TokenPair{}, apperr.ErrEmailNotConfirmed
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return TokenPair{}, fmt.Errorf("%w: invalid password", apperr.ErrUnauthorized)
	}
	return s.startSession(ctx, user)
}

// Refresh rotates the token pair. A refresh token that does not match the stored one
// ends the session.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	email, err := s.auth.Tokens().DecodeRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return TokenPair{}, apperr.ErrUnauthorized
		}
		return TokenPair{}, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		if err := s.users.SetRefreshToken(ctx, user, nil); err != nil {
			return TokenPair{}, err
		}
		return TokenPair{}, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthorized)
	}
	return s.startSession(ctx, user)
}

// Logout drops the stored refresh token.
func (s *UserService) Logout(ctx context.Context, user *models.User) error {
	if err := s.users.SetRefreshToken(ctx, user, nil); err != nil {
		return err
	}
	s.auth.InvalidateUser(ctx, user.Email)
	return nil
}

// ConfirmEmail marks the address carried by an email token as confirmed.
func (s *UserService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	email, err := s.auth.Tokens().EmailFromToken(token)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", fmt.Errorf("%w: verification error", apperr.ErrBadRequest)
		}
		return "", err
	}
	if user.Confirmed {
		return MsgEmailAlreadyConfirmed, nil
	}

	if err := s.users.ConfirmEmail(ctx, email); err != nil {
		return "", err
	}
	s.auth.InvalidateUser(ctx, email)
	return MsgEmailConfirmed, nil
}

// RequestEmail resends the confirmation mail. Unknown addresses get the same answer
// as known ones.
func (s *UserService) RequestEmail(ctx context.Context, email, baseURL string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return MsgCheckEmail, nil
		}
		return "", err
	}
	if user.Confirmed {
		return MsgEmailAlreadyConfirmed, nil
	}
	if err := s.SendConfirmation(ctx, user, baseURL); err != nil {
		return "", err
	}
	return MsgCheckEmail, nil
}

// SendConfirmation mails a confirmation link to user.
func (s *UserService) SendConfirmation(ctx context.Context, user *models.User, baseURL string) error {
	token, err := s.auth.Tokens().IssueEmailToken(user.Email)
	if err != nil {
		return fmt.Errorf("failed to issue email token: %w", err)
	}
	link := strings.TrimRight(baseURL, "/") + "/api/auth/confirmed_email/" + token

	msg, err := mail.ConfirmationMessage(user.Email, user.Username, link)
	if err != nil {
		return fmt.Errorf("failed to render confirmation mail: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send confirmation mail: %w", err)
	}
	log.Info().Str("email", user.Email).Msg("Confirmation mail sent")
	return nil
}

// UpdateAvatar uploads a new avatar image and stores its public URL.
func (s *UserService) UpdateAvatar(ctx context.Context, user *models.User, contentType string, body io.Reader, size int64) (*models.User, error) {
	key := fmt.Sprintf("avatars/%d/%s", user.ID, uuid.NewString())
	url, err := s.images.Upload(ctx, key, contentType, body, size)
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	updated, err := s.users.SetAvatar(ctx, user.Email, url)
	if err != nil {
		return nil, err
	}
	s.auth.InvalidateUser(ctx, user.Email)
	return updated, nil
}

func (s *UserService) startSession(ctx context.Context, user *models.User) (TokenPair, error) {
	tokens := s.auth.Tokens()
	access, err := tokens.IssueAccessToken(user.Email, s.ttls.Access)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := tokens.IssueRefreshToken(user.Email, s.ttls.Refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	if err := s.users.SetRefreshToken(ctx, user, &refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
