package repository

import (
	"context"

	"github.com/isdelr/contacts-be/internal/apperr"
	"github.com/isdelr/contacts-be/internal/avatar"
	"github.com/isdelr/contacts-be/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations on users.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, fields NewUser) (*models.User, error)
	SetRefreshToken(ctx context.Context, user *models.User, token *string) error
	ConfirmEmail(ctx context.Context, email string) error
	SetAvatar(ctx context.Context, email, url string) (*models.User, error)
	ListConfirmed(ctx context.Context) ([]models.User, error)
}

// NewUser carries the fields of a registration. PasswordHash must already be hashed.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// GormUserRepository implements UserRepository on GORM.
type GormUserRepository struct {
	db      *gorm.DB
	avatars avatar.Resolver
}

// NewUserRepository creates a GormUserRepository. avatars may be nil.
func NewUserRepository(db *gorm.DB, avatars avatar.Resolver) *GormUserRepository {
	return &GormUserRepository{db: db, avatars: avatars}
}

// FindByEmail returns apperr.ErrNotFound if no user has email.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translate(err, "find user")
	}
	return &user, nil
}

// Create inserts a new user. A default avatar is looked up first; a failed lookup
// leaves the avatar empty and never fails the registration.
func (r *GormUserRepository) Create(ctx context.Context, fields NewUser) (*models.User, error) {
	user := models.User{
		Username:     fields.Username,
		Email:        fields.Email,
		PasswordHash: fields.PasswordHash,
	}

	if r.avatars != nil {
		url, err := r.avatars.Lookup(ctx, fields.Email)
		if err != nil {
			log.Warn().Err(err).Str("email", fields.Email).Msg("Default avatar lookup failed")
		} else {
			user.Avatar = &url
		}
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, translate(err, "create user")
	}
	return &user, nil
}

// SetRefreshToken stores token on the user, or clears it when token is nil.
func (r *GormUserRepository) SetRefreshToken(ctx context.Context, user *models.User, token *string) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("refresh_token", token).Error
	if err != nil {
		return translate(err, "update refresh token")
	}
	user.RefreshToken = token
	return nil
}

// ConfirmEmail marks the user's email as confirmed.
func (r *GormUserRepository) ConfirmEmail(ctx context.Context, email string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Update("confirmed", true)
	if res.Error != nil {
		return translate(res.Error, "confirm email")
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetAvatar stores a new avatar URL and returns the updated user.
func (r *GormUserRepository) SetAvatar(ctx context.Context, email, url string) (*models.User, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(user).Update("avatar", url).Error; err != nil {
		return nil, translate(err, "update avatar")
	}
	user.Avatar = &url
	return user, nil
}

// ListConfirmed returns every user with a confirmed email, ordered by id.
func (r *GormUserRepository) ListConfirmed(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("confirmed = ?", true).Order("id").Find(&users).Error; err != nil {
		return nil, translate(err, "list users")
	}
	return users, nil
}
