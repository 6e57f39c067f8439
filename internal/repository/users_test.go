package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/isdelr/contacts-be/internal/apperr"
	"github.com/isdelr/contacts-be/internal/testutil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeResolver struct {
	url   string
	err   error
	calls int
}

func (f *fakeResolver) Lookup(ctx context.Context, email string) (string, error) {
	f.calls++
	return f.url, f.err
}

func TestUserRepository_CreateWithAvatar(t *testing.T) {
	db := testutil.NewDB(t)
	resolver := &fakeResolver{url: "https://www.gravatar.com/avatar/abc"}
	repo := NewUserRepository(db, resolver)

	user, err := repo.Create(context.Background(), NewUser{Username: "bob12345", Email: "b@x.com", PasswordHash: "hash"})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.False(t, user.Confirmed)
	require.NotNil(t, user.Avatar)
	assert.Equal(t, "https://www.gravatar.com/avatar/abc", *user.Avatar)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepository_CreateSurvivesAvatarFailure(t *testing.T) {
	db := testutil.NewDB(t)
	resolver := &fakeResolver{err: errors.New("network unreachable")}
	repo := NewUserRepository(db, resolver)

	user, err := repo.Create(context.Background(), NewUser{Username: "bob12345", Email: "b@x.com", PasswordHash: "secret-hash"})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)
	assert.Nil(t, user.Avatar)

	stored, err := repo.FindByEmail(context.Background(), "b@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.Avatar)
	assert.Equal(t, "bob12345", stored.Username)
	assert.Equal(t, "secret-hash", stored.PasswordHash)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	_, err := repo.Create(ctx, NewUser{Username: "first", Email: "b@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, NewUser{Username: "second", Email: "b@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUserRepository_DuplicateEmailPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	repo := NewUserRepository(db, nil)
	_, err = repo.Create(context.Background(), NewUser{Username: "bob", Email: "b@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmailNotFound(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t), nil)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserRepository_RefreshToken(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "ann@x.com")

	token := "refresh-1"
	require.NoError(t, repo.SetRefreshToken(ctx, &user, &token))
	stored, err := repo.FindByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "refresh-1", *stored.RefreshToken)

	require.NoError(t, repo.SetRefreshToken(ctx, &user, nil))
	assert.Nil(t, user.RefreshToken)
	stored, err = repo.FindByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)
}

func TestUserRepository_ConfirmEmail(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	_, err := repo.Create(ctx, NewUser{Username: "ann", Email: "ann@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, repo.ConfirmEmail(ctx, "ann@x.com"))
	stored, err := repo.FindByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.True(t, stored.Confirmed)

	assert.ErrorIs(t, repo.ConfirmEmail(ctx, "ghost@x.com"), apperr.ErrNotFound)
}

func TestUserRepository_SetAvatar(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()
	testutil.CreateUser(t, db, "ann@x.com")

	user, err := repo.SetAvatar(ctx, "ann@x.com", "https://cdn/a.png")
	require.NoError(t, err)
	require.NotNil(t, user.Avatar)
	assert.Equal(t, "https://cdn/a.png", *user.Avatar)

	_, err = repo.SetAvatar(ctx, "ghost@x.com", "https://cdn/b.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserRepository_ListConfirmed(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	testutil.CreateUser(t, db, "a@x.com")
	_, err := repo.Create(ctx, NewUser{Username: "pending", Email: "p@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	testutil.CreateUser(t, db, "c@x.com")

	users, err := repo.ListConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.Equal(t, "c@x.com", users[1].Email)
}
