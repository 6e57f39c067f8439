// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/isdelr/contacts-be/internal/database"
	"github.com/isdelr/contacts-be/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	db, err := database.New("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewRedis starts a miniredis server and returns a client connected to it.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// CreateUser inserts a confirmed user directly.
func CreateUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Username: strings.Split(email, "@")[0], Email: email, PasswordHash: "x", Confirmed: true}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateContact inserts a contact owned by userID.
func CreateContact(t *testing.T, db *gorm.DB, userID uint, name string, birth models.Date) models.Contact {
	t.Helper()
	contact := models.Contact{
		Name: name, Surname: "Doe", Email: strings.ToLower(name) + "@x.com", Phone: "+100",
		BirthDate: birth, UserID: userID,
	}
	require.NoError(t, db.Create(&contact).Error)
	return contact
}

// Day is a shorthand for a fixed UTC noon timestamp.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}
