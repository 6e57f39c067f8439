package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v9"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/isdelr/contacts-be/internal/cache"
	"github.com/isdelr/contacts-be/internal/mail"
	"github.com/isdelr/contacts-be/internal/repository"
	"github.com/isdelr/contacts-be/internal/services"
	"github.com/isdelr/contacts-be/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *nopMailer) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type memImages struct{}

func (memImages) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.test/bucket/" + key, nil
}

type countLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *countLimiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	if l.counts[key] > limit.Rate {
		return &redis_rate.Result{Limit: limit, RetryAfter: 30 * time.Second}, nil
	}
	return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: limit.Rate - l.counts[key]}, nil
}

type app struct {
	t       *testing.T
	handler http.Handler
	issuer  *auth.TokenIssuer
	users   *repository.GormUserRepository
	health  error
}

func newApp(t *testing.T) *app {
	t.Helper()
	db := testutil.NewDB(t)
	client, _ := testutil.NewRedis(t)
	issuer, err := auth.NewTokenIssuer("router-secret", "HS256", nil)
	require.NoError(t, err)

	users := repository.NewUserRepository(db, nil)
	authSvc := auth.NewService(issuer, users, cache.NewRedisCache[auth.CachedUser](client, "user:"))
	userSvc := services.NewUserService(users, authSvc, memImages{}, &nopMailer{}, services.TokenTTLs{Access: time.Minute, Refresh: time.Hour})
	contactSvc := services.NewContactService(repository.NewContactRepository(db), nil)

	a := &app{t: t, issuer: issuer, users: users}
	a.handler = NewRouter(Deps{
		Auth:     authSvc,
		Users:    userSvc,
		Contacts: contactSvc,
		Limiter:  &countLimiter{counts: map[string]int{}},
		Health:   func(ctx context.Context) error { return a.health },
		BaseURL:  "http://api.test",
	})
	return a
}

func (a *app) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// login registers, confirms and logs in a user, returning its token pair.
func (a *app) login(email string) services.TokenPair {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "user_" + strings.Split(email, "@")[0], "email": email, "password": "secret1",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(a.t, a.users.ConfirmEmail(context.Background(), email))

	form := url.Values{"username": {email}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	a.handler.ServeHTTP(res, req)
	require.Equal(a.t, http.StatusOK, res.Code, res.Body.String())

	var pair services.TokenPair
	require.NoError(a.t, json.Unmarshal(res.Body.Bytes(), &pair))
	return pair
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func annContact() map[string]any {
	return map[string]any{
		"name": "Ann", "surname": "Lee", "email": "ann@x.com", "phone": "+1", "birth_date": "1990-05-10",
	}
}

func TestRoot(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"helloworld"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	a := newApp(t)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", nil).Code)
	a.health = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, a.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestSignup(t *testing.T) {
	a := newApp(t)
	payload := map[string]string{"username": "bob12345", "email": "b@x.com", "password": "secret1"}

	rec := a.do(http.MethodPost, "/api/auth/signup", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "User successfully created", body["detail"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "bob12345", user["username"])
	assert.Nil(t, user["avatar"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(http.MethodPost, "/api/auth/signup", "", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"username": "bo", "email": "nope", "password": "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"username"`)
	assert.Contains(t, rec.Body.String(), `"field":"email"`)
}

func TestLoginRequiresConfirmation(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"username": "bob12345", "email": "b@x.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "b@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email not confirmed")

	token, err := a.issuer.IssueEmailToken("b@x.com")
	require.NoError(t, err)
	rec = a.do(http.MethodGet, "/api/auth/confirmed_email/"+token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email confirmed")

	rec = a.do(http.MethodGet, "/api/auth/confirmed_email/not-a-token", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "b@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode[services.TokenPair](t, rec)
	assert.Equal(t, "bearer", pair.TokenType)
}

func TestTokens(t *testing.T) {
	a := newApp(t)
	pair := a.login("ann@x.com")

	rec := a.do(http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann@x.com", decode[map[string]any](t, rec)["email"])

	rec = a.do(http.MethodGet, "/api/users/me", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = a.do(http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/api/auth/refresh_token", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/api/auth/refresh_token", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[services.TokenPair](t, rec)

	rec = a.do(http.MethodPost, "/api/auth/logout", rotated.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/api/auth/refresh_token", rotated.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContactsCRUD(t *testing.T) {
	a := newApp(t)
	owner := a.login("owner@x.com")
	stranger := a.login("stranger@x.com")

	rec := a.do(http.MethodPost, "/api/contacts", owner.AccessToken, annContact())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "1990-05-10", created["birth_date"])
	path := fmt.Sprintf("/api/contacts/%v", created["id"])

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, path, owner.AccessToken, nil).Code)
	rec = a.do(http.MethodGet, path, stranger.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Contact not found")

	updated := annContact()
	updated["surname"] = "Park"
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPut, path, stranger.AccessToken, updated).Code)
	rec = a.do(http.MethodPut, path, owner.AccessToken, updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Park", decode[map[string]any](t, rec)["surname"])

	rec = a.do(http.MethodGet, "/api/contacts/search?query=park", owner.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
	rec = a.do(http.MethodGet, "/api/contacts/search?query=park", stranger.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = a.do(http.MethodGet, "/api/contacts", stranger.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, stranger.AccessToken, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, path, owner.AccessToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, owner.AccessToken, nil).Code)
}

func TestContactsValidation(t *testing.T) {
	a := newApp(t)
	owner := a.login("owner@x.com")

	bad := annContact()
	bad["name"] = strings.Repeat("x", 51)
	delete(bad, "birth_date")
	rec := a.do(http.MethodPost, "/api/contacts", owner.AccessToken, bad)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"name"`)
	assert.Contains(t, rec.Body.String(), `"field":"birth_date"`)

	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodGet, "/api/contacts/abc", owner.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodGet, "/api/contacts?limit=-1", owner.AccessToken, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodGet, "/api/contacts/search", owner.AccessToken, nil).Code)
}

func TestContactsListRateLimited(t *testing.T) {
	a := newApp(t)
	owner := a.login("owner@x.com")
	other := a.login("other@x.com")

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/contacts", owner.AccessToken, nil).Code)
	}
	rec := a.do(http.MethodGet, "/api/contacts", owner.AccessToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/contacts", other.AccessToken, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/contacts/birthdays", owner.AccessToken, nil).Code)
}

func TestUpdateAvatar(t *testing.T) {
	a := newApp(t)
	pair := a.login("ann@x.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/users/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	avatar, _ := decode[map[string]any](t, rec)["avatar"].(string)
	assert.True(t, strings.HasPrefix(avatar, "https://cdn.test/bucket/avatars/"))

	me := a.do(http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	assert.Equal(t, avatar, decode[map[string]any](t, me)["avatar"])
}
