package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/isdelr/contacts-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration, sessions and email confirmation.
type AuthHandler struct {
	service services.UserServiceProvider
	baseURL string
}

// NewAuthHandler creates a new AuthHandler. An empty baseURL means links are built
// from the request host.
func NewAuthHandler(service services.UserServiceProvider, baseURL string) *AuthHandler {
	return &AuthHandler{service: service, baseURL: baseURL}
}

// SignupPayload defines the structure for registration requests.
type SignupPayload struct {
	Username string `json:"username" validate:"required,min=5,max=16"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=10"`
}

// LoginPayload carries the credentials of a login. Username holds the email.
type LoginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RequestEmailPayload asks for a new confirmation mail.
type RequestEmailPayload struct {
	Email string `json:"email" validate:"required,email"`
}

// Signup registers a user and mails the confirmation link in the background.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload SignupPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.service.Signup(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	baseURL := h.linkBase(r)
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.service.SendConfirmation(ctx, user, baseURL); err != nil {
			log.Error().Err(err).Str("email", user.Email).Msg("Failed to send confirmation mail")
		}
	}()

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"detail": "User successfully created",
	})
}

// Login accepts either a form or a JSON body and returns a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "body", Message: "invalid JSON: " + err.Error()}})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "body", Message: err.Error()}})
			return
		}
		payload.Username = r.PostFormValue("username")
		payload.Password = r.PostFormValue("password")
	}
	if !validateStruct(w, &payload) {
		return
	}

	pair, err := h.service.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Username).Msg("Failed authentication attempt")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken rotates the token pair using the bearer refresh token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		auth.Unauthorized(w, "Not authenticated")
		return
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Logout ends the current user's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, "Not authenticated")
		return
	}
	if err := h.service.Logout(r.Context(), user); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// ConfirmedEmail confirms the address carried by the token in the path.
func (h *AuthHandler) ConfirmedEmail(w http.ResponseWriter, r *http.Request) {
	msg, err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// RequestEmail resends the confirmation mail.
func (h *AuthHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	var payload RequestEmailPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	msg, err := h.service.RequestEmail(r.Context(), payload.Email, h.linkBase(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *AuthHandler) linkBase(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.EqualFold(mediaType, "application/json")
}
