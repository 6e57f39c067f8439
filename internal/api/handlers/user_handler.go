package handlers

import (
	"net/http"

	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/isdelr/contacts-be/internal/services"
	"github.com/rs/zerolog/log"
)

// MaxAvatarSize bounds avatar uploads.
const MaxAvatarSize = 5 << 20

// UserHandler handles HTTP requests for the current user's profile.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// GetMe returns the authenticated user.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user from context")
		auth.Unauthorized(w, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateAvatar replaces the user's avatar with the uploaded "file" part.
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, "Not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSize+1<<20)
	if err := r.ParseMultipartForm(MaxAvatarSize); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "file", Message: "multipart form expected"}})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "file", Message: "field required"}})
		return
	}
	defer file.Close()

	if header.Size > MaxAvatarSize {
		writeDetail(w, http.StatusRequestEntityTooLarge, "Avatar is too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	updated, err := h.service.UpdateAvatar(r.Context(), user, contentType, file, header.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
