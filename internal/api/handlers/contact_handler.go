package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/contacts-be/internal/apperr"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/isdelr/contacts-be/internal/models"
	"github.com/isdelr/contacts-be/internal/services"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ContactHandler handles HTTP requests related to contacts. Every operation is
// scoped to the authenticated user.
type ContactHandler struct {
	service services.ContactServiceProvider
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(service services.ContactServiceProvider) *ContactHandler {
	return &ContactHandler{service: service}
}

// GetAll returns one page of contacts, controlled by skip and limit.
func (h *ContactHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	user := mustUser(w, r)
	if user == nil {
		return
	}

	skip, ok := queryInt(w, r, "skip", 0, 0, -1)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", defaultLimit, 0, maxLimit)
	if !ok {
		return
	}

	contacts, err := h.service.List(r.Context(), user.ID, skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// Get returns a single contact.
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := mustUser(w, r)
	if user == nil {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Get(r.Context(), id, user.ID)
	if err != nil {
		writeContactError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// Create adds a contact to the user's address book.
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := mustUser(w, r)
	if user == nil {
		return
	}
	var fields models.ContactFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	contact, err := h.service.Create(r.Context(), fields, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

// Update replaces every field of a contact.
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := mustUser(w, r)
	if user == nil {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	var fields models.ContactFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	contact, err := h.service.Update(r.Context(), id, fields, user.ID)
	if err != nil {
		writeContactError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// Delete removes a contact and returns what was removed.
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := mustUser(w, r)
	if user == nil {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Delete(r.Context(), id, user.ID)
	if err != nil {
		writeContactError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// Search finds contacts by name, surname or email.
func (h *ContactHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := mustUser(w, r)
	if user == nil {
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "query", Message: "field required"}})
		return
	}

	contacts, err := h.service.Search(r.Context(), query, user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// Birthdays lists contacts with a birthday in the coming week.
func (h *ContactHandler) Birthdays(w http.ResponseWriter, r *http.Request) {
	user := mustUser(w, r)
	if user == nil {
		return
	}

	contacts, err := h.service.UpcomingBirthdays(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func mustUser(w http.ResponseWriter, r *http.Request) *models.User {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, "Not authenticated")
		return nil
	}
	return user
}

func writeContactError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Contact not found")
		return
	}
	writeError(w, r, err)
}

func contactID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "id", Message: "value is not a valid integer"}})
		return 0, false
	}
	return uint(id), true
}

// queryInt reads an optional non-negative integer parameter. A negative hi means
// unbounded.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi >= 0 && v > hi) {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: name, Message: "value is not a valid integer in range"}})
		return 0, false
	}
	return v, true
}
