package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/isdelr/contacts-be/internal/apperr"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// writeError maps service errors onto HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found")
	case errors.Is(err, apperr.ErrConflict):
		writeDetail(w, http.StatusConflict, "Account already exists")
	case errors.Is(err, apperr.ErrEmailNotConfirmed):
		auth.Unauthorized(w, "Email not confirmed")
	case errors.Is(err, apperr.ErrUnauthorized),
		errors.Is(err, apperr.ErrInvalidToken),
		errors.Is(err, apperr.ErrInvalidScope):
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Request rejected as unauthorized")
		auth.Unauthorized(w, apperr.ErrUnauthorized.Error())
	case errors.Is(err, apperr.ErrUnprocessableToken):
		writeDetail(w, http.StatusUnprocessableEntity, apperr.ErrUnprocessableToken.Error())
	case errors.Is(err, apperr.ErrBadRequest):
		writeDetail(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), apperr.ErrBadRequest.Error()+": "))
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON decodes and validates the request body into dst. On failure it writes a
// 422 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "body", Message: "invalid JSON: " + err.Error()}})
		return false
	}
	return validateStruct(w, dst)
}

func validateStruct(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeDetail(w, http.StatusUnprocessableEntity, []FieldError{{Field: "body", Message: err.Error()}})
		return false
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	writeDetail(w, http.StatusUnprocessableEntity, fields)
	return false
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return "ensure this value has at least " + fe.Param() + " characters"
	case "max":
		return "ensure this value has at most " + fe.Param() + " characters"
	default:
		return "failed on " + fe.Tag()
	}
}
