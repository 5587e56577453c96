package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linkfolio-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ValidationEnvelope carries one message per failed field.
type ValidationEnvelope struct {
	Errors []string `json:"errors"`
}

// PendingEnvelope is returned when signup/resend dispatched a code and the
// caller must come back with it.
type PendingEnvelope struct {
	Status           string `json:"status,omitempty"`
	Message          string `json:"message,omitempty"`
	UserID           string `json:"user_id"`
	VerificationType string `json:"verification_type,omitempty"`
	ContactMethod    string `json:"contact_method,omitempty"`
	OTPToken         string `json:"otp_token"`
}

// AuthEnvelope wraps a completed authentication.
type AuthEnvelope struct {
	Message     string       `json:"message,omitempty"`
	Token       string       `json:"token"`
	DeviceToken string       `json:"device_token,omitempty"`
	User        *domain.User `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps a service error onto a status code via the domain
// sentinels. Unexpected errors become an opaque 500; the detail goes to the
// log only, never to the client.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("internal error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
