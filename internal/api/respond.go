package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"campauth/internal/auth"
	"campauth/internal/config"
)

// sessionCookie is the cookie carrying the signed session token.
const sessionCookie = "token"

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Token   string      `json:"token,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors onto the HTTP error taxonomy.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrOTPRequired),
		errors.Is(err, auth.ErrMissingCode):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrOTPNotEnabled), errors.Is(err, auth.ErrEmailNotConfirmed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, auth.ErrEmailDelivery):
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, auth.ErrEmailDelivery) {
		// Internal details stay in the logs.
		msg = "server error"
	}
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeTokenResponse sets the session cookie and echoes the token in the
// body. The secure flag is set only in production.
func writeTokenResponse(w http.ResponseWriter, cfg *config.Config, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Expires:  time.Now().Add(cfg.CookieExpire),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, envelope{Success: true, Token: token})
}

// clearSessionCookie overwrites the cookie with a short-lived dummy value.
// A previously issued token remains valid until its own expiry; there is no
// server-side revocation list.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "none",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Path:     "/",
	})
}
