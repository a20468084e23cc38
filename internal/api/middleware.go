package api

import (
	"context"
	"net/http"
	"strings"

	"campauth/internal/auth"
	"campauth/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// userFrom returns the authenticated user placed by Protect.
func userFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey).(*models.User)
	return u, ok
}

// sessionToken extracts the token from the cookie or a Bearer header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" && c.Value != "none" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Protect validates the session token and loads the user into the request
// context. Requests without a valid session get 401.
func (h *Handlers) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := sessionToken(r)
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
			return
		}
		userID, err := auth.ParseSessionToken(tok, []byte(h.cfg.JWTSecret))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
			return
		}
		user, err := h.svc.UserByID(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize restricts a protected route to the given roles. Admin always
// passes. Meant to be stacked after Protect on resource routes.
func Authorize(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFrom(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
				return
			}
			if user.Role == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, envelope{Success: false,
				Error: "user role " + string(user.Role) + " is not authorized to access this route"})
		})
	}
}
