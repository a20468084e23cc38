package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"campauth/internal/auth"
	"campauth/internal/config"
	"campauth/internal/models"
)

// Handlers translates HTTP requests into service calls.
type Handlers struct {
	svc *auth.Service
	cfg *config.Config
}

func NewHandlers(svc *auth.Service, cfg *config.Config) *Handlers {
	return &Handlers{svc: svc, cfg: cfg}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request payload"})
		return false
	}
	return true
}

// POST /api/v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	_, token, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeTokenResponse(w, h.cfg, token)
}

// POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	_, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTokenResponse(w, h.cfg, token)
}

// GET /api/v1/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]interface{}{}})
}

// GET /api/v1/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: user})
}

// PUT /api/v1/auth/updatedetails
func (h *Handlers) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateDetails(r.Context(), user.ID.Hex(), req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: updated})
}

// PUT /api/v1/auth/updatepassword
func (h *Handlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	token, err := h.svc.UpdatePassword(r.Context(), user.ID.Hex(), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTokenResponse(w, h.cfg, token)
}

// POST /api/v1/auth/forgotpassword
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	otpKeyReset, err := h.svc.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if otpKeyReset {
		writeJSON(w, http.StatusOK, envelope{Success: true,
			Data: "Account OTP is enabled, so the OTP authenticator key was reset instead. Please check your email"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: "Email sent"})
}

// PUT /api/v1/auth/resetpassword/{resettoken}
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	token, err := h.svc.ResetPassword(r.Context(), mux.Vars(r)["resettoken"], req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTokenResponse(w, h.cfg, token)
}

// GET /api/v1/auth/confirmemail?token=
func (h *Handlers) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token, err := h.svc.ConfirmEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeTokenResponse(w, h.cfg, token)
}

// PUT /api/v1/auth/otp
func (h *Handlers) ToggleOTP(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "not authorized to access this route"})
		return
	}
	enabled, err := h.svc.ToggleOTP(r.Context(), user.ID.Hex())
	if err != nil {
		writeError(w, err)
		return
	}
	// Either direction ends the current session.
	clearSessionCookie(w)
	if enabled {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: "Turned on OTP. Please login again"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true,
		Data: "Turned off OTP. Please login again. Use forgot password to set up a new password unless you remember your old one"})
}

// POST /api/v1/auth/otp
func (h *Handlers) LoginOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	if !decode(w, r, &req) {
		return
	}
	_, token, err := h.svc.LoginOTP(r.Context(), req.Email, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTokenResponse(w, h.cfg, token)
}
