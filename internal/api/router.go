package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the versioned auth routes plus health and metrics.
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/auth").Subrouter()

	api.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)
	api.HandleFunc("/forgotpassword", h.ForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/resetpassword/{resettoken}", h.ResetPassword).Methods(http.MethodPut)
	api.HandleFunc("/confirmemail", h.ConfirmEmail).Methods(http.MethodGet)
	api.HandleFunc("/otp", h.LoginOTP).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(h.Protect)
	protected.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	protected.HandleFunc("/updatedetails", h.UpdateDetails).Methods(http.MethodPut)
	protected.HandleFunc("/updatepassword", h.UpdatePassword).Methods(http.MethodPut)
	protected.HandleFunc("/otp", h.ToggleOTP).Methods(http.MethodPut)

	return router
}
