// Package httpapi exposes the HTTP surface: authentication endpoints, the
// leagues proxy, the bearer-token gate for protected routes, CORS, and the
// request metrics wiring.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitchside/pitchside/internal/common"
	"github.com/pitchside/pitchside/internal/logging"
	"github.com/pitchside/pitchside/internal/server/leagues"
	"github.com/pitchside/pitchside/internal/server/services"
)

type Handlers struct {
	auth    *services.AuthService
	leagues *leagues.Service
	logger  logging.Logger
}

func NewHandlers(auth *services.AuthService, leagues *leagues.Service, logger logging.Logger) *Handlers {
	return &Handlers{auth: auth, leagues: leagues, logger: logger}
}

type registerInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginInput struct {
	GoogleToken string `json:"google_token"`
}

type forgotPasswordInput struct {
	Email string `json:"email"`
}

type resetPasswordInput struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type verifyEmailInput struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type tokenOutput struct {
	Token string `json:"token"`
}

type messageOutput struct {
	Message string `json:"message"`
}

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageOutput{Message: "Hello, World!"})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var input registerInput
	if !decodeJSON(w, r, &input) {
		return
	}

	token, err := h.auth.Register(r.Context(), services.RegisterParams{
		Email:     input.Email,
		Username:  input.Username,
		Password:  input.Password,
		FirstName: nonEmpty(input.FirstName),
		LastName:  nonEmpty(input.LastName),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenOutput{Token: token})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var input loginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	token, err := h.auth.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenOutput{Token: token})
}

func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var input googleLoginInput
	if !decodeJSON(w, r, &input) {
		return
	}

	token, created, err := h.auth.GoogleLogin(r.Context(), input.GoogleToken)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, tokenOutput{Token: token})
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input forgotPasswordInput
	if !decodeJSON(w, r, &input) {
		return
	}

	token, err := h.auth.ForgotPassword(r.Context(), input.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenOutput{Token: token})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input resetPasswordInput
	if !decodeJSON(w, r, &input) {
		return
	}

	token, err := h.auth.ResetPassword(r.Context(), input.Email, input.Token, input.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenOutput{Token: token})
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var input verifyEmailInput
	if !decodeJSON(w, r, &input) {
		return
	}

	token, err := h.auth.VerifyEmail(r.Context(), input.Email, input.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenOutput{Token: token})
}

// Profile is a protected route: the gate has already validated the bearer
// token and attached the caller's identity.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	creds, ok := CredentialsFromContext(r.Context())
	if !ok {
		writeError(w, common.ErrMissingToken)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":       creds.ID,
		"email":    creds.Email,
		"username": creds.Username,
	})
}

func (h *Handlers) Leagues(w http.ResponseWriter, r *http.Request) {
	list, err := h.leagues.GetLeagues(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "failed to fetch leagues", "op", "leagues", "error", err)
		writeJSON(w, http.StatusInternalServerError, messageOutput{Message: "failed to fetch leagues"})
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// statusFromError maps domain errors to the client-facing status contract.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrEmailTaken), errors.Is(err, common.ErrAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusForbidden
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// internal details stay in the logs
		message = "internal server error"
	}
	writeJSON(w, status, messageOutput{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, messageOutput{Message: "invalid request body"})
		return false
	}
	return true
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
