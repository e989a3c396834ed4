package httpapi

import (
	"net/http"

	"github.com/pitchside/pitchside/internal/server/metrics"
)

// NewRouter wires the public and protected routes and wraps the whole tree
// in the metrics and CORS middleware.
func NewRouter(h *Handlers, m *metrics.Metrics, jwtSecret []byte, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /login/google", h.GoogleLogin)
	mux.HandleFunc("POST /forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /reset-password", h.ResetPassword)
	mux.HandleFunc("POST /verify-email", h.VerifyEmail)

	if h.leagues != nil {
		mux.HandleFunc("GET /leagues", h.Leagues)
	}
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	gate := AuthGate(jwtSecret)
	mux.Handle("GET /profile", gate(http.HandlerFunc(h.Profile)))

	var handler http.Handler = mux
	if m != nil {
		handler = m.Middleware(handler)
	}
	return CORS(allowedOrigins)(handler)
}
