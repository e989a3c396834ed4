package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/pitchside/pitchside/internal/common"
	"github.com/pitchside/pitchside/internal/server/auth"
)

type contextKey int

const credentialsKey contextKey = iota

// CredentialsFromContext returns the identity attached by the gate.
func CredentialsFromContext(ctx context.Context) (auth.Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey).(auth.Credentials)
	return creds, ok
}

// AuthGate validates the Authorization bearer token before the wrapped
// handler runs. A missing or malformed header fails with MissingToken, a
// token that does not validate fails with InvalidToken; both are 401.
func AuthGate(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, common.ErrMissingToken)
				return
			}

			creds, err := auth.GetCredentialsFromToken(token, secretKey)
			if err != nil {
				writeError(w, common.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), credentialsKey, creds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// CORS applies the allowed-origin policy to every response and answers
// preflight OPTIONS requests with 204.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAny := false
	for _, o := range allowedOrigins {
		o = normalizeOrigin(o)
		if o == "*" {
			allowAny = true
			continue
		}
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if allowAny {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if _, ok := allowed[normalizeOrigin(origin)]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Forwarded-For, X-Real-IP")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
}
