package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
)

// TokenFromCookie reads the session cookie. jwtauth.TokenFromCookie only
// knows the "jwt" cookie name.
func TokenFromCookie(name string) func(r *http.Request) string {
	return func(r *http.Request) string {
		cookie, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return cookie.Value
	}
}

// Verifier looks the token up in the session cookie first, then in the
// Authorization header.
func Verifier(ja *jwtauth.JWTAuth, cookieName string) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, TokenFromCookie(cookieName), jwtauth.TokenFromHeader)
}

// Authenticator rejects requests without a valid token with a JSON 401.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Not authenticated"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
