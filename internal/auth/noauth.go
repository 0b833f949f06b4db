package auth

import (
	"net/http"
)

// ExtractUser is used when the control API runs without credentials. It
// records the Basic Auth username if a client sent one, or defaultUser.
// Any client-supplied user header is overwritten.
func ExtractUser(defaultUser string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			user, _, ok := r.BasicAuth()
			if ok && user != "" {
				r.Header.Set(userHeader, user)
			} else {
				r.Header.Set(userHeader, defaultUser)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware picks BasicAuth when credentials are configured and
// ExtractUser otherwise.
func Middleware(username, password, defaultUser string) func(http.Handler) http.Handler {
	if username != "" && password != "" {
		return BasicAuth(username, password)
	}
	return ExtractUser(defaultUser)
}
