package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractUser(t *testing.T) {
	defaultUser := "local"
	mw := ExtractUser(defaultUser)
	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := mw(next)

	t.Run("health bypass", func(t *testing.T) {
		gotUser = ""
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Empty(t, gotUser)
	})

	t.Run("basic auth sets user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sync", nil)
		req.SetBasicAuth("alice", "secret")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "alice", gotUser)
	})

	t.Run("no auth uses default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sync", nil)
		req.Header.Set(userHeader, "spoofed")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, defaultUser, gotUser)
	})
}

func TestBasicAuth(t *testing.T) {
	var gotUser string
	handler := BasicAuth("admin", "pw")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserFromRequest(r)
	}))

	tests := []struct {
		name       string
		path       string
		user, pass string
		want       int
	}{
		{"health is open", "/health", "", "", http.StatusOK},
		{"missing credentials", "/assets", "", "", http.StatusUnauthorized},
		{"wrong password", "/assets", "admin", "nope", http.StatusUnauthorized},
		{"valid", "/assets", "admin", "pw", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "assetsync")
			}
		})
	}
	assert.Equal(t, "admin", gotUser)
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	Middleware("", "", "local")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Middleware("a", "b", "local")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
