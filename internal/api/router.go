package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func NewRouter(h *Handler, authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)
	if authMiddleware != nil {
		r.Use(authMiddleware)
	}
	r.Get("/health", h.Health)
	r.Post("/sync", h.Sync)
	r.Get("/assets", h.Assets)
	r.Get("/tree", h.Tree)
	r.Get("/updates", h.Updates)
	r.Post("/assets/download", h.Download)
	r.Post("/assets/update", h.Update)
	r.Post("/assets/force-update", h.ForceUpdate)
	r.Post("/assets/skip", h.Skip)
	r.Post("/assets/remove", h.Remove)
	r.Post("/assets/download-all", h.DownloadAll)
	r.Post("/assets/update-all", h.UpdateAll)
	return r
}
