package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(corsMiddleware)          // Browser frontends are served from elsewhere

	r.Post("/chat", apiHandler.ChatHandler)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(apiHandler.AdminAuthMiddleware)

		r.Post("/change-password", apiHandler.ChangePasswordHandler)
		r.Post("/upload-and-regenerate", apiHandler.UploadAndRegenerateHandler)
		r.Get("/stats", apiHandler.StatsHandler)
		r.Get("/conversations", apiHandler.ConversationsHandler)
		r.Get("/conversations/csv", apiHandler.ConversationsCSVHandler)
		r.Delete("/clear-logs", apiHandler.ClearLogsHandler)
	})

	return r
}

// corsMiddleware allows any origin and exposes Content-Disposition so the
// admin frontend can name the CSV download.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-API-Key")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
