package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"rescuehub/controllers"
	"rescuehub/middleware"
	"rescuehub/utils"
)

// Options carries everything the router needs from main.
type Options struct {
	Tasks          *controllers.TaskController
	Token          utils.TokenConfig
	AllowedOrigins []string
	TrustedProxies []string
	RateRead       int
	RateWrite      int
}

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func InitRouter(opts Options) *mux.Router {
	r := mux.NewRouter()

	// Health check, also used by clients as their connectivity probe
	healthLimiter := middleware.NewIPRateLimiter(600, time.Minute, opts.TrustedProxies)
	r.Handle("/health", healthLimiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "rescuehub-api",
		})
	}))).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/v1").Subrouter()

	// Catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	TaskRoutes(api, opts)

	return r
}
