package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"rescuehub/middleware"
)

// TaskRoutes registers the task lifecycle endpoints. Authentication runs
// before the per-user limiter so the limiter sees the caller.
func TaskRoutes(api *mux.Router, opts Options) {
	userLimiter := middleware.NewUserRateLimiter(opts.RateRead, opts.RateWrite, time.Minute)
	auth := middleware.AuthMiddleware(opts.Token)
	protect := func(h http.HandlerFunc) http.Handler {
		return auth(userLimiter.Middleware(h))
	}
	c := opts.Tasks

	// Reads
	api.Handle("/tasks", protect(c.ListTasks)).Methods(http.MethodGet)
	api.Handle("/tasks/{id:[0-9]+}", protect(c.GetTask)).Methods(http.MethodGet)
	api.Handle("/me/claims", protect(c.MyClaims)).Methods(http.MethodGet)

	// Writes
	api.Handle("/tasks", protect(c.CreateTask)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/claims", protect(c.ApplyClaim)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/claims/{userId:[0-9]+}/approve", protect(c.ApproveClaim)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/complete", protect(c.CompleteClaim)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/cancel", protect(c.CancelTask)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/force-complete", protect(c.ForceComplete)).Methods(http.MethodPost)
}
